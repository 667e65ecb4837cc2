package stimseq

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

// Format is a supported sequence file encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath picks a Format from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV, nil
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unsupported sequence file extension %q", filepath.Ext(path))
}

// LoadFile reads and parses the sequence file at path.
func LoadFile(path string) (*Sequence, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sequence file: %w", err)
	}
	return Parse(bytes.NewReader(data), format)
}

// Parse decodes a sequence from r.
func Parse(r io.Reader, format Format) (*Sequence, error) {
	switch format {
	case FormatCSV:
		return parseCSV(r)
	case FormatJSON:
		return parseJSON(r)
	case FormatYAML:
		return parseYAML(r)
	}
	return nil, fmt.Errorf("unknown sequence format %q", format)
}

// parseCSV reads the row-oriented layout: five lines holding allStims,
// corKey, setSizes, allBlocks and imgFolders. A non-numeric first cell is
// treated as a row label and skipped.
func parseCSV(r io.Reader) (*Sequence, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	var parsed [][]int
	for i, row := range rows {
		if len(row) == 0 || (len(row) == 1 && strings.TrimSpace(row[0]) == "") {
			continue
		}
		if _, err := strconv.Atoi(strings.TrimSpace(row[0])); err != nil {
			row = row[1:]
		}
		vals := make([]int, 0, len(row))
		for j, cell := range row {
			cell = strings.TrimSpace(cell)
			if cell == "" {
				continue
			}
			v, err := strconv.Atoi(cell)
			if err != nil {
				return nil, fmt.Errorf("parse csv row %d column %d: %w", i+1, j+1, err)
			}
			vals = append(vals, v)
		}
		parsed = append(parsed, vals)
	}
	if len(parsed) < 5 {
		return nil, fmt.Errorf("parse csv: want 5 rows, got %d", len(parsed))
	}
	return &Sequence{
		Stims:    parsed[0],
		CorKeys:  parsed[1],
		SetSizes: parsed[2],
		Blocks:   parsed[3],
		Folders:  parsed[4],
	}, nil
}

const sequenceSchema = `{
  "type": "object",
  "required": ["allStims", "corKey", "setSizes", "allBlocks", "imgFolders"],
  "properties": {
    "allStims":   {"type": "array", "minItems": 1, "items": {"type": "integer", "minimum": 1}},
    "corKey":     {"type": "array", "items": {"type": "integer", "minimum": 0}},
    "setSizes":   {"type": "array", "items": {"type": "integer", "minimum": 1}},
    "allBlocks":  {"type": "array", "items": {"type": "integer", "minimum": 1}},
    "imgFolders": {"type": "array", "items": {"type": "integer", "minimum": 0}}
  }
}`

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func sequenceValidator() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		var def any
		if err := json.Unmarshal([]byte(sequenceSchema), &def); err != nil {
			schemaErr = fmt.Errorf("parse sequence schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		const url = "schema://sequence.json"
		if err := c.AddResource(url, def); err != nil {
			schemaErr = fmt.Errorf("add resource: %w", err)
			return
		}
		compiledSchema, schemaErr = c.Compile(url)
	})
	return compiledSchema, schemaErr
}

func parseJSON(r io.Reader) (*Sequence, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read json: %w", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	schema, err := sequenceValidator()
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("sequence schema validation failed: %w", err)
	}
	var seq Sequence
	if err := json.Unmarshal(raw, &seq); err != nil {
		return nil, fmt.Errorf("decode sequence: %w", err)
	}
	return &seq, nil
}

func parseYAML(r io.Reader) (*Sequence, error) {
	var seq Sequence
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&seq); err != nil {
		return nil, fmt.Errorf("decode yaml sequence: %w", err)
	}
	return &seq, nil
}
