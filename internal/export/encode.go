package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/abhisek/revlearn/internal/trial"
)

// Format is an export encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatCSV, FormatJSON:
		return f, nil
	}
	return "", fmt.Errorf("unknown export format %q", s)
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	if f == FormatJSON {
		return "application/json"
	}
	return "text/csv"
}

// Blob is one encoded export ready for a sink.
type Blob struct {
	// Name is the file name including the extension.
	Name        string
	ContentType string
	Data        []byte
}

// Columns is the CSV header, one column per Row field.
var Columns = []string{
	"session_id", "block", "trial_index", "folder", "stimulus", "mode", "phase",
	"response", "correct_response", "correct", "rt_ms",
	"threshold", "consecutive_correct", "reversed", "reversals", "recorded_at",
}

// Row is the flat export shape of a trial record. Response is -1 and
// RTMs is -1 on timeout.
type Row struct {
	SessionID          string     `json:"session_id"`
	Block              int        `json:"block"`
	TrialIndex         int        `json:"trial_index"`
	Folder             int        `json:"folder"`
	Stimulus           int        `json:"stimulus"`
	Mode               trial.Mode `json:"mode"`
	Phase              int        `json:"phase"`
	Response           int        `json:"response"`
	CorrectResponse    int        `json:"correct_response"`
	Correct            bool       `json:"correct"`
	RTMs               int64      `json:"rt_ms"`
	Threshold          int        `json:"threshold"`
	ConsecutiveCorrect int        `json:"consecutive_correct"`
	Reversed           bool       `json:"reversed"`
	Reversals          int        `json:"reversals"`
	RecordedAt         time.Time  `json:"recorded_at"`
}

// RowOf flattens a record.
func RowOf(r trial.Record) Row {
	resp := -1
	if r.Response != nil {
		resp = *r.Response
	}
	return Row{
		SessionID:          r.SessionID,
		Block:              r.BlockID,
		TrialIndex:         r.TrialIndex,
		Folder:             r.Folder,
		Stimulus:           r.StimulusID,
		Mode:               r.Mode,
		Phase:              r.Phase,
		Response:           resp,
		CorrectResponse:    r.CorrectResponse,
		Correct:            r.Correct,
		RTMs:               r.ReactionTimeMs(),
		Threshold:          r.Threshold,
		ConsecutiveCorrect: r.ConsecutiveCorrect,
		Reversed:           r.Reversed,
		Reversals:          r.Reversals,
		RecordedAt:         r.RecordedAt.UTC(),
	}
}

func (r Row) fields() []string {
	return []string{
		r.SessionID,
		strconv.Itoa(r.Block),
		strconv.Itoa(r.TrialIndex),
		strconv.Itoa(r.Folder),
		strconv.Itoa(r.Stimulus),
		string(r.Mode),
		strconv.Itoa(r.Phase),
		strconv.Itoa(r.Response),
		strconv.Itoa(r.CorrectResponse),
		strconv.FormatBool(r.Correct),
		strconv.FormatInt(r.RTMs, 10),
		strconv.Itoa(r.Threshold),
		strconv.Itoa(r.ConsecutiveCorrect),
		strconv.FormatBool(r.Reversed),
		strconv.Itoa(r.Reversals),
		r.RecordedAt.Format(time.RFC3339Nano),
	}
}

// Encode renders records in format f under name scope plus the format's
// extension.
func Encode(f Format, scope string, records []trial.Record) (Blob, error) {
	rows := make([]Row, len(records))
	for i, r := range records {
		rows[i] = RowOf(r)
	}

	var buf bytes.Buffer
	switch f {
	case FormatCSV:
		w := csv.NewWriter(&buf)
		if err := w.Write(Columns); err != nil {
			return Blob{}, fmt.Errorf("write csv header: %w", err)
		}
		for _, r := range rows {
			if err := w.Write(r.fields()); err != nil {
				return Blob{}, fmt.Errorf("write csv row: %w", err)
			}
		}
		w.Flush()
		if err := w.Error(); err != nil {
			return Blob{}, fmt.Errorf("flush csv: %w", err)
		}
	case FormatJSON:
		enc := json.NewEncoder(&buf)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rows); err != nil {
			return Blob{}, fmt.Errorf("encode json: %w", err)
		}
	default:
		return Blob{}, fmt.Errorf("unknown export format %q", f)
	}

	return Blob{
		Name:        scope + "." + string(f),
		ContentType: f.ContentType(),
		Data:        buf.Bytes(),
	}, nil
}
