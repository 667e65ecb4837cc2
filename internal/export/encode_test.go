package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/revlearn/internal/trial"
)

func sampleRecords() []trial.Record {
	key := 2
	rt := 523 * time.Millisecond
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return []trial.Record{
		{
			SessionID: "s", BlockID: 3, TrialIndex: 0, Folder: 7, StimulusID: 1,
			Mode: trial.ModeReversal, Response: &key, CorrectResponse: 2, Correct: true,
			ReactionTime: &rt, Threshold: 3, ConsecutiveCorrect: 1, RecordedAt: at,
		},
		{
			SessionID: "s", BlockID: 3, TrialIndex: 1, Folder: 7, StimulusID: 2,
			Mode: trial.ModeReversal, CorrectResponse: 0, Threshold: 4, RecordedAt: at,
		},
	}
}

func TestEncode_CSV(t *testing.T) {
	blob, err := Encode(FormatCSV, "p1_block_3", sampleRecords())
	require.NoError(t, err)
	assert.Equal(t, "p1_block_3.csv", blob.Name)
	assert.Equal(t, "text/csv", blob.ContentType)

	rows, err := csv.NewReader(bytes.NewReader(blob.Data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, Columns, rows[0])

	row := func(i int, col string) string {
		for j, c := range Columns {
			if c == col {
				return rows[i][j]
			}
		}
		t.Fatalf("no column %s", col)
		return ""
	}
	assert.Equal(t, "2", row(1, "response"))
	assert.Equal(t, "523", row(1, "rt_ms"))
	assert.Equal(t, "true", row(1, "correct"))
	assert.Equal(t, "-1", row(2, "response"), "timeout")
	assert.Equal(t, "-1", row(2, "rt_ms"))
	assert.Equal(t, "2026-03-01T12:00:00Z", row(2, "recorded_at"))
}

func TestEncode_JSON(t *testing.T) {
	blob, err := Encode(FormatJSON, "p1", sampleRecords())
	require.NoError(t, err)
	assert.Equal(t, "p1.json", blob.Name)

	var rows []Row
	require.NoError(t, json.Unmarshal(blob.Data, &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, 7, rows[0].Folder)
	assert.Equal(t, int64(-1), rows[1].RTMs)
}

func TestEncode_Empty(t *testing.T) {
	blob, err := Encode(FormatCSV, "empty", nil)
	require.NoError(t, err)
	rows, err := csv.NewReader(bytes.NewReader(blob.Data)).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("json")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	_, err = ParseFormat("xml")
	assert.Error(t, err)

	_, err = Encode(Format("xml"), "x", nil)
	assert.Error(t, err)
}
