package stimseq

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCSV_RowLayout(t *testing.T) {
	in := `1,2,1,2
0,1,0,1
2,2,2,2
1,1,2,2
7,7,8,8
`
	seq, err := Parse(strings.NewReader(in), FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 1, 2}, seq.Stims)
	assert.Equal(t, []int{0, 1, 0, 1}, seq.CorKeys)
	assert.Equal(t, []int{1, 1, 2, 2}, seq.Blocks)
	assert.Equal(t, []int{7, 7, 8, 8}, seq.Folders)
	assert.NoError(t, seq.Validate(3))
}

func TestParseCSV_LabelledRows(t *testing.T) {
	in := `allStims,1,2
corKey,2,0
setSizes,2,2
allBlocks,1,1
imgFolders,3,3
`
	seq, err := Parse(strings.NewReader(in), FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, seq.Stims)
	assert.Equal(t, []int{3, 3}, seq.Folders)
}

func TestParseCSV_TooFewRows(t *testing.T) {
	_, err := Parse(strings.NewReader("1,2\n0,1\n"), FormatCSV)
	assert.Error(t, err)
}

func TestParseJSON_Valid(t *testing.T) {
	in := `{"allStims":[1,2],"corKey":[0,1],"setSizes":[2,2],"allBlocks":[3,3],"imgFolders":[4,4]}`
	seq, err := Parse(strings.NewReader(in), FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, 2, seq.Len())
	assert.Equal(t, Row{Stim: 2, CorKey: 1, SetSize: 2, Block: 3, Folder: 4}, seq.At(1))
}

func TestParseJSON_SchemaViolation(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"missing field", `{"allStims":[1],"corKey":[0],"setSizes":[1],"allBlocks":[1]}`},
		{"zero stimulus", `{"allStims":[0],"corKey":[0],"setSizes":[1],"allBlocks":[1],"imgFolders":[1]}`},
		{"string entry", `{"allStims":["a"],"corKey":[0],"setSizes":[1],"allBlocks":[1],"imgFolders":[1]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.in), FormatJSON)
			assert.Error(t, err)
		})
	}
}

func TestParseYAML(t *testing.T) {
	in := `allStims: [1, 1]
corKey: [2, 2]
setSizes: [1, 1]
allBlocks: [2, 2]
imgFolders: [5, 5]
`
	seq, err := Parse(strings.NewReader(in), FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, []int{2}, seq.BlockIDs())
}

func TestFormatFromPath(t *testing.T) {
	f, err := FormatFromPath("seq.YML")
	require.NoError(t, err)
	assert.Equal(t, FormatYAML, f)

	_, err = FormatFromPath("seq.txt")
	assert.Error(t, err)
}
