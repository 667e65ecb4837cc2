package components

import (
	"testing"

	tea "charm.land/bubbletea/v2"
	"github.com/stretchr/testify/assert"
)

func TestProgressBarFraction(t *testing.T) {
	tests := []struct {
		done, total int
		want        float64
	}{
		{0, 10, 0},
		{5, 10, 0.5},
		{12, 10, 1},
		{3, 0, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NewProgressBar(tt.done, tt.total, 40).Fraction())
	}
}

func TestProgressBarView(t *testing.T) {
	assert.Contains(t, NewProgressBar(3, 8, 40).View(), "3/8")
}

func TestIDInputFiltersRunes(t *testing.T) {
	in := NewIDInput("participant id", 32)
	for _, r := range "p1/ x_" {
		in, _ = in.Update(tea.KeyPressMsg{Code: r, Text: string(r)})
	}
	assert.Equal(t, "p1x_", in.Value())
}

func TestIDRune(t *testing.T) {
	assert.True(t, IDRune('a'))
	assert.True(t, IDRune('Z'))
	assert.True(t, IDRune('7'))
	assert.True(t, IDRune('-'))
	assert.False(t, IDRune('/'))
	assert.False(t, IDRune('.'))
	assert.False(t, IDRune(' '))
}
