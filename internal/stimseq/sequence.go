package stimseq

import (
	"errors"
	"fmt"
	"strings"
)

// Stimulus identifies a single image by folder and 1-based id.
type Stimulus struct {
	Folder int `json:"folder"`
	ID     int `json:"id"`
}

// ImagePath builds <root>/images<folder>/image<id>.jpg. The root may be a
// directory or a URL prefix; an empty root yields a relative path.
func (s Stimulus) ImagePath(root string) string {
	rel := fmt.Sprintf("images%d/image%d.jpg", s.Folder, s.ID)
	if root == "" {
		return rel
	}
	return strings.TrimSuffix(root, "/") + "/" + rel
}

// Sequence holds the five parallel per-trial arrays that drive a session.
// Index i of every array describes the trial at absolute position i.
type Sequence struct {
	Stims    []int `json:"allStims" yaml:"allStims"`
	CorKeys  []int `json:"corKey" yaml:"corKey"`
	SetSizes []int `json:"setSizes" yaml:"setSizes"`
	Blocks   []int `json:"allBlocks" yaml:"allBlocks"`
	Folders  []int `json:"imgFolders" yaml:"imgFolders"`
}

// Row is one absolute trial position of a Sequence.
type Row struct {
	Stim    int
	CorKey  int
	SetSize int
	Block   int
	Folder  int
}

// Len returns the number of trial positions.
func (s *Sequence) Len() int {
	return len(s.Stims)
}

// At returns the row at absolute position i.
func (s *Sequence) At(i int) Row {
	return Row{
		Stim:    s.Stims[i],
		CorKey:  s.CorKeys[i],
		SetSize: s.SetSizes[i],
		Block:   s.Blocks[i],
		Folder:  s.Folders[i],
	}
}

// BlockIDs returns the distinct block ids in order of first appearance.
func (s *Sequence) BlockIDs() []int {
	seen := make(map[int]bool)
	var ids []int
	for _, b := range s.Blocks {
		if !seen[b] {
			seen[b] = true
			ids = append(ids, b)
		}
	}
	return ids
}

// Validate checks structural consistency: equal array lengths, positive ids,
// contiguous block runs, and correct keys inside the response alphabet.
func (s *Sequence) Validate(alphabet int) error {
	n := len(s.Stims)
	if n == 0 {
		return errors.New("stimulus sequence is empty")
	}
	lengths := []struct {
		name string
		n    int
	}{
		{"corKey", len(s.CorKeys)},
		{"setSizes", len(s.SetSizes)},
		{"allBlocks", len(s.Blocks)},
		{"imgFolders", len(s.Folders)},
	}
	for _, l := range lengths {
		if l.n != n {
			return fmt.Errorf("%s has %d entries, allStims has %d", l.name, l.n, n)
		}
	}

	closed := make(map[int]bool)
	for i := 0; i < n; i++ {
		row := s.At(i)
		if row.Stim < 1 {
			return fmt.Errorf("position %d: stimulus id %d must be >= 1", i, row.Stim)
		}
		if row.SetSize < 1 {
			return fmt.Errorf("position %d: set size %d must be >= 1", i, row.SetSize)
		}
		if row.CorKey < 0 || row.CorKey >= alphabet {
			return fmt.Errorf("position %d: correct key %d outside alphabet of %d", i, row.CorKey, alphabet)
		}
		if i > 0 && s.Blocks[i-1] != row.Block {
			closed[s.Blocks[i-1]] = true
			if closed[row.Block] {
				return fmt.Errorf("position %d: block %d is not contiguous", i, row.Block)
			}
		}
	}
	return nil
}
