/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package bingo

import (
	"sort"
	"strconv"
)

// LineKind distinguishes rows, columns and diagonals.
type LineKind string

const (
	Row      LineKind = "row"
	Column   LineKind = "column"
	Diagonal LineKind = "diagonal"
)

// Line is one of the twelve winning index sets of a 5x5 board.
type Line struct {
	Kind  LineKind  `json:"kind"`
	Index int       `json:"index"`
	Cells [Size]int `json:"cells"`
}

// letters are overlaid on a completed line, one per position.
const letters = "BINGO"

// Lines lists every winning line: rows, then columns, then the main and anti diagonals.
var Lines = func() [2*Size + 2]Line {
	var out [2*Size + 2]Line

	n := 0
	for r := 0; r < Size; r++ {
		l := Line{Kind: Row, Index: r}
		for c := 0; c < Size; c++ {
			l.Cells[c] = r*Size + c
		}
		out[n] = l
		n++
	}

	for c := 0; c < Size; c++ {
		l := Line{Kind: Column, Index: c}
		for r := 0; r < Size; r++ {
			l.Cells[r] = r*Size + c
		}
		out[n] = l
		n++
	}

	lead := Line{Kind: Diagonal, Index: 0}
	anti := Line{Kind: Diagonal, Index: 1}
	for i := 0; i < Size; i++ {
		lead.Cells[i] = i*Size + i
		anti.Cells[i] = i*Size + (Size - 1 - i)
	}
	out[n] = lead
	out[n+1] = anti

	return out
}()

// complete reports whether every position of l holds a completed cell.
// Positions past the end of the board count as incomplete.
func (l Line) complete(b Board, c Completion) bool {
	for _, i := range l.Cells {
		if i >= len(b) {
			return false
		}
		if _, ok := c[b[i].ID]; !ok {
			return false
		}
	}
	return true
}

// String names the line, e.g. "row-0" or "diagonal-1".
func (l Line) String() string {
	return string(l.Kind) + "-" + strconv.Itoa(l.Index)
}

// Contains reports whether position i is on the line.
func (l Line) Contains(i int) bool {
	for _, p := range l.Cells {
		if p == i {
			return true
		}
	}
	return false
}

// DetectLines returns every completed line, in the order of Lines.
func DetectLines(b Board, c Completion) []Line {
	if len(c) == 0 {
		return []Line{}
	}

	out := []Line{}
	for _, l := range Lines {
		if l.complete(b, c) {
			out = append(out, l)
		}
	}
	return out
}

// DetectFirstLine returns the first completed line, if any.
func DetectFirstLine(b Board, c Completion) (Line, bool) {
	if len(c) == 0 {
		return Line{}, false
	}

	for _, l := range Lines {
		if l.complete(b, c) {
			return l, true
		}
	}
	return Line{}, false
}

// Letters maps each cell on a completed line to its B/I/N/G/O letter. A cell
// on several completed lines takes its letter from the first one in Lines.
func Letters(b Board, c Completion) map[int]rune {
	out := make(map[int]rune)
	for _, l := range DetectLines(b, c) {
		for pos, i := range l.Cells {
			if _, ok := out[i]; ok {
				continue
			}
			out[i] = rune(letters[pos])
		}
	}
	return out
}

// Headers reports which column header letters a line touches.
func Headers(l Line) [Size]bool {
	var out [Size]bool
	for _, i := range l.Cells {
		out[i%Size] = true
	}
	return out
}

// CheckCompletion returns an *InvalidCompletionReferenceError naming every
// completion key that is not on the board. Detection ignores such keys.
func CheckCompletion(b Board, c Completion) error {
	var unknown []string
	for id := range c {
		if b.Index(id) < 0 {
			unknown = append(unknown, id)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)
	return &InvalidCompletionReferenceError{IDs: unknown}
}
