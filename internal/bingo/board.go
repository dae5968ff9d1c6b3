/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package bingo holds the photo bingo engine: sampling boards from a clue
// pool and detecting completed lines on a 5x5 board.
package bingo

import (
	"math/rand/v2"
	"strconv"
)

const (
	// Size is the width and height of a board.
	Size = 5

	// Cells is the number of squares on a full board.
	Cells = Size * Size
)

// Clue is a challenge template from the pool.
type Clue struct {
	Name        string `json:"name,omitempty"`
	Description string `json:"description"`
	Emoji       string `json:"emoji"`
}

// Cell is a clue placed on a board. ID is unique within its board.
type Cell struct {
	ID string `json:"id"`
	Clue
}

// Board is an ordered set of cells, row-major.
type Board []Cell

// Completion maps cell IDs to photo URLs. Absent keys are incomplete cells.
type Completion map[string]string

// Index returns the position of the cell with the given ID, or -1.
func (b Board) Index(id string) int {
	for i, c := range b {
		if c.ID == id {
			return i
		}
	}
	return -1
}

// Cell returns the cell with the given ID.
func (b Board) Cell(id string) (Cell, bool) {
	i := b.Index(id)
	if i < 0 {
		return Cell{}, false
	}
	return b[i], true
}

// With returns a copy of c with id marked complete.
func (c Completion) With(id, url string) Completion {
	out := make(Completion, len(c)+1)
	for k, v := range c {
		out[k] = v
	}
	out[id] = url
	return out
}

// CellID returns the synthetic identifier for position i.
func CellID(i int) string {
	return "clue-" + strconv.Itoa(i)
}

// Option configures Generate.
type Option func(*generator)

type generator struct {
	intn func(n int) int
}

// WithRand replaces the random source. intn must return a value in [0, n).
func WithRand(intn func(n int) int) Option {
	return func(g *generator) {
		if intn != nil {
			g.intn = intn
		}
	}
}

// Generate shuffles a copy of pool and returns its first count clues as a
// board. Pools smaller than count fail with *InsufficientPoolError.
func Generate(pool []Clue, count int, opts ...Option) (Board, error) {
	if count <= 0 || len(pool) < count {
		return nil, &InsufficientPoolError{Have: len(pool), Want: count}
	}

	g := generator{intn: rand.IntN}
	for _, opt := range opts {
		opt(&g)
	}

	shuffled := make([]Clue, len(pool))
	copy(shuffled, pool)

	// Fisher-Yates
	for i := len(shuffled) - 1; i > 0; i-- {
		j := g.intn(i + 1)
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}

	board := make(Board, count)
	for i := range board {
		board[i] = Cell{
			ID:   CellID(i),
			Clue: shuffled[i],
		}
	}

	return board, nil
}
