/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package bingo

import (
	"fmt"
	"strings"
)

// InsufficientPoolError is returned by Generate when the pool cannot fill a board.
type InsufficientPoolError struct {
	Have int
	Want int
}

func (e *InsufficientPoolError) Error() string {
	return fmt.Sprintf("clue pool has %d entries, board needs %d", e.Have, e.Want)
}

// InvalidCompletionReferenceError lists completion keys that are not on the board.
type InvalidCompletionReferenceError struct {
	IDs []string
}

func (e *InvalidCompletionReferenceError) Error() string {
	return "completion references unknown cells: " + strings.Join(e.IDs, ", ")
}
