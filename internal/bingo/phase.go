/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package bingo

import "fmt"

// Phase is the global game state set from the admin console.
type Phase string

const (
	Pending  Phase = "pending"
	Active   Phase = "active"
	Finished Phase = "finished"
)

func ParsePhase(s string) (Phase, error) {
	switch p := Phase(s); p {
	case Pending, Active, Finished:
		return p, nil
	}
	return "", fmt.Errorf("invalid game phase %q", s)
}

// AllowsJoin reports whether new players may claim a name.
func (p Phase) AllowsJoin() bool {
	return p != Finished
}

// AllowsUpload reports whether photos may still be submitted.
func (p Phase) AllowsUpload() bool {
	return p != Finished
}
