/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package bingo

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
)

// LoadPool decodes a JSON list of clues. Entries without a description or
// emoji are skipped; a repeated description is an error.
func LoadPool(r io.Reader) ([]Clue, error) {
	var raw []Clue
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode clue pool: %w", err)
	}

	seen := make(map[string]bool, len(raw))
	pool := make([]Clue, 0, len(raw))
	for _, c := range raw {
		c.Name = strings.TrimSpace(c.Name)
		c.Description = strings.TrimSpace(c.Description)
		c.Emoji = strings.TrimSpace(c.Emoji)

		if c.Description == "" || c.Emoji == "" {
			continue
		}
		if seen[c.Description] {
			return nil, fmt.Errorf("duplicate clue %q", c.Description)
		}
		seen[c.Description] = true

		pool = append(pool, c)
	}

	return pool, nil
}

// Names returns the distinct, non-empty clue names in sorted order.
func Names(pool []Clue) []string {
	seen := make(map[string]bool, len(pool))
	names := make([]string, 0, len(pool))
	for _, c := range pool {
		if c.Name == "" || seen[c.Name] {
			continue
		}
		seen[c.Name] = true
		names = append(names, c.Name)
	}
	sort.Strings(names)
	return names
}
