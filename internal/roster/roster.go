// Package roster reads candidate rosters uploaded by the room admin.
//
// The CSV needs a header row. Recognised columns (case-insensitive):
//
//	id     optional; a uuid is assigned when blank or absent
//	name   required
//	roles  up to 3 preferred roles separated by "|" or ";"
//	pitch  optional free text
//
// Unknown columns are ignored.
package roster

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/DoyleJ11/lot-auction-backend/internal/engine"
)

var (
	ErrMissingHeader = errors.New("roster: missing header row")
	ErrMissingName   = errors.New("roster: name column is required")
	ErrNoRows        = errors.New("roster: no candidates")
)

// newID is swapped in tests.
var newID = uuid.NewString

func Parse(r io.Reader) ([]engine.Candidate, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrMissingHeader
	}
	if err != nil {
		return nil, fmt.Errorf("roster: read header: %w", err)
	}

	cols := map[string]int{}
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		switch name {
		case "display_name", "displayname":
			name = "name"
		case "preferred_roles", "preferredroles":
			name = "roles"
		}
		cols[name] = i
	}
	if _, ok := cols["name"]; !ok {
		return nil, ErrMissingName
	}

	var out []engine.Candidate
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("roster: %w", err)
		}
		line, _ := cr.FieldPos(0)
		if blank(rec) {
			continue
		}

		c := engine.Candidate{
			ID:             field(rec, cols, "id"),
			DisplayName:    field(rec, cols, "name"),
			PreferredRoles: splitRoles(field(rec, cols, "roles")),
			Pitch:          field(rec, cols, "pitch"),
		}
		if c.ID == "" {
			c.ID = newID()
		}
		if c.DisplayName == "" {
			return nil, fmt.Errorf("roster: line %d: %w", line, engine.ErrInvalidIdentity)
		}
		if len(c.PreferredRoles) > engine.MaxPreferredRoles {
			return nil, fmt.Errorf("roster: line %d: %w", line, engine.ErrTooManyRoles)
		}
		out = append(out, c)
	}

	if len(out) == 0 {
		return nil, ErrNoRows
	}
	return out, nil
}

func field(rec []string, cols map[string]int, name string) string {
	i, ok := cols[name]
	if !ok || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

func splitRoles(s string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == '|' || r == ';' })
	roles := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			roles = append(roles, p)
		}
	}
	return roles
}

func blank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
