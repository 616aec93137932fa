// Package catalog loads the conference program and seeds it into the
// reservation store.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/iliyamo/session-seat-reservation/internal/model"
	"github.com/iliyamo/session-seat-reservation/internal/reservation"
	"github.com/iliyamo/session-seat-reservation/internal/store"
)

// File is the YAML layout of a conference program.
type File struct {
	Conference string          `yaml:"conference"`
	Sessions   []model.Session `yaml:"sessions"`
}

// LoadFile parses and validates a conference program.
func LoadFile(path string) (File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("catalog: %w", err)
	}
	return Parse(b)
}

// Parse decodes a conference program from YAML.  Session ids must be unique
// and usable as a single path segment.
func Parse(b []byte) (File, error) {
	var f File
	if err := yaml.Unmarshal(b, &f); err != nil {
		return File{}, fmt.Errorf("catalog: decode: %w", err)
	}
	seen := make(map[string]bool, len(f.Sessions))
	for i, s := range f.Sessions {
		switch {
		case s.ID == "":
			return File{}, fmt.Errorf("catalog: session #%d has no id", i+1)
		case strings.Contains(s.ID, "/"):
			return File{}, fmt.Errorf("catalog: session id %q is not a valid path segment", s.ID)
		case seen[s.ID]:
			return File{}, fmt.Errorf("catalog: duplicate session id %q", s.ID)
		case !s.End.After(s.Start):
			return File{}, fmt.Errorf("catalog: session %q ends before it starts", s.ID)
		case s.Capacity < 0:
			return File{}, fmt.Errorf("catalog: session %q has negative capacity", s.ID)
		}
		seen[s.ID] = true
		f.Sessions[i].Start = s.Start.UTC()
		f.Sessions[i].End = s.End.UTC()
	}
	sort.SliceStable(f.Sessions, func(i, j int) bool {
		return f.Sessions[i].Start.Before(f.Sessions[j].Start)
	})
	return f, nil
}

// Seed writes each session node and its seat ledger.  A ledger that already
// exists keeps its reserved count; its capacity follows the program but never
// drops below the seats already granted.
func Seed(ctx context.Context, st store.Store, sessions []model.Session) error {
	for _, s := range sessions {
		if err := st.Set(ctx, reservation.SessionPath(s.ID), s); err != nil {
			return fmt.Errorf("catalog: seed %s: %w", s.ID, err)
		}
		err := st.Update(ctx, func(tx store.Tx) error {
			var seats model.Seats
			err := tx.Get(reservation.SeatsPath(s.ID), &seats)
			switch {
			case errors.Is(err, store.ErrNotFound):
			case err != nil:
				return err
			case seats.Capacity == s.Capacity:
				return nil
			}
			seats.Capacity = max(s.Capacity, seats.Reserved)
			seats.Refresh()
			return tx.Set(reservation.SeatsPath(s.ID), seats)
		})
		if err != nil {
			return fmt.Errorf("catalog: seed seats of %s: %w", s.ID, err)
		}
	}
	return nil
}
