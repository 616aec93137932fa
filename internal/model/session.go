package model

import (
	"encoding/json"
	"time"
)

// Session is a scheduled conference session with a fixed number of seats.
// Timing is immutable reference data loaded from the conference catalog.
type Session struct {
	ID       string    `yaml:"id"`
	Title    string    `yaml:"title"`
	Start    time.Time `yaml:"start"`
	End      time.Time `yaml:"end"`
	Capacity int       `yaml:"capacity"`
}

// sessionNode is the stored shape of sessions/{sid}.  Times are epoch millis
// so that clients on any platform can compare them without parsing.
type sessionNode struct {
	ID        string `json:"id"`
	Title     string `json:"title,omitempty"`
	TimeStart int64  `json:"time_start"`
	TimeEnd   int64  `json:"time_end"`
}

// MarshalJSON encodes the session timing as epoch millis.
func (s Session) MarshalJSON() ([]byte, error) {
	return json.Marshal(sessionNode{
		ID:        s.ID,
		Title:     s.Title,
		TimeStart: s.Start.UnixMilli(),
		TimeEnd:   s.End.UnixMilli(),
	})
}

// UnmarshalJSON decodes the stored session node.  Capacity is not part of the
// node; it lives in the seat ledger.
func (s *Session) UnmarshalJSON(b []byte) error {
	var n sessionNode
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	s.ID = n.ID
	s.Title = n.Title
	s.Start = time.UnixMilli(n.TimeStart).UTC()
	s.End = time.UnixMilli(n.TimeEnd).UTC()
	return nil
}

// Overlaps reports whether the half-open intervals [s.Start, s.End) and
// [o.Start, o.End) intersect.
func (s Session) Overlaps(o Session) bool {
	return s.Start.Before(o.End) && s.End.After(o.Start)
}

// Seats is the per-session seat ledger stored at sessions/{sid}/seats.
// Reserved only changes inside a store transaction on that path (or on the
// whole session during promotion) and always satisfies 0 <= Reserved <= Capacity.
type Seats struct {
	Capacity       int  `json:"capacity"`
	Reserved       int  `json:"reserved"`
	SeatsAvailable bool `json:"seats_available"`
	Waitlisted     bool `json:"waitlisted"`
}

// Available reports whether at least one seat is free.
func (s Seats) Available() bool { return s.Capacity > s.Reserved }

// Refresh recomputes the derived SeatsAvailable flag.
func (s *Seats) Refresh() { s.SeatsAvailable = s.Available() }
