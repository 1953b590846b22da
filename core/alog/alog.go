// Package alog defines the append-only application log: an immutable
// record of domain facts (notification intents, delivery outcomes). All
// writes are inserts; entries are never updated or deleted.
package alog

import (
	"context"
	"encoding/json"
	"time"
)

type (
	// Entry is one immutable log record. Rel carries the ids of related
	// entities for later correlation and debugging; it is not a foreign
	// key and nothing enforces referential integrity on it.
	Entry struct {
		ID        string          `json:"id"`
		Track     string          `json:"tr"` // record type tag, e.g. "Notification.Send"
		Rel       []string        `json:"rel"`
		Body      json.RawMessage `json:"body"`
		CreatedAt time.Time       `json:"created_at"` // UTC
	}

	// Query selects entries by track and/or related ids. All listed Rel
	// ids must be present on a matching entry.
	Query struct {
		Track string
		Rel   []string
	}

	// Store is the injected persistence for the log. Record marshals body
	// to JSON and appends one entry.
	Store interface {
		Record(ctx context.Context, track string, rel []string, body interface{}) (Entry, error)
		Find(ctx context.Context, q Query) ([]Entry, error)
	}
)

// UnmarshalBody decodes the entry body into v.
func (e Entry) UnmarshalBody(v interface{}) error {
	return json.Unmarshal(e.Body, v)
}

// Related reports whether id appears in the entry's Rel list.
func (e Entry) Related(id string) bool {
	for _, r := range e.Rel {
		if r == id {
			return true
		}
	}
	return false
}

// Matches reports whether the entry satisfies q.
func (q Query) Matches(e Entry) bool {
	if q.Track != "" && e.Track != q.Track {
		return false
	}
	for _, id := range q.Rel {
		if !e.Related(id) {
			return false
		}
	}
	return true
}
