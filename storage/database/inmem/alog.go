package inmemdb

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/kozihub/kozi/core/alog"
)

type logStore struct {
	db *logTable
}

func NewLogStore(db *DB) alog.Store {
	return &logStore{db: db.log}
}

func (s *logStore) Record(_ context.Context, track string, rel []string, body interface{}) (alog.Entry, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return alog.Entry{}, err
	}
	entry := alog.Entry{
		ID:        uuid.New().String(),
		Track:     track,
		Rel:       append([]string(nil), rel...),
		Body:      raw,
		CreatedAt: time.Now().UTC(),
	}

	s.db.mutex.Lock()
	defer s.db.mutex.Unlock()
	s.db.entries = append(s.db.entries, entry)
	return entry, nil
}

func (s *logStore) Find(_ context.Context, q alog.Query) ([]alog.Entry, error) {
	s.db.mutex.RLock()
	defer s.db.mutex.RUnlock()

	var matches []alog.Entry
	for _, entry := range s.db.entries {
		if q.Matches(entry) {
			matches = append(matches, entry)
		}
	}
	return matches, nil
}
