package sqlxrepos

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/kozihub/kozi/core/alog"
)

type logRow struct {
	ID        string          `db:"id"`
	Track     string          `db:"track"`
	Rel       pq.StringArray  `db:"rel"`
	Body      json.RawMessage `db:"body"`
	CreatedAt time.Time       `db:"created_at"`
}

func (r logRow) toEntry() alog.Entry {
	return alog.Entry{
		ID:        r.ID,
		Track:     r.Track,
		Rel:       r.Rel,
		Body:      r.Body,
		CreatedAt: r.CreatedAt,
	}
}

// logStore persists the append-only log in the app_log table. There are no
// update or delete statements here on purpose.
type logStore struct {
	db *sqlx.DB
}

func NewLogStore(db *sqlx.DB) alog.Store {
	return &logStore{db: db}
}

func (store *logStore) Record(ctx context.Context, track string, rel []string, body interface{}) (alog.Entry, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return alog.Entry{}, errors.Wrap(err, "encoding log body")
	}
	entry := alog.Entry{
		ID:        uuid.New().String(),
		Track:     track,
		Rel:       append([]string(nil), rel...),
		Body:      raw,
		CreatedAt: time.Now().UTC(),
	}

	q := `INSERT INTO app_log (id, track, rel, body, created_at) VALUES ($1, $2, $3, $4, $5)`
	_, err = store.db.ExecContext(ctx, q, entry.ID, entry.Track, pq.Array(entry.Rel), entry.Body, entry.CreatedAt)
	if err != nil {
		return alog.Entry{}, errors.Wrap(err, "inserting log entry")
	}
	return entry, nil
}

func (store *logStore) Find(ctx context.Context, q alog.Query) ([]alog.Entry, error) {
	var conds []string
	var args []interface{}
	if q.Track != "" {
		args = append(args, q.Track)
		conds = append(conds, fmt.Sprintf("track = $%d", len(args)))
	}
	if len(q.Rel) > 0 {
		args = append(args, pq.Array(q.Rel))
		conds = append(conds, fmt.Sprintf("rel @> $%d", len(args)))
	}
	query := `SELECT id, track, rel, body, created_at FROM app_log`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at"

	var rows []logRow
	if err := store.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "selecting log entries")
	}
	entries := make([]alog.Entry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, r.toEntry())
	}
	return entries, nil
}
