package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/kozihub/kozi/core/event"
	"github.com/kozihub/kozi/core/filter"
)

type eventRow struct {
	ID             string         `db:"id"`
	Title          string         `db:"title"`
	Description    string         `db:"description"`
	CourseID       null.String    `db:"course_id"`
	RegionID       string         `db:"region_id"`
	VenueID        null.String    `db:"venue_id"`
	Categories     pq.StringArray `db:"categories"`
	Internal       bool           `db:"internal"`
	StartAt        time.Time      `db:"start_at"`
	EndAt          time.Time      `db:"end_at"`
	ParticipantIDs pq.StringArray `db:"participant_ids"`
	CreatedBy      string         `db:"created_by"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
}

func (r eventRow) toEvent() event.Event {
	return event.Event{
		ID:             r.ID,
		Title:          r.Title,
		Description:    r.Description,
		CourseID:       r.CourseID,
		RegionID:       r.RegionID,
		VenueID:        r.VenueID,
		Categories:     r.Categories,
		Internal:       r.Internal,
		Start:          r.StartAt,
		End:            r.EndAt,
		ParticipantIDs: r.ParticipantIDs,
		CreatedBy:      r.CreatedBy,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

const eventCols = `id, title, description, course_id, region_id, venue_id, categories,
	internal, start_at, end_at, participant_ids, created_by, created_at, updated_at`

type eventRepository struct {
	db *sqlx.DB
}

func NewEventRepository(db *sqlx.DB) event.Repository {
	return &eventRepository{db: db}
}

func (repo *eventRepository) CreateEvent(ctx context.Context, evt event.Event) (event.Event, error) {
	q := `
	INSERT INTO event (` + eventCols + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	_, err := repo.db.ExecContext(ctx, q,
		evt.ID, evt.Title, evt.Description, evt.CourseID, evt.RegionID, evt.VenueID,
		pq.Array(evt.Categories), evt.Internal, evt.Start, evt.End,
		pq.Array(evt.ParticipantIDs), evt.CreatedBy, evt.CreatedAt, evt.UpdatedAt,
	)
	if err != nil {
		return event.Event{}, errors.Wrap(err, "inserting event")
	}
	return evt, nil
}

func (repo *eventRepository) GetEventByID(ctx context.Context, id string) (event.Event, error) {
	var row eventRow
	q := `SELECT ` + eventCols + ` FROM event WHERE id = $1`
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		if err == sql.ErrNoRows {
			return event.Event{}, event.ErrNotFound
		}
		return event.Event{}, errors.Wrap(err, "selecting event")
	}
	return row.toEvent(), nil
}

func (repo *eventRepository) UpdateEvent(ctx context.Context, evt event.Event) (event.Event, error) {
	q := `
	UPDATE event
	SET title = $2, description = $3, course_id = $4, region_id = $5, venue_id = $6,
	    categories = $7, internal = $8, start_at = $9, end_at = $10,
	    participant_ids = $11, updated_at = $12
	WHERE id = $1`
	res, err := repo.db.ExecContext(ctx, q,
		evt.ID, evt.Title, evt.Description, evt.CourseID, evt.RegionID, evt.VenueID,
		pq.Array(evt.Categories), evt.Internal, evt.Start, evt.End,
		pq.Array(evt.ParticipantIDs), evt.UpdatedAt,
	)
	if err != nil {
		return event.Event{}, errors.Wrap(err, "updating event")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return event.Event{}, event.ErrNotFound
	}
	return evt, nil
}

func (repo *eventRepository) FilterEvents(ctx context.Context, q filter.Query) ([]event.Event, error) {
	where, args := eventConditions(q)
	query := `SELECT ` + eventCols + ` FROM event` + where + ` ORDER BY start_at`

	var rows []eventRow
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "selecting events")
	}
	events := make([]event.Event, 0, len(rows))
	for _, r := range rows {
		events = append(events, r.toEvent())
	}
	return events, nil
}

func eventConditions(q filter.Query) (string, []interface{}) {
	var conds []string
	var args []interface{}

	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if region, ok := q["region"].(string); ok {
		conds = append(conds, "region_id = "+arg(region))
	}
	if crs, ok := q["course"].(string); ok {
		conds = append(conds, "course_id = "+arg(crs))
	}
	if ven, ok := q["venue"].(string); ok {
		conds = append(conds, "venue_id = "+arg(ven))
	}
	if cats, ok := q["categories"].([]string); ok && len(cats) > 0 {
		conds = append(conds, "categories @> "+arg(pq.Array(cats)))
	}
	if internal, ok := q["internal"].(bool); ok {
		conds = append(conds, "internal = "+arg(internal))
	}
	if after, ok := q["after"].(time.Time); ok {
		conds = append(conds, "start_at >= "+arg(after))
	}
	if before, ok := q["before"].(time.Time); ok {
		conds = append(conds, "start_at < "+arg(before))
	}
	if _, ok := q["upcoming"].(bool); ok {
		conds = append(conds, "end_at >= now()")
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
