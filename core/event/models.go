package event

import (
	"context"
	"errors"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/kozihub/kozi/core/filter"
)

var ErrNotFound = errors.New("event not found")

// Event is a scheduled occurrence, usually (but not necessarily) attached
// to a course.
type Event struct {
	ID             string      `json:"id"`
	Title          string      `json:"title"`
	Description    string      `json:"description"`
	CourseID       null.String `json:"course_id"`
	RegionID       string      `json:"region_id"`
	VenueID        null.String `json:"venue_id"`
	Categories     []string    `json:"categories"` // inherited from the course at creation
	Internal       bool        `json:"internal"`
	Start          time.Time   `json:"start"` // UTC
	End            time.Time   `json:"end"`   // UTC
	ParticipantIDs []string    `json:"participant_ids"`
	CreatedBy      string      `json:"created_by"`
	CreatedAt      time.Time   `json:"created_at"` // UTC
	UpdatedAt      time.Time   `json:"updated_at"` // UTC
}

// FilterSchema names the filterable calendar fields.
func FilterSchema() filter.Schema {
	return filter.Schema{
		"region":     filter.ID,
		"course":     filter.ID,
		"venue":      filter.ID,
		"categories": filter.IDs,
		"internal":   filter.Flag,
		"after":      filter.Date,
		"before":     filter.Date,
		"upcoming":   filter.Require,
	}
}

type Repository interface {
	CreateEvent(ctx context.Context, evt Event) (Event, error)
	GetEventByID(ctx context.Context, id string) (Event, error)
	UpdateEvent(ctx context.Context, evt Event) (Event, error)
	FilterEvents(ctx context.Context, q filter.Query) ([]Event, error)
}
