package venue

import (
	"context"
	"errors"

	"github.com/kozihub/kozi/core/filter"
)

var ErrNotFound = errors.New("venue not found")

// Venue is a place events happen at.
type Venue struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Address  string `json:"address"`
	RegionID string `json:"region_id"`
	EditorID string `json:"editor_id"` // user maintaining this venue entry
}

func FilterSchema() filter.Schema {
	return filter.Schema{
		"region": filter.ID,
		"search": filter.String,
	}
}

type Repository interface {
	GetVenueByID(ctx context.Context, id string) (Venue, error)
	FilterVenues(ctx context.Context, q filter.Query) ([]Venue, error)
}
