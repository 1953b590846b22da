package region

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("region not found")

// Region is a geographic community a course catalog is scoped to.
type Region struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	TZ   string `json:"tz"` // IANA zone name, e.g. "Europe/Zurich"
}

type Repository interface {
	GetRegionByID(ctx context.Context, id string) (Region, error)
	QueryAllRegions(ctx context.Context) ([]Region, error)
}
