package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/kozihub/kozi/core/group"
	"github.com/kozihub/kozi/core/region"
	"github.com/kozihub/kozi/core/venue"
)

// Catalog entities are maintained by operators, not end users; these
// upserts back the admin CLI.

func UpsertRegion(ctx context.Context, db *sqlx.DB, reg region.Region) error {
	q := `
	INSERT INTO region (id, name, tz) VALUES ($1, $2, $3)
	ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, tz = EXCLUDED.tz`
	_, err := db.ExecContext(ctx, q, reg.ID, reg.Name, reg.TZ)
	return errors.Wrap(err, "upserting region")
}

func UpsertGroup(ctx context.Context, db *sqlx.DB, grp group.Group) error {
	q := `
	INSERT INTO "group" (id, name, short, member_ids) VALUES ($1, $2, $3, $4)
	ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, short = EXCLUDED.short`
	_, err := db.ExecContext(ctx, q, grp.ID, grp.Name, grp.Short, pq.Array(grp.MemberIDs))
	return errors.Wrap(err, "upserting group")
}

func UpsertVenue(ctx context.Context, db *sqlx.DB, ven venue.Venue) error {
	q := `
	INSERT INTO venue (id, name, address, region_id, editor_id) VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (id) DO UPDATE
	SET name = EXCLUDED.name, address = EXCLUDED.address,
	    region_id = EXCLUDED.region_id, editor_id = EXCLUDED.editor_id`
	_, err := db.ExecContext(ctx, q, ven.ID, ven.Name, ven.Address, ven.RegionID, ven.EditorID)
	return errors.Wrap(err, "upserting venue")
}
