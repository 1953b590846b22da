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

	"github.com/kozihub/kozi/core/comment"
	"github.com/kozihub/kozi/core/filter"
	"github.com/kozihub/kozi/core/group"
	"github.com/kozihub/kozi/core/region"
	"github.com/kozihub/kozi/core/venue"
)

// venue

type venueRow struct {
	ID       string `db:"id"`
	Name     string `db:"name"`
	Address  string `db:"address"`
	RegionID string `db:"region_id"`
	EditorID string `db:"editor_id"`
}

func (r venueRow) toVenue() venue.Venue {
	return venue.Venue{ID: r.ID, Name: r.Name, Address: r.Address, RegionID: r.RegionID, EditorID: r.EditorID}
}

type venueRepository struct {
	db *sqlx.DB
}

func NewVenueRepository(db *sqlx.DB) venue.Repository {
	return &venueRepository{db: db}
}

func (repo *venueRepository) GetVenueByID(ctx context.Context, id string) (venue.Venue, error) {
	var row venueRow
	q := `SELECT id, name, address, region_id, editor_id FROM venue WHERE id = $1`
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		if err == sql.ErrNoRows {
			return venue.Venue{}, venue.ErrNotFound
		}
		return venue.Venue{}, errors.Wrap(err, "selecting venue")
	}
	return row.toVenue(), nil
}

func (repo *venueRepository) FilterVenues(ctx context.Context, q filter.Query) ([]venue.Venue, error) {
	var conds []string
	var args []interface{}
	if region, ok := q["region"].(string); ok {
		args = append(args, region)
		conds = append(conds, fmt.Sprintf("region_id = $%d", len(args)))
	}
	if search, ok := q["search"].(string); ok {
		args = append(args, "%"+escapeLike(search)+"%")
		conds = append(conds, fmt.Sprintf("name ILIKE $%d", len(args)))
	}
	query := `SELECT id, name, address, region_id, editor_id FROM venue`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY name"

	var rows []venueRow
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "selecting venues")
	}
	venues := make([]venue.Venue, 0, len(rows))
	for _, r := range rows {
		venues = append(venues, r.toVenue())
	}
	return venues, nil
}

// region

type regionRepository struct {
	db *sqlx.DB
}

func NewRegionRepository(db *sqlx.DB) region.Repository {
	return &regionRepository{db: db}
}

func (repo *regionRepository) GetRegionByID(ctx context.Context, id string) (region.Region, error) {
	var reg region.Region
	q := `SELECT id, name, tz FROM region WHERE id = $1`
	if err := repo.db.QueryRowxContext(ctx, q, id).Scan(&reg.ID, &reg.Name, &reg.TZ); err != nil {
		if err == sql.ErrNoRows {
			return region.Region{}, region.ErrNotFound
		}
		return region.Region{}, errors.Wrap(err, "selecting region")
	}
	return reg, nil
}

func (repo *regionRepository) QueryAllRegions(ctx context.Context) ([]region.Region, error) {
	rows, err := repo.db.QueryxContext(ctx, `SELECT id, name, tz FROM region ORDER BY name`)
	if err != nil {
		return nil, errors.Wrap(err, "selecting regions")
	}
	defer func() { _ = rows.Close() }()

	var regions []region.Region
	for rows.Next() {
		var reg region.Region
		if err = rows.Scan(&reg.ID, &reg.Name, &reg.TZ); err != nil {
			return nil, errors.Wrap(err, "scanning region")
		}
		regions = append(regions, reg)
	}
	return regions, rows.Err()
}

// group

type groupRepository struct {
	db *sqlx.DB
}

func NewGroupRepository(db *sqlx.DB) group.Repository {
	return &groupRepository{db: db}
}

func (repo *groupRepository) GetGroupByID(ctx context.Context, id string) (group.Group, error) {
	var grp group.Group
	var members pq.StringArray
	q := `SELECT id, name, short, member_ids FROM "group" WHERE id = $1`
	if err := repo.db.QueryRowxContext(ctx, q, id).Scan(&grp.ID, &grp.Name, &grp.Short, &members); err != nil {
		if err == sql.ErrNoRows {
			return group.Group{}, group.ErrNotFound
		}
		return group.Group{}, errors.Wrap(err, "selecting group")
	}
	grp.MemberIDs = members
	return grp, nil
}

// comment

type commentRow struct {
	ID        string      `db:"id"`
	CourseID  string      `db:"course_id"`
	AuthorID  null.String `db:"author_id"`
	Title     string      `db:"title"`
	Text      string      `db:"text"`
	CreatedAt time.Time   `db:"created_at"`
}

func (r commentRow) toComment() comment.Comment {
	return comment.Comment{
		ID:        r.ID,
		CourseID:  r.CourseID,
		AuthorID:  r.AuthorID,
		Title:     r.Title,
		Text:      r.Text,
		CreatedAt: r.CreatedAt,
	}
}

type commentRepository struct {
	db *sqlx.DB
}

func NewCommentRepository(db *sqlx.DB) comment.Repository {
	return &commentRepository{db: db}
}

func (repo *commentRepository) CreateComment(ctx context.Context, cmt comment.Comment) (comment.Comment, error) {
	q := `
	INSERT INTO comment (id, course_id, author_id, title, text, created_at)
	VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := repo.db.ExecContext(ctx, q, cmt.ID, cmt.CourseID, cmt.AuthorID, cmt.Title, cmt.Text, cmt.CreatedAt)
	if err != nil {
		return comment.Comment{}, errors.Wrap(err, "inserting comment")
	}
	return cmt, nil
}

func (repo *commentRepository) GetCommentByID(ctx context.Context, id string) (comment.Comment, error) {
	var row commentRow
	q := `SELECT id, course_id, author_id, title, text, created_at FROM comment WHERE id = $1`
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		if err == sql.ErrNoRows {
			return comment.Comment{}, comment.ErrNotFound
		}
		return comment.Comment{}, errors.Wrap(err, "selecting comment")
	}
	return row.toComment(), nil
}

func (repo *commentRepository) QueryCourseComments(ctx context.Context, courseID string) ([]comment.Comment, error) {
	var rows []commentRow
	q := `SELECT id, course_id, author_id, title, text, created_at FROM comment WHERE course_id = $1 ORDER BY created_at`
	if err := repo.db.SelectContext(ctx, &rows, q, courseID); err != nil {
		return nil, errors.Wrap(err, "selecting comments")
	}
	comments := make([]comment.Comment, 0, len(rows))
	for _, r := range rows {
		comments = append(comments, r.toComment())
	}
	return comments, nil
}
