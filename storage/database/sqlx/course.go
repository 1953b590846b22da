package sqlxrepos

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/kozihub/kozi/core/course"
	"github.com/kozihub/kozi/core/filter"
)

type courseRow struct {
	ID          string         `db:"id"`
	Name        string         `db:"name"`
	Description string         `db:"description"`
	RegionID    string         `db:"region_id"`
	GroupIDs    pq.StringArray `db:"group_ids"`
	Categories  pq.StringArray `db:"categories"`
	Internal    bool           `db:"internal"`
	Members     []byte         `db:"members"`
	CreatedBy   string         `db:"created_by"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

func (r courseRow) toCourse() (course.Course, error) {
	var members []course.Member
	if len(r.Members) > 0 {
		if err := json.Unmarshal(r.Members, &members); err != nil {
			return course.Course{}, errors.Wrap(err, "decoding course members")
		}
	}
	return course.Course{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		RegionID:    r.RegionID,
		GroupIDs:    r.GroupIDs,
		Categories:  r.Categories,
		Internal:    r.Internal,
		Members:     members,
		CreatedBy:   r.CreatedBy,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}, nil
}

const courseCols = `id, name, description, region_id, group_ids, categories, internal,
	members, created_by, created_at, updated_at`

type courseRepository struct {
	db *sqlx.DB
}

func NewCourseRepository(db *sqlx.DB) course.Repository {
	return &courseRepository{db: db}
}

func (repo *courseRepository) CreateCourse(ctx context.Context, crs course.Course) (course.Course, error) {
	members, err := json.Marshal(crs.Members)
	if err != nil {
		return course.Course{}, errors.Wrap(err, "encoding course members")
	}
	q := `
	INSERT INTO course (` + courseCols + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err = repo.db.ExecContext(ctx, q,
		crs.ID, crs.Name, crs.Description, crs.RegionID, pq.Array(crs.GroupIDs),
		pq.Array(crs.Categories), crs.Internal, members, crs.CreatedBy,
		crs.CreatedAt, crs.UpdatedAt,
	)
	if err != nil {
		return course.Course{}, errors.Wrap(err, "inserting course")
	}
	return crs, nil
}

func (repo *courseRepository) GetCourseByID(ctx context.Context, id string) (course.Course, error) {
	var row courseRow
	q := `SELECT ` + courseCols + ` FROM course WHERE id = $1`
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		if err == sql.ErrNoRows {
			return course.Course{}, course.ErrNotFound
		}
		return course.Course{}, errors.Wrap(err, "selecting course")
	}
	return row.toCourse()
}

func (repo *courseRepository) UpdateCourse(ctx context.Context, crs course.Course) (course.Course, error) {
	members, err := json.Marshal(crs.Members)
	if err != nil {
		return course.Course{}, errors.Wrap(err, "encoding course members")
	}
	q := `
	UPDATE course
	SET name = $2, description = $3, region_id = $4, group_ids = $5, categories = $6,
	    internal = $7, members = $8, updated_at = $9
	WHERE id = $1`
	res, err := repo.db.ExecContext(ctx, q,
		crs.ID, crs.Name, crs.Description, crs.RegionID, pq.Array(crs.GroupIDs),
		pq.Array(crs.Categories), crs.Internal, members, crs.UpdatedAt,
	)
	if err != nil {
		return course.Course{}, errors.Wrap(err, "updating course")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return course.Course{}, course.ErrNotFound
	}
	return crs, nil
}

func (repo *courseRepository) FilterCourses(ctx context.Context, q filter.Query) ([]course.Course, error) {
	where, args := courseConditions(q)
	query := `SELECT ` + courseCols + ` FROM course` + where + ` ORDER BY name`

	var rows []courseRow
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "selecting courses")
	}
	courses := make([]course.Course, 0, len(rows))
	for _, r := range rows {
		crs, err := r.toCourse()
		if err != nil {
			return nil, err
		}
		courses = append(courses, crs)
	}
	return courses, nil
}

func courseConditions(q filter.Query) (string, []interface{}) {
	var conds []string
	var args []interface{}

	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if region, ok := q["region"].(string); ok {
		conds = append(conds, "region_id = "+arg(region))
	}
	if search, ok := q["search"].(string); ok {
		conds = append(conds, "name ILIKE "+arg("%"+escapeLike(search)+"%"))
	}
	if grp, ok := q["group"].(string); ok {
		conds = append(conds, arg(grp)+" = ANY(group_ids)")
	}
	if internal, ok := q["internal"].(bool); ok {
		conds = append(conds, "internal = "+arg(internal))
	}
	if cats, ok := q["categories"].([]string); ok && len(cats) > 0 {
		conds = append(conds, "categories @> "+arg(pq.Array(cats)))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// escapeLike neutralizes LIKE metacharacters in user-provided search terms.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	return strings.ReplaceAll(s, `_`, `\_`)
}
