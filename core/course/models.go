package course

import (
	"context"
	"errors"
	"time"

	"github.com/kozihub/kozi/core/filter"
)

var ErrNotFound = errors.New("course not found")

// Member roles within a course.
const (
	RoleParticipant = "participant"
	RoleMentor      = "mentor"
	RoleHost        = "host"
	RoleTeam        = "team" // organizers; they receive operational notifications
)

type (
	Member struct {
		UserID string   `json:"user_id"`
		Roles  []string `json:"roles"`
	}

	Course struct {
		ID          string    `json:"id"`
		Name        string    `json:"name"`
		Description string    `json:"description"`
		RegionID    string    `json:"region_id"`
		GroupIDs    []string  `json:"group_ids"`
		Categories  []string  `json:"categories"`
		Internal    bool      `json:"internal"` // group-internal, hidden from the public catalog
		Members     []Member  `json:"members"`
		CreatedBy   string    `json:"created_by"`
		CreatedAt   time.Time `json:"created_at"` // UTC
		UpdatedAt   time.Time `json:"updated_at"` // UTC
	}
)

func (m *Member) HasRole(role string) bool {
	for _, r := range m.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// MemberIDs returns the user ids of all course members.
func (c *Course) MemberIDs() []string {
	ids := make([]string, 0, len(c.Members))
	for _, m := range c.Members {
		ids = append(ids, m.UserID)
	}
	return ids
}

// TeamMemberIDs returns the user ids of the organizing team.
func (c *Course) TeamMemberIDs() []string {
	var ids []string
	for _, m := range c.Members {
		if m.HasRole(RoleTeam) {
			ids = append(ids, m.UserID)
		}
	}
	return ids
}

func (c *Course) IsMember(userID string) bool {
	for _, m := range c.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

// FilterSchema names the filterable catalog fields. It is shared by the
// HTTP API (query-string parsing) and any embedding caller.
func FilterSchema() filter.Schema {
	return filter.Schema{
		"region":     filter.ID,
		"search":     filter.String,
		"categories": filter.IDs,
		"group":      filter.ID,
		"internal":   filter.Flag,
	}
}

type Repository interface {
	CreateCourse(ctx context.Context, crs Course) (Course, error)
	GetCourseByID(ctx context.Context, id string) (Course, error)
	UpdateCourse(ctx context.Context, crs Course) (Course, error)
	// FilterCourses applies an AND over the query's fields; see FilterSchema
	// for the recognized names.
	FilterCourses(ctx context.Context, q filter.Query) ([]Course, error)
}
