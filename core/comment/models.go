package comment

import (
	"context"
	"errors"
	"time"

	"github.com/volatiletech/null/v8"
)

var ErrNotFound = errors.New("comment not found")

// Comment is a discussion entry on a course. AuthorID is null for
// anonymous posts.
type Comment struct {
	ID        string      `json:"id"`
	CourseID  string      `json:"course_id"`
	AuthorID  null.String `json:"author_id"`
	Title     string      `json:"title"`
	Text      string      `json:"text"`
	CreatedAt time.Time   `json:"created_at"` // UTC
}

type Repository interface {
	CreateComment(ctx context.Context, cmt Comment) (Comment, error)
	GetCommentByID(ctx context.Context, id string) (Comment, error)
	// QueryCourseComments returns a course's discussion thread, oldest first.
	QueryCourseComments(ctx context.Context, courseID string) ([]Comment, error)
}
