package notification

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/kozihub/kozi/core"
	"github.com/kozihub/kozi/core/alog"
	"github.com/kozihub/kozi/core/user"
)

type commentBody struct {
	BaseBody
	CommentID string `json:"commentId"`
	CourseID  string `json:"courseId"`
	AuthorID  string `json:"authorId,omitempty"`
}

// RecordComment records the intent to notify about a new course comment.
// Recipients are the organizing team plus everyone who commented in the
// thread, minus the author. The author is included when they asked for
// copies of their own posts.
func RecordComment(ctx context.Context, deps Deps, commentID string) error {
	cmt, err := deps.Comments.GetCommentByID(ctx, commentID)
	if err != nil {
		return core.NewNotFoundError("comment", commentID)
	}
	crs, err := deps.Courses.GetCourseByID(ctx, cmt.CourseID)
	if err != nil {
		return core.NewNotFoundError("course", cmt.CourseID)
	}

	recipients := appendUnique(nil, crs.TeamMemberIDs()...)

	thread, err := deps.Comments.QueryCourseComments(ctx, crs.ID)
	if err != nil {
		return errors.Wrapf(err, "loading thread for course %s", crs.ID)
	}
	for _, c := range thread {
		if c.AuthorID.Valid {
			recipients = appendUnique(recipients, c.AuthorID.String)
		}
	}

	body := commentBody{
		BaseBody:  BaseBody{Model: KindComment},
		CommentID: cmt.ID,
		CourseID:  crs.ID,
	}
	rel := []string{crs.ID, cmt.ID}

	if cmt.AuthorID.Valid {
		body.AuthorID = cmt.AuthorID.String
		rel = append(rel, cmt.AuthorID.String)
		recipients = without(recipients, cmt.AuthorID.String)
		if author, err := deps.Users.GetUserByID(ctx, cmt.AuthorID.String); err == nil && author.CopyOwnPosts {
			recipients = appendUnique(recipients, author.ID)
		}
	}
	body.Recipients = recipients

	_, err = deps.Log.Record(ctx, TrackSend, rel, body)
	return errors.Wrap(err, "recording comment notification")
}

type commentModel struct {
	deps Deps
	body commentBody
}

func newCommentModel(deps Deps, entry alog.Entry) (Model, error) {
	var body commentBody
	if err := entry.UnmarshalBody(&body); err != nil {
		return nil, err
	}
	return &commentModel{deps: deps, body: body}, nil
}

func (m *commentModel) Accepted(usr user.User) error {
	return acceptUser(usr, false)
}

func (m *commentModel) Vars(ctx context.Context, locale string, usr user.User, unsubToken string) (map[string]interface{}, error) {
	cmt, err := m.deps.Comments.GetCommentByID(ctx, m.body.CommentID)
	if err != nil {
		return nil, core.NewNotFoundError("comment", m.body.CommentID)
	}
	crs, err := m.deps.Courses.GetCourseByID(ctx, m.body.CourseID)
	if err != nil {
		return nil, core.NewNotFoundError("course", m.body.CourseID)
	}

	authorName := "Anonymous"
	if m.body.AuthorID != "" {
		author, err := m.deps.Users.GetUserByID(ctx, m.body.AuthorID)
		if err != nil {
			return nil, core.NewNotFoundError("user", m.body.AuthorID)
		}
		authorName = author.Name
	}

	return map[string]interface{}{
		"subject":      fmt.Sprintf("New comment on %s", crs.Name),
		"courseName":   crs.Name,
		"courseUrl":    m.deps.Conf.SiteURL + "/course/" + crs.ID,
		"commentTitle": cmt.Title,
		"commentText":  cmt.Text,
		"authorName":   authorName,
		"isOwnPost":    m.body.AuthorID != "" && m.body.AuthorID == usr.ID,
	}, nil
}

func (m *commentModel) Template() string { return "notificationComment" }
