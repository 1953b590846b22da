package notification

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/kozihub/kozi/core"
	"github.com/kozihub/kozi/core/alog"
	"github.com/kozihub/kozi/core/user"
)

type joinBody struct {
	BaseBody
	CourseID string `json:"courseId"`
	JoinerID string `json:"joinerId"`
	Role     string `json:"role"`
}

// RecordJoin records the intent to notify a course's organizing team that
// somebody joined (minus the joiner, who knows already).
func RecordJoin(ctx context.Context, deps Deps, courseID, joinerID, role string) error {
	crs, err := deps.Courses.GetCourseByID(ctx, courseID)
	if err != nil {
		return core.NewNotFoundError("course", courseID)
	}
	joiner, err := deps.Users.GetUserByID(ctx, joinerID)
	if err != nil {
		return core.NewNotFoundError("user", joinerID)
	}

	recipients := without(appendUnique(nil, crs.TeamMemberIDs()...), joiner.ID)

	body := joinBody{
		BaseBody: BaseBody{Model: KindJoin, Recipients: recipients},
		CourseID: crs.ID,
		JoinerID: joiner.ID,
		Role:     role,
	}
	_, err = deps.Log.Record(ctx, TrackSend, []string{crs.ID, joiner.ID}, body)
	return errors.Wrap(err, "recording join notification")
}

type joinModel struct {
	deps Deps
	body joinBody
}

func newJoinModel(deps Deps, entry alog.Entry) (Model, error) {
	var body joinBody
	if err := entry.UnmarshalBody(&body); err != nil {
		return nil, err
	}
	return &joinModel{deps: deps, body: body}, nil
}

func (m *joinModel) Accepted(usr user.User) error {
	return acceptUser(usr, true)
}

func (m *joinModel) Vars(ctx context.Context, locale string, usr user.User, unsubToken string) (map[string]interface{}, error) {
	crs, err := m.deps.Courses.GetCourseByID(ctx, m.body.CourseID)
	if err != nil {
		return nil, core.NewNotFoundError("course", m.body.CourseID)
	}
	joiner, err := m.deps.Users.GetUserByID(ctx, m.body.JoinerID)
	if err != nil {
		return nil, core.NewNotFoundError("user", m.body.JoinerID)
	}

	return map[string]interface{}{
		"subject":    fmt.Sprintf("%s joined %s", joiner.Name, crs.Name),
		"joinerName": joiner.Name,
		"role":       m.body.Role,
		"courseName": crs.Name,
		"courseUrl":  m.deps.Conf.SiteURL + "/course/" + crs.ID,
	}, nil
}

func (m *joinModel) Template() string { return "notificationJoin" }
