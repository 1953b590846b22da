package notification

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/kozihub/kozi/core"
	"github.com/kozihub/kozi/core/alog"
	"github.com/kozihub/kozi/core/user"
)

type groupCourseBody struct {
	BaseBody
	GroupID  string `json:"groupId"`
	CourseID string `json:"courseId"`
}

// RecordGroupCourse records the intent to notify a group's members that a
// course was created under their group (minus the course creator).
func RecordGroupCourse(ctx context.Context, deps Deps, courseID, groupID string) error {
	crs, err := deps.Courses.GetCourseByID(ctx, courseID)
	if err != nil {
		return core.NewNotFoundError("course", courseID)
	}
	grp, err := deps.Groups.GetGroupByID(ctx, groupID)
	if err != nil {
		return core.NewNotFoundError("group", groupID)
	}

	recipients := without(appendUnique(nil, grp.MemberIDs...), crs.CreatedBy)

	body := groupCourseBody{
		BaseBody: BaseBody{Model: KindGroupCourse, Recipients: recipients},
		GroupID:  grp.ID,
		CourseID: crs.ID,
	}
	_, err = deps.Log.Record(ctx, TrackSend, []string{grp.ID, crs.ID}, body)
	return errors.Wrap(err, "recording group course notification")
}

type groupCourseModel struct {
	deps Deps
	body groupCourseBody
}

func newGroupCourseModel(deps Deps, entry alog.Entry) (Model, error) {
	var body groupCourseBody
	if err := entry.UnmarshalBody(&body); err != nil {
		return nil, err
	}
	return &groupCourseModel{deps: deps, body: body}, nil
}

func (m *groupCourseModel) Accepted(usr user.User) error {
	return acceptUser(usr, true)
}

func (m *groupCourseModel) Vars(ctx context.Context, locale string, usr user.User, unsubToken string) (map[string]interface{}, error) {
	crs, err := m.deps.Courses.GetCourseByID(ctx, m.body.CourseID)
	if err != nil {
		return nil, core.NewNotFoundError("course", m.body.CourseID)
	}
	grp, err := m.deps.Groups.GetGroupByID(ctx, m.body.GroupID)
	if err != nil {
		return nil, core.NewNotFoundError("group", m.body.GroupID)
	}

	return map[string]interface{}{
		"subject":    fmt.Sprintf("New course in %s: %s", grp.Name, crs.Name),
		"groupName":  grp.Name,
		"courseName": crs.Name,
		"courseUrl":  m.deps.Conf.SiteURL + "/course/" + crs.ID,
	}, nil
}

func (m *groupCourseModel) Template() string { return "notificationGroupCourse" }
