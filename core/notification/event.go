package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/kozihub/kozi/core"
	"github.com/kozihub/kozi/core/alog"
	"github.com/kozihub/kozi/core/user"
)

type eventBody struct {
	BaseBody
	EventID  string `json:"eventId"`
	CourseID string `json:"courseId"`
	New      bool   `json:"new"` // false for reschedules/updates
}

// RecordEvent records the intent to notify all course members about a new
// or updated event.
func RecordEvent(ctx context.Context, deps Deps, eventID string, isNew bool) error {
	evt, err := deps.Events.GetEventByID(ctx, eventID)
	if err != nil {
		return core.NewNotFoundError("event", eventID)
	}
	if !evt.CourseID.Valid {
		return core.NewValidationError(errors.New("event has no course, nobody to notify"),
			core.FieldError{Field: "course_id", Error: "required"})
	}
	crs, err := deps.Courses.GetCourseByID(ctx, evt.CourseID.String)
	if err != nil {
		return core.NewNotFoundError("course", evt.CourseID.String)
	}

	// Unlike comments and joins, the whole course is notified; the creator
	// gets the mail too.
	recipients := appendUnique(nil, crs.MemberIDs()...)

	body := eventBody{
		BaseBody: BaseBody{Model: KindEvent, Recipients: recipients},
		EventID:  evt.ID,
		CourseID: crs.ID,
		New:      isNew,
	}
	_, err = deps.Log.Record(ctx, TrackSend, []string{evt.ID, crs.ID}, body)
	return errors.Wrap(err, "recording event notification")
}

type eventModel struct {
	deps Deps
	body eventBody
}

func newEventModel(deps Deps, entry alog.Entry) (Model, error) {
	var body eventBody
	if err := entry.UnmarshalBody(&body); err != nil {
		return nil, err
	}
	return &eventModel{deps: deps, body: body}, nil
}

func (m *eventModel) Accepted(usr user.User) error {
	return acceptUser(usr, true)
}

func (m *eventModel) Vars(ctx context.Context, locale string, usr user.User, unsubToken string) (map[string]interface{}, error) {
	evt, err := m.deps.Events.GetEventByID(ctx, m.body.EventID)
	if err != nil {
		return nil, core.NewNotFoundError("event", m.body.EventID)
	}
	crs, err := m.deps.Courses.GetCourseByID(ctx, m.body.CourseID)
	if err != nil {
		return nil, core.NewNotFoundError("course", m.body.CourseID)
	}

	// render times in the region's zone when it resolves
	start, end := evt.Start, evt.End
	if reg, err := m.deps.Regions.GetRegionByID(ctx, evt.RegionID); err == nil {
		if loc, lerr := time.LoadLocation(reg.TZ); lerr == nil {
			start, end = start.In(loc), end.In(loc)
		}
	}

	venueName := ""
	if evt.VenueID.Valid {
		ven, err := m.deps.Venues.GetVenueByID(ctx, evt.VenueID.String)
		if err != nil {
			return nil, core.NewNotFoundError("venue", evt.VenueID.String)
		}
		venueName = ven.Name
	}

	subject := fmt.Sprintf("New date for %s", crs.Name)
	if !m.body.New {
		subject = fmt.Sprintf("Changed date for %s", crs.Name)
	}

	return map[string]interface{}{
		"subject":    subject,
		"eventTitle": evt.Title,
		"eventUrl":   m.deps.Conf.SiteURL + "/event/" + evt.ID,
		"courseName": crs.Name,
		"venueName":  venueName,
		"start":      start.Format("Mon, 2 Jan 2006 15:04"),
		"end":        end.Format("15:04"),
		"isNew":      m.body.New,
	}, nil
}

func (m *eventModel) Template() string { return "notificationEvent" }
