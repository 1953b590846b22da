package echoapi

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/kozihub/kozi/core"
	"github.com/kozihub/kozi/core/comment"
	"github.com/kozihub/kozi/core/course"
	"github.com/kozihub/kozi/core/event"
	"github.com/kozihub/kozi/core/filter"
	"github.com/kozihub/kozi/core/notification"
	"github.com/kozihub/kozi/core/user"
	"github.com/kozihub/kozi/core/venue"
)

type catalogApi struct {
	usrSvc *user.Service
	deps   notification.Deps
}

func registerCatalogAPI(g *echo.Group, jwt echo.MiddlewareFunc, usrSvc *user.Service, deps notification.Deps) {
	api := catalogApi{usrSvc: usrSvc, deps: deps}

	g.GET("/regions", api.queryRegions)
	g.GET("/venues", api.queryVenues)

	cg := g.Group("/courses")
	cg.GET("", api.queryCourses)
	cg.GET("/:id", api.retrieveCourse)
	cg.GET("/:id/comments", api.queryComments)
	cg.POST("", api.createCourse, jwt, adminMiddleware())
	cg.POST("/:id/comments", api.createComment, jwt)
	cg.POST("/:id/join", api.joinCourse, jwt)

	eg := g.Group("/events")
	eg.GET("", api.queryEvents)
	eg.GET("/:id", api.retrieveEvent)
	eg.POST("", api.createEvent, jwt, adminMiddleware())
	eg.PUT("/:id", api.updateEvent, jwt, adminMiddleware())

	g.POST("/messages", api.sendMessage, jwt)
}

// readFilter parses the request's query string against schema. A malformed
// parameter fails the request; see the error handler for the 400 mapping.
func readFilter(ctx echo.Context, schema filter.Schema) (filter.Query, error) {
	f := filter.NewFiltering(schema)
	if err := f.ReadValues(ctx.QueryParams(), true); err != nil {
		return nil, err
	}
	return f.Done().ToQuery(), nil
}

// regions

func (api *catalogApi) queryRegions(ctx echo.Context) error {
	regions, err := api.deps.Regions.QueryAllRegions(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying regions")
	}
	return ctx.JSON(http.StatusOK, regions)
}

// venues

func (api *catalogApi) queryVenues(ctx echo.Context) error {
	q, err := readFilter(ctx, venue.FilterSchema())
	if err != nil {
		return err
	}
	venues, err := api.deps.Venues.FilterVenues(ctx.Request().Context(), q)
	if err != nil {
		return errors.Wrap(err, "filtering venues")
	}
	return ctx.JSON(http.StatusOK, venues)
}

// courses

type NewCourseRequest struct {
	Name        string   `json:"name" validate:"required"`
	Description string   `json:"description"`
	RegionID    string   `json:"region_id" validate:"required"`
	GroupIDs    []string `json:"group_ids"`
	Categories  []string `json:"categories"`
	Internal    bool     `json:"internal"`
}

func (r *NewCourseRequest) Validate() error {
	r.Name = core.CleanString(r.Name)
	if err := core.Validate.Struct(r); err != nil {
		return core.TranslateValidationError(err)
	}
	return nil
}

func (api *catalogApi) queryCourses(ctx echo.Context) error {
	q, err := readFilter(ctx, course.FilterSchema())
	if err != nil {
		return err
	}
	courses, err := api.deps.Courses.FilterCourses(ctx.Request().Context(), q)
	if err != nil {
		return errors.Wrap(err, "filtering courses")
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *catalogApi) retrieveCourse(ctx echo.Context) error {
	crs, err := api.deps.Courses.GetCourseByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, crs)
}

func (api *catalogApi) createCourse(ctx echo.Context) error {
	var data NewCourseRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourseRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}

	rctx := ctx.Request().Context()
	if _, err = api.deps.Regions.GetRegionByID(rctx, data.RegionID); err != nil {
		return err
	}

	now := time.Now().UTC()
	crs := course.Course{
		ID:          uuid.New().String(),
		Name:        data.Name,
		Description: data.Description,
		RegionID:    data.RegionID,
		GroupIDs:    data.GroupIDs,
		Categories:  data.Categories,
		Internal:    data.Internal,
		Members:     []course.Member{{UserID: usr.ID, Roles: []string{course.RoleTeam}}},
		CreatedBy:   usr.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	crs, err = api.deps.Courses.CreateCourse(rctx, crs)
	if err != nil {
		return errors.Wrap(err, "creating course")
	}

	for _, groupID := range crs.GroupIDs {
		if err = notification.RecordGroupCourse(rctx, api.deps, crs.ID, groupID); err != nil {
			api.deps.Logger.Error("recording group course notification", err)
		}
	}
	return ctx.JSON(http.StatusCreated, crs)
}

type JoinCourseRequest struct {
	Role string `json:"role"`
}

func (api *catalogApi) joinCourse(ctx echo.Context) error {
	var data JoinCourseRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to JoinCourseRequest")
	}
	if data.Role == "" {
		data.Role = course.RoleParticipant
	}

	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}

	rctx := ctx.Request().Context()
	crs, err := api.deps.Courses.GetCourseByID(rctx, ctx.Param("id"))
	if err != nil {
		return err
	}
	if crs.IsMember(usr.ID) {
		return core.NewValidationError(errors.New("already a member of this course"))
	}

	crs.Members = append(crs.Members, course.Member{UserID: usr.ID, Roles: []string{data.Role}})
	crs.UpdatedAt = time.Now().UTC()
	if crs, err = api.deps.Courses.UpdateCourse(rctx, crs); err != nil {
		return errors.Wrap(err, "updating course")
	}

	if err = notification.RecordJoin(rctx, api.deps, crs.ID, usr.ID, data.Role); err != nil {
		api.deps.Logger.Error("recording join notification", err)
	}
	return ctx.JSON(http.StatusOK, crs)
}

// comments

type NewCommentRequest struct {
	Title string `json:"title"`
	Text  string `json:"text" validate:"required"`
}

func (r *NewCommentRequest) Validate() error {
	r.Title = core.CleanString(r.Title)
	if err := core.Validate.Struct(r); err != nil {
		return core.TranslateValidationError(err)
	}
	return nil
}

func (api *catalogApi) queryComments(ctx echo.Context) error {
	rctx := ctx.Request().Context()
	if _, err := api.deps.Courses.GetCourseByID(rctx, ctx.Param("id")); err != nil {
		return err
	}
	comments, err := api.deps.Comments.QueryCourseComments(rctx, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying comments")
	}
	return ctx.JSON(http.StatusOK, comments)
}

func (api *catalogApi) createComment(ctx echo.Context) error {
	var data NewCommentRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCommentRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}

	rctx := ctx.Request().Context()
	crs, err := api.deps.Courses.GetCourseByID(rctx, ctx.Param("id"))
	if err != nil {
		return err
	}

	cmt := comment.Comment{
		ID:        uuid.New().String(),
		CourseID:  crs.ID,
		AuthorID:  null.StringFrom(usr.ID),
		Title:     data.Title,
		Text:      data.Text,
		CreatedAt: time.Now().UTC(),
	}
	if cmt, err = api.deps.Comments.CreateComment(rctx, cmt); err != nil {
		return errors.Wrap(err, "creating comment")
	}

	if err = notification.RecordComment(rctx, api.deps, cmt.ID); err != nil {
		api.deps.Logger.Error("recording comment notification", err)
	}
	return ctx.JSON(http.StatusCreated, cmt)
}

// events

type EventRequest struct {
	Title       string    `json:"title" validate:"required"`
	Description string    `json:"description"`
	CourseID    string    `json:"course_id"`
	RegionID    string    `json:"region_id" validate:"required"`
	VenueID     string    `json:"venue_id"`
	Internal    bool      `json:"internal"`
	Start       time.Time `json:"start" validate:"required"`
	End         time.Time `json:"end" validate:"required,gtfield=Start"`
}

func (r *EventRequest) Validate() error {
	r.Title = core.CleanString(r.Title)
	if err := core.Validate.Struct(r); err != nil {
		return core.TranslateValidationError(err)
	}
	return nil
}

func (api *catalogApi) queryEvents(ctx echo.Context) error {
	q, err := readFilter(ctx, event.FilterSchema())
	if err != nil {
		return err
	}
	events, err := api.deps.Events.FilterEvents(ctx.Request().Context(), q)
	if err != nil {
		return errors.Wrap(err, "filtering events")
	}
	return ctx.JSON(http.StatusOK, events)
}

func (api *catalogApi) retrieveEvent(ctx echo.Context) error {
	evt, err := api.deps.Events.GetEventByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, evt)
}

func (api *catalogApi) createEvent(ctx echo.Context) error {
	var data EventRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EventRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}

	rctx := ctx.Request().Context()
	if _, err = api.deps.Regions.GetRegionByID(rctx, data.RegionID); err != nil {
		return err
	}

	now := time.Now().UTC()
	evt := event.Event{
		ID:          uuid.New().String(),
		Title:       data.Title,
		Description: data.Description,
		RegionID:    data.RegionID,
		Internal:    data.Internal,
		Start:       data.Start.UTC(),
		End:         data.End.UTC(),
		CreatedBy:   usr.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if data.CourseID != "" {
		crs, err := api.deps.Courses.GetCourseByID(rctx, data.CourseID)
		if err != nil {
			return err
		}
		evt.CourseID = null.StringFrom(crs.ID)
		evt.Categories = crs.Categories
	}
	if data.VenueID != "" {
		if _, err = api.deps.Venues.GetVenueByID(rctx, data.VenueID); err != nil {
			return err
		}
		evt.VenueID = null.StringFrom(data.VenueID)
	}

	if evt, err = api.deps.Events.CreateEvent(rctx, evt); err != nil {
		return errors.Wrap(err, "creating event")
	}

	if evt.CourseID.Valid {
		if err = notification.RecordEvent(rctx, api.deps, evt.ID, true); err != nil {
			api.deps.Logger.Error("recording event notification", err)
		}
	}
	return ctx.JSON(http.StatusCreated, evt)
}

func (api *catalogApi) updateEvent(ctx echo.Context) error {
	var data EventRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EventRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	rctx := ctx.Request().Context()
	evt, err := api.deps.Events.GetEventByID(rctx, ctx.Param("id"))
	if err != nil {
		return err
	}

	evt.Title = data.Title
	evt.Description = data.Description
	evt.RegionID = data.RegionID
	evt.Internal = data.Internal
	evt.Start = data.Start.UTC()
	evt.End = data.End.UTC()
	if data.VenueID != "" {
		evt.VenueID = null.StringFrom(data.VenueID)
	} else {
		evt.VenueID = null.String{}
	}
	evt.UpdatedAt = time.Now().UTC()

	if evt, err = api.deps.Events.UpdateEvent(rctx, evt); err != nil {
		return errors.Wrap(err, "updating event")
	}

	if evt.CourseID.Valid {
		if err = notification.RecordEvent(rctx, api.deps, evt.ID, false); err != nil {
			api.deps.Logger.Error("recording event notification", err)
		}
	}
	return ctx.JSON(http.StatusOK, evt)
}

// private messages

type MessageRequest struct {
	RecipientID string `json:"recipient_id" validate:"required"`
	Text        string `json:"text" validate:"required"`
	SendCopy    bool   `json:"send_copy"`
}

func (r *MessageRequest) Validate() error {
	if err := core.Validate.Struct(r); err != nil {
		return core.TranslateValidationError(err)
	}
	return nil
}

func (api *catalogApi) sendMessage(ctx echo.Context) error {
	var data MessageRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to MessageRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}

	rctx := ctx.Request().Context()
	sendCopy := data.SendCopy || usr.CopyOwnPosts
	if err = notification.RecordPrivateMessage(rctx, api.deps, usr.ID, data.RecipientID, data.Text, sendCopy); err != nil {
		return err
	}
	return ctx.JSON(http.StatusAccepted, echo.Map{"status": "queued"})
}
