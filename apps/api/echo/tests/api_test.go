package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"io/ioutil"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	echoapi "github.com/kozihub/kozi/apps/api/echo"
	"github.com/kozihub/kozi/core"
	"github.com/kozihub/kozi/core/alog"
	"github.com/kozihub/kozi/core/course"
	"github.com/kozihub/kozi/core/notification"
	"github.com/kozihub/kozi/core/region"
	"github.com/kozihub/kozi/core/user"
	emailsvc "github.com/kozihub/kozi/services/email"
	logsvc "github.com/kozihub/kozi/services/logger"
	inmemdb "github.com/kozihub/kozi/storage/database/inmem"
	testutil "github.com/kozihub/kozi/tests"
)

type env struct {
	server echoapi.Server
	conf   *core.Config
	db     *inmemdb.DB
	deps   notification.Deps
}

func setup(t *testing.T) *env {
	t.Helper()

	db, err := inmemdb.Open()
	if err != nil {
		t.Fatal(err)
	}
	conf := &core.Config{
		AppName:         "Kozi",
		SecretKey:       "test-secret",
		SiteURL:         "http://test.local",
		WorkDir:         core.Getwd(),
		TestMode:        true,
		DefaultFromName: "Kozi",
		DefaultFromAddr: "noreply@test.local",
		JwtExpiration:   time.Hour,
	}
	logger := logsvc.NewStdLogger(log.New(ioutil.Discard, "", 0))
	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)

	deps := notification.Deps{
		Log:      inmemdb.NewLogStore(db),
		Users:    inmemdb.NewUserRepository(db),
		Courses:  inmemdb.NewCourseRepository(db),
		Events:   inmemdb.NewEventRepository(db),
		Venues:   inmemdb.NewVenueRepository(db),
		Regions:  inmemdb.NewRegionRepository(db),
		Groups:   inmemdb.NewGroupRepository(db),
		Comments: inmemdb.NewCommentRepository(db),
		Mail:     mailSvc,
		Logger:   logger,
		Conf:     conf,
	}

	server := echoapi.NewServer(echoapi.ServerDeps{
		Conf:           conf,
		Logger:         logger,
		UserSvc:        user.NewService(deps.Users, mailSvc, conf),
		Notif:          deps,
		DisableReqLogs: true,
	})
	return &env{server: server, conf: conf, db: db, deps: deps}
}

func (e *env) request(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.server.ServeHTTP(rec, req)
	return rec
}

func (e *env) token(t *testing.T, usr user.User) string {
	t.Helper()
	token, err := echoapi.GenerateToken(e.conf, echoapi.GetUserClaims(e.conf, usr))
	if err != nil {
		t.Fatalf("GenerateToken() failed: %v", err)
	}
	return token
}

func Test_userApi_login(t *testing.T) {
	e := setup(t)
	testutil.CreateUser(t, e.deps.Users, "Awa", "awa", "awa@test.local", "v3rys3cret", []string{user.RoleMember}, true)

	rec := e.request(t, http.MethodPost, "/v1/users/login", "", map[string]string{
		"username": "awa", "password": "v3rys3cret",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login: code = %d; want %d (%s)", rec.Code, http.StatusOK, rec.Body.String())
	}
	var resp echoapi.LoginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Token == "" {
		t.Error("login: empty token")
	}

	rec = e.request(t, http.MethodPost, "/v1/users/login", "", map[string]string{
		"username": "awa", "password": "wrong",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad login: code = %d; want %d", rec.Code, http.StatusBadRequest)
	}
}

func Test_catalogApi_queryCourses(t *testing.T) {
	e := setup(t)
	e.db.AddRegion(region.Region{ID: "zurich", Name: "Zurich", TZ: "Europe/Zurich"})
	e.db.AddRegion(region.Region{ID: "berlin", Name: "Berlin", TZ: "Europe/Berlin"})

	admin := testutil.CreateUser(t, e.deps.Users, "Admin", "admin", "admin@test.local", "v3rys3cret", user.AllRoles, true)
	testutil.CreateCourse(t, e.deps.Courses, "Go for beginners", "zurich", admin.ID, nil)
	testutil.CreateCourse(t, e.deps.Courses, "Rust for beginners", "berlin", admin.ID, nil)

	read := func(path string) (int, []course.Course) {
		rec := e.request(t, http.MethodGet, path, "", nil)
		var courses []course.Course
		_ = json.Unmarshal(rec.Body.Bytes(), &courses)
		return rec.Code, courses
	}

	if code, courses := read("/v1/courses"); code != http.StatusOK || len(courses) != 2 {
		t.Errorf("all courses: code = %d, n = %d; want 200, 2", code, len(courses))
	}
	if code, courses := read("/v1/courses?region=zurich"); code != http.StatusOK || len(courses) != 1 {
		t.Errorf("region filter: code = %d, n = %d; want 200, 1", code, len(courses))
	}
	// the "all" sentinel disables the region filter
	if code, courses := read("/v1/courses?region=all"); code != http.StatusOK || len(courses) != 2 {
		t.Errorf("region=all: code = %d, n = %d; want 200, 2", code, len(courses))
	}
	if code, courses := read("/v1/courses?search=" + url.QueryEscape("rust")); code != http.StatusOK || len(courses) != 1 {
		t.Errorf("search filter: code = %d, n = %d; want 200, 1", code, len(courses))
	}

	// a malformed date parameter on the events calendar is a client error
	rec := e.request(t, http.MethodGet, "/v1/events?after=yesterday", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad filter: code = %d; want %d", rec.Code, http.StatusBadRequest)
	}
}

func Test_catalogApi_createComment_recordsIntent(t *testing.T) {
	e := setup(t)
	e.db.AddRegion(region.Region{ID: "zurich", Name: "Zurich", TZ: "Europe/Zurich"})

	author := testutil.CreateUser(t, e.deps.Users, "Awa", "awa", "awa@test.local", "v3rys3cret", []string{user.RoleMember}, true)
	team := testutil.CreateUser(t, e.deps.Users, "Tim", "tim", "tim@test.local", "v3rys3cret", []string{user.RoleMember}, true)
	crs := testutil.CreateCourse(t, e.deps.Courses, "Go for beginners", "zurich", team.ID,
		[]course.Member{{UserID: team.ID, Roles: []string{course.RoleTeam}}})

	// unauthenticated posting is rejected
	rec := e.request(t, http.MethodPost, "/v1/courses/"+crs.ID+"/comments", "", map[string]string{"text": "hi"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("anon comment: code = %d; want %d", rec.Code, http.StatusUnauthorized)
	}

	rec = e.request(t, http.MethodPost, "/v1/courses/"+crs.ID+"/comments", e.token(t, author),
		map[string]string{"title": "hello", "text": "looking forward to this"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("comment: code = %d; want %d (%s)", rec.Code, http.StatusCreated, rec.Body.String())
	}

	intents, err := e.deps.Log.Find(context.Background(), alog.Query{Track: notification.TrackSend, Rel: []string{crs.ID}})
	if err != nil {
		t.Fatal(err)
	}
	if len(intents) != 1 {
		t.Fatalf("intents = %d; want 1", len(intents))
	}
}
