package notification

import (
	"context"
	"io/ioutil"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/kozihub/kozi/core"
	"github.com/kozihub/kozi/core/alog"
	"github.com/kozihub/kozi/core/comment"
	"github.com/kozihub/kozi/core/course"
	"github.com/kozihub/kozi/core/event"
	"github.com/kozihub/kozi/core/user"
	emailsvc "github.com/kozihub/kozi/services/email"
	logsvc "github.com/kozihub/kozi/services/logger"
	inmemdb "github.com/kozihub/kozi/storage/database/inmem"

	"github.com/volatiletech/null/v8"
)

type testEnv struct {
	deps Deps
	db   *inmemdb.DB
	mail interface {
		SentMessages() []core.EmailMessage
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := inmemdb.Open()
	if err != nil {
		t.Fatal(err)
	}
	conf := &core.Config{
		AppName:         "Kozi",
		SiteURL:         "http://test.local",
		WorkDir:         core.Getwd(),
		TestMode:        true,
		DefaultFromName: "Kozi",
		DefaultFromAddr: "noreply@test.local",
	}
	logger := logsvc.NewStdLogger(log.New(ioutil.Discard, "", 0))
	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)

	return &testEnv{
		deps: Deps{
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
		},
		db:   db,
		mail: mailSvc,
	}
}

func (env *testEnv) createUser(t *testing.T, username, email string) user.User {
	t.Helper()
	usr, err := env.deps.Users.CreateUser(context.Background(), user.User{
		Name:     strings.Title(username),
		Username: username,
		Email:    email,
		Locale:   "en",
		IsActive: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	return usr
}

func (env *testEnv) createCourse(t *testing.T, name string, members []course.Member) course.Course {
	t.Helper()
	crs, err := env.deps.Courses.CreateCourse(context.Background(), course.Course{
		Name:     name,
		RegionID: "region1",
		Members:  members,
	})
	if err != nil {
		t.Fatal(err)
	}
	return crs
}

func (env *testEnv) intentFor(t *testing.T) alog.Entry {
	t.Helper()
	entries, err := env.deps.Log.Find(context.Background(), alog.Query{Track: TrackSend})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly 1 intent, got %d", len(entries))
	}
	return entries[0]
}

func (env *testEnv) outcomesFor(t *testing.T, intentID string) map[string]ResultBody {
	t.Helper()
	entries, err := env.deps.Log.Find(context.Background(), alog.Query{Track: TrackSendResult, Rel: []string{intentID}})
	if err != nil {
		t.Fatal(err)
	}
	outcomes := make(map[string]ResultBody, len(entries))
	for _, e := range entries {
		var body ResultBody
		if err := e.UnmarshalBody(&body); err != nil {
			t.Fatal(err)
		}
		if _, dup := outcomes[body.Recipient]; dup {
			t.Fatalf("duplicate outcome for recipient %s", body.Recipient)
		}
		outcomes[body.Recipient] = body
	}
	return outcomes
}

func Test_send_perRecipientFailureIsolation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	noMail := env.createUser(t, "nomail", "") // no email address
	ok := env.createUser(t, "okuser", "ok@test.local")
	joiner := env.createUser(t, "newbie", "newbie@test.local")

	crs := env.createCourse(t, "Woodworking", []course.Member{
		{UserID: noMail.ID, Roles: []string{course.RoleTeam}},
		{UserID: ok.ID, Roles: []string{course.RoleTeam}},
	})

	if err := RecordJoin(ctx, env.deps, crs.ID, joiner.ID, course.RoleParticipant); err != nil {
		t.Fatal(err)
	}
	intent := env.intentFor(t)

	notifier := NewNotifier(env.deps)
	if err := notifier.Send(ctx, intent); err != nil {
		t.Fatalf("Send must not fail on per-recipient errors: %v", err)
	}

	outcomes := env.outcomesFor(t, intent.ID)
	if len(outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(outcomes))
	}

	failed, okRes := outcomes[noMail.ID], outcomes[ok.ID]
	if failed.Sent {
		t.Error("recipient without email must fail")
	}
	if !strings.Contains(failed.Reason, "no email") {
		t.Errorf("failure reason should mention the missing email, got %q", failed.Reason)
	}
	if !okRes.Sent {
		t.Fatalf("valid recipient should succeed, reason: %q", okRes.Reason)
	}
	if !strings.Contains(okRes.Message, "<!DOCTYPE html") {
		t.Error("recorded message should carry the rendered HTML document")
	}
	if !strings.Contains(okRes.Message, okRes.UnsubToken) {
		t.Error("rendered message should contain the unsubscribe token link")
	}
	if sent := env.mail.SentMessages(); len(sent) != 1 {
		t.Errorf("exactly one mail should have left, got %d", len(sent))
	}
}

func Test_send_idempotentRetrySkip(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	u1 := env.createUser(t, "teamone", "one@test.local")
	u2 := env.createUser(t, "teamtwo", "two@test.local")
	joiner := env.createUser(t, "hopper", "hopper@test.local")

	crs := env.createCourse(t, "Bookbinding", []course.Member{
		{UserID: u1.ID, Roles: []string{course.RoleTeam}},
		{UserID: u2.ID, Roles: []string{course.RoleTeam}},
	})
	if err := RecordJoin(ctx, env.deps, crs.ID, joiner.ID, course.RoleParticipant); err != nil {
		t.Fatal(err)
	}
	intent := env.intentFor(t)

	// u1 already has a recorded outcome (an earlier, interrupted run)
	_, err := env.deps.Log.Record(ctx, TrackSendResult, []string{intent.ID, u1.ID},
		ResultBody{Sent: true, Recipient: u1.ID})
	if err != nil {
		t.Fatal(err)
	}

	notifier := NewNotifier(env.deps)
	if err := notifier.Send(ctx, intent); err != nil {
		t.Fatal(err)
	}

	if sent := env.mail.SentMessages(); len(sent) != 1 {
		t.Fatalf("only the unconcluded recipient should be mailed, got %d mails", len(sent))
	}
	outcomes := env.outcomesFor(t, intent.ID)
	if len(outcomes) != 2 {
		t.Fatalf("expected 2 outcomes after resume, got %d", len(outcomes))
	}

	// a second full run concludes nothing new
	if err := notifier.Send(ctx, intent); err != nil {
		t.Fatal(err)
	}
	if sent := env.mail.SentMessages(); len(sent) != 1 {
		t.Errorf("re-invocation must skip concluded recipients, got %d mails", len(sent))
	}
	if outcomes := env.outcomesFor(t, intent.ID); len(outcomes) != 2 {
		t.Errorf("re-invocation must not add outcomes, got %d", len(outcomes))
	}
}

func Test_send_optOuts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	muted := env.createUser(t, "muted", "muted@test.local")
	muted.AutomatedNotificationsOff = true
	if _, err := env.deps.Users.UpdateUser(ctx, muted); err != nil {
		t.Fatal(err)
	}
	joiner := env.createUser(t, "walkin", "walkin@test.local")

	crs := env.createCourse(t, "Ceramics", []course.Member{
		{UserID: muted.ID, Roles: []string{course.RoleTeam}},
	})
	if err := RecordJoin(ctx, env.deps, crs.ID, joiner.ID, course.RoleParticipant); err != nil {
		t.Fatal(err)
	}
	intent := env.intentFor(t)

	if err := NewNotifier(env.deps).Send(ctx, intent); err != nil {
		t.Fatal(err)
	}
	outcomes := env.outcomesFor(t, intent.ID)
	res := outcomes[muted.ID]
	if res.Sent {
		t.Error("opted-out recipient must not be mailed")
	}
	if !strings.Contains(res.Reason, "automated notifications disabled") {
		t.Errorf("unexpected reason %q", res.Reason)
	}
	if sent := env.mail.SentMessages(); len(sent) != 0 {
		t.Errorf("no mail should leave, got %d", len(sent))
	}
}

func Test_recordComment_recipients(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	team1 := env.createUser(t, "teamone", "t1@test.local")
	team2 := env.createUser(t, "teamtwo", "t2@test.local")
	earlier := env.createUser(t, "earlier", "earlier@test.local")
	author := env.createUser(t, "author", "author@test.local")

	crs := env.createCourse(t, "Letterpress", []course.Member{
		{UserID: team1.ID, Roles: []string{course.RoleTeam}},
		{UserID: team2.ID, Roles: []string{course.RoleTeam}},
		{UserID: earlier.ID, Roles: []string{course.RoleParticipant}},
	})

	mkComment := func(authorID string) comment.Comment {
		cmt, err := env.deps.Comments.CreateComment(ctx, comment.Comment{
			CourseID:  crs.ID,
			AuthorID:  null.StringFrom(authorID),
			Title:     "hello",
			Text:      "first!",
			CreatedAt: time.Now().UTC(),
		})
		if err != nil {
			t.Fatal(err)
		}
		return cmt
	}
	mkComment(earlier.ID)
	cmt := mkComment(author.ID)

	if err := RecordComment(ctx, env.deps, cmt.ID); err != nil {
		t.Fatal(err)
	}
	intent := env.intentFor(t)

	var body BaseBody
	if err := intent.UnmarshalBody(&body); err != nil {
		t.Fatal(err)
	}
	want := map[string]bool{team1.ID: true, team2.ID: true, earlier.ID: true}
	if len(body.Recipients) != len(want) {
		t.Fatalf("expected recipients %v, got %v", want, body.Recipients)
	}
	for _, id := range body.Recipients {
		if !want[id] {
			t.Errorf("unexpected recipient %s", id)
		}
		if id == author.ID {
			t.Error("author must not be notified of their own comment")
		}
	}
	if !intent.Related(crs.ID) || !intent.Related(cmt.ID) {
		t.Error("intent should relate the course and the comment")
	}
}

func Test_recordComment_authorOwnCopy(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	author := env.createUser(t, "chatty", "chatty@test.local")
	author.CopyOwnPosts = true
	if _, err := env.deps.Users.UpdateUser(ctx, author); err != nil {
		t.Fatal(err)
	}

	crs := env.createCourse(t, "Foraging", []course.Member{
		{UserID: author.ID, Roles: []string{course.RoleTeam}},
	})
	cmt, err := env.deps.Comments.CreateComment(ctx, comment.Comment{
		CourseID: crs.ID,
		AuthorID: null.StringFrom(author.ID),
		Text:     "note to self",
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := RecordComment(ctx, env.deps, cmt.ID); err != nil {
		t.Fatal(err)
	}
	var body BaseBody
	if err := env.intentFor(t).UnmarshalBody(&body); err != nil {
		t.Fatal(err)
	}
	if len(body.Recipients) != 1 || body.Recipients[0] != author.ID {
		t.Errorf("author with own-copy preference should be the sole recipient, got %v", body.Recipients)
	}
}

func Test_recordEvent_recipients(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	organizer := env.createUser(t, "organizer", "org@test.local")
	team := env.createUser(t, "helper", "helper@test.local")
	attendee := env.createUser(t, "attendee", "att@test.local")

	crs := env.createCourse(t, "Beekeeping", []course.Member{
		{UserID: organizer.ID, Roles: []string{course.RoleTeam}},
		{UserID: team.ID, Roles: []string{course.RoleTeam}},
		{UserID: attendee.ID, Roles: []string{course.RoleParticipant}},
	})
	evt, err := env.deps.Events.CreateEvent(ctx, event.Event{
		Title:     "Hive inspection",
		CourseID:  null.StringFrom(crs.ID),
		RegionID:  crs.RegionID,
		Start:     time.Now().UTC().Add(24 * time.Hour),
		End:       time.Now().UTC().Add(26 * time.Hour),
		CreatedBy: organizer.ID,
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := RecordEvent(ctx, env.deps, evt.ID, true); err != nil {
		t.Fatal(err)
	}
	intent := env.intentFor(t)

	var body BaseBody
	if err := intent.UnmarshalBody(&body); err != nil {
		t.Fatal(err)
	}
	want := map[string]bool{organizer.ID: true, team.ID: true, attendee.ID: true}
	if len(body.Recipients) != len(want) {
		t.Fatalf("expected recipients %v, got %v", want, body.Recipients)
	}
	got := make(map[string]bool, len(body.Recipients))
	for _, id := range body.Recipients {
		if !want[id] {
			t.Errorf("unexpected recipient %s", id)
		}
		got[id] = true
	}
	if !got[organizer.ID] {
		t.Error("the member who created the event must be notified like everyone else")
	}
	if !intent.Related(evt.ID) || !intent.Related(crs.ID) {
		t.Error("intent should relate the event and the course")
	}
}

func Test_send_undecodableOutcomeConcludes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	u1 := env.createUser(t, "teamone", "one@test.local")
	u2 := env.createUser(t, "teamtwo", "two@test.local")
	joiner := env.createUser(t, "hopper", "hopper@test.local")

	crs := env.createCourse(t, "Weaving", []course.Member{
		{UserID: u1.ID, Roles: []string{course.RoleTeam}},
		{UserID: u2.ID, Roles: []string{course.RoleTeam}},
	})
	if err := RecordJoin(ctx, env.deps, crs.ID, joiner.ID, course.RoleParticipant); err != nil {
		t.Fatal(err)
	}
	intent := env.intentFor(t)

	// an outcome for u1 whose body no longer decodes; the attempt still
	// happened, so u1 must not be mailed again
	_, err := env.deps.Log.Record(ctx, TrackSendResult, []string{intent.ID, u1.ID},
		map[string]interface{}{"sent": "yes"})
	if err != nil {
		t.Fatal(err)
	}

	if err := NewNotifier(env.deps).Send(ctx, intent); err != nil {
		t.Fatal(err)
	}

	sent := env.mail.SentMessages()
	if len(sent) != 1 {
		t.Fatalf("only the unconcluded recipient should be mailed, got %d mails", len(sent))
	}
	if to := sent[0].To[0].Address; to != u2.Email {
		t.Errorf("mail should go to %s, went to %s", u2.Email, to)
	}
	results, err := env.deps.Log.Find(ctx, alog.Query{Track: TrackSendResult, Rel: []string{intent.ID}})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Errorf("no fresh outcome for the broken one's recipient, want 2 entries, got %d", len(results))
	}
}

func Test_pending(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	u1 := env.createUser(t, "teamone", "one@test.local")
	u2 := env.createUser(t, "teamtwo", "two@test.local")
	joiner := env.createUser(t, "hopper", "hopper@test.local")

	crs := env.createCourse(t, "Sailing", []course.Member{
		{UserID: u1.ID, Roles: []string{course.RoleTeam}},
		{UserID: u2.ID, Roles: []string{course.RoleTeam}},
	})
	if err := RecordJoin(ctx, env.deps, crs.ID, joiner.ID, course.RoleParticipant); err != nil {
		t.Fatal(err)
	}
	intent := env.intentFor(t)
	notifier := NewNotifier(env.deps)

	if pending, err := notifier.Pending(ctx, intent); err != nil || !pending {
		t.Fatalf("fresh intent must be pending, got %v, %v", pending, err)
	}

	// one of two recipients concluded: still pending
	_, err := env.deps.Log.Record(ctx, TrackSendResult, []string{intent.ID, u1.ID},
		ResultBody{Sent: true, Recipient: u1.ID})
	if err != nil {
		t.Fatal(err)
	}
	if pending, err := notifier.Pending(ctx, intent); err != nil || !pending {
		t.Fatalf("partially concluded intent must stay pending, got %v, %v", pending, err)
	}

	if err := notifier.Send(ctx, intent); err != nil {
		t.Fatal(err)
	}
	if pending, err := notifier.Pending(ctx, intent); err != nil || pending {
		t.Fatalf("fully concluded intent must not be pending, got %v, %v", pending, err)
	}
}

func Test_record_missingEntity(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	err := RecordComment(ctx, env.deps, "ghost")
	if !core.IsNotFound(err) {
		t.Errorf("expected a not-found error, got %v", err)
	}

	joiner := env.createUser(t, "lost", "lost@test.local")
	if err := RecordJoin(ctx, env.deps, "ghost-course", joiner.ID, "participant"); !core.IsNotFound(err) {
		t.Errorf("expected a not-found error, got %v", err)
	}
}

func Test_send_varsEntityDeleted(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	sender := env.createUser(t, "sender", "sender@test.local")
	recipient := env.createUser(t, "target", "target@test.local")
	if err := RecordPrivateMessage(ctx, env.deps, sender.ID, recipient.ID, "hi there", false); err != nil {
		t.Fatal(err)
	}
	intent := env.intentFor(t)

	// simulate a malformed body referencing a sender that no longer resolves:
	// re-record the intent with a bogus sender and dispatch that one.
	_, err := env.deps.Log.Record(ctx, TrackSend, []string{"x"}, map[string]interface{}{
		"model":       KindPrivateMessage,
		"recipients":  []string{recipient.ID},
		"senderId":    "vanished",
		"recipientId": recipient.ID,
		"text":        "hi",
	})
	if err != nil {
		t.Fatal(err)
	}
	entries, err := env.deps.Log.Find(ctx, alog.Query{Track: TrackSend, Rel: []string{"x"}})
	if err != nil || len(entries) != 1 {
		t.Fatalf("fixture intent not found: %v", err)
	}

	if err := NewNotifier(env.deps).Send(ctx, entries[0]); err != nil {
		t.Fatal(err)
	}
	outcomes := env.outcomesFor(t, entries[0].ID)
	res := outcomes[recipient.ID]
	if res.Sent {
		t.Error("vars failure must record a failed outcome")
	}
	if !strings.Contains(res.Reason, "vanished") {
		t.Errorf("reason should identify the missing entity, got %q", res.Reason)
	}

	// the healthy intent still goes through
	if err := NewNotifier(env.deps).Send(ctx, intent); err != nil {
		t.Fatal(err)
	}
	if out := env.outcomesFor(t, intent.ID); !out[recipient.ID].Sent {
		t.Errorf("healthy intent should deliver, reason: %q", out[recipient.ID].Reason)
	}
}
