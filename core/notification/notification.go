// Package notification implements the email notification pipeline: domain
// actions record intents to the application log, and a dispatcher later
// resolves recipients, renders mail and records per-recipient outcomes.
package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"net/mail"
	"net/url"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/kozihub/kozi/core"
	"github.com/kozihub/kozi/core/alog"
	"github.com/kozihub/kozi/core/comment"
	"github.com/kozihub/kozi/core/course"
	"github.com/kozihub/kozi/core/event"
	"github.com/kozihub/kozi/core/group"
	"github.com/kozihub/kozi/core/region"
	"github.com/kozihub/kozi/core/user"
	"github.com/kozihub/kozi/core/venue"
)

// Log entry tracks.
const (
	TrackSend       = "Notification.Send"
	TrackSendResult = "Notification.SendResult"
)

// Kind tags stored in the intent body's "model" field.
const (
	KindComment        = "comment"
	KindEvent          = "event"
	KindJoin           = "join"
	KindPrivateMessage = "privateMessage"
	KindGroupCourse    = "groupCourse"
)

type (
	// Deps bundles the collaborators the pipeline needs. Everything is an
	// interface; the pipeline owns no persistence of its own.
	Deps struct {
		Log      alog.Store
		Users    user.Repository
		Courses  course.Repository
		Events   event.Repository
		Venues   venue.Repository
		Regions  region.Repository
		Groups   group.Repository
		Comments comment.Repository
		Mail     core.EmailService
		Logger   core.Logger
		Conf     *core.Config
	}

	// BaseBody is the part every intent body shares. Kind-specific bodies
	// embed it.
	BaseBody struct {
		Model      string   `json:"model"`
		Recipients []string `json:"recipients"`
	}

	// ResultBody is the body of one delivery-attempt outcome.
	ResultBody struct {
		Sent       bool   `json:"sent"`
		Recipient  string `json:"recipient"`
		Message    string `json:"message,omitempty"` // rendered HTML on success
		Reason     string `json:"reason,omitempty"`  // failure reason
		UnsubToken string `json:"unsubToken,omitempty"`
	}

	// Model resolves one notification kind for dispatch. Implementations
	// are stateless apart from the decoded intent body; entity lookups
	// happen inside Vars so that a deleted entity turns into a
	// per-recipient failure, not a poisoned model.
	Model interface {
		// Accepted returns an error when this recipient must not receive
		// the message (opted out, no email).
		Accepted(usr user.User) error
		// Vars resolves all referenced entities and returns the template
		// variables, including a "subject" key.
		Vars(ctx context.Context, locale string, usr user.User, unsubToken string) (map[string]interface{}, error)
		// Template names the mail template to render.
		Template() string
	}

	modelCtor func(deps Deps, entry alog.Entry) (Model, error)
)

var modelRegistry = map[string]modelCtor{
	KindComment:        newCommentModel,
	KindEvent:          newEventModel,
	KindJoin:           newJoinModel,
	KindPrivateMessage: newPrivateMessageModel,
	KindGroupCourse:    newGroupCourseModel,
}

// Notifier dispatches recorded intents.
type Notifier struct {
	deps Deps
}

func NewNotifier(deps Deps) *Notifier {
	return &Notifier{deps: deps}
}

// Send attempts delivery to every recipient of the intent that has no
// recorded outcome yet. Per-recipient failures are recorded as outcomes and
// never abort the batch; Send itself only fails when it cannot establish
// the set of already-concluded recipients (or cannot decode the intent),
// since proceeding then could double-send.
//
// There is no claim step: two concurrent Sends for the same intent may both
// mail a recipient before either records an outcome. Delivery is
// at-least-once.
func (n *Notifier) Send(ctx context.Context, entry alog.Entry) error {
	var base BaseBody
	if err := entry.UnmarshalBody(&base); err != nil {
		return errors.Wrapf(err, "decoding intent %s", entry.ID)
	}
	ctor, ok := modelRegistry[base.Model]
	if !ok {
		return errors.Errorf("intent %s: unknown notification model %q", entry.ID, base.Model)
	}
	model, err := ctor(n.deps, entry)
	if err != nil {
		return errors.Wrapf(err, "building %q model for intent %s", base.Model, entry.ID)
	}

	results, err := n.deps.Log.Find(ctx, alog.Query{Track: TrackSendResult, Rel: []string{entry.ID}})
	if err != nil {
		return errors.Wrapf(err, "querying outcomes for intent %s", entry.ID)
	}
	concluded := concludedRecipients(entry.ID, results, n.deps.Logger)

	for _, recipient := range base.Recipients {
		if _, done := concluded[recipient]; done {
			continue
		}
		n.sendOne(ctx, entry, model, recipient)
	}
	return nil
}

// Pending reports whether the intent still has recipients without a
// recorded outcome. Outcomes are append-only, so once this returns false
// for an intent it stays false; dispatch loops use that to retire intents
// instead of re-scanning them forever.
func (n *Notifier) Pending(ctx context.Context, entry alog.Entry) (bool, error) {
	var base BaseBody
	if err := entry.UnmarshalBody(&base); err != nil {
		return false, errors.Wrapf(err, "decoding intent %s", entry.ID)
	}

	results, err := n.deps.Log.Find(ctx, alog.Query{Track: TrackSendResult, Rel: []string{entry.ID}})
	if err != nil {
		return false, errors.Wrapf(err, "querying outcomes for intent %s", entry.ID)
	}
	concluded := concludedRecipients(entry.ID, results, n.deps.Logger)

	for _, recipient := range base.Recipients {
		if _, done := concluded[recipient]; !done {
			return true, nil
		}
	}
	return false, nil
}

// concludedRecipients collapses outcome entries into the set of recipients
// that must not be attempted again. An outcome whose body no longer decodes
// still concludes its recipient (recovered from Rel, written as
// [intentID, recipient, ...] by recordResult): the attempt demonstrably
// happened, and re-mailing on every run would be worse than a lost reason.
func concludedRecipients(intentID string, results []alog.Entry, logger core.Logger) map[string]struct{} {
	concluded := make(map[string]struct{}, len(results))
	for _, res := range results {
		var body ResultBody
		if err := res.UnmarshalBody(&body); err == nil {
			concluded[body.Recipient] = struct{}{}
			continue
		}
		logger.Warn(fmt.Sprintf("notification: undecodable outcome %s for intent %s", res.ID, intentID))
		if len(res.Rel) > 1 && res.Rel[0] == intentID {
			concluded[res.Rel[1]] = struct{}{}
		}
	}
	return concluded
}

// sendOne attempts delivery to a single recipient; every failure is turned
// into a recorded outcome.
func (n *Notifier) sendOne(ctx context.Context, entry alog.Entry, model Model, recipient string) {
	fail := func(reason, unsubToken string) {
		n.recordResult(ctx, entry.ID, ResultBody{
			Sent:       false,
			Recipient:  recipient,
			Reason:     reason,
			UnsubToken: unsubToken,
		})
	}

	usr, err := n.deps.Users.GetUserByID(ctx, recipient)
	if err != nil {
		fail(fmt.Sprintf("recipient %s not found", recipient), "")
		return
	}
	if err := model.Accepted(usr); err != nil {
		fail(err.Error(), "")
		return
	}

	unsubToken := uuid.New().String()
	locale := usr.Locale
	if locale == "" {
		locale = "en"
	}

	vars, err := model.Vars(ctx, locale, usr, unsubToken)
	if err != nil {
		fail(failureReason(err), unsubToken)
		return
	}
	subject, _ := vars["subject"].(string)
	delete(vars, "subject")

	// cross-cutting vars
	vars["siteName"] = n.deps.Conf.AppName
	vars["siteUrl"] = n.deps.Conf.SiteURL
	vars["locale"] = locale
	vars["username"] = usr.Username
	vars["unsubscribeUrl"] = n.deps.Conf.SiteURL + "/profile/notifications/unsubscribe/" + url.PathEscape(unsubToken)

	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      subject,
		TemplateName: model.Template(),
		TemplateData: vars,
	}
	if err := n.deps.Mail.SendMessage(ctx, msg); err != nil {
		fail(failureReason(err), unsubToken)
		return
	}

	n.recordResult(ctx, entry.ID, ResultBody{
		Sent:       true,
		Recipient:  recipient,
		Message:    msg.HTMLContent,
		UnsubToken: unsubToken,
	})
}

func (n *Notifier) recordResult(ctx context.Context, intentID string, body ResultBody) {
	rel := []string{intentID, body.Recipient}
	if body.UnsubToken != "" {
		rel = append(rel, body.UnsubToken)
	}
	if _, err := n.deps.Log.Record(ctx, TrackSendResult, rel, body); err != nil {
		// Losing the outcome record means a later run may re-send; log it.
		n.deps.Logger.Error(fmt.Sprintf("notification: recording outcome for intent %s failed", intentID), err)
	}
}

// failureReason renders err in its most serializable form: a JSON projection
// when the error marshals to something useful, else its message.
func failureReason(err error) string {
	if b, jerr := json.Marshal(err); jerr == nil {
		if s := string(b); s != "{}" && s != "null" && s != `""` {
			return s
		}
	}
	return err.Error()
}

// acceptUser implements the shared opt-out rules. Automated kinds (event,
// join, group course) additionally honor the automated-mail mute.
func acceptUser(usr user.User, automated bool) error {
	if usr.NotificationsOff {
		return errors.Errorf("user %s has notifications disabled", usr.ID)
	}
	if automated && usr.AutomatedNotificationsOff {
		return errors.Errorf("user %s has automated notifications disabled", usr.ID)
	}
	if !usr.HasEmail() {
		return errors.Errorf("user %s has no email address", usr.ID)
	}
	return nil
}

// appendUnique appends ids not already present in list.
func appendUnique(list []string, ids ...string) []string {
	for _, id := range ids {
		dup := false
		for _, have := range list {
			if have == id {
				dup = true
				break
			}
		}
		if !dup {
			list = append(list, id)
		}
	}
	return list
}

// without returns list minus id.
func without(list []string, id string) []string {
	var rest []string
	for _, have := range list {
		if have != id {
			rest = append(rest, have)
		}
	}
	return rest
}
