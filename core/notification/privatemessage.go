package notification

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/kozihub/kozi/core"
	"github.com/kozihub/kozi/core/alog"
	"github.com/kozihub/kozi/core/user"
)

type privateMessageBody struct {
	BaseBody
	SenderID    string `json:"senderId"`
	RecipientID string `json:"recipientId"`
	Text        string `json:"text"`
}

// RecordPrivateMessage records the intent to deliver a direct message by
// mail. When sendCopy is set the sender receives their own copy too.
func RecordPrivateMessage(ctx context.Context, deps Deps, senderID, recipientID, text string, sendCopy bool) error {
	sender, err := deps.Users.GetUserByID(ctx, senderID)
	if err != nil {
		return core.NewNotFoundError("user", senderID)
	}
	if _, err := deps.Users.GetUserByID(ctx, recipientID); err != nil {
		return core.NewNotFoundError("user", recipientID)
	}

	recipients := []string{recipientID}
	if sendCopy {
		recipients = appendUnique(recipients, sender.ID)
	}

	body := privateMessageBody{
		BaseBody:    BaseBody{Model: KindPrivateMessage, Recipients: recipients},
		SenderID:    sender.ID,
		RecipientID: recipientID,
		Text:        text,
	}
	_, err = deps.Log.Record(ctx, TrackSend, []string{sender.ID, recipientID}, body)
	return errors.Wrap(err, "recording private message notification")
}

type privateMessageModel struct {
	deps Deps
	body privateMessageBody
}

func newPrivateMessageModel(deps Deps, entry alog.Entry) (Model, error) {
	var body privateMessageBody
	if err := entry.UnmarshalBody(&body); err != nil {
		return nil, err
	}
	return &privateMessageModel{deps: deps, body: body}, nil
}

func (m *privateMessageModel) Accepted(usr user.User) error {
	// own copies were asked for explicitly, opt-outs do not apply to them
	if usr.ID == m.body.SenderID {
		if !usr.HasEmail() {
			return errors.Errorf("user %s has no email address", usr.ID)
		}
		return nil
	}
	return acceptUser(usr, false)
}

func (m *privateMessageModel) Vars(ctx context.Context, locale string, usr user.User, unsubToken string) (map[string]interface{}, error) {
	sender, err := m.deps.Users.GetUserByID(ctx, m.body.SenderID)
	if err != nil {
		return nil, core.NewNotFoundError("user", m.body.SenderID)
	}

	return map[string]interface{}{
		"subject":    fmt.Sprintf("Message from %s", sender.Name),
		"senderName": sender.Name,
		"text":       m.body.Text,
		"isOwnCopy":  usr.ID == m.body.SenderID,
	}, nil
}

func (m *privateMessageModel) Template() string { return "notificationPrivateMessage" }
