// Package platform defines the interfaces consumed from the external chat
// platform: membership lookup and the message/media send primitives. The
// platform client itself lives outside this repository; everything here is a
// typed, fallible call that the services retry or report on.
package platform

import (
	"context"
	"fmt"
)

// Membership statuses that count as channel membership.
const (
	StatusMember        = "member"
	StatusAdministrator = "administrator"
	StatusCreator       = "creator"
)

// IsMemberStatus reports whether a raw chat-member status string counts as
// channel membership.
func IsMemberStatus(status string) bool {
	switch status {
	case StatusMember, StatusAdministrator, StatusCreator:
		return true
	}
	return false
}

// MembershipChecker looks up a user's standing in a channel. Implementations
// are expected to fail transiently; callers wrap the lookup in a bounded
// retry policy and degrade conservatively on final failure.
type MembershipChecker interface {
	ChatMember(ctx context.Context, channel string, userID int64) (status string, err error)
}

// Sender is the outbound message surface of the platform client. Each call
// targets one recipient and may fail independently.
type Sender interface {
	SendMessage(ctx context.Context, userID int64, text string) error
	SendPhoto(ctx context.Context, userID int64, fileID, caption string) error
	SendVoice(ctx context.Context, userID int64, fileID, caption string) error
	SendSticker(ctx context.Context, userID int64, fileID string) error
}

// PayloadKind enumerates the admin broadcast payload types.
type PayloadKind string

// Broadcastable payload kinds.
const (
	KindText    PayloadKind = "text"
	KindPhoto   PayloadKind = "photo"
	KindVoice   PayloadKind = "voice"
	KindSticker PayloadKind = "sticker"
)

// Payload is an admin-authored broadcast body. Text carries the message for
// KindText; FileID references previously uploaded media for the other kinds.
type Payload struct {
	Kind    PayloadKind
	Text    string
	FileID  string
	Caption string
}

// SendVia binds the payload to a sender, producing the per-recipient send
// function consumed by the broadcast batcher.
func (p Payload) SendVia(s Sender) func(ctx context.Context, userID int64) error {
	return func(ctx context.Context, userID int64) error {
		switch p.Kind {
		case KindText:
			return s.SendMessage(ctx, userID, p.Text)
		case KindPhoto:
			return s.SendPhoto(ctx, userID, p.FileID, p.Caption)
		case KindVoice:
			return s.SendVoice(ctx, userID, p.FileID, p.Caption)
		case KindSticker:
			return s.SendSticker(ctx, userID, p.FileID)
		default:
			return fmt.Errorf("platform: unknown payload kind %q", p.Kind)
		}
	}
}

// UserInfo is the profile snapshot carried on inbound events.
type UserInfo struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// MediaRef identifies a file previously uploaded to the platform.
type MediaRef struct {
	FileID string `json:"file_id"`
}

// IncomingMessage is a user-authored message event (commands included).
// Media messages carry their file references and an optional caption; the
// photo slice lists the available sizes, smallest first.
type IncomingMessage struct {
	From    UserInfo   `json:"from"`
	Text    string     `json:"text"`
	Caption string     `json:"caption,omitempty"`
	Photo   []MediaRef `json:"photo,omitempty"`
	Voice   *MediaRef  `json:"voice,omitempty"`
	Sticker *MediaRef  `json:"sticker,omitempty"`
}

// BroadcastPayload converts the message content into a broadcast payload.
// Media wins over text; for photos the largest size is used.
func (m *IncomingMessage) BroadcastPayload() Payload {
	switch {
	case len(m.Photo) > 0:
		return Payload{Kind: KindPhoto, FileID: m.Photo[len(m.Photo)-1].FileID, Caption: m.Caption}
	case m.Voice != nil:
		return Payload{Kind: KindVoice, FileID: m.Voice.FileID, Caption: m.Caption}
	case m.Sticker != nil:
		return Payload{Kind: KindSticker, FileID: m.Sticker.FileID}
	default:
		return Payload{Kind: KindText, Text: m.Text}
	}
}

// CallbackQuery is an inline-button press event.
type CallbackQuery struct {
	ID   string   `json:"id"`
	From UserInfo `json:"from"`
	Data string   `json:"data"`
}

// Update is one inbound platform event as delivered to the webhook. Exactly
// one of the pointers is set.
type Update struct {
	UpdateID int64            `json:"update_id"`
	Message  *IncomingMessage `json:"message,omitempty"`
	Callback *CallbackQuery   `json:"callback_query,omitempty"`
}
