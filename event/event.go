// Package event defines the typed event and message model the dispatch
// engine routes: chat messages, recalls, membership changes, and meta
// events produced by a chat-protocol adapter.
package event

import (
	"strconv"
	"time"
)

// Type tags the kind of Event carried.
type Type string

const (
	GroupMessage  Type = "group_message"
	FriendMessage Type = "friend_message"
	TempMessage   Type = "temp_message"
	GroupRecall   Type = "group_recall"
	FriendRecall  Type = "friend_recall"
	GroupMute     Type = "group_mute"
	GroupUnmute   Type = "group_unmute"
	GroupJoin     Type = "group_join"
	GroupLeave    Type = "group_leave"
	FriendRequest Type = "friend_request"
	GroupRequest  Type = "group_request"
	Meta          Type = "meta"
	Scheduler     Type = "scheduler"
	Unknown       Type = "unknown"
)

// Permission is a sender's role within a group.
type Permission int

const (
	PermNone Permission = iota
	PermMember
	PermAdmin
	PermOwner
)

// Sender identifies who produced a message event.
type Sender struct {
	QQ         int64
	Name       string
	Permission Permission
}

// Event is the tagged variant the engine routes. Only the fields relevant
// to Type are meaningful; unused fields are zero. Message events carry a
// Chain; group-scoped events carry Group; recall/mute events carry the
// relevant ids.
type Event struct {
	Type Type
	Time time.Time

	// Message events.
	MessageID int64
	Chain     MessageChain
	Sender    Sender

	// Group-scoped events.
	Group int64

	// Temp-message events.
	TempSubType string

	// Recall events.
	RecallAuthor int64

	// Mute events.
	MuteTarget   int64
	MuteDuration time.Duration

	// Join/leave events.
	MemberQQ int64
	Operator int64

	// Requests.
	RequestID      int64
	RequestMessage string

	// Meta/Scheduler events carry free-form data.
	MetaName string
	Data     map[string]any
}

// IsMessage reports whether this event carries a message chain.
func (e Event) IsMessage() bool {
	switch e.Type {
	case GroupMessage, FriendMessage, TempMessage:
		return true
	default:
		return false
	}
}

// ConversationKey identifies the conversation an event belongs to, used by
// wait_next/wait_quote to match "same conversation" subgraphs.
func (e Event) ConversationKey() string {
	switch e.Type {
	case GroupMessage:
		return "group:" + strconv.FormatInt(e.Group, 10)
	case FriendMessage, TempMessage:
		return "friend:" + strconv.FormatInt(e.Sender.QQ, 10)
	default:
		return ""
	}
}
