// Package api declares the outbound protocol surface a dispatch.Engine
// consumes but never implements (spec §6): sending messages, recalling
// them, and managing group membership. Handlers reach their adapter's Api
// through whatever the adapter chooses to thread in (typically a value
// closed over by the handler, or stashed in a keystore under a well-known
// key) — the engine itself only ever calls into an EventSource, never an
// Api, so this package has no dependency on engine or graph.
package api

import "context"

// Code is an ApiResult status code. Zero is success; negative values are
// the fixed failure classes spec §6 lists.
type Code int

const (
	OK                Code = 0
	Unspecified       Code = -1
	Unavailable       Code = -2
	IncorrectArgument Code = -5
	RequestError      Code = -10
	NetworkError      Code = -20
)

// Result is the uniform return shape of every Api call: no exception ever
// crosses the Api boundary except an implementation bug (spec §7.3).
type Result struct {
	Code    Code
	Message string
	Data    any
}

// Ok reports whether the call succeeded.
func (r Result) Ok() bool { return r.Code == OK }

// Member describes one entry in a friend or group-member list.
type Member struct {
	QQ         int64
	Name       string
	Permission int
}

// Api is the outbound protocol surface: send/recall/list/kick/mute, as
// spec §6 lists them. An adapter (e.g. adapter/telegram) implements this
// against its own transport; the engine and its handlers only ever see
// the interface.
type Api interface {
	SendFriendMessage(ctx context.Context, qq int64, msg string) Result
	SendTempMessage(ctx context.Context, qq, group int64, msg string) Result
	SendGroupMessage(ctx context.Context, group int64, msg string) Result
	Recall(ctx context.Context, messageID int64) Result
	GetMessage(ctx context.Context, messageID int64) Result

	GetFriendList(ctx context.Context) Result
	GetGroupList(ctx context.Context) Result
	GetGroupMemberList(ctx context.Context, group int64) Result

	SetGroupMute(ctx context.Context, group int64, qq int64, seconds int) Result
	SetGroupUnmute(ctx context.Context, group int64, qq int64) Result
	SetGroupKick(ctx context.Context, group, qq int64) Result
	SetGroupLeave(ctx context.Context, group int64) Result

	GetGroupConfig(ctx context.Context, group int64) Result
	SetGroupConfig(ctx context.Context, group int64, config map[string]any) Result
	GetGroupMemberInfo(ctx context.Context, group, qq int64) Result
	SetGroupMemberInfo(ctx context.Context, group, qq int64, info map[string]any) Result
}
