package telegram

import (
	"context"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/corvidwing/dispatch/api"
)

// Api implements api.Api against a Telegram bot connection. Telegram's
// chat model has no friend/temp distinction and several operations
// (per-member group config, arbitrary recall without a chat id) have no
// direct equivalent; those return api.Unavailable rather than guessing.
type Api struct {
	bot *tgbotapi.BotAPI
}

func (a *Api) send(chatID int64, msg string) api.Result {
	_, err := a.bot.Send(tgbotapi.NewMessage(chatID, msg))
	if err != nil {
		return api.Result{Code: api.NetworkError, Message: err.Error()}
	}
	return api.Result{Code: api.OK}
}

func (a *Api) SendFriendMessage(ctx context.Context, qq int64, msg string) api.Result {
	return a.send(qq, msg)
}

func (a *Api) SendTempMessage(ctx context.Context, qq, group int64, msg string) api.Result {
	return a.send(qq, msg)
}

func (a *Api) SendGroupMessage(ctx context.Context, group int64, msg string) api.Result {
	return a.send(group, msg)
}

// Recall cannot be expressed without the chat the message lives in;
// Telegram's DeleteMessage requires both chat id and message id, but this
// Api's contract only carries the latter.
func (a *Api) Recall(ctx context.Context, messageID int64) api.Result {
	return api.Result{Code: api.Unavailable, Message: "telegram recall requires a chat id"}
}

func (a *Api) GetMessage(ctx context.Context, messageID int64) api.Result {
	return api.Result{Code: api.Unavailable, Message: "telegram has no message-by-id lookup"}
}

func (a *Api) GetFriendList(ctx context.Context) api.Result {
	return api.Result{Code: api.Unavailable, Message: "telegram has no friend list concept"}
}

func (a *Api) GetGroupList(ctx context.Context) api.Result {
	return api.Result{Code: api.Unavailable, Message: "telegram bots cannot enumerate their chats"}
}

func (a *Api) GetGroupMemberList(ctx context.Context, group int64) api.Result {
	count, err := a.bot.GetChatMembersCount(tgbotapi.ChatMemberCountConfig{
		ChatConfig: tgbotapi.ChatConfig{ChatID: group},
	})
	if err != nil {
		return api.Result{Code: api.NetworkError, Message: err.Error()}
	}
	return api.Result{Code: api.OK, Data: count}
}

func (a *Api) SetGroupMute(ctx context.Context, group, qq int64, seconds int) api.Result {
	_, err := a.bot.Request(tgbotapi.RestrictChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{ChatID: group, UserID: qq},
		UntilDate:        untilDate(seconds),
		Permissions:      &tgbotapi.ChatPermissions{},
	})
	if err != nil {
		return api.Result{Code: api.NetworkError, Message: err.Error()}
	}
	return api.Result{Code: api.OK}
}

func (a *Api) SetGroupUnmute(ctx context.Context, group, qq int64) api.Result {
	allow := true
	_, err := a.bot.Request(tgbotapi.RestrictChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{ChatID: group, UserID: qq},
		Permissions: &tgbotapi.ChatPermissions{
			CanSendMessages: allow, CanSendMediaMessages: allow, CanSendOtherMessages: allow,
		},
	})
	if err != nil {
		return api.Result{Code: api.NetworkError, Message: err.Error()}
	}
	return api.Result{Code: api.OK}
}

func (a *Api) SetGroupKick(ctx context.Context, group, qq int64) api.Result {
	_, err := a.bot.Request(tgbotapi.BanChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{ChatID: group, UserID: qq},
	})
	if err != nil {
		return api.Result{Code: api.NetworkError, Message: err.Error()}
	}
	return api.Result{Code: api.OK}
}

func (a *Api) SetGroupLeave(ctx context.Context, group int64) api.Result {
	_, err := a.bot.Request(tgbotapi.LeaveChatConfig{ChatID: group})
	if err != nil {
		return api.Result{Code: api.NetworkError, Message: err.Error()}
	}
	return api.Result{Code: api.OK}
}

func (a *Api) GetGroupConfig(ctx context.Context, group int64) api.Result {
	return api.Result{Code: api.Unavailable, Message: "telegram has no per-group plugin config concept"}
}

func (a *Api) SetGroupConfig(ctx context.Context, group int64, config map[string]any) api.Result {
	return api.Result{Code: api.Unavailable, Message: "telegram has no per-group plugin config concept"}
}

func (a *Api) GetGroupMemberInfo(ctx context.Context, group, qq int64) api.Result {
	member, err := a.bot.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{ChatID: group, UserID: qq},
	})
	if err != nil {
		return api.Result{Code: api.NetworkError, Message: err.Error()}
	}
	return api.Result{Code: api.OK, Data: member}
}

func (a *Api) SetGroupMemberInfo(ctx context.Context, group, qq int64, info map[string]any) api.Result {
	return api.Result{Code: api.Unavailable, Message: "telegram exposes no generic member-info setter"}
}

// untilDate converts a mute duration in seconds to the absolute Unix
// timestamp Telegram's RestrictChatMember expects; 0 (or less) means
// permanent, per Telegram's own "UntilDate of 0 or <30 seconds means forever"
// convention.
func untilDate(seconds int) int64 {
	if seconds <= 0 {
		return 0
	}
	return time.Now().Add(time.Duration(seconds) * time.Second).Unix()
}
