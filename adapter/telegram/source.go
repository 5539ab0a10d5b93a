// Package telegram adapts a Telegram bot into dispatch's engine.EventSource
// and api.Api contracts (spec §6), grounded on the teacher's serve/telegram.go
// long-polling loop but stripped of its DSL-interpreter/store wiring: this
// adapter only translates wire updates to events and back, carrying no
// routing logic of its own.
package telegram

import (
	"context"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/corvidwing/dispatch/engine"
	"github.com/corvidwing/dispatch/event"
	"github.com/corvidwing/dispatch/executor"
)

// Source long-polls a Telegram bot and forwards each update to an Engine
// as an event.Event, implementing engine.EventSource.
type Source struct {
	bot *tgbotapi.BotAPI
	eng *engine.Engine
	log *slog.Logger

	// Forward defaults to eng.Forward; callers that want to tap every
	// dispatch (persistence.Tap, an observability.Instruments.Forward)
	// can replace it without the Source needing to know about them.
	Forward func(ctx context.Context, ev *event.Event, source engine.EventSource, extra map[string]any) []executor.Result
}

// New connects to Telegram with token and binds the resulting Source to
// eng. The returned Source is also a usable api.Api via its Api() method.
func New(token string, eng *engine.Engine) (*Source, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	bot.Debug = false
	s := &Source{bot: bot, eng: eng, log: eng.Log.With("source", "telegram")}
	s.Forward = eng.Forward
	return s, nil
}

// Name identifies this EventSource.
func (s *Source) Name() string { return "telegram" }

// Api returns an api.Api backed by this Source's bot connection.
func (s *Source) Api() *Api { return &Api{bot: s.bot} }

// Run polls for updates until ctx is cancelled, dispatching each as an
// event.Event through the bound Engine (grounded on TelegramBot.Start's
// GetUpdatesChan loop, minus the DSL interpreter dispatch it replaces).
func (s *Source) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := s.bot.GetUpdatesChan(u)

	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return
			}
			go s.handle(ctx, update)
		case <-ctx.Done():
			s.bot.StopReceivingUpdates()
			return
		}
	}
}

func (s *Source) handle(ctx context.Context, update tgbotapi.Update) {
	ev := toEvent(update)
	if ev == nil {
		return
	}
	s.Forward(ctx, ev, s, nil)
}

// toEvent maps a Telegram update onto the engine's event model. Only plain
// text messages are translated; other update kinds (edits, callbacks,
// etc.) are left for a future extension and currently dropped.
func toEvent(update tgbotapi.Update) *event.Event {
	m := update.Message
	if m == nil || m.Text == "" {
		return nil
	}

	sender := event.Sender{
		QQ:         m.From.ID,
		Name:       m.From.UserName,
		Permission: senderPermission(m),
	}
	chain := event.MessageChain{event.Plain{Text: m.Text}}
	if m.ReplyToMessage != nil {
		chain = append(event.MessageChain{event.Quote{
			MessageID: int64(m.ReplyToMessage.MessageID),
			Origin:    event.MessageChain{event.Plain{Text: m.ReplyToMessage.Text}},
			SourceQQ:  m.ReplyToMessage.From.ID,
		}}, chain...)
	}

	if m.Chat.IsGroup() || m.Chat.IsSuperGroup() {
		return &event.Event{
			Type:      event.GroupMessage,
			Time:      m.Time(),
			MessageID: int64(m.MessageID),
			Chain:     chain,
			Sender:    sender,
			Group:     m.Chat.ID,
		}
	}
	return &event.Event{
		Type:      event.FriendMessage,
		Time:      m.Time(),
		MessageID: int64(m.MessageID),
		Chain:     chain,
		Sender:    sender,
	}
}

func senderPermission(m *tgbotapi.Message) event.Permission {
	if m.Chat.IsPrivate() {
		return event.PermNone
	}
	return event.PermMember
}
