package telegram

import (
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/corvidwing/dispatch/event"
)

func textUpdate(chatType string, chatID int64, messageID int, from tgbotapi.User, text string) tgbotapi.Update {
	return tgbotapi.Update{
		Message: &tgbotapi.Message{
			MessageID: messageID,
			Date:      int(time.Now().Unix()),
			Chat:      &tgbotapi.Chat{ID: chatID, Type: chatType},
			From:      &from,
			Text:      text,
		},
	}
}

func TestToEventGroupMessage(t *testing.T) {
	update := textUpdate("group", 100, 1, tgbotapi.User{ID: 7, UserName: "alice"}, "/ping")

	ev := toEvent(update)
	if ev == nil {
		t.Fatal("expected a non-nil event for a plain text group message")
	}
	if ev.Type != event.GroupMessage {
		t.Fatalf("expected GroupMessage, got %v", ev.Type)
	}
	if ev.Group != 100 {
		t.Fatalf("expected Group 100, got %d", ev.Group)
	}
	if ev.Sender.QQ != 7 || ev.Sender.Name != "alice" {
		t.Fatalf("unexpected sender: %+v", ev.Sender)
	}
	if ev.Chain.PlainText() != "/ping" {
		t.Fatalf("expected plain text /ping, got %q", ev.Chain.PlainText())
	}
}

func TestToEventSuperGroupIsGroupMessage(t *testing.T) {
	update := textUpdate("supergroup", 200, 1, tgbotapi.User{ID: 7}, "hi")
	ev := toEvent(update)
	if ev.Type != event.GroupMessage {
		t.Fatalf("expected a supergroup update to map to GroupMessage, got %v", ev.Type)
	}
}

func TestToEventPrivateChatIsFriendMessage(t *testing.T) {
	update := textUpdate("private", 7, 1, tgbotapi.User{ID: 7}, "hi")
	ev := toEvent(update)
	if ev.Type != event.FriendMessage {
		t.Fatalf("expected a private chat update to map to FriendMessage, got %v", ev.Type)
	}
	if ev.Group != 0 {
		t.Fatalf("friend messages should not carry a Group, got %d", ev.Group)
	}
}

func TestToEventNilForNonTextMessage(t *testing.T) {
	update := tgbotapi.Update{Message: &tgbotapi.Message{
		Chat: &tgbotapi.Chat{ID: 1, Type: "private"},
		From: &tgbotapi.User{ID: 1},
	}}
	if toEvent(update) != nil {
		t.Fatal("a message with no text should map to a nil event")
	}
}

func TestToEventNilForNonMessageUpdate(t *testing.T) {
	if toEvent(tgbotapi.Update{}) != nil {
		t.Fatal("an update with no Message should map to a nil event")
	}
}

func TestToEventBuildsQuoteFromReply(t *testing.T) {
	update := textUpdate("group", 100, 5, tgbotapi.User{ID: 7}, "yes")
	update.Message.ReplyToMessage = &tgbotapi.Message{
		MessageID: 3,
		Chat:      &tgbotapi.Chat{ID: 100, Type: "group"},
		From:      &tgbotapi.User{ID: 9},
		Text:      "are you sure?",
	}

	ev := toEvent(update)
	if len(ev.Chain) != 2 {
		t.Fatalf("expected a Quote element prepended to the chain, got %d elements", len(ev.Chain))
	}
	quote, ok := ev.Chain[0].(event.Quote)
	if !ok {
		t.Fatalf("expected the first chain element to be a Quote, got %T", ev.Chain[0])
	}
	if quote.MessageID != 3 || quote.SourceQQ != 9 {
		t.Fatalf("unexpected quote contents: %+v", quote)
	}
}

func TestSenderPermission(t *testing.T) {
	private := &tgbotapi.Message{Chat: &tgbotapi.Chat{Type: "private"}}
	group := &tgbotapi.Message{Chat: &tgbotapi.Chat{Type: "group"}}

	if senderPermission(private) != event.PermNone {
		t.Fatalf("expected PermNone for a private chat sender, got %v", senderPermission(private))
	}
	if senderPermission(group) != event.PermMember {
		t.Fatalf("expected PermMember for a group chat sender, got %v", senderPermission(group))
	}
}
