package notify

import (
	"context"
	"strconv"

	"github.com/go-faster/errors"

	"github.com/juicyshop/backend/internal/telegram"
)

var _ Dispatcher = (*Telegram)(nil)

// Telegram delivers messages over the Telegram Bot API. Operator messages go
// to the admin chat with inline action buttons; customer messages go to the
// chat whose ID matches the client ID.
type Telegram struct {
	bot         *telegram.Client
	adminChatID int64
}

// NewTelegram creates a Telegram dispatcher bound to the given admin chat.
func NewTelegram(bot *telegram.Client, adminChatID int64) *Telegram {
	return &Telegram{bot: bot, adminChatID: adminChatID}
}

// Operator sends text to the admin chat, rendering actions as an inline
// keyboard.
func (t *Telegram) Operator(ctx context.Context, text string, actions []Action) error {
	buttons := make([]telegram.InlineButton, len(actions))
	for i, a := range actions {
		buttons[i] = telegram.InlineButton{Text: a.Label, CallbackData: a.Data}
	}
	_, err := t.bot.SendMessage(ctx, t.adminChatID, text, buttons)
	return err
}

// Customer sends text to the client's own chat. Client IDs are Telegram chat
// IDs in string form.
func (t *Telegram) Customer(ctx context.Context, clientID, text string) error {
	chatID, err := strconv.ParseInt(clientID, 10, 64)
	if err != nil {
		return errors.Wrapf(err, "client id %q is not a chat id", clientID)
	}
	_, err = t.bot.SendMessage(ctx, chatID, text, nil)
	return err
}
