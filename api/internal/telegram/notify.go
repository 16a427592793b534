package telegram

import "log/slog"

// Notifier reports commit outcomes back to the chat.
type Notifier struct {
	Bot Client
	Log *slog.Logger
}

func (n *Notifier) Confirm(chatID int64, text string) {
	n.deliver(chatID, text, "confirm")
}

func (n *Notifier) Fail(chatID int64, text string) {
	n.deliver(chatID, text, "fail")
}

func (n *Notifier) deliver(chatID int64, text, kind string) {
	if err := send(n.Bot, chatID, text, bottomKeyboard()); err != nil {
		log := n.Log
		if log == nil {
			log = slog.Default()
		}
		log.Warn("notify failed", "chat_id", chatID, "kind", kind, "error", err)
	}
}
