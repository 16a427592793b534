package telegram

import (
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"relief-bot/api/internal/batch"
	"relief-bot/api/internal/relief"
	"relief-bot/api/internal/session"
	"relief-bot/api/internal/util"
	"relief-bot/api/internal/wizard"
)

// Client is the part of *tgbotapi.BotAPI the router uses.
type Client interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

type Router struct {
	Bot      Client
	Sessions *session.Store
	Wizard   *wizard.Machine
	Photos   *batch.Aggregator

	// HelpContact is named in the help line under the start prompt.
	HelpContact string
	Log         *slog.Logger
}

func (r *Router) log() *slog.Logger {
	if r.Log != nil {
		return r.Log
	}
	return slog.Default()
}

// HandleUpdate processes one update. Updates must be handed in arrival
// order from a single goroutine.
func (r *Router) HandleUpdate(upd tgbotapi.Update) {
	if upd.CallbackQuery != nil {
		r.handleCallback(*upd.CallbackQuery)
		return
	}
	msg := upd.Message
	if msg == nil {
		return
	}
	switch {
	case msg.IsCommand():
		r.handleCommand(msg)
	case len(msg.Photo) > 0:
		r.acceptPhoto(msg)
	case strings.TrimSpace(msg.Text) == TextStart:
		r.home(msg.Chat.ID, userID(msg.From, msg.Chat.ID))
	case msg.Text != "":
		r.resend(msg.Chat.ID)
	}
}

func (r *Router) handleCommand(msg *tgbotapi.Message) {
	cid := msg.Chat.ID
	switch msg.Command() {
	case "start", "mula":
		r.home(cid, userID(msg.From, cid))
	case "bantuan", "help":
		r.send(cid, r.helpText(), bottomKeyboard())
	default:
		r.send(cid, "Arahan tidak dikenali. Tekan /mula untuk mula.", nil)
	}
}

// home abandons the current wizard and shows the start prompt together with
// the reply keyboard.
func (r *Router) home(chatID, uid int64) {
	r.sendPrompt(chatID, r.Wizard.Home(chatID, uid))
	r.send(chatID, r.helpText(), bottomKeyboard())
}

func (r *Router) helpText() string {
	if strings.TrimSpace(r.HelpContact) == "" {
		return "Tekan " + TextStart + " untuk mula."
	}
	return "Jika ada masalah, hubungi " + util.EscapeMarkdown(r.HelpContact) + "."
}

// resend repeats the live prompt, e.g. after free text or a stale button.
func (r *Router) resend(chatID int64) {
	r.sendPrompt(chatID, r.Wizard.Current(chatID))
}

func (r *Router) sendPrompt(chatID int64, p wizard.Prompt) {
	msg := tgbotapi.NewMessage(chatID, p.Text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if mk := promptMarkup(p); mk != nil {
		msg.ReplyMarkup = *mk
	}
	sent, err := r.Bot.Send(msg)
	if err != nil {
		r.log().Warn("send prompt failed", "chat_id", chatID, "state", p.State.String(), "error", err)
		return
	}
	var prev int
	_ = r.Sessions.Update(chatID, func(s *relief.Session) error {
		prev, s.PromptMessageID = s.PromptMessageID, sent.MessageID
		return nil
	})
	if prev != 0 && prev != sent.MessageID {
		r.stripKeyboard(chatID, prev)
	}
}

// stripKeyboard removes the buttons from a superseded prompt so only the
// live one can be pressed.
func (r *Router) stripKeyboard(chatID int64, messageID int) {
	empty := tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}}
	if _, err := r.Bot.Request(tgbotapi.NewEditMessageReplyMarkup(chatID, messageID, empty)); err != nil {
		r.log().Debug("strip keyboard failed", "chat_id", chatID, "message_id", messageID, "error", err)
	}
}

// editPrompt replaces the prompt in messageID. If the message cannot be
// edited a fresh prompt is sent instead.
func (r *Router) editPrompt(chatID int64, messageID int, p wizard.Prompt) {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, p.Text)
	edit.ParseMode = tgbotapi.ModeMarkdown
	edit.ReplyMarkup = promptMarkup(p)
	if _, err := r.Bot.Send(edit); err != nil {
		if strings.Contains(err.Error(), "message is not modified") {
			return
		}
		r.log().Warn("edit prompt failed", "chat_id", chatID, "message_id", messageID, "error", err)
		r.sendPrompt(chatID, p)
		return
	}
	_ = r.Sessions.Update(chatID, func(s *relief.Session) error {
		s.PromptMessageID = messageID
		return nil
	})
}

func (r *Router) send(chatID int64, text string, markup any) {
	if err := send(r.Bot, chatID, text, markup); err != nil {
		r.log().Warn("send failed", "chat_id", chatID, "error", err)
	}
}

func send(bot Client, chatID int64, text string, markup any) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if markup != nil {
		msg.ReplyMarkup = markup
	}
	_, err := bot.Send(msg)
	return err
}

func userID(u *tgbotapi.User, fallback int64) int64 {
	if u == nil {
		return fallback
	}
	return u.ID
}
