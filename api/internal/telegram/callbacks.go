package telegram

import (
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"relief-bot/api/internal/calendar"
	"relief-bot/api/internal/relief"
	"relief-bot/api/internal/wizard"
)

func (r *Router) handleCallback(cb tgbotapi.CallbackQuery) {
	if cb.Message == nil {
		r.ack(cb.ID, "")
		return
	}
	cid := cb.Message.Chat.ID
	step, value := parseCallbackData(cb.Data)

	var (
		p   wizard.Prompt
		err error
	)
	switch step {
	case wizard.StepNoop:
		r.ack(cb.ID, "")
		return
	case wizard.StepStart:
		p = r.Wizard.Start(cid, userID(cb.From, cid))
	case wizard.StepCalendar:
		y, m, perr := calendar.ParseMonth(value)
		if perr != nil {
			err = fmt.Errorf("%w: month %q", relief.ErrInvalidSelection, value)
			break
		}
		p, err = r.Wizard.Browse(cid, y, m)
	default:
		p, err = r.Wizard.Advance(cid, wizard.Input{Step: relief.Field(step), Value: value})
	}

	if err != nil {
		r.log().Info("callback rejected", "chat_id", cid, "data", cb.Data, "error", err)
		r.ack(cb.ID, rejectText(err))
		if errors.Is(err, relief.ErrOutOfOrder) {
			r.resend(cid)
		}
		return
	}
	r.ack(cb.ID, "")
	r.editPrompt(cid, cb.Message.MessageID, p)
}

// ack answers the callback query; a non-empty text is shown as a toast.
func (r *Router) ack(id, text string) {
	if _, err := r.Bot.Request(tgbotapi.NewCallback(id, text)); err != nil {
		r.log().Debug("callback ack failed", "error", err)
	}
}

func rejectText(err error) string {
	switch {
	case errors.Is(err, relief.ErrFutureDate):
		return "⚠️ Tarikh tidak boleh melebihi hari ini."
	case errors.Is(err, relief.ErrOutOfOrder):
		return "Butang ini sudah tidak aktif."
	default:
		return "⚠️ Pilihan tidak sah."
	}
}
