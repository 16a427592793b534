package telegram

import (
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"relief-bot/api/internal/wizard"
)

// TextStart is the reply-keyboard button that (re)opens the wizard.
const TextStart = "📝 Isi Rekod"

// callbackLimit is Telegram's cap on callback_data, in bytes.
const callbackLimit = 64

func callbackData(step, value string) string {
	return step + "|" + value
}

func parseCallbackData(data string) (step, value string) {
	step, value, _ = strings.Cut(data, "|")
	return step, value
}

// promptMarkup renders the option grid of p as inline buttons. Options whose
// payload does not fit into callback_data are skipped.
func promptMarkup(p wizard.Prompt) *tgbotapi.InlineKeyboardMarkup {
	if len(p.Options) == 0 {
		return nil
	}
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(p.Options))
	for _, opts := range p.Options {
		row := make([]tgbotapi.InlineKeyboardButton, 0, len(opts))
		for _, o := range opts {
			data := callbackData(o.Step, o.Value)
			if len(data) > callbackLimit {
				continue
			}
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(o.Label, data))
		}
		if len(row) > 0 {
			rows = append(rows, row)
		}
	}
	m := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &m
}

func bottomKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(TextStart)))
	kb.ResizeKeyboard = true
	return kb
}
