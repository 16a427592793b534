package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"relief-bot/api/internal/relief"
)

// maxDownload matches the Bot API limit for files fetched by bots.
const maxDownload = 20 << 20

func (r *Router) acceptPhoto(msg *tgbotapi.Message) {
	cid := msg.Chat.ID
	ph := msg.Photo[len(msg.Photo)-1] // largest size
	out, err := r.Photos.OnPhoto(cid, relief.Photo{FileID: ph.FileID, UniqueID: ph.FileUniqueID}, msg.MediaGroupID)
	if err == nil {
		r.log().Debug("photo accepted", "chat_id", cid, "outcome", out.String(), "media_group", msg.MediaGroupID)
		return
	}
	r.log().Info("photo rejected", "chat_id", cid, "media_group", msg.MediaGroupID, "error", err)
	switch {
	case errors.Is(err, relief.ErrNotAcceptingPhotos):
		r.send(cid, "⚠️ Sila lengkapkan pilihan dahulu. Tekan /mula untuk mula.", nil)
	case errors.Is(err, relief.ErrSubmissionInFlight):
		r.send(cid, "⏳ Rekod sedang dihantar. Gambar ini tidak disimpan.", nil)
	case errors.Is(err, relief.ErrBatchConflict):
		r.send(cid, "⚠️ Sila hantar kedua-dua gambar sekali gus.", nil)
	}
}

// FileFetcher downloads photos through the Bot API file endpoint.
type FileFetcher struct {
	Bot  Client
	HTTP *http.Client
}

func (f *FileFetcher) Fetch(ctx context.Context, ph relief.Photo) ([]byte, error) {
	src, err := f.Bot.GetFileDirectURL(ph.FileID)
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}
	hc := f.HTTP
	if hc == nil {
		hc = httpClient()
	}
	return download(ctx, hc, src)
}

func download(ctx context.Context, hc *http.Client, src string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, err
	}
	resp, err := hc.Do(req)
	if err != nil {
		// the URL carries the bot token
		var ue *url.Error
		if errors.As(err, &ue) {
			return nil, fmt.Errorf("download: %w", ue.Err)
		}
		return nil, errors.New("download failed")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("download: status %d: %s", resp.StatusCode, string(b))
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxDownload+1))
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	if len(b) > maxDownload {
		return nil, fmt.Errorf("download: file larger than %d bytes", maxDownload)
	}
	return b, nil
}

func httpClient() *http.Client {
	return &http.Client{Timeout: 60 * time.Second}
}
