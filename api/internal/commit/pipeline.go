// Package commit turns a flushed photo batch into a stored record.
package commit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"relief-bot/api/internal/relief"
	"relief-bot/api/internal/session"
	"relief-bot/api/internal/util"
)

// MediaSource fetches the raw bytes behind a transport photo handle.
type MediaSource interface {
	Fetch(ctx context.Context, ph relief.Photo) ([]byte, error)
}

type Reference struct {
	ID  string
	URL string
}

type BlobStore interface {
	Upload(ctx context.Context, payload []byte, key, mime string) (Reference, error)
}

// Partition is an opaque destination handle, e.g. one worksheet per month.
type Partition interface {
	Name() string
}

type TabularStore interface {
	SelectPartition(ctx context.Context, date time.Time) (Partition, error)
	Append(ctx context.Context, p Partition, values []any) error
	InsertAt(ctx context.Context, p Partition, index int, values []any) error
}

// Notifier reports the outcome of a commit to the affected chat.
type Notifier interface {
	Confirm(chatID int64, text string)
	Fail(chatID int64, text string)
}

const (
	MsgSuccess          = "✅ Rekod berjaya dihantar."
	MsgUploadFailed     = "❌ Gagal memuat naik gambar. Sila hantar semula gambar."
	MsgPersistFailed    = "❌ Gagal menyimpan data. Sila hantar semula gambar."
	MsgUnexpectedFailed = "❌ Rekod tidak dapat dihantar. Sila cuba lagi."
)

type Pipeline struct {
	Sessions *session.Store
	Media    MediaSource
	Blobs    BlobStore
	Table    TabularStore
	Notify   Notifier

	// InsertAtTop writes new rows directly under the header instead of
	// appending, so the newest record is shown first.
	InsertAtTop bool
	Location    *time.Location
	Timeout     time.Duration

	Now func() time.Time
	Log *slog.Logger

	wg sync.WaitGroup
}

// Async returns a batch flusher that commits each submission on its own
// goroutine, so slow uploads never hold up other chats.
func (p *Pipeline) Async(ctx context.Context) func(relief.Submission) {
	return func(sub relief.Submission) {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			_ = p.Commit(ctx, sub)
		}()
	}
}

// Wait blocks until every commit started through Async has returned.
func (p *Pipeline) Wait() { p.wg.Wait() }

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now().In(p.loc())
	}
	return time.Now().In(p.loc())
}

func (p *Pipeline) loc() *time.Location {
	if p.Location != nil {
		return p.Location
	}
	return time.Local
}

func (p *Pipeline) log() *slog.Logger {
	if p.Log != nil {
		return p.Log
	}
	return slog.Default()
}

// Commit uploads the photos, writes the record and clears the session. On
// failure the session keeps its fields so the user can resend photos.
func (p *Pipeline) Commit(ctx context.Context, sub relief.Submission) error {
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}
	log := p.log().With("chat_id", sub.SessionID, "batch_id", sub.BatchID)

	rec, err := p.store(ctx, sub)
	if err != nil {
		log.Error("commit failed", "error", err)
		p.release(sub)
		p.Notify.Fail(sub.SessionID, failureText(err))
		return err
	}

	cleared := false
	_ = p.Sessions.Update(sub.SessionID, func(s *relief.Session) error {
		if s.Generation != sub.Generation {
			return nil
		}
		s.Reset(relief.StateIdle)
		cleared = true
		return nil
	})
	log.Info("record committed", "date", rec.RecordDate, "class", rec.ClassName, "session_cleared", cleared)
	p.Notify.Confirm(sub.SessionID, MsgSuccess)
	return nil
}

func (p *Pipeline) store(ctx context.Context, sub relief.Submission) (relief.Record, error) {
	if sub.Late != nil {
		defer sub.Late.Seal()
	}
	at := p.now()
	refs := make([]string, 0, relief.PhotosPerRecord)
	if err := p.upload(ctx, sub, at, sub.Photos, &refs); err != nil {
		return relief.Record{}, err
	}
	// A second independent photo may have joined while the first uploaded.
	if sub.Late != nil {
		all := sub.Late.Seal()
		if err := p.upload(ctx, sub, at, all[len(sub.Photos):], &refs); err != nil {
			return relief.Record{}, err
		}
	}

	rec := relief.NewRecord(at, sub.Fields, refs)
	date, err := rec.Date(p.loc())
	if err != nil {
		return rec, fmt.Errorf("%w: record date %q: %w", relief.ErrPersistence, rec.RecordDate, err)
	}
	part, err := p.Table.SelectPartition(ctx, date)
	if err != nil {
		return rec, fmt.Errorf("%w: select partition: %w", relief.ErrPersistence, err)
	}
	if p.InsertAtTop {
		err = p.Table.InsertAt(ctx, part, 0, rec.Values())
	} else {
		err = p.Table.Append(ctx, part, rec.Values())
	}
	if err != nil {
		return rec, fmt.Errorf("%w: write to %s: %w", relief.ErrPersistence, part.Name(), err)
	}
	return rec, nil
}

func (p *Pipeline) upload(ctx context.Context, sub relief.Submission, at time.Time, photos []relief.Photo, refs *[]string) error {
	for _, ph := range photos {
		i := len(*refs)
		payload, err := p.Media.Fetch(ctx, ph)
		if err != nil {
			return fmt.Errorf("%w: fetch photo %d: %w", relief.ErrUpload, i, err)
		}
		mime := util.SniffMimeHTTP(payload)
		ref, err := p.Blobs.Upload(ctx, payload, ObjectKey(sub.UserID, at, i, mime), mime)
		if err != nil {
			return fmt.Errorf("%w: photo %d: %w", relief.ErrUpload, i, err)
		}
		*refs = append(*refs, ref.URL)
	}
	return nil
}

// release lets the same session retry after a failed commit.
func (p *Pipeline) release(sub relief.Submission) {
	_ = p.Sessions.Update(sub.SessionID, func(s *relief.Session) error {
		if s.Generation == sub.Generation {
			s.Committing = false
			s.Late = nil
		}
		return nil
	})
}

func failureText(err error) string {
	switch {
	case errors.Is(err, relief.ErrUpload):
		return MsgUploadFailed
	case errors.Is(err, relief.ErrPersistence):
		return MsgPersistFailed
	default:
		return MsgUnexpectedFailed
	}
}

// ObjectKey is the blob name for photo index of a submission by userID.
func ObjectKey(userID int64, at time.Time, index int, mime string) string {
	return fmt.Sprintf("%d_%s_%d%s", userID, at.Format("20060102_150405"), index, util.ExtForMIME(mime))
}
