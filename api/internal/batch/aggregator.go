// Package batch groups photo arrivals into submissions of at most two images.
//
// Two triggers can flush a batch: the second photo arriving, or the debounce
// timer expiring. Both go through detach under the session lock, and only
// the first one to get there sees the batch still attached and unconsumed.
//
// A timer flush of a single independent photo leaves the batch open for
// amendment: a second independent photo arriving before the commit starts
// writing joins the same record.
package batch

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"relief-bot/api/internal/relief"
	"relief-bot/api/internal/session"
)

const (
	DefaultDebounce = 1500 * time.Millisecond
	MaxPhotos       = relief.PhotosPerRecord
)

// Flusher receives each submission exactly once. It is called without any
// session lock held, either on the caller's goroutine or the timer's.
type Flusher func(relief.Submission)

type Outcome int

const (
	Opened Outcome = iota + 1
	Appended
	Flushed
	Amended
)

func (o Outcome) String() string {
	switch o {
	case Opened:
		return "opened"
	case Appended:
		return "appended"
	case Flushed:
		return "flushed"
	case Amended:
		return "amended"
	default:
		return "none"
	}
}

type Aggregator struct {
	sessions *session.Store
	debounce time.Duration
	flush    Flusher
	log      *slog.Logger

	// expiring counts timer callbacks between detach and the flusher call.
	expiring sync.WaitGroup
}

func New(sessions *session.Store, debounce time.Duration, flush Flusher, log *slog.Logger) *Aggregator {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if log == nil {
		log = slog.Default()
	}
	return &Aggregator{sessions: sessions, debounce: debounce, flush: flush, log: log}
}

// OnPhoto adds a photo to the open batch of session id, opening one if
// needed. key is the transport's correlation id ("" for independent sends).
func (a *Aggregator) OnPhoto(id int64, ph relief.Photo, key string) (Outcome, error) {
	var (
		out   Outcome
		sub   relief.Submission
		ready bool
	)
	err := a.sessions.Update(id, func(s *relief.Session) error {
		if s.State != relief.StateAwaitingPhotos || !s.Complete() {
			return fmt.Errorf("%w: %s", relief.ErrNotAcceptingPhotos, s.State)
		}
		if s.Committing {
			if key == "" && s.Late != nil && s.Late.Amend(ph) {
				out = Amended
				return nil
			}
			return relief.ErrSubmissionInFlight
		}

		b := s.Batch
		if b == nil {
			b = &relief.Batch{ID: uuid.NewString(), Key: key, Photos: []relief.Photo{ph}}
			s.Batch = b
			b.Arm(a.debounce, func() { a.expire(id, b) })
			out = Opened
			return nil
		}
		if b.Key != key {
			return fmt.Errorf("%w: open=%q got=%q", relief.ErrBatchConflict, b.Key, key)
		}

		// A timer that already fired but still waits for the lock loses here.
		b.Photos = append(b.Photos, ph)
		if len(b.Photos) >= MaxPhotos {
			sub, ready = a.detach(s, b, false)
			out = Flushed
			return nil
		}
		out = Appended
		return nil
	})
	if ready {
		a.log.Info("batch: flushed", "chat_id", id, "batch_id", sub.BatchID, "photos", len(sub.Photos), "trigger", "count")
		a.flush(sub)
	}
	if out == Amended {
		a.log.Info("batch: amended", "chat_id", id, "file_id", ph.FileID)
	}
	return out, err
}

// expire is the debounce timer callback for b.
func (a *Aggregator) expire(id int64, b *relief.Batch) {
	var (
		sub   relief.Submission
		ready bool
	)
	_ = a.sessions.Update(id, func(s *relief.Session) error {
		sub, ready = a.detach(s, b, true)
		if ready {
			a.expiring.Add(1)
		}
		return nil
	})
	if !ready {
		return
	}
	defer a.expiring.Done()
	a.log.Info("batch: flushed", "chat_id", id, "batch_id", sub.BatchID, "photos", len(sub.Photos), "trigger", "timeout")
	a.flush(sub)
}

// Close flushes every open batch and waits for timer callbacks that are
// already flushing. After Close returns no flusher call is in progress or
// pending, so the caller can wait for commits to drain. OnPhoto must not be
// called concurrently with or after Close.
func (a *Aggregator) Close() {
	var subs []relief.Submission
	a.sessions.Range(func(s *relief.Session) {
		if s.Batch == nil {
			return
		}
		if sub, ok := a.detach(s, s.Batch, false); ok {
			subs = append(subs, sub)
		}
	})
	for _, sub := range subs {
		a.log.Info("batch: flushed", "chat_id", sub.SessionID, "batch_id", sub.BatchID, "photos", len(sub.Photos), "trigger", "shutdown")
		a.flush(sub)
	}
	a.expiring.Wait()
}

// detach consumes b if it is still the session's open batch. Callers must
// hold the session lock; a false result means another trigger won. A
// timeout flush of a lone independent photo stays amendable.
func (a *Aggregator) detach(s *relief.Session, b *relief.Batch, timeout bool) (relief.Submission, bool) {
	if s.Batch != b || !b.Consume() {
		return relief.Submission{}, false
	}
	s.Batch = nil
	s.Committing = true
	sub := s.Snapshot(b)
	if timeout && b.Key == "" && len(b.Photos) < MaxPhotos {
		s.Late = b
		sub.Late = b
	}
	return sub, true
}
