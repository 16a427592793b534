package relief

import (
	"maps"
	"sync"
	"time"
)

type State int

const (
	StateIdle State = iota
	StateAwaitingDate
	StateAwaitingTimeSlot
	StateAwaitingSubstitute
	StateAwaitingAbsent
	StateAwaitingClass
	StateAwaitingSubject
	StateAwaitingPhotos
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingDate:
		return "awaiting_date"
	case StateAwaitingTimeSlot:
		return "awaiting_time_slot"
	case StateAwaitingSubstitute:
		return "awaiting_substitute"
	case StateAwaitingAbsent:
		return "awaiting_absent"
	case StateAwaitingClass:
		return "awaiting_class"
	case StateAwaitingSubject:
		return "awaiting_subject"
	case StateAwaitingPhotos:
		return "awaiting_photos"
	default:
		return "unknown"
	}
}

// Field is a wizard field key. Values double as callback step names.
type Field string

const (
	FieldDate       Field = "tarikh"
	FieldTimeSlot   Field = "masa"
	FieldSubstitute Field = "ganti"
	FieldAbsent     Field = "tiada"
	FieldClass      Field = "kelas"
	FieldSubject    Field = "subjek"
)

// RequiredFields lists every field a submission must carry, in wizard order.
var RequiredFields = []Field{FieldDate, FieldTimeSlot, FieldSubstitute, FieldAbsent, FieldClass, FieldSubject}

// Session is the per-chat wizard state. It is only touched through
// session.Store.Update, which serializes access.
type Session struct {
	ID     int64
	UserID int64

	State  State
	Fields map[Field]string

	Batch      *Batch
	Committing bool
	Generation uint64

	// Late is a batch flushed by its timer with a single independent photo.
	// Until its commit starts writing it still takes a second photo.
	Late *Batch

	PromptMessageID int
}

// Reset clears fields and any open batch and moves to state.
func (s *Session) Reset(state State) {
	s.DropBatch()
	s.Late = nil
	s.Fields = make(map[Field]string, len(RequiredFields))
	s.State = state
	s.Committing = false
}

// DropBatch cancels the debounce timer of the open batch and detaches it.
// A timer that already fired finds the batch consumed and does nothing.
func (s *Session) DropBatch() {
	if s.Batch != nil {
		s.Batch.Consume()
		s.Batch = nil
	}
}

// Complete reports whether all required fields are present.
func (s *Session) Complete() bool {
	for _, f := range RequiredFields {
		if s.Fields[f] == "" {
			return false
		}
	}
	return true
}

// PhotosPerRecord is the number of images a complete record carries.
const PhotosPerRecord = 2

// Photo is a transport-level handle to an image; bytes are fetched at commit.
type Photo struct {
	FileID   string
	UniqueID string
}

// Batch groups the one or two photos of a single submission.
type Batch struct {
	ID     string
	Key    string // media group id, "" for independent sends
	Photos []Photo

	mu       sync.Mutex
	timer    *time.Timer
	consumed bool
	sealed   bool
}

// Arm starts the debounce timer. fn runs on its own goroutine.
func (b *Batch) Arm(d time.Duration, fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.timer != nil {
		b.timer.Stop()
	}
	b.timer = time.AfterFunc(d, fn)
}

// Consume marks the batch as flushed or abandoned and stops its timer.
// Returns false if the batch was already consumed.
func (b *Batch) Consume() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.consumed {
		return false
	}
	b.consumed = true
	if b.timer != nil {
		b.timer.Stop()
	}
	return true
}

func (b *Batch) Consumed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.consumed
}

// Amend adds a second independent photo to a batch that was flushed with
// one. It fails once the batch is sealed, full, or correlated.
func (b *Batch) Amend(ph Photo) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.consumed || b.sealed || b.Key != "" || len(b.Photos) >= PhotosPerRecord {
		return false
	}
	b.Photos = append(b.Photos, ph)
	return true
}

// Seal stops further amendments and returns the final photo list.
func (b *Batch) Seal() []Photo {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sealed = true
	return append([]Photo(nil), b.Photos...)
}

// Submission is the snapshot handed from the aggregator to the commit pipeline.
type Submission struct {
	SessionID  int64
	UserID     int64
	Generation uint64
	BatchID    string
	Fields     map[Field]string
	Photos     []Photo

	// Late is set when the batch may still be amended; the commit seals it
	// before writing the record.
	Late *Batch
}

// Snapshot copies everything a commit needs out of the session.
func (s *Session) Snapshot(b *Batch) Submission {
	return Submission{
		SessionID:  s.ID,
		UserID:     s.UserID,
		Generation: s.Generation,
		BatchID:    b.ID,
		Fields:     maps.Clone(s.Fields),
		Photos:     append([]Photo(nil), b.Photos...),
	}
}
