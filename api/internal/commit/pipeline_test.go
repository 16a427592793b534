package commit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relief-bot/api/internal/relief"
	"relief-bot/api/internal/session"
)

var jpeg = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00}

type fakeMedia struct{ err error }

func (f fakeMedia) Fetch(_ context.Context, ph relief.Photo) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return append(append([]byte(nil), jpeg...), ph.FileID...), nil
}

type fakeBlobs struct {
	mu   sync.Mutex
	keys []string
	err  error
}

func (f *fakeBlobs) Upload(_ context.Context, _ []byte, key, mime string) (Reference, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return Reference{}, f.err
	}
	f.keys = append(f.keys, key)
	id := fmt.Sprintf("id%d", len(f.keys))
	return Reference{ID: id, URL: "https://blob/" + id + "?" + mime}, nil
}

type part string

func (p part) Name() string { return string(p) }

type row struct {
	part   string
	index  int
	values []any
}

type fakeTable struct {
	mu   sync.Mutex
	rows []row
	err  error
}

func (f *fakeTable) SelectPartition(_ context.Context, d time.Time) (Partition, error) {
	return part(d.Format("2006-01")), nil
}

func (f *fakeTable) Append(_ context.Context, p Partition, values []any) error {
	return f.write(p, -1, values)
}

func (f *fakeTable) InsertAt(_ context.Context, p Partition, index int, values []any) error {
	return f.write(p, index, values)
}

func (f *fakeTable) write(p Partition, index int, values []any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.rows = append(f.rows, row{part: p.Name(), index: index, values: values})
	return nil
}

type fakeNotifier struct {
	mu       sync.Mutex
	confirms []string
	fails    []string
}

func (f *fakeNotifier) Confirm(_ int64, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.confirms = append(f.confirms, text)
}

func (f *fakeNotifier) Fail(_ int64, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fails = append(f.fails, text)
}

var loc = time.FixedZone("MYT", 8*3600)

func fixture(t *testing.T) (*Pipeline, *session.Store, *fakeBlobs, *fakeTable, *fakeNotifier, relief.Submission) {
	t.Helper()
	store := session.NewStore()
	fields := map[relief.Field]string{
		relief.FieldDate:       "2026-10-16",
		relief.FieldTimeSlot:   "8.15–8.45",
		relief.FieldSubstitute: "A",
		relief.FieldAbsent:     "B",
		relief.FieldClass:      "3 Amber",
		relief.FieldSubject:    "Sains",
	}
	var sub relief.Submission
	require.NoError(t, store.Update(5, func(s *relief.Session) error {
		s.Reset(relief.StateAwaitingPhotos)
		s.Generation = 3
		s.UserID = 500
		for k, v := range fields {
			s.Fields[k] = v
		}
		s.Committing = true
		sub = s.Snapshot(&relief.Batch{ID: "b1", Photos: []relief.Photo{{FileID: "P1"}, {FileID: "P2"}}})
		return nil
	}))

	blobs := &fakeBlobs{}
	table := &fakeTable{}
	notify := &fakeNotifier{}
	p := &Pipeline{
		Sessions:    store,
		Media:       fakeMedia{},
		Blobs:       blobs,
		Table:       table,
		Notify:      notify,
		InsertAtTop: true,
		Location:    loc,
		Now:         func() time.Time { return time.Date(2026, time.October, 16, 10, 30, 5, 0, loc) },
	}
	return p, store, blobs, table, notify, sub
}

func TestCommitWritesRecordAndClearsSession(t *testing.T) {
	p, store, blobs, table, notify, sub := fixture(t)

	require.NoError(t, p.Commit(context.Background(), sub))

	assert.Equal(t, []string{"500_20261016_103005_0.jpg", "500_20261016_103005_1.jpg"}, blobs.keys)
	require.Len(t, table.rows, 1)
	r := table.rows[0]
	assert.Equal(t, "2026-10", r.part)
	assert.Equal(t, 0, r.index)
	assert.Equal(t, []any{
		"2026-10-16 10:30:05", "2026-10-16", "8.15–8.45", "A", "B", "3 Amber", "Sains",
		"https://blob/id1?image/jpeg", "https://blob/id2?image/jpeg",
	}, r.values)

	s := store.View(5)
	assert.Equal(t, relief.StateIdle, s.State)
	assert.Empty(t, s.Fields)
	assert.False(t, s.Committing)
	assert.Equal(t, []string{MsgSuccess}, notify.confirms)
	assert.Empty(t, notify.fails)
}

func TestCommitAppendsWhenNotInsertingAtTop(t *testing.T) {
	p, _, _, table, _, sub := fixture(t)
	p.InsertAtTop = false

	require.NoError(t, p.Commit(context.Background(), sub))
	require.Len(t, table.rows, 1)
	assert.Equal(t, -1, table.rows[0].index)
}

func TestCommitSinglePhotoLeavesSecondRefEmpty(t *testing.T) {
	p, _, _, table, _, sub := fixture(t)
	sub.Photos = sub.Photos[:1]

	require.NoError(t, p.Commit(context.Background(), sub))
	require.Len(t, table.rows, 1)
	assert.Equal(t, "", table.rows[0].values[8])
	assert.NotEmpty(t, table.rows[0].values[7])
}

func TestUploadFailurePreservesSession(t *testing.T) {
	p, store, blobs, table, notify, sub := fixture(t)
	blobs.err = errors.New("quota")

	err := p.Commit(context.Background(), sub)
	require.ErrorIs(t, err, relief.ErrUpload)
	assert.Empty(t, table.rows)
	assert.Equal(t, []string{MsgUploadFailed}, notify.fails)

	s := store.View(5)
	assert.Equal(t, relief.StateAwaitingPhotos, s.State)
	assert.Equal(t, "3 Amber", s.Fields[relief.FieldClass])
	assert.False(t, s.Committing)
}

func TestFetchFailureCountsAsUpload(t *testing.T) {
	p, _, _, _, notify, sub := fixture(t)
	p.Media = fakeMedia{err: errors.New("telegram down")}

	err := p.Commit(context.Background(), sub)
	require.ErrorIs(t, err, relief.ErrUpload)
	assert.Equal(t, []string{MsgUploadFailed}, notify.fails)
}

func TestPersistenceFailureReportedDistinctly(t *testing.T) {
	p, store, _, table, notify, sub := fixture(t)
	table.err = errors.New("503")

	err := p.Commit(context.Background(), sub)
	require.ErrorIs(t, err, relief.ErrPersistence)
	assert.NotErrorIs(t, err, relief.ErrUpload)
	assert.Equal(t, []string{MsgPersistFailed}, notify.fails)
	assert.Empty(t, notify.confirms)

	s := store.View(5)
	assert.Equal(t, relief.StateAwaitingPhotos, s.State)
	assert.True(t, s.Complete())
}

func TestCommitDoesNotClearRestartedSession(t *testing.T) {
	p, store, _, table, notify, sub := fixture(t)
	require.NoError(t, store.Update(5, func(s *relief.Session) error {
		s.Reset(relief.StateAwaitingDate)
		s.Generation++
		return nil
	}))

	require.NoError(t, p.Commit(context.Background(), sub))
	assert.Len(t, table.rows, 1)
	assert.Equal(t, relief.StateAwaitingDate, store.View(5).State)
	assert.Len(t, notify.confirms, 1)
}

func TestObjectKey(t *testing.T) {
	at := time.Date(2026, time.January, 2, 3, 4, 5, 0, time.UTC)
	assert.Equal(t, "42_20260102_030405_1.png", ObjectKey(42, at, 1, "image/png"))
}

func TestAsyncCommitsOnOwnGoroutine(t *testing.T) {
	p, store, _, table, notify, sub := fixture(t)

	flush := p.Async(context.Background())
	flush(sub)
	p.Wait()

	assert.Len(t, table.rows, 1)
	assert.Equal(t, []string{MsgSuccess}, notify.confirms)
	assert.Equal(t, relief.StateIdle, store.View(5).State)
}

func TestCommitIncludesAmendedPhoto(t *testing.T) {
	p, _, blobs, table, _, sub := fixture(t)
	late := &relief.Batch{ID: "b1", Photos: []relief.Photo{{FileID: "P1"}}}
	late.Consume()
	sub.Photos = sub.Photos[:1]
	sub.Late = late
	require.True(t, late.Amend(relief.Photo{FileID: "P2"}))

	require.NoError(t, p.Commit(context.Background(), sub))
	assert.Equal(t, []string{"500_20261016_103005_0.jpg", "500_20261016_103005_1.jpg"}, blobs.keys)
	require.Len(t, table.rows, 1)
	assert.Equal(t, "https://blob/id2?image/jpeg", table.rows[0].values[8])
	assert.False(t, late.Amend(relief.Photo{FileID: "P3"}), "sealed after commit")
}

func TestFailedCommitSealsAndForgetsLateBatch(t *testing.T) {
	p, store, blobs, _, _, sub := fixture(t)
	blobs.err = errors.New("quota")
	late := &relief.Batch{ID: "b1", Photos: []relief.Photo{{FileID: "P1"}}}
	late.Consume()
	sub.Photos = sub.Photos[:1]
	sub.Late = late
	require.NoError(t, store.Update(5, func(s *relief.Session) error {
		s.Late = late
		return nil
	}))

	require.ErrorIs(t, p.Commit(context.Background(), sub), relief.ErrUpload)
	assert.False(t, late.Amend(relief.Photo{FileID: "P2"}))
	assert.Nil(t, store.View(5).Late)
}
