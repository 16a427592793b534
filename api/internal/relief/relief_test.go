package relief

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	c := DefaultCatalog()
	assert.Len(t, c.TimeSlots, 11)
	assert.Contains(t, c.Teachers, "Muhammad Asyraf Bin Abdullah Zawawi")
	assert.Len(t, c.Classes, 18)
	assert.Equal(t, c.Teachers, c.Options(FieldSubstitute))
	assert.Equal(t, c.Teachers, c.Options(FieldAbsent))
	assert.Nil(t, c.Options(FieldDate))
	assert.True(t, c.Allows(FieldSubject, "Sains"))
	assert.False(t, c.Allows(FieldSubject, "Kimia"))
}

func TestParseCatalogValidates(t *testing.T) {
	_, err := ParseCatalog([]byte("time_slots: [a]\nteachers: [b]\nclasses: []\nsubjects: [d]\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "classes is empty")

	long := strings.Repeat("x", MaxOptionBytes+1)
	_, err = ParseCatalog([]byte("time_slots: [a]\nteachers: [" + long + "]\nclasses: [c]\nsubjects: [d]\n"))
	assert.Error(t, err)

	_, err = ParseCatalog([]byte("time_slots: {"))
	assert.Error(t, err)
}

func TestLoadCatalogFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("time_slots: [\"8.00–8.30\"]\nteachers: [A, B]\nclasses: [1 Amber]\nsubjects: [Sains]\n"), 0o600))

	c, err := LoadCatalog(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, c.Teachers)

	c, err = LoadCatalog("")
	require.NoError(t, err)
	assert.NotEmpty(t, c.Subjects)
}

func TestRecordValuesOrder(t *testing.T) {
	at := time.Date(2026, time.October, 16, 10, 30, 5, 0, time.UTC)
	r := NewRecord(at, map[Field]string{
		FieldDate:       "2026-10-15",
		FieldTimeSlot:   "8.15–8.45",
		FieldSubstitute: "A",
		FieldAbsent:     "B",
		FieldClass:      "3 Amber",
		FieldSubject:    "Sains",
	}, []string{"r1"})

	assert.Equal(t, []any{"2026-10-16 10:30:05", "2026-10-15", "8.15–8.45", "A", "B", "3 Amber", "Sains", "r1", ""}, r.Values())
	assert.Len(t, r.Values(), len(Columns))

	d, err := r.Date(time.UTC)
	require.NoError(t, err)
	assert.Equal(t, 15, d.Day())
}

func TestResetDropsBatchAndFields(t *testing.T) {
	s := &Session{Fields: map[Field]string{FieldClass: "3 Amber"}, Committing: true, Late: &Batch{ID: "old"}}
	fired := make(chan struct{}, 1)
	b := &Batch{ID: "b"}
	b.Arm(10*time.Millisecond, func() { fired <- struct{}{} })
	s.Batch = b

	s.Reset(StateAwaitingDate)
	assert.Nil(t, s.Batch)
	assert.Empty(t, s.Fields)
	assert.False(t, s.Committing)
	assert.Nil(t, s.Late)
	assert.True(t, b.Consumed())
	assert.False(t, b.Consume())

	select {
	case <-fired:
		t.Fatal("timer fired after reset")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestComplete(t *testing.T) {
	s := &Session{Fields: map[Field]string{}}
	assert.False(t, s.Complete())
	for _, f := range RequiredFields {
		s.Fields[f] = "x"
	}
	assert.True(t, s.Complete())
}

func TestAmendOnlyFlushedIndependentBatch(t *testing.T) {
	open := &Batch{Photos: []Photo{{FileID: "P1"}}}
	assert.False(t, open.Amend(Photo{FileID: "P2"}), "not flushed yet")

	grouped := &Batch{Key: "album", Photos: []Photo{{FileID: "P1"}}}
	grouped.Consume()
	assert.False(t, grouped.Amend(Photo{FileID: "P2"}))

	b := &Batch{Photos: []Photo{{FileID: "P1"}}}
	b.Consume()
	require.True(t, b.Amend(Photo{FileID: "P2"}))
	assert.False(t, b.Amend(Photo{FileID: "P3"}), "full")
	assert.Equal(t, []Photo{{FileID: "P1"}, {FileID: "P2"}}, b.Seal())

	sealed := &Batch{Photos: []Photo{{FileID: "P1"}}}
	sealed.Consume()
	sealed.Seal()
	assert.False(t, sealed.Amend(Photo{FileID: "P2"}))
}
