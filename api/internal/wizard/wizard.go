// Package wizard drives a chat through the six selections that precede the
// photo upload. Step order lives in the steps table; adding or reordering a
// step is a change to that table only.
package wizard

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"relief-bot/api/internal/calendar"
	"relief-bot/api/internal/relief"
	"relief-bot/api/internal/session"
	"relief-bot/api/internal/util"
)

// Pseudo steps used by prompt options that are not field selections.
const (
	StepStart    = "mula"
	StepCalendar = "cal"
	StepNoop     = "nop"
)

type Option struct {
	Label string
	Step  string
	Value string
}

type Prompt struct {
	Text    string
	State   relief.State
	Options [][]Option
}

// Input is a selection for Step, normally decoded from a button press.
type Input struct {
	Step  relief.Field
	Value string
}

type step struct {
	field relief.Field
	next  relief.State
	text  string
	cols  int
}

var steps = map[relief.State]step{
	relief.StateAwaitingDate:       {field: relief.FieldDate, next: relief.StateAwaitingTimeSlot, text: "📅 Pilih tarikh:"},
	relief.StateAwaitingTimeSlot:   {field: relief.FieldTimeSlot, next: relief.StateAwaitingSubstitute, text: "⏰ Pilih masa:", cols: 2},
	relief.StateAwaitingSubstitute: {field: relief.FieldSubstitute, next: relief.StateAwaitingAbsent, text: "👨‍🏫 Pilih guru ganti:", cols: 1},
	relief.StateAwaitingAbsent:     {field: relief.FieldAbsent, next: relief.StateAwaitingClass, text: "🙅 Pilih guru yang tidak hadir:", cols: 1},
	relief.StateAwaitingClass:      {field: relief.FieldClass, next: relief.StateAwaitingSubject, text: "🏫 Pilih kelas:", cols: 3},
	relief.StateAwaitingSubject:    {field: relief.FieldSubject, next: relief.StateAwaitingPhotos, text: "📚 Pilih subjek:", cols: 2},
}

type Machine struct {
	sessions *session.Store
	catalog  *relief.Catalog
	loc      *time.Location
	now      func() time.Time
	log      *slog.Logger
}

func New(sessions *session.Store, catalog *relief.Catalog, loc *time.Location, log *slog.Logger) *Machine {
	if loc == nil {
		loc = time.Local
	}
	if log == nil {
		log = slog.Default()
	}
	return &Machine{sessions: sessions, catalog: catalog, loc: loc, now: time.Now, log: log}
}

// SetClock replaces the time source used to decide what "today" is.
func (m *Machine) SetClock(now func() time.Time) { m.now = now }

func (m *Machine) today() time.Time { return m.now().In(m.loc) }

// Start resets the session for id and returns the first prompt. Any pending
// photo batch is cancelled and an in-flight commit will no longer clear it.
func (m *Machine) Start(id, userID int64) Prompt {
	var p Prompt
	_ = m.sessions.Update(id, func(s *relief.Session) error {
		if s.Batch != nil {
			m.log.Info("wizard: discarding pending batch", "chat_id", id, "batch_id", s.Batch.ID)
		}
		s.Reset(relief.StateAwaitingDate)
		s.Generation++
		s.UserID = userID
		p = m.prompt(s)
		return nil
	})
	return p
}

// Home abandons any wizard in progress and returns the idle prompt.
func (m *Machine) Home(id, userID int64) Prompt {
	var p Prompt
	_ = m.sessions.Update(id, func(s *relief.Session) error {
		s.Reset(relief.StateIdle)
		s.Generation++
		s.UserID = userID
		p = m.prompt(s)
		return nil
	})
	return p
}

// Advance stores in for the current step and moves to the next one. On any
// error the session is left untouched.
func (m *Machine) Advance(id int64, in Input) (Prompt, error) {
	var p Prompt
	err := m.sessions.Update(id, func(s *relief.Session) error {
		st, ok := steps[s.State]
		if !ok || st.field != in.Step {
			return fmt.Errorf("%w: %q while %s", relief.ErrOutOfOrder, in.Step, s.State)
		}
		if err := m.validate(st.field, in.Value); err != nil {
			return err
		}
		s.Fields[st.field] = in.Value
		s.State = st.next
		if s.State == relief.StateAwaitingPhotos {
			s.DropBatch()
			s.Committing = false
		}
		p = m.prompt(s)
		return nil
	})
	return p, err
}

// Current re-issues the prompt for the session's current state.
func (m *Machine) Current(id int64) Prompt {
	var p Prompt
	_ = m.sessions.Update(id, func(s *relief.Session) error {
		p = m.prompt(s)
		return nil
	})
	return p
}

// Browse renders another month while the date is being chosen. Navigation
// is never refused; future days are rejected when selected.
func (m *Machine) Browse(id int64, year int, month time.Month) (Prompt, error) {
	var p Prompt
	err := m.sessions.Update(id, func(s *relief.Session) error {
		if s.State != relief.StateAwaitingDate {
			return fmt.Errorf("%w: calendar while %s", relief.ErrOutOfOrder, s.State)
		}
		p = m.datePrompt(year, month)
		return nil
	})
	return p, err
}

func (m *Machine) validate(f relief.Field, v string) error {
	if f == relief.FieldDate {
		day, err := calendar.ParseDay(v, m.loc)
		if err != nil {
			return fmt.Errorf("%w: date %q", relief.ErrInvalidSelection, v)
		}
		if calendar.IsFuture(day, m.today()) {
			return fmt.Errorf("%w: %s", relief.ErrFutureDate, v)
		}
		return nil
	}
	if !m.catalog.Allows(f, v) {
		return fmt.Errorf("%w: %s=%q", relief.ErrInvalidSelection, f, v)
	}
	return nil
}

func (m *Machine) prompt(s *relief.Session) Prompt {
	switch s.State {
	case relief.StateIdle:
		return Prompt{
			Text:    "🤖 *Relief Check-In Tracker*\n\nTekan butang untuk mula.",
			State:   s.State,
			Options: [][]Option{{{Label: "📝 Isi Rekod", Step: StepStart}}},
		}
	case relief.StateAwaitingDate:
		t := m.today()
		return m.datePrompt(t.Year(), t.Month())
	case relief.StateAwaitingPhotos:
		return Prompt{
			Text:  Summary(s.Fields) + "\n📸 Sila hantar *2 gambar* kelas.",
			State: s.State,
		}
	}
	st := steps[s.State]
	opts := make([]Option, 0, len(m.catalog.Options(st.field)))
	for _, v := range m.catalog.Options(st.field) {
		opts = append(opts, Option{Label: v, Step: string(st.field), Value: v})
	}
	return Prompt{Text: st.text, State: s.State, Options: calendar.Grid(opts, st.cols)}
}

func (m *Machine) datePrompt(year int, month time.Month) Prompt {
	py, pm := calendar.Shift(year, month, -1)
	ny, nm := calendar.Shift(year, month, 1)

	rows := [][]Option{{
		{Label: "«", Step: StepCalendar, Value: calendar.FormatMonth(py, pm)},
		{Label: calendar.Title(year, month), Step: StepNoop},
		{Label: "»", Step: StepCalendar, Value: calendar.FormatMonth(ny, nm)},
	}}
	header := make([]Option, 0, len(calendar.WeekdayLabels))
	for _, l := range calendar.WeekdayLabels {
		header = append(header, Option{Label: l, Step: StepNoop})
	}
	rows = append(rows, header)
	for _, week := range calendar.Weeks(year, month) {
		row := make([]Option, 0, len(week))
		for _, d := range week {
			if d == 0 {
				row = append(row, Option{Label: " ", Step: StepNoop})
				continue
			}
			row = append(row, Option{
				Label: fmt.Sprint(d),
				Step:  string(relief.FieldDate),
				Value: calendar.FormatDay(year, month, d),
			})
		}
		rows = append(rows, row)
	}
	return Prompt{Text: steps[relief.StateAwaitingDate].text, State: relief.StateAwaitingDate, Options: rows}
}

var summaryLabels = map[relief.Field]string{
	relief.FieldDate:       "Tarikh",
	relief.FieldTimeSlot:   "Masa",
	relief.FieldSubstitute: "Guru ganti",
	relief.FieldAbsent:     "Guru tidak hadir",
	relief.FieldClass:      "Kelas",
	relief.FieldSubject:    "Subjek",
}

// Summary lists the filled fields in wizard order. Values are escaped for
// Markdown.
func Summary(fields map[relief.Field]string) string {
	var b strings.Builder
	for _, f := range relief.RequiredFields {
		if v := fields[f]; v != "" {
			fmt.Fprintf(&b, "• %s: %s\n", summaryLabels[f], util.EscapeMarkdown(v))
		}
	}
	return b.String()
}
