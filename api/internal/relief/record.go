package relief

import "time"

const (
	TimestampLayout = "2006-01-02 15:04:05"
	DateLayout      = "2006-01-02"
)

// Record is the row written to the tabular store.
type Record struct {
	SubmittedAt       time.Time
	RecordDate        string
	TimeSlot          string
	SubstituteTeacher string
	AbsentTeacher     string
	ClassName         string
	Subject           string
	Image1Ref         string
	Image2Ref         string
}

// Columns is the header row of every partition, in Values order.
var Columns = []string{
	"Timestamp", "Tarikh", "Masa", "Guru Ganti", "Guru Tidak Hadir",
	"Kelas", "Subjek", "Gambar 1", "Gambar 2",
}

// NewRecord assembles a record from wizard fields and image references.
// refs beyond the second are ignored; a missing second ref is "".
func NewRecord(at time.Time, fields map[Field]string, refs []string) Record {
	r := Record{
		SubmittedAt:       at,
		RecordDate:        fields[FieldDate],
		TimeSlot:          fields[FieldTimeSlot],
		SubstituteTeacher: fields[FieldSubstitute],
		AbsentTeacher:     fields[FieldAbsent],
		ClassName:         fields[FieldClass],
		Subject:           fields[FieldSubject],
	}
	if len(refs) > 0 {
		r.Image1Ref = refs[0]
	}
	if len(refs) > 1 {
		r.Image2Ref = refs[1]
	}
	return r
}

// Values returns the columns in storage order.
func (r Record) Values() []any {
	return []any{
		r.SubmittedAt.Format(TimestampLayout),
		r.RecordDate,
		r.TimeSlot,
		r.SubstituteTeacher,
		r.AbsentTeacher,
		r.ClassName,
		r.Subject,
		r.Image1Ref,
		r.Image2Ref,
	}
}

// Date parses RecordDate in loc.
func (r Record) Date(loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DateLayout, r.RecordDate, loc)
}
