package schedule

import (
	"errors"
	"fmt"
)

// Record is the persisted form of a period.
type Record struct {
	N              *int   `yaml:"n" json:"n"`
	Start          string `yaml:"start" json:"start"`
	End            string `yaml:"end" json:"end"`
	RecordingStart string `yaml:"recording_start,omitempty" json:"recording_start,omitempty"`
	RecordingEnd   string `yaml:"recording_end,omitempty" json:"recording_end,omitempty"`
}

// Period converts the record, failing on missing fields or bad times.
func (r Record) Period() (Period, error) {
	if r.N == nil {
		return Period{}, fmt.Errorf("missing sequence number: %w", ErrInvalidPeriod)
	}
	start, err := ParseTimeOfDay(r.Start)
	if err != nil {
		return Period{}, fmt.Errorf("period %d start: %w", *r.N, err)
	}
	end, err := ParseTimeOfDay(r.End)
	if err != nil {
		return Period{}, fmt.Errorf("period %d end: %w", *r.N, err)
	}
	return Period{
		Seq:            *r.N,
		Start:          start,
		End:            end,
		StartRecording: r.RecordingStart,
		EndRecording:   r.RecordingEnd,
	}, nil
}

// RecordOf converts a period to its persisted form.
func RecordOf(p Period) Record {
	n := p.Seq
	return Record{
		N:              &n,
		Start:          p.Start.String(),
		End:            p.End.String(),
		RecordingStart: p.StartRecording,
		RecordingEnd:   p.EndRecording,
	}
}

// FromRecords builds a timetable leniently: malformed records are dropped one
// by one and reported in the returned error (joined), which is informational.
// An empty result falls back to the default timetable.
func FromRecords(records []Record) (*Timetable, error) {
	var (
		periods []Period
		errs    []error
	)
	for i, r := range records {
		p, err := r.Period()
		if err != nil {
			errs = append(errs, fmt.Errorf("schedule row %d: %w", i, err))
			continue
		}
		if !p.Valid() {
			errs = append(errs, fmt.Errorf("schedule row %d: period %d %s-%s: %w", i, p.Seq, p.Start, p.End, ErrInvalidPeriod))
			continue
		}
		periods = append(periods, p)
	}
	if len(periods) == 0 {
		return DefaultTimetable(), errors.Join(errs...)
	}
	return NewTimetable(periods), errors.Join(errs...)
}

// StrictFromRecords is used when a user commits an edited schedule.
// Any malformed row rejects the whole edit; an empty schedule is rejected too.
func StrictFromRecords(records []Record) (*Timetable, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("empty schedule: %w", ErrInvalidPeriod)
	}
	periods := make([]Period, 0, len(records))
	for i, r := range records {
		p, err := r.Period()
		if err != nil {
			return nil, fmt.Errorf("schedule row %d: %w", i, err)
		}
		periods = append(periods, p)
	}
	if err := Validate(periods); err != nil {
		return nil, err
	}
	return NewTimetable(periods), nil
}

// Records converts the timetable to its persisted form, in start order.
func (tt *Timetable) Records() []Record {
	ps := tt.Periods()
	out := make([]Record, len(ps))
	for i, p := range ps {
		out[i] = RecordOf(p)
	}
	return out
}
