package schedule

import (
	"fmt"
	"sort"
)

// Period is one scheduled lesson.
type Period struct {
	Seq   int
	Start TimeOfDay
	End   TimeOfDay

	// Optional custom recording names played instead of the default bell.
	StartRecording string
	EndRecording   string
}

// Valid reports whether the period is well-formed: both ends inside the day
// and start strictly before end.
func (p Period) Valid() bool {
	return p.Start >= 0 && p.End <= SecondsPerDay && p.Start < p.End
}

// Recording returns the recording name attached to the given boundary.
func (p Period) Recording(atStart bool) string {
	if atStart {
		return p.StartRecording
	}
	return p.EndRecording
}

// SegmentKind identifies what part of the day a time falls into.
type SegmentKind int

const (
	CountingToFirstPeriod SegmentKind = iota
	InPeriod
	InBreak
	DayEnded
)

func (k SegmentKind) String() string {
	switch k {
	case CountingToFirstPeriod:
		return "COUNTING_TO_FIRST_PERIOD"
	case InPeriod:
		return "IN_PERIOD"
	case InBreak:
		return "IN_BREAK"
	case DayEnded:
		return "DAY_ENDED"
	}
	return "UNKNOWN"
}

// Segment is the result of a timetable lookup.
type Segment struct {
	Kind        SegmentKind
	Seq         int     // period sequence, InPeriod only
	SecondsLeft int     // until the segment ends; 0 for DayEnded
	Fraction    float64 // elapsed share of the segment, InPeriod and InBreak only
}

// Timetable is an immutable, start-sorted set of well-formed periods.
// Replace it wholesale; never mutate one in place.
type Timetable struct {
	periods []Period
}

// NewTimetable drops malformed periods and sorts the rest by start.
// The sort is stable so overlapping periods keep their input order.
func NewTimetable(periods []Period) *Timetable {
	kept := make([]Period, 0, len(periods))
	for _, p := range periods {
		if p.Valid() {
			kept = append(kept, p)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Start < kept[j].Start })
	return &Timetable{periods: kept}
}

// Validate applies the strict edit-time rules: every period well-formed and
// sequence numbers unique. The lenient NewTimetable is used everywhere else.
func Validate(periods []Period) error {
	seen := make(map[int]bool, len(periods))
	for _, p := range periods {
		if !p.Valid() {
			return fmt.Errorf("period %d %s-%s: start must be before end: %w", p.Seq, p.Start, p.End, ErrInvalidPeriod)
		}
		if seen[p.Seq] {
			return fmt.Errorf("period %d: duplicate sequence number: %w", p.Seq, ErrInvalidPeriod)
		}
		seen[p.Seq] = true
	}
	return nil
}

// Periods returns a copy of the sorted periods.
func (tt *Timetable) Periods() []Period {
	if tt == nil {
		return nil
	}
	out := make([]Period, len(tt.periods))
	copy(out, tt.periods)
	return out
}

// Len returns the number of periods.
func (tt *Timetable) Len() int {
	if tt == nil {
		return 0
	}
	return len(tt.periods)
}

// ActiveSegment returns the segment containing now.
// Overlapping periods resolve to the first match in start order.
func (tt *Timetable) ActiveSegment(now TimeOfDay) Segment {
	if tt == nil || len(tt.periods) == 0 {
		return Segment{Kind: DayEnded}
	}
	ps := tt.periods

	for _, p := range ps {
		if p.Start <= now && now < p.End {
			return Segment{
				Kind:        InPeriod,
				Seq:         p.Seq,
				SecondsLeft: int(p.End - now),
				Fraction:    progress(p.Start, p.End, now),
			}
		}
	}

	for i := 0; i+1 < len(ps); i++ {
		gapStart, gapEnd := ps[i].End, ps[i+1].Start
		if gapStart <= now && now < gapEnd {
			return Segment{
				Kind:        InBreak,
				SecondsLeft: int(gapEnd - now),
				Fraction:    progress(gapStart, gapEnd, now),
			}
		}
	}

	if now < ps[0].Start {
		return Segment{Kind: CountingToFirstPeriod, SecondsLeft: int(ps[0].Start - now)}
	}

	return Segment{Kind: DayEnded}
}

func progress(start, end, now TimeOfDay) float64 {
	total := end - start
	if total < 1 {
		total = 1
	}
	done := now - start
	if done < 0 {
		done = 0
	}
	if done > total {
		done = total
	}
	return float64(done) / float64(total)
}

// DefaultPeriods is the built-in 12-lesson day.
func DefaultPeriods() []Period {
	raw := [][2]string{
		{"08:00", "08:40"},
		{"08:45", "09:25"},
		{"09:35", "10:15"},
		{"10:20", "11:00"},
		{"11:10", "11:50"},
		{"12:00", "12:40"},
		{"12:45", "13:25"},
		{"13:35", "14:15"},
		{"14:25", "15:05"},
		{"15:10", "15:50"},
		{"15:55", "16:35"},
		{"16:40", "17:20"},
	}
	ps := make([]Period, len(raw))
	for i, r := range raw {
		ps[i] = Period{Seq: i + 1, Start: MustTimeOfDay(r[0]), End: MustTimeOfDay(r[1])}
	}
	return ps
}

// DefaultTimetable returns the built-in 12-lesson timetable.
func DefaultTimetable() *Timetable {
	return NewTimetable(DefaultPeriods())
}
