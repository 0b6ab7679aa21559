package logic

import (
	"math"
	"testing"
	"time"
)

func TestProjectBreakScenario(t *testing.T) {
	d := Project(at(1, 8, 42, 0, 0), twoPeriods(), false, false)
	if d.Kind != DisplayInBreak {
		t.Fatalf("expected IN_BREAK, got %s", d.Kind)
	}
	if d.SecondsLeft != 180 {
		t.Errorf("expected 180 seconds left, got %d", d.SecondsLeft)
	}
	if math.Abs(d.Fraction-0.4) > 1e-9 {
		t.Errorf("expected fraction 0.4 (2 of 5 minutes), got %v", d.Fraction)
	}
	if d.String() != "BREAK 03:00" {
		t.Errorf("unexpected text %q", d.String())
	}
}

func TestProjectTimetableStates(t *testing.T) {
	tt := twoPeriods()
	cases := []struct {
		now  time.Time
		kind DisplayKind
		text string
	}{
		{at(1, 7, 0, 0, 0), DisplayCounting, "UNTIL LESSON 1 60:00"},
		{at(1, 8, 10, 30, 0), DisplayInPeriod, "1 LESSON 29:30"},
		{at(1, 9, 24, 59, 0), DisplayInPeriod, "2 LESSON 00:01"},
		{at(1, 9, 25, 0, 0), DisplayDayEnded, "END OF LESSONS"},
	}
	for _, c := range cases {
		d := Project(c.now, tt, false, false)
		if d.Kind != c.kind {
			t.Errorf("%s: expected %s, got %s", c.now.Format("15:04:05"), c.kind, d.Kind)
		}
		if d.String() != c.text {
			t.Errorf("%s: expected %q, got %q", c.now.Format("15:04:05"), c.text, d.String())
		}
	}
}

func TestProjectPriority(t *testing.T) {
	tt := twoPeriods()
	now := at(1, 8, 10, 0, 0)

	if d := Project(now, tt, true, true); d.Kind != DisplayAlarm {
		t.Errorf("alarm must win over silence, got %s", d.Kind)
	}
	if d := Project(now, tt, false, true); d.Kind != DisplayAlarm || d.Title() != "AIR RAID ALERT" {
		t.Errorf("alarm must win over timetable, got %+v", d)
	}
	d := Project(now, tt, true, false)
	if d.Kind != DisplayMinuteOfSilence || d.String() != "MINUTE OF SILENCE" {
		t.Errorf("silence must win over timetable, got %+v", d)
	}
	if d.Fraction != 0 || d.HasCountdown() {
		t.Errorf("silence carries no progress, got %+v", d)
	}
}

func TestProjectEmptyTimetable(t *testing.T) {
	if d := Project(at(1, 8, 0, 0, 0), nil, false, false); d.Kind != DisplayDayEnded {
		t.Errorf("expected DAY_ENDED for nil timetable, got %s", d.Kind)
	}
}

func TestFormatCountdown(t *testing.T) {
	cases := map[int]string{
		0:    "00:00",
		-5:   "00:00",
		59:   "00:59",
		180:  "03:00",
		3700: "61:40",
	}
	for in, want := range cases {
		if got := FormatCountdown(in); got != want {
			t.Errorf("FormatCountdown(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestCounterHeartbeat(t *testing.T) {
	start := at(1, 6, 0, 0, 0)
	c := NewCounter(start)
	c.AddBell(2)
	c.AddAlarm()

	if hb := c.CheckHeartbeat(start.Add(time.Minute), 0); hb != nil {
		t.Error("interval 0 disables heartbeats")
	}
	if hb := c.CheckHeartbeat(start.Add(time.Minute), 15*time.Minute); hb != nil {
		t.Error("heartbeat before interval elapsed")
	}
	hb := c.CheckHeartbeat(start.Add(15*time.Minute), 15*time.Minute)
	if hb == nil {
		t.Fatal("expected heartbeat")
	}
	if hb.Uptime != 15*time.Minute || hb.Counts.Bells != 2 || hb.Counts.Alarms != 1 {
		t.Errorf("unexpected heartbeat %+v", hb)
	}
	if hb := c.CheckHeartbeat(start.Add(16*time.Minute), 15*time.Minute); hb != nil {
		t.Error("heartbeat interval restarts after firing")
	}
}
