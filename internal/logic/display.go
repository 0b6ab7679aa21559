package logic

import (
	"fmt"
	"time"

	"github.com/sweeney/bell-scheduler/internal/schedule"
)

// DisplayKind is the priority state shown to the user.
type DisplayKind string

const (
	DisplayCounting        DisplayKind = "COUNTING_TO_FIRST_PERIOD"
	DisplayInPeriod        DisplayKind = "IN_PERIOD"
	DisplayInBreak         DisplayKind = "IN_BREAK"
	DisplayDayEnded        DisplayKind = "DAY_ENDED"
	DisplayMinuteOfSilence DisplayKind = "MINUTE_OF_SILENCE"
	DisplayAlarm           DisplayKind = "ALARM"
)

// DisplayState is recomputed from scratch on every render tick.
type DisplayState struct {
	Kind        DisplayKind `json:"kind"`
	Seq         int         `json:"seq,omitempty"`
	SecondsLeft int         `json:"seconds_left"`
	Fraction    float64     `json:"fraction"`
}

// Project computes what to show at now. ALARM wins over the minute of
// silence, which wins over the timetable.
func Project(now time.Time, tt *schedule.Timetable, silenceActive, alarmActive bool) DisplayState {
	if alarmActive {
		return DisplayState{Kind: DisplayAlarm}
	}
	if silenceActive {
		return DisplayState{Kind: DisplayMinuteOfSilence}
	}

	seg := tt.ActiveSegment(schedule.TimeOfDayOf(now))
	switch seg.Kind {
	case schedule.InPeriod:
		return DisplayState{Kind: DisplayInPeriod, Seq: seg.Seq, SecondsLeft: seg.SecondsLeft, Fraction: seg.Fraction}
	case schedule.InBreak:
		return DisplayState{Kind: DisplayInBreak, SecondsLeft: seg.SecondsLeft, Fraction: seg.Fraction}
	case schedule.CountingToFirstPeriod:
		return DisplayState{Kind: DisplayCounting, SecondsLeft: seg.SecondsLeft}
	}
	return DisplayState{Kind: DisplayDayEnded}
}

// Title is the headline text for the state.
func (d DisplayState) Title() string {
	switch d.Kind {
	case DisplayAlarm:
		return "AIR RAID ALERT"
	case DisplayMinuteOfSilence:
		return "MINUTE OF SILENCE"
	case DisplayInPeriod:
		return fmt.Sprintf("%d LESSON", d.Seq)
	case DisplayInBreak:
		return "BREAK"
	case DisplayCounting:
		return "UNTIL LESSON 1"
	}
	return "END OF LESSONS"
}

// HasCountdown reports whether the state carries a countdown.
func (d DisplayState) HasCountdown() bool {
	switch d.Kind {
	case DisplayInPeriod, DisplayInBreak, DisplayCounting:
		return true
	}
	return false
}

// Countdown formats the seconds left as MM:SS, or "" for states without one.
func (d DisplayState) Countdown() string {
	if !d.HasCountdown() {
		return ""
	}
	return FormatCountdown(d.SecondsLeft)
}

// String renders title and countdown on one line.
func (d DisplayState) String() string {
	if c := d.Countdown(); c != "" {
		return d.Title() + " " + c
	}
	return d.Title()
}

// FormatCountdown formats seconds as MM:SS. Minutes are not wrapped into
// hours, so 3700 seconds is "61:40". Negative input counts as zero.
func FormatCountdown(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
