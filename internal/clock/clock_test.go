package clock

import (
	"errors"
	"testing"
	"time"

	"github.com/sweeney/bell-scheduler/internal/schedule"
)

// manualClock is a settable real-time source.
type manualClock struct {
	t time.Time
}

func (m *manualClock) now() time.Time { return m.t }

func TestNowWithoutTestMode(t *testing.T) {
	real := &manualClock{t: time.Date(2026, 9, 1, 13, 5, 7, 0, time.Local)}
	c := New(real.now)

	if !c.Now().Equal(real.t) {
		t.Errorf("expected real time %v, got %v", real.t, c.Now())
	}
	if c.State().TestMode {
		t.Error("new clock should not be in test mode")
	}
}

func TestEnableTestAnchorsAtRequestedTime(t *testing.T) {
	real := &manualClock{t: time.Date(2026, 9, 1, 13, 5, 7, 250_000_000, time.Local)}
	c := New(real.now)

	if err := c.EnableTest("08:40"); err != nil {
		t.Fatalf("EnableTest: %v", err)
	}

	got := c.Now()
	if got.Hour() != 8 || got.Minute() != 40 || got.Second() != 7 || got.Nanosecond() != 250_000_000 {
		t.Errorf("expected 08:40:07.25, got %s", got.Format("15:04:05.000"))
	}
	if schedule.DateOf(got) != schedule.DateOf(real.t) {
		t.Errorf("test time should stay on today's date, got %v", got)
	}

	// Logical time keeps running with real time.
	real.t = real.t.Add(90 * time.Second)
	got = c.Now()
	if got.Format("15:04:05") != "08:41:37" {
		t.Errorf("expected 08:41:37 after 90s, got %s", got.Format("15:04:05"))
	}

	st := c.State()
	if !st.TestMode {
		t.Error("expected test mode on")
	}
	want := -(4*time.Hour + 25*time.Minute)
	if st.Offset != want {
		t.Errorf("offset: got %v, want %v", st.Offset, want)
	}
}

func TestDisableTestRestoresRealTime(t *testing.T) {
	real := &manualClock{t: time.Date(2026, 9, 1, 13, 5, 7, 0, time.Local)}
	c := New(real.now)

	if err := c.EnableTest("08:40"); err != nil {
		t.Fatalf("EnableTest: %v", err)
	}
	c.DisableTest()

	if !c.Now().Equal(real.t) {
		t.Errorf("expected real time after disable, got %v", c.Now())
	}
	if st := c.State(); st.TestMode || st.Offset != 0 {
		t.Errorf("expected cleared state, got %+v", st)
	}
}

func TestEnableTestRejectsBadFormat(t *testing.T) {
	c := New(nil)
	err := c.EnableTest("8h40")
	if !errors.Is(err, schedule.ErrInvalidTimeFormat) {
		t.Errorf("expected ErrInvalidTimeFormat, got %v", err)
	}
	if c.State().TestMode {
		t.Error("failed EnableTest must not change state")
	}
}

func TestRestore(t *testing.T) {
	real := &manualClock{t: time.Date(2026, 9, 1, 12, 0, 0, 0, time.Local)}
	c := New(real.now)

	c.Restore(State{TestMode: true, Offset: -time.Hour})
	if got := c.Now().Hour(); got != 11 {
		t.Errorf("expected 11h with restored offset, got %d", got)
	}

	c.Restore(State{TestMode: false, Offset: -time.Hour})
	if !c.Now().Equal(real.t) {
		t.Errorf("offset must be ignored without test mode, got %v", c.Now())
	}
}
