package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/bell-scheduler/internal/alert"
	"github.com/sweeney/bell-scheduler/internal/audio"
	"github.com/sweeney/bell-scheduler/internal/clock"
	"github.com/sweeney/bell-scheduler/internal/config"
	"github.com/sweeney/bell-scheduler/internal/gpio"
	"github.com/sweeney/bell-scheduler/internal/logic"
	"github.com/sweeney/bell-scheduler/internal/metrics"
	"github.com/sweeney/bell-scheduler/internal/mqtt"
	"github.com/sweeney/bell-scheduler/internal/power"
	"github.com/sweeney/bell-scheduler/internal/schedule"
	"github.com/sweeney/bell-scheduler/internal/status"
	"github.com/sweeney/bell-scheduler/internal/store"
)

var day = time.Date(2026, 9, 1, 0, 0, 0, 0, time.Local)

func at(h, m, s, ms int) time.Time {
	return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second + time.Duration(ms)*time.Millisecond)
}

type fakePersist struct {
	mu   sync.Mutex
	file config.File
	n    int
	err  error
}

func (p *fakePersist) Update(fn func(*config.File)) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	fn(&p.file)
	p.n++
	return nil
}

func (p *fakePersist) saved() (config.File, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.file, p.n
}

type harness struct {
	eng     *Engine
	now     time.Time
	dir     string
	player  *audio.FakePlayer
	pub     *mqtt.FakePublisher
	power   *power.FakeActions
	relay   *gpio.FakeRelay
	tracker *status.Tracker
	persist *fakePersist
	store   *store.Store
}

func soundDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range []string{"start.wav", "end.wav", "siren.wav", "silence.wav", "anthem.wav"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

func testSettings(dir string) config.Settings {
	return config.Settings{
		SilenceEnabled: true,
		Sounds: audio.Sounds{
			BaseDir:     dir,
			LessonStart: "start.wav",
			LessonEnd:   "end.wav",
			Siren:       "siren.wav",
			Silence:     "silence.wav",
		},
	}
}

func newHarness(t *testing.T, mutate func(*Options)) *harness {
	t.Helper()
	h := &harness{
		now:     at(7, 0, 0, 0),
		dir:     soundDir(t),
		player:  audio.NewFakePlayer(),
		pub:     mqtt.NewFakePublisher(),
		power:   power.NewFakeActions(),
		relay:   gpio.NewFakeRelay(),
		persist: &fakePersist{file: config.Defaults()},
	}
	h.tracker = status.NewTracker(h.now, status.Config{})

	st, err := store.Open("")
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	h.store = st

	rec, _ := metrics.New(nil)
	opts := Options{
		Clock:     clock.New(func() time.Time { return h.now }),
		Settings:  testSettings(h.dir),
		Registry:  audio.NewRegistry(map[string]audio.Recording{"anthem": {Path: "anthem.wav"}}),
		Player:    h.player,
		Power:     h.power,
		Relay:     h.relay,
		Publisher: h.pub,
		Tracker:   h.tracker,
		Metrics:   rec,
		Store:     st,
		Persist:   h.persist,
		Length:    func(string) (time.Duration, error) { return 30 * time.Second, nil },
	}
	if mutate != nil {
		mutate(&opts)
	}
	h.eng = New(opts)
	return h
}

// run ticks the worker every step from start until end (exclusive) and
// returns every bell rung.
func (h *harness) run(start, end time.Time, step time.Duration) []logic.BellEvent {
	var all []logic.BellEvent
	for ts := start; ts.Before(end); ts = ts.Add(step) {
		h.now = ts
		all = append(all, h.eng.WorkerTick(ts)...)
	}
	return all
}

func TestBellRingsOncePerMinute(t *testing.T) {
	h := newHarness(t, nil)

	events := h.run(at(7, 59, 59, 0), at(8, 1, 0, 0), 200*time.Millisecond)
	if len(events) != 1 {
		t.Fatalf("got %d bells, want 1", len(events))
	}
	ev := events[0]
	if ev.Seq != 1 || ev.Boundary != logic.BoundaryStart || ev.Key.HHMM != "08:00" {
		t.Errorf("unexpected bell %+v", ev)
	}
	if got := h.player.PlayedPaths(); len(got) != 1 || got[0] != filepath.Join(h.dir, "start.wav") {
		t.Errorf("played %v, want start.wav", got)
	}
	if h.relay.RingCount() != 1 {
		t.Errorf("relay rang %d times, want 1", h.relay.RingCount())
	}
	if h.pub.BellCount() != 1 {
		t.Errorf("published %d bells, want 1", h.pub.BellCount())
	}
	snap := h.tracker.Snapshot()
	if snap.LastBell == nil || snap.LastBell.Seq != 1 {
		t.Errorf("tracker last bell = %+v", snap.LastBell)
	}
	if snap.Counts.Bells != 1 {
		t.Errorf("tracker bells = %d, want 1", snap.Counts.Bells)
	}
}

func TestBellFiresOnceAcrossSubSecondTicks(t *testing.T) {
	h := newHarness(t, nil)

	first := h.eng.WorkerTick(at(8, 0, 0, 0))
	second := h.eng.WorkerTick(at(8, 0, 0, 200))
	if len(first) != 1 || len(second) != 0 {
		t.Errorf("got %d then %d bells, want 1 then 0", len(first), len(second))
	}
}

func TestEndAndStartInSameMinuteBothRing(t *testing.T) {
	h := newHarness(t, nil)
	n1, n2 := 1, 2
	err := h.eng.ApplyTimetable([]schedule.Record{
		{N: &n1, Start: "08:00", End: "08:40"},
		{N: &n2, Start: "08:40", End: "09:20"},
	})
	if err != nil {
		t.Fatalf("ApplyTimetable: %v", err)
	}

	events := h.eng.WorkerTick(at(8, 40, 0, 0))
	if len(events) != 2 {
		t.Fatalf("got %d bells, want 2", len(events))
	}
	if h.relay.RingCount() != 2 {
		t.Errorf("relay rang %d times, want 2", h.relay.RingCount())
	}
}

func TestNamedRecordingAndFallback(t *testing.T) {
	h := newHarness(t, nil)
	n1, n2 := 1, 2
	err := h.eng.ApplyTimetable([]schedule.Record{
		{N: &n1, Start: "08:00", End: "08:40", RecordingStart: "anthem"},
		{N: &n2, Start: "10:00", End: "10:40", RecordingStart: "missing"},
	})
	if err != nil {
		t.Fatalf("ApplyTimetable: %v", err)
	}

	h.eng.WorkerTick(at(8, 0, 0, 0))
	h.eng.WorkerTick(at(10, 0, 0, 0))

	got := h.player.PlayedPaths()
	want := []string{filepath.Join(h.dir, "anthem.wav"), filepath.Join(h.dir, "start.wav")}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("played %v, want %v", got, want)
	}
}

func TestMissingSoundKeepsKeyFired(t *testing.T) {
	h := newHarness(t, func(o *Options) {
		o.Settings.Sounds.LessonStart = "gone.wav"
	})

	if events := h.eng.WorkerTick(at(8, 0, 0, 0)); len(events) != 1 {
		t.Fatalf("got %d bells, want 1", len(events))
	}
	if len(h.player.PlayedPaths()) != 0 {
		t.Errorf("played %v, want nothing", h.player.PlayedPaths())
	}
	if h.relay.RingCount() != 1 {
		t.Errorf("relay should still ring, got %d", h.relay.RingCount())
	}
	if events := h.eng.WorkerTick(at(8, 0, 0, 400)); len(events) != 0 {
		t.Errorf("bell repeated after sound failure")
	}
}

func TestSilentModeSuppressesBells(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.Settings.SilentMode = true })

	if events := h.run(at(8, 0, 0, 0), at(8, 0, 1, 0), 200*time.Millisecond); len(events) != 0 {
		t.Errorf("got %d bells in silent mode", len(events))
	}
	if h.eng.Ledger().Len() != 0 {
		t.Errorf("suppressed bells must not be marked fired")
	}
}

func TestAlarmSuppressesBellsAndLoopsSiren(t *testing.T) {
	h := newHarness(t, nil)
	h.now = at(7, 59, 0, 0)

	if !h.eng.SetAlarm(true) {
		t.Fatal("SetAlarm(true) should report a change")
	}
	if h.eng.SetAlarm(true) {
		t.Error("repeating SetAlarm(true) should be a no-op")
	}
	if !h.player.Looping() {
		t.Error("siren should loop")
	}
	if h.player.StopCount() != 1 {
		t.Errorf("entering alarm should stop the current track once, got %d", h.player.StopCount())
	}
	if d := h.eng.Render(at(8, 0, 0, 0)); d.Kind != logic.DisplayAlarm {
		t.Errorf("display = %s, want ALARM", d.Kind)
	}

	if events := h.run(at(8, 0, 0, 0), at(8, 0, 1, 0), 200*time.Millisecond); len(events) != 0 {
		t.Errorf("got %d bells during alarm", len(events))
	}

	h.eng.SetAlarm(false)
	if h.player.Looping() {
		t.Error("siren should stop when the alarm ends")
	}

	names := h.pub.SystemEventNames()
	if len(names) != 2 || names[0] != mqtt.EventAlarmOn || names[1] != mqtt.EventAlarmOff {
		t.Errorf("system events = %v", names)
	}
	if h.tracker.Snapshot().Alarm {
		t.Error("tracker should show alarm off")
	}
}

func TestAlarmBlocksMinuteOfSilence(t *testing.T) {
	h := newHarness(t, nil)
	h.eng.SetAlarm(true)

	h.run(at(9, 0, 0, 0), at(9, 0, 3, 0), 200*time.Millisecond)
	if h.eng.silence.Active() {
		t.Error("minute of silence entered during alarm")
	}
	if len(h.player.PlayedPaths()) != 0 {
		t.Errorf("played %v during alarm", h.player.PlayedPaths())
	}
}

func TestMinuteOfSilence(t *testing.T) {
	h := newHarness(t, nil)
	n := 1
	if err := h.eng.ApplyTimetable([]schedule.Record{{N: &n, Start: "08:20", End: "09:00"}}); err != nil {
		t.Fatal(err)
	}

	events := h.run(at(9, 0, 0, 0), at(9, 0, 1, 0), 200*time.Millisecond)
	if len(events) != 0 {
		t.Errorf("bell rang during minute of silence: %v", events)
	}
	if d := h.eng.Render(at(9, 0, 10, 0)); d.Kind != logic.DisplayMinuteOfSilence {
		t.Errorf("display = %s, want MINUTE_OF_SILENCE", d.Kind)
	}
	if got := h.player.PlayedPaths(); len(got) != 1 || got[0] != filepath.Join(h.dir, "silence.wav") {
		t.Errorf("played %v, want silence.wav", got)
	}

	// Injected length is 30s, so the window is 31s.
	h.run(at(9, 0, 30, 0), at(9, 0, 31, 0), 200*time.Millisecond)
	if !h.eng.silence.Active() {
		t.Error("window closed early")
	}
	h.run(at(9, 0, 31, 0), at(9, 0, 32, 0), 200*time.Millisecond)
	if h.eng.silence.Active() {
		t.Error("window still open after its end")
	}

	names := h.pub.SystemEventNames()
	if len(names) != 2 || names[0] != mqtt.EventSilenceStart || names[1] != mqtt.EventSilenceEnd {
		t.Errorf("system events = %v", names)
	}

	// Once per day.
	h.run(at(9, 0, 0, 0), at(9, 0, 2, 0), 200*time.Millisecond)
	if h.eng.silence.Active() {
		t.Error("minute of silence entered twice in one day")
	}
}

func TestMinuteOfSilenceInSilentModeIsQuiet(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.Settings.SilentMode = true })

	h.eng.WorkerTick(at(9, 0, 0, 0))
	if !h.eng.silence.Active() {
		t.Fatal("minute of silence should start in silent mode")
	}
	if len(h.player.PlayedPaths()) != 0 {
		t.Errorf("played %v in silent mode", h.player.PlayedPaths())
	}
}

func TestDisablingSilenceClearsIt(t *testing.T) {
	h := newHarness(t, nil)
	h.eng.WorkerTick(at(9, 0, 0, 0))
	if !h.eng.silence.Active() {
		t.Fatal("minute of silence should be active")
	}
	stops := h.player.StopCount()

	s := h.eng.Settings()
	s.SilenceEnabled = false
	h.eng.ModifySettings(func(config.Settings) (config.Settings, error) { return s, nil })
	h.eng.WorkerTick(at(9, 0, 5, 0))

	if h.eng.silence.Active() {
		t.Error("minute of silence should be cleared")
	}
	if h.player.StopCount() != stops+1 {
		t.Error("clearing should stop the silence track")
	}
	names := h.pub.SystemEventNames()
	last := h.pub.SystemEvents[len(names)-1]
	if last.Event != mqtt.EventSilenceEnd || last.Reason != "disabled" {
		t.Errorf("last system event = %+v", last)
	}
}

func TestDailyTriggersFireOncePerDay(t *testing.T) {
	h := newHarness(t, func(o *Options) {
		o.Settings.Shutdown = logic.TriggerConfig{Enabled: true, At: schedule.MustTimeOfDay("18:00")}
		o.Settings.Hibernate = logic.TriggerConfig{Enabled: true, At: schedule.MustTimeOfDay("18:30")}
	})

	h.run(at(18, 0, 0, 0), at(18, 0, 2, 0), 200*time.Millisecond)
	h.run(at(18, 30, 0, 0), at(18, 30, 2, 0), 200*time.Millisecond)
	h.run(at(18, 0, 0, 0), at(18, 0, 1, 0), 200*time.Millisecond)

	shut, hib := h.power.Counts()
	if shut != 1 || hib != 1 {
		t.Errorf("shutdowns=%d hibernates=%d, want 1 and 1", shut, hib)
	}

	st, err := h.store.Load(schedule.DateOf(day))
	if err != nil {
		t.Fatal(err)
	}
	if st.TriggersFired[logic.TriggerShutdown] != schedule.DateOf(day) {
		t.Errorf("shutdown date not persisted: %+v", st.TriggersFired)
	}

	snap := h.tracker.Snapshot()
	if snap.Shutdown.LastFired != "2026-09-01" || snap.Hibernate.At != "18:30" {
		t.Errorf("trigger info = %+v / %+v", snap.Shutdown, snap.Hibernate)
	}
}

func TestFailedPowerActionIsNotRetried(t *testing.T) {
	h := newHarness(t, func(o *Options) {
		o.Settings.Shutdown = logic.TriggerConfig{Enabled: true, At: schedule.MustTimeOfDay("18:00")}
	})
	h.power.Err = errors.New("permission denied")

	h.run(at(18, 0, 0, 0), at(18, 0, 1, 0), 200*time.Millisecond)
	if shut, _ := h.power.Counts(); shut != 1 {
		t.Errorf("shutdowns = %d, want 1", shut)
	}

	var found bool
	for _, ev := range h.pub.SystemEvents {
		if ev.Event == mqtt.EventPowerShutdown {
			found = true
			if ev.Reason == "" {
				t.Error("failed power action should carry the error as reason")
			}
		}
	}
	if !found {
		t.Error("POWER_SHUTDOWN not published")
	}
}

func TestRestoreSkipsWhatAlreadyHappened(t *testing.T) {
	h := newHarness(t, func(o *Options) {
		o.Settings.Shutdown = logic.TriggerConfig{Enabled: true, At: schedule.MustTimeOfDay("18:00")}
	})
	h.eng.WorkerTick(at(8, 0, 0, 0))
	h.eng.WorkerTick(at(9, 0, 0, 0))
	h.eng.WorkerTick(at(18, 0, 0, 0))

	// A second engine on the same store, as after a restart.
	restarted := New(Options{
		Clock:    clock.New(func() time.Time { return at(18, 0, 0, 500) }),
		Settings: h.eng.Settings(),
		Player:   audio.NewFakePlayer(),
		Power:    h.power,
		Store:    h.store,
	})
	if err := restarted.Restore(at(18, 0, 0, 500)); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if !restarted.Ledger().Fired(logic.FiringKey{Date: schedule.DateOf(day), HHMM: "08:00", Boundary: logic.BoundaryStart, Seq: 1}) {
		t.Error("08:00 bell should be restored as fired")
	}
	if events := restarted.WorkerTick(at(8, 0, 0, 600)); len(events) != 0 {
		t.Errorf("restored bell rang again: %v", events)
	}
	restarted.WorkerTick(at(18, 0, 0, 700))
	if shut, _ := h.power.Counts(); shut != 1 {
		t.Errorf("shutdown ran %d times across restart, want 1", shut)
	}
	restarted.WorkerTick(at(9, 0, 1, 0))
	if restarted.silence.Active() {
		t.Error("minute of silence repeated after restart")
	}
}

func TestApplyTimetableIsStrict(t *testing.T) {
	h := newHarness(t, nil)
	n1, n2 := 1, 2
	err := h.eng.ApplyTimetable([]schedule.Record{
		{N: &n1, Start: "08:00", End: "08:40"},
		{N: &n2, Start: "8h", End: "09:20"},
	})
	if !errors.Is(err, schedule.ErrInvalidTimeFormat) {
		t.Errorf("err = %v, want ErrInvalidTimeFormat", err)
	}
	if h.eng.Timetable().Len() != 12 {
		t.Error("timetable should be unchanged after a rejected apply")
	}
	if _, n := h.persist.saved(); n != 0 {
		t.Error("rejected timetable should not be saved")
	}

	err = h.eng.ApplyTimetable([]schedule.Record{{N: &n1, Start: "09:00", End: "08:00"}})
	if !errors.Is(err, schedule.ErrInvalidPeriod) {
		t.Errorf("err = %v, want ErrInvalidPeriod", err)
	}

	if err := h.eng.ApplyTimetable([]schedule.Record{{N: &n1, Start: "10:00", End: "10:45"}}); err != nil {
		t.Fatal(err)
	}
	f, _ := h.persist.saved()
	if len(f.Schedule) != 1 || f.Schedule[0].Start != "10:00" {
		t.Errorf("saved schedule = %+v", f.Schedule)
	}
}

func TestTestTime(t *testing.T) {
	h := newHarness(t, nil)
	h.now = at(7, 0, 10, 0)

	if err := h.eng.EnableTestTime("25:00"); !errors.Is(err, schedule.ErrInvalidTimeFormat) {
		t.Errorf("err = %v, want ErrInvalidTimeFormat", err)
	}
	if err := h.eng.EnableTestTime("08:40"); err != nil {
		t.Fatal(err)
	}
	if got := h.eng.Clock().Now(); schedule.HHMM(got) != "08:40" || got.Second() != 10 {
		t.Errorf("logical now = %v, want 08:40:10", got)
	}
	f, _ := h.persist.saved()
	if !f.TestMode || f.TestOffset != int64(100*60) {
		t.Errorf("saved test mode=%v offset=%d", f.TestMode, f.TestOffset)
	}

	h.eng.DisableTestTime()
	if !h.eng.Clock().Now().Equal(h.now) {
		t.Error("disabling test time should return to real time")
	}
	f, _ = h.persist.saved()
	if f.TestMode || f.TestOffset != 0 {
		t.Errorf("saved test mode=%v offset=%d after disable", f.TestMode, f.TestOffset)
	}
}

func TestModifySettingsKeepsBaseDirAndPersists(t *testing.T) {
	h := newHarness(t, nil)
	s := config.Settings{
		SilentMode: true,
		Sounds:     audio.Sounds{LessonStart: "start.wav"},
		Shutdown:   logic.TriggerConfig{Enabled: true, At: schedule.MustTimeOfDay("17:45")},
	}
	h.eng.ModifySettings(func(config.Settings) (config.Settings, error) { return s, nil })

	got := h.eng.Settings()
	if got.Sounds.BaseDir != h.dir {
		t.Errorf("base dir = %q, want %q", got.Sounds.BaseDir, h.dir)
	}
	if !got.SilentMode || h.eng.shutdown.Config().At.String() != "17:45" {
		t.Errorf("settings not applied: %+v", got)
	}
	f, n := h.persist.saved()
	if n != 1 || !f.SilentMode || !f.ShutdownEnabled || f.ShutdownTime != "17:45" {
		t.Errorf("saved %d times: %+v", n, f)
	}
}

func TestModifySettingsErrorChangesNothing(t *testing.T) {
	h := newHarness(t, nil)
	before := h.eng.Settings()
	_, err := h.eng.ModifySettings(func(cur config.Settings) (config.Settings, error) {
		cur.SilentMode = true
		return cur, errors.New("bad time")
	})
	if err == nil {
		t.Fatal("expected the error from fn")
	}
	if h.eng.Settings().SilentMode != before.SilentMode {
		t.Error("settings changed despite the error")
	}
	if _, n := h.persist.saved(); n != 0 {
		t.Errorf("saved %d times, want 0", n)
	}
}

func TestAddRecording(t *testing.T) {
	h := newHarness(t, nil)
	if err := os.WriteFile(filepath.Join(h.dir, "hymn.wav"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := h.eng.AddRecording("hymn", "hymn.wav"); err != nil {
		t.Fatalf("AddRecording: %v", err)
	}
	if !h.eng.Registry().Has("hymn") {
		t.Error("hymn not registered")
	}
	f, _ := h.persist.saved()
	if f.Recordings["hymn"].Path != "hymn.wav" {
		t.Errorf("saved recordings = %+v", f.Recordings)
	}

	if err := h.eng.AddRecording("ghost", "ghost.wav"); !errors.Is(err, audio.ErrResourceUnavailable) {
		t.Errorf("missing file: got %v, want ErrResourceUnavailable", err)
	}
	if err := h.eng.AddRecording("", "hymn.wav"); !errors.Is(err, ErrInvalidName) {
		t.Errorf("blank name: got %v, want ErrInvalidName", err)
	}
	if err := h.eng.AddRecording("hymn", "hymn.wav"); !errors.Is(err, audio.ErrRecordingExists) {
		t.Errorf("duplicate: got %v, want ErrRecordingExists", err)
	}
}

func TestPersistFailureIsSwallowed(t *testing.T) {
	h := newHarness(t, nil)
	h.persist.err = errors.New("read-only file system")
	if err := h.eng.EnableTestTime("08:00"); err != nil {
		t.Errorf("persist failure should not fail the operation: %v", err)
	}
}

func TestApplyConfig(t *testing.T) {
	h := newHarness(t, nil)
	f := config.Defaults()
	n := 1
	f.Schedule = []schedule.Record{{N: &n, Start: "10:00", End: "10:40"}}
	f.SilentMode = true
	f.TestMode = true
	f.TestOffset = 3600
	f.Recordings = map[string]audio.Recording{"bells": {Path: "bells.wav"}}

	h.eng.ApplyConfig(f)

	if h.eng.Timetable().Len() != 1 {
		t.Errorf("periods = %d, want 1", h.eng.Timetable().Len())
	}
	if !h.eng.Settings().SilentMode {
		t.Error("silent mode not applied")
	}
	if st := h.eng.Clock().State(); !st.TestMode || st.Offset != time.Hour {
		t.Errorf("clock = %+v", st)
	}
	if h.eng.Registry().Has("anthem") || !h.eng.Registry().Has("bells") {
		t.Errorf("registry = %v", h.eng.Registry().All())
	}
	if _, n := h.persist.saved(); n != 0 {
		t.Error("applying a loaded config must not save it back")
	}
}

func TestRenameAndDeleteRecording(t *testing.T) {
	h := newHarness(t, nil)

	if err := h.eng.RenameRecording("anthem", " "); !errors.Is(err, ErrInvalidName) {
		t.Errorf("err = %v, want ErrInvalidName", err)
	}
	if err := h.eng.RenameRecording("nope", "x"); !errors.Is(err, audio.ErrRecordingNotFound) {
		t.Errorf("err = %v, want ErrRecordingNotFound", err)
	}
	if err := h.eng.RenameRecording("anthem", "hymn"); err != nil {
		t.Fatal(err)
	}
	f, _ := h.persist.saved()
	if _, ok := f.Recordings["hymn"]; !ok {
		t.Errorf("saved recordings = %v", f.Recordings)
	}

	if err := h.eng.DeleteRecording("hymn"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(h.dir, "anthem.wav")); !os.IsNotExist(err) {
		t.Error("recording file should be removed")
	}
	if err := h.eng.DeleteRecording("hymn"); !errors.Is(err, audio.ErrRecordingNotFound) {
		t.Errorf("err = %v, want ErrRecordingNotFound", err)
	}
	f, _ = h.persist.saved()
	if len(f.Recordings) != 0 {
		t.Errorf("saved recordings = %v", f.Recordings)
	}
}

func TestSnapshot(t *testing.T) {
	h := newHarness(t, nil)
	h.now = at(8, 16, 0, 0)
	snap := h.eng.Snapshot()

	if snap.Display.Kind != logic.DisplayInPeriod || snap.Display.Seq != 1 {
		t.Errorf("display = %+v", snap.Display)
	}
	if snap.Display.SecondsLeft != 24*60 {
		t.Errorf("seconds left = %d, want %d", snap.Display.SecondsLeft, 24*60)
	}
	if snap.Periods != 12 || snap.Alarm || snap.TestMode {
		t.Errorf("snapshot = %+v", snap)
	}
}

type recordingSink struct {
	mu    sync.Mutex
	shown []logic.DisplayState
}

func (s *recordingSink) Show(d logic.DisplayState) {
	s.mu.Lock()
	s.shown = append(s.shown, d)
	s.mu.Unlock()
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.shown)
}

func TestStartStop(t *testing.T) {
	player := audio.NewFakePlayer()
	eng := New(Options{Clock: clock.New(nil), Player: player, Settings: testSettings(soundDir(t))})
	sink := &recordingSink{}

	eng.Start(5*time.Millisecond, 5*time.Millisecond, sink)
	eng.Start(5*time.Millisecond, 5*time.Millisecond, sink)
	deadline := time.Now().Add(2 * time.Second)
	for sink.count() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	eng.SetAlarm(true)
	if !player.Looping() {
		t.Fatal("siren should loop while the alarm is on")
	}
	eng.Stop()
	eng.Stop()

	if sink.count() < 3 {
		t.Errorf("render sink called %d times, want at least 3", sink.count())
	}
	if player.Looping() {
		t.Error("stop should silence the siren")
	}
	n := sink.count()
	time.Sleep(20 * time.Millisecond)
	if sink.count() != n {
		t.Error("render loop still running after Stop")
	}
}

func TestAlertPollDrivesAlarm(t *testing.T) {
	h := newHarness(t, nil)
	src := alert.NewFakeStatusSource("A")
	creds := func() alert.Credentials { return alert.Credentials{Token: "t", UID: "31"} }
	c := alert.NewCoordinator(src, creds, h.eng)

	if res := c.Poll(context.Background()); res != alert.ResultActive {
		t.Fatalf("poll = %s, want active", res)
	}
	if !h.eng.Alarm() || !h.player.Looping() {
		t.Error("active alert should raise the alarm and loop the siren")
	}

	src.Set("N", nil)
	c.Poll(context.Background())
	if h.eng.Alarm() || h.player.Looping() {
		t.Error("inactive alert should clear the alarm")
	}

	src.Set("", errors.New("timeout"))
	h.eng.SetAlarm(true)
	c.Poll(context.Background())
	if !h.eng.Alarm() {
		t.Error("failed poll must leave the alarm unchanged")
	}
}

func TestRenderDoesNotWaitOnSilenceLength(t *testing.T) {
	measuring := make(chan struct{})
	release := make(chan struct{})
	h := newHarness(t, func(o *Options) {
		o.Length = func(string) (time.Duration, error) {
			close(measuring)
			<-release
			return 30 * time.Second, nil
		}
	})

	done := make(chan struct{})
	go func() {
		h.eng.WorkerTick(at(9, 0, 0, 0))
		close(done)
	}()
	<-measuring

	rendered := make(chan logic.DisplayState, 1)
	go func() { rendered <- h.eng.Render(at(9, 0, 0, 100)) }()
	select {
	case <-rendered:
	case <-time.After(500 * time.Millisecond):
		t.Error("Render blocked while the worker measured the silence sound")
	}

	close(release)
	<-done
	if d := h.eng.Render(at(9, 0, 1, 0)); d.Kind != logic.DisplayMinuteOfSilence {
		t.Errorf("display = %s, want MINUTE_OF_SILENCE", d.Kind)
	}
}
