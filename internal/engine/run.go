package engine

import (
	"log"
	"time"

	"github.com/sweeney/bell-scheduler/internal/logic"
	"github.com/sweeney/bell-scheduler/internal/mqtt"
	"github.com/sweeney/bell-scheduler/internal/schedule"
	"github.com/sweeney/bell-scheduler/internal/status"
)

// Loop defaults.
const (
	DefaultWorkerInterval = 200 * time.Millisecond
	DefaultRenderInterval = 250 * time.Millisecond
)

// Sink receives the display state on every render tick. Show must not block.
type Sink interface {
	Show(d logic.DisplayState)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(d logic.DisplayState)

// Show calls f.
func (f SinkFunc) Show(d logic.DisplayState) { f(d) }

// Render projects the display state at now. It only reads shared state.
func (e *Engine) Render(now time.Time) logic.DisplayState {
	return logic.Project(now, e.Timetable(), e.silence.Active(), e.alarm.Load())
}

// Snapshot returns the engine part of the status at the current logical time.
func (e *Engine) Snapshot() status.Engine {
	return e.snapshotAt(e.clock.Now())
}

func (e *Engine) snapshotAt(now time.Time) status.Engine {
	cs := e.clock.State()
	s := e.Settings()
	return status.Engine{
		Display:    e.Render(now),
		LogicalNow: now,
		TestMode:   cs.TestMode,
		Offset:     cs.Offset,
		Alarm:      e.alarm.Load(),
		Silence:    e.silence.State(),
		SilentMode: s.SilentMode,
		Periods:    e.Timetable().Len(),
		FiredToday: e.ledger.Len(),
		Counts:     e.counter.Snapshot(),
		Shutdown:   triggerInfo(e.shutdown),
		Hibernate:  triggerInfo(e.hibernate),
	}
}

func triggerInfo(t *logic.DailyTrigger) status.TriggerInfo {
	cfg := t.Config()
	info := status.TriggerInfo{Enabled: cfg.Enabled, At: cfg.At.String()}
	if d := t.LastFired(); !d.IsZero() {
		info.LastFired = d.String()
	}
	return info
}

// CheckHeartbeat reports event counts when interval has elapsed since the
// last heartbeat.
func (e *Engine) CheckHeartbeat(now time.Time, interval time.Duration) *logic.HeartbeatData {
	return e.counter.CheckHeartbeat(now, interval)
}

func (e *Engine) updateTracker(now time.Time) {
	if e.tracker != nil {
		e.tracker.Update(e.snapshotAt(now))
	}
}

func (e *Engine) publishSystem(now time.Time, event, reason string) {
	if e.pub == nil {
		return
	}
	ev := mqtt.SystemEvent{Timestamp: now, Event: event, Reason: reason}
	if e.tracker != nil {
		ev.RawPayload = status.FormatStatusEvent(e.tracker.Snapshot(), event, reason)
	}
	if err := e.pub.PublishSystem(ev); err != nil {
		log.Printf("failed to publish %s event: %v", event, err)
	}
}

// Start launches the worker and render loops. Calling Start on a running
// engine does nothing.
func (e *Engine) Start(worker, render time.Duration, sinks ...Sink) {
	if worker <= 0 {
		worker = DefaultWorkerInterval
	}
	if render <= 0 {
		render = DefaultRenderInterval
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return
	}
	e.running = true
	e.stop = make(chan struct{})
	e.wg.Add(2)
	go e.workerLoop(worker, e.stop)
	go e.renderLoop(render, e.stop, sinks)
	log.Printf("engine started: worker=%v render=%v periods=%d today=%s",
		worker, render, e.Timetable().Len(), schedule.DateOf(e.clock.Now()))
}

func (e *Engine) workerLoop(interval time.Duration, stop <-chan struct{}) {
	defer e.wg.Done()
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			e.WorkerTick(e.clock.Now())
		}
	}
}

func (e *Engine) renderLoop(interval time.Duration, stop <-chan struct{}, sinks []Sink) {
	defer e.wg.Done()
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			d := e.Render(e.clock.Now())
			for _, s := range sinks {
				s.Show(d)
			}
		}
	}
}

// Stop signals both loops, waits for the current iterations to finish and
// silences the siren and any playing track.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	close(e.stop)
	e.mu.Unlock()

	e.wg.Wait()
	e.player.StopLoop()
	e.player.Stop()
	log.Printf("engine stopped")
}
