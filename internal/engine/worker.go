package engine

import (
	"context"
	"log"
	"time"

	"github.com/sweeney/bell-scheduler/internal/audio"
	"github.com/sweeney/bell-scheduler/internal/config"
	"github.com/sweeney/bell-scheduler/internal/logic"
	"github.com/sweeney/bell-scheduler/internal/mqtt"
	"github.com/sweeney/bell-scheduler/internal/power"
	"github.com/sweeney/bell-scheduler/internal/schedule"
	"github.com/sweeney/bell-scheduler/internal/status"
)

// WorkerTick runs one worker iteration at logical time now and returns the
// bells it rang. Order: minute of silence, daily triggers, bell dispatch.
// The alarm flag is read once so all three see the same value. Side-effect
// failures are logged and never stop the iteration.
func (e *Engine) WorkerTick(now time.Time) []logic.BellEvent {
	s := e.Settings()
	alarm := e.alarm.Load()

	tr, st := e.silence.Tick(now, logic.SilenceInput{
		Enabled:  s.SilenceEnabled,
		Alarm:    alarm,
		Duration: func() time.Duration { return e.silenceDuration(s.Sounds) },
	})
	if tr != logic.SilenceNone {
		e.onSilence(now, tr, st, s)
	}

	e.checkTrigger(now, e.shutdown)
	e.checkTrigger(now, e.hibernate)

	gates := logic.Gates{Alarm: alarm, Silence: st.Active, Silent: s.SilentMode}
	events := e.dispatcher.Tick(now, e.Timetable(), gates, e.registry)
	for _, ev := range events {
		e.ring(ev, s.Sounds)
	}
	if len(events) > 0 && e.store != nil {
		keys := make([]logic.FiringKey, len(events))
		for i, ev := range events {
			keys[i] = ev.Key
		}
		if err := e.store.SaveFired(keys); err != nil {
			log.Printf("failed to persist fired bells: %v", err)
		}
	}

	if e.verbose && now.Second() == 0 && now.Nanosecond() < int(250*time.Millisecond) {
		log.Printf("tick %s: alarm=%v silence=%v silent=%v fired=%d", now.Format("15:04:05.000"), alarm, st.Active, s.SilentMode, e.ledger.Len())
	}
	e.updateTracker(now)
	return events
}

func (e *Engine) silenceDuration(sounds audio.Sounds) time.Duration {
	p, err := sounds.SilencePath()
	if err != nil {
		return logic.DefaultSilenceDuration
	}
	d, err := e.length(p)
	if err != nil {
		log.Printf("minute of silence: %v", err)
		return logic.DefaultSilenceDuration
	}
	return logic.SilenceDuration(d)
}

func (e *Engine) onSilence(now time.Time, tr logic.SilenceTransition, st logic.SilenceState, s config.Settings) {
	e.metrics.Silence(tr)
	switch tr {
	case logic.SilenceEntered:
		e.counter.AddSilence()
		log.Printf("minute of silence until %s", st.End.Format("15:04:05"))
		if e.store != nil {
			if err := e.store.SaveSilence(st.LastFired); err != nil {
				log.Printf("failed to persist minute of silence: %v", err)
			}
		}
		if !s.SilentMode {
			e.playSilence(s.Sounds)
		}
		e.publishSystem(now, mqtt.EventSilenceStart, "")
	case logic.SilenceExited:
		log.Printf("minute of silence ended")
		e.publishSystem(now, mqtt.EventSilenceEnd, "")
	case logic.SilenceCleared:
		log.Printf("minute of silence cleared: disabled")
		e.player.Stop()
		e.publishSystem(now, mqtt.EventSilenceEnd, "disabled")
	}
}

func (e *Engine) playSilence(sounds audio.Sounds) {
	p, err := sounds.SilencePath()
	if err != nil {
		log.Printf("minute of silence sound: %v", err)
		e.metrics.SoundError("silence")
		return
	}
	if err := e.player.Play(p); err != nil {
		log.Printf("minute of silence sound: %v", err)
		e.metrics.SoundError("silence")
	}
}

// checkTrigger runs a daily power action. The fired date is persisted before
// the action because a successful shutdown ends the process.
func (e *Engine) checkTrigger(now time.Time, t *logic.DailyTrigger) {
	if !t.Check(now) {
		return
	}
	if e.store != nil {
		if err := e.store.SaveTrigger(t.Kind, schedule.DateOf(now)); err != nil {
			log.Printf("failed to persist %s trigger: %v", t.Kind, err)
		}
	}

	event := mqtt.EventPowerShutdown
	if t.Kind == logic.TriggerHibernate {
		event = mqtt.EventPowerHibernate
	}
	var err error
	if e.power == nil {
		log.Printf("%s trigger fired with no power actions configured", t.Kind)
	} else {
		err = power.Run(context.Background(), e.power, t.Kind)
	}
	e.counter.AddPowerAction()
	e.metrics.PowerAction(t.Kind, err)
	e.updateTracker(now)

	reason := ""
	if err != nil {
		log.Printf("%s failed, not retrying today: %v", t.Kind, err)
		reason = err.Error()
	} else {
		log.Printf("%s started", t.Kind)
	}
	e.publishSystem(now, event, reason)
}

// ring plays one bell, pulses the relay and publishes it.
func (e *Engine) ring(ev logic.BellEvent, sounds audio.Sounds) {
	log.Printf("bell: period %d %s at %s (%s)", ev.Seq, ev.Boundary, ev.Key.HHMM, ev.Sound)
	e.counter.AddBell(1)
	e.metrics.Bell(ev)

	if p, err := sounds.Resolve(ev.Sound, e.registry); err != nil {
		log.Printf("bell: period %d %s: %v", ev.Seq, ev.Boundary, err)
		e.metrics.SoundError("bell")
	} else if err := e.player.Play(p); err != nil {
		log.Printf("bell: period %d %s: %v", ev.Seq, ev.Boundary, err)
		e.metrics.SoundError("bell")
	}

	if e.relay != nil {
		if err := e.relay.Ring(e.pulse); err != nil {
			log.Printf("bell relay error: %v", err)
		}
	}
	if e.pub != nil {
		if err := e.pub.Publish(ev); err != nil {
			log.Printf("failed to publish bell: %v", err)
		}
	}
	if e.tracker != nil {
		e.tracker.SetLastBell(status.BellInfo{
			Time:     ev.Timestamp,
			Seq:      ev.Seq,
			Boundary: ev.Boundary,
			Sound:    ev.Sound.String(),
		})
	}
}
