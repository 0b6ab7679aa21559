package engine

import (
	"log"

	"github.com/sweeney/bell-scheduler/internal/mqtt"
)

// SetAlarm implements alert.AlarmSink. It reports whether the flag changed;
// entry and exit actions run only on a change. Entering stops the current
// track and loops the siren; exiting stops the siren.
func (e *Engine) SetAlarm(active bool) bool {
	if !e.alarm.CompareAndSwap(!active, active) {
		return false
	}
	now := e.clock.Now()
	e.metrics.Alarm(active)

	if active {
		e.counter.AddAlarm()
		log.Printf("alarm: on")
		e.player.Stop()
		if p, err := e.Settings().Sounds.SirenPath(); err != nil {
			log.Printf("siren: %v", err)
			e.metrics.SoundError("siren")
		} else if err := e.player.Loop(p); err != nil {
			log.Printf("siren: %v", err)
			e.metrics.SoundError("siren")
		}
		e.updateTracker(now)
		e.publishSystem(now, mqtt.EventAlarmOn, "")
		return true
	}

	log.Printf("alarm: off")
	e.player.StopLoop()
	e.updateTracker(now)
	e.publishSystem(now, mqtt.EventAlarmOff, "")
	return true
}
