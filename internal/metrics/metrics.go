// Package metrics exposes the bell scheduler's Prometheus collectors.
package metrics

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	promcollect "github.com/prometheus/client_golang/prometheus/collectors"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sweeney/bell-scheduler/internal/alert"
	"github.com/sweeney/bell-scheduler/internal/logic"
)

const namespace = "bell"

// Recorder holds every collector. A nil *Recorder is valid and records nothing.
type Recorder struct {
	bells        *prom.CounterVec
	soundErrors  *prom.CounterVec
	alarm        prom.Gauge
	alarms       prom.Counter
	polls        *prom.CounterVec
	pollDuration prom.Histogram
	silence      prom.Gauge
	silences     prom.Counter
	power        *prom.CounterVec
	testMode     prom.Gauge
}

// New creates the collectors and registers them on reg. A nil reg gets a
// fresh registry with the Go and process collectors.
func New(reg *prom.Registry) (*Recorder, *prom.Registry) {
	if reg == nil {
		reg = prom.NewRegistry()
		reg.MustRegister(promcollect.NewGoCollector(), promcollect.NewProcessCollector(promcollect.ProcessCollectorOpts{}))
	}
	r := &Recorder{
		bells: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "bells_total",
			Help:      "Bells dispatched, by boundary and sound kind",
		}, []string{"boundary", "sound"}),
		soundErrors: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "sound_errors_total",
			Help:      "Sounds that could not be played, by purpose",
		}, []string{"purpose"}),
		alarm: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "alarm_active",
			Help:      "1 while the air raid alarm is active",
		}),
		alarms: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "alarms_total",
			Help:      "Alarm activations",
		}),
		polls: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "alert_polls_total",
			Help:      "Alert polls by result",
		}, []string{"result"}),
		pollDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "alert_poll_duration_seconds",
			Help:      "Alert poll latency",
			Buckets:   prom.DefBuckets,
		}),
		silence: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "minute_of_silence_active",
			Help:      "1 while the minute of silence is running",
		}),
		silences: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "minutes_of_silence_total",
			Help:      "Minutes of silence started",
		}),
		power: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "power_actions_total",
			Help:      "Power actions by kind and outcome",
		}, []string{"kind", "result"}),
		testMode: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "test_mode",
			Help:      "1 while the clock runs with a test offset",
		}),
	}
	reg.MustRegister(r.bells, r.soundErrors, r.alarm, r.alarms, r.polls, r.pollDuration,
		r.silence, r.silences, r.power, r.testMode)
	return r, reg
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(reg *prom.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Bell counts a dispatched bell.
func (r *Recorder) Bell(ev logic.BellEvent) {
	if r == nil {
		return
	}
	kind := "default"
	if ev.Sound.Kind == logic.SoundNamed {
		kind = "recording"
	}
	r.bells.WithLabelValues(string(ev.Boundary), kind).Inc()
}

// SoundError counts a sound that could not be played.
func (r *Recorder) SoundError(purpose string) {
	if r == nil {
		return
	}
	r.soundErrors.WithLabelValues(purpose).Inc()
}

// Alarm records an alarm transition.
func (r *Recorder) Alarm(active bool) {
	if r == nil {
		return
	}
	if active {
		r.alarm.Set(1)
		r.alarms.Inc()
		return
	}
	r.alarm.Set(0)
}

// ObservePoll implements alert.Recorder.
func (r *Recorder) ObservePoll(res alert.Result, took time.Duration) {
	if r == nil {
		return
	}
	r.polls.WithLabelValues(string(res)).Inc()
	if res != alert.ResultSkipped {
		r.pollDuration.Observe(took.Seconds())
	}
}

// Silence records a minute of silence transition.
func (r *Recorder) Silence(tr logic.SilenceTransition) {
	if r == nil {
		return
	}
	switch tr {
	case logic.SilenceEntered:
		r.silence.Set(1)
		r.silences.Inc()
	case logic.SilenceExited, logic.SilenceCleared:
		r.silence.Set(0)
	}
}

// PowerAction counts a power action attempt.
func (r *Recorder) PowerAction(kind logic.TriggerKind, err error) {
	if r == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.power.WithLabelValues(string(kind), result).Inc()
}

// TestMode reflects the clock's test mode.
func (r *Recorder) TestMode(on bool) {
	if r == nil {
		return
	}
	if on {
		r.testMode.Set(1)
		return
	}
	r.testMode.Set(0)
}
