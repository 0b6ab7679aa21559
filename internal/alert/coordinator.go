package alert

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// Poll defaults.
const (
	DefaultInterval   = 7 * time.Second
	DefaultStartDelay = 1500 * time.Millisecond
)

// StatusSource returns the raw status code for a region.
type StatusSource interface {
	Status(ctx context.Context, creds Credentials) (string, error)
}

// AlarmSink receives alarm state. Repeating the current state must be a no-op.
type AlarmSink interface {
	SetAlarm(active bool) bool
}

// Recorder observes poll outcomes, e.g. for metrics.
type Recorder interface {
	ObservePoll(result Result, took time.Duration)
}

// Result classifies one poll.
type Result string

const (
	ResultSkipped  Result = "skipped"
	ResultFailed   Result = "failed"
	ResultActive   Result = "active"
	ResultInactive Result = "inactive"
)

// Coordinator polls on a fixed interval and writes the alarm flag. It is the
// flag's only writer.
type Coordinator struct {
	src      StatusSource
	creds    func() Credentials
	sink     AlarmSink
	timeout  time.Duration
	recorder Recorder

	mu        sync.Mutex
	scheduler gocron.Scheduler
	lastErr   error
}

// NewCoordinator creates a poller. creds is read before every poll so
// credential changes apply without a restart.
func NewCoordinator(src StatusSource, creds func() Credentials, sink AlarmSink) *Coordinator {
	return &Coordinator{src: src, creds: creds, sink: sink, timeout: DefaultTimeout}
}

// SetRecorder injects a poll observer.
func (c *Coordinator) SetRecorder(r Recorder) { c.recorder = r }

// SetTimeout overrides the per-request timeout.
func (c *Coordinator) SetTimeout(d time.Duration) {
	if d > 0 {
		c.timeout = d
	}
}

// Poll runs one poll. Missing credentials skip it; any failure leaves the
// alarm unchanged.
func (c *Coordinator) Poll(ctx context.Context) Result {
	ctx, span := otel.Tracer("github.com/sweeney/bell-scheduler/internal/alert").Start(ctx, "alert.poll")
	defer span.End()

	start := time.Now()
	res := c.poll(ctx)
	span.SetAttributes(attribute.String("alert.result", string(res)))
	if c.recorder != nil {
		c.recorder.ObservePoll(res, time.Since(start))
	}
	return res
}

func (c *Coordinator) poll(ctx context.Context) Result {
	creds := c.creds()
	if !creds.Valid() {
		return ResultSkipped
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	status, err := c.src.Status(ctx, creds)
	if err != nil {
		c.noteError(err)
		return ResultFailed
	}
	c.noteError(nil)

	active := IsActive(status)
	if c.sink.SetAlarm(active) {
		log.Printf("alert: status %q, alarm=%v", status, active)
	}
	if active {
		return ResultActive
	}
	return ResultInactive
}

// noteError logs a failure once until polls succeed again.
func (c *Coordinator) noteError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil && (c.lastErr == nil || c.lastErr.Error() != err.Error()) {
		log.Printf("alert poll error: %v", err)
	}
	if err == nil && c.lastErr != nil {
		log.Printf("alert poll recovered")
	}
	c.lastErr = err
}

// Start schedules polling: first after delay, then every interval. A poll
// still running when the next is due is rescheduled rather than overlapped.
func (c *Coordinator) Start(ctx context.Context, interval, delay time.Duration) error {
	if interval <= 0 {
		interval = DefaultInterval
	}
	s, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	start := gocron.WithStartImmediately()
	if delay > 0 {
		start = gocron.WithStartDateTime(time.Now().Add(delay))
	}
	_, err = s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() { c.Poll(ctx) }),
		gocron.WithName("alert-poll"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(start),
	)
	if err != nil {
		_ = s.Shutdown()
		return fmt.Errorf("failed to create alert poll job: %w", err)
	}

	c.mu.Lock()
	c.scheduler = s
	c.mu.Unlock()
	s.Start()
	log.Printf("alert poll started: interval=%v delay=%v", interval, delay)
	return nil
}

// Stop shuts the scheduler down, waiting for a running poll to finish.
func (c *Coordinator) Stop() error {
	c.mu.Lock()
	s := c.scheduler
	c.scheduler = nil
	c.mu.Unlock()
	if s == nil {
		return nil
	}
	return s.Shutdown()
}
