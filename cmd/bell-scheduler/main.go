// Command bell-scheduler rings school bells on a timetable, shows the
// countdown to the next one and publishes what it does to MQTT.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/sweeney/bell-scheduler/internal/alert"
	"github.com/sweeney/bell-scheduler/internal/audio"
	"github.com/sweeney/bell-scheduler/internal/clock"
	"github.com/sweeney/bell-scheduler/internal/config"
	"github.com/sweeney/bell-scheduler/internal/display"
	"github.com/sweeney/bell-scheduler/internal/engine"
	"github.com/sweeney/bell-scheduler/internal/gpio"
	"github.com/sweeney/bell-scheduler/internal/logic"
	"github.com/sweeney/bell-scheduler/internal/metrics"
	"github.com/sweeney/bell-scheduler/internal/mqtt"
	"github.com/sweeney/bell-scheduler/internal/power"
	"github.com/sweeney/bell-scheduler/internal/status"
	"github.com/sweeney/bell-scheduler/internal/store"
	"github.com/sweeney/bell-scheduler/internal/tracing"
	"github.com/sweeney/bell-scheduler/internal/web"
)

var version = "dev"

// CLI is the command line. Global flags apply to every subcommand.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"${config_file}"`
	EnvFile string           `help:"Dotenv file with ALERTS_TOKEN and ALERT_UID" default:"${env_file}"`
	Verbose bool             `short:"v" help:"Log every bell decision"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Run         RunCmd         `cmd:"" default:"withargs" help:"Run the scheduler (default)"`
	PrintState  PrintStateCmd  `cmd:"" help:"Print what the screen would show now and exit"`
	CheckConfig CheckConfigCmd `cmd:"" help:"Load the config file and print the cleaned timetable"`
}

// RunCmd runs the daemon.
type RunCmd struct {
	WorkerInterval time.Duration `help:"Bell worker tick" default:"200ms"`
	RenderInterval time.Duration `help:"Display refresh interval" default:"250ms"`
	PollInterval   time.Duration `help:"Alert poll interval" default:"7s"`
	PollDelay      time.Duration `help:"Delay before the first alert poll" default:"1.5s"`
	PollTimeout    time.Duration `help:"Alert request timeout" default:"6s"`
	AlertURL       string        `help:"Alert service base URL (empty for the default)"`
	Broker         string        `help:"MQTT broker address (empty disables MQTT)"`
	Heartbeat      time.Duration `help:"Heartbeat interval (0 to disable)" default:"15m"`
	HTTP           string        `name:"http" help:"HTTP status and control API address. The API has no authentication; bind beyond loopback only on a trusted network (empty to disable)" default:"127.0.0.1:8080"`
	RelayPin       int           `help:"BCM pin of the bell relay (0 disables, ${relay_pin} on the standard board)"`
	RelayPulse     time.Duration `help:"How long the relay stays on per bell" default:"3s"`
	StateDir       string        `help:"Directory for firing state (empty disables persistence)"`
	TUI            bool          `name:"tui" help:"Draw the bell screen in this terminal"`
	LogFile        string        `help:"Log file used while the terminal screen is active" default:"bell-scheduler.log"`
	Player         string        `help:"External player command, sound path appended" default:"aplay -q"`
	OTel           bool          `name:"otel" help:"Export traces over OTLP (OTEL_EXPORTER_OTLP_* env)"`
}

// PrintStateCmd prints the current display state.
type PrintStateCmd struct{}

// CheckConfigCmd validates the config file.
type CheckConfigCmd struct{}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("bell-scheduler"),
		kong.Description("School bell scheduler."),
		vars(),
	)
	if err := ctx.Run(&cli); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

// vars are interpolated into the CLI tags.
func vars() kong.Vars {
	return kong.Vars{
		"version":     version,
		"config_file": config.DefaultPath,
		"env_file":    config.DefaultEnvFile,
		"relay_pin":   strconv.Itoa(gpio.DefaultPinBell),
	}
}

// Run starts the daemon and blocks until a signal or the terminal quits.
func (r *RunCmd) Run(cli *CLI) error {
	ctx := context.Background()

	if r.OTel {
		shutdown, err := tracing.Init(ctx)
		if err != nil {
			return fmt.Errorf("init tracing: %w", err)
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(sctx); err != nil {
				log.Printf("tracing shutdown: %v", err)
			}
		}()
	}

	mgr, err := config.NewManager(cli.Config)
	if err != nil {
		log.Printf("config: %v (using defaults)", err)
	}
	env, err := config.LoadEnv(cli.EnvFile)
	if err != nil {
		log.Printf("env: %v", err)
	}
	file := mgr.Current()

	tt, err := file.Timetable()
	if err != nil {
		log.Printf("config: %v", err)
	}
	settings := file.Settings()
	settings.Sounds.BaseDir = mgr.Dir()

	clk := clock.New(nil)
	clk.Restore(file.Clock())

	rec, reg := metrics.New(nil)

	player := audio.NewExecPlayer(r.Player)
	defer player.Close()

	var stateStore engine.StateStore
	if r.StateDir != "" {
		st, err := store.Open(r.StateDir)
		if err != nil {
			return fmt.Errorf("open state store: %w", err)
		}
		defer st.Close()
		stateStore = st
	}

	var relay gpio.Relay
	if r.RelayPin > 0 {
		rl, err := gpio.NewRealRelay(r.RelayPin)
		if err != nil {
			return fmt.Errorf("init relay: %w", err)
		}
		defer rl.Close()
		relay = rl
	}

	var (
		publisher  mqtt.Publisher
		mqttStatus mqtt.ConnectionStatus
	)
	if r.Broker != "" {
		p := mqtt.NewRealPublisher(r.Broker, clientID())
		defer p.Close()
		publisher, mqttStatus = p, p
	}

	tracker := status.NewTracker(time.Now(), status.Config{
		WorkerMs:    r.WorkerInterval.Milliseconds(),
		RenderMs:    r.RenderInterval.Milliseconds(),
		PollMs:      r.PollInterval.Milliseconds(),
		HeartbeatMs: r.Heartbeat.Milliseconds(),
		Broker:      r.Broker,
		HTTPPort:    r.HTTP,
		RelayPin:    r.RelayPin,
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	eng := engine.New(engine.Options{
		Clock:      clk,
		Timetable:  tt,
		Settings:   settings,
		Registry:   audio.NewRegistry(file.Recordings),
		Player:     player,
		Power:      power.NewExecActions(),
		Relay:      relay,
		RelayPulse: r.RelayPulse,
		Publisher:  publisher,
		Tracker:    tracker,
		Metrics:    rec,
		Store:      stateStore,
		Persist:    mgr,
		Verbose:    cli.Verbose,
	})
	if err := eng.Restore(clk.Now()); err != nil {
		log.Printf("restore state: %v", err)
	}

	watcher, err := config.NewWatcher(mgr, eng.ApplyConfig)
	if err != nil {
		log.Printf("config watcher: %v", err)
	} else if err := watcher.Start(); err != nil {
		log.Printf("config watcher: %v", err)
	} else {
		defer watcher.Stop()
	}

	client := alert.NewClient(r.AlertURL, alert.NewHTTPClient(r.PollTimeout))
	poller := alert.NewCoordinator(client, func() alert.Credentials {
		return mgr.Current().Credentials(env)
	}, eng)
	poller.SetTimeout(r.PollTimeout)
	poller.SetRecorder(pollObserver{metrics: rec, tracker: tracker})
	if !mgr.Current().Credentials(env).Valid() {
		log.Printf("alert credentials not configured, polls are skipped until they are")
	}

	publishSystem(publisher, tracker, mqtt.SystemEvent{
		Timestamp: time.Now(),
		Event:     mqtt.EventStartup,
		Retained:  true,
	})

	var sinks []engine.Sink
	if r.HTTP != "" {
		srv := web.New(r.HTTP, tracker, eng, metrics.Handler(reg))
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		sinks = append(sinks, srv.Hub())
		log.Printf("http status server listening on %s", r.HTTP)
	}

	var quit <-chan struct{}
	if r.TUI {
		logFile, err := os.OpenFile(r.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer logFile.Close()
		term, err := display.Open()
		if err != nil {
			return err
		}
		log.SetOutput(logFile)
		defer log.SetOutput(os.Stderr)
		defer term.Close()
		term.SetFooter(fmt.Sprintf("bell-scheduler %s  q to quit", version))
		go term.Run()
		sinks = append(sinks, term)
		quit = term.Done()
	}

	eng.Start(r.WorkerInterval, r.RenderInterval, sinks...)
	defer eng.Stop()

	pollCtx, cancelPoll := context.WithCancel(ctx)
	defer cancelPoll()
	if err := poller.Start(pollCtx, r.PollInterval, r.PollDelay); err != nil {
		return err
	}
	defer poller.Stop()

	log.Printf("started: worker=%v render=%v poll=%v broker=%q heartbeat=%v",
		r.WorkerInterval, r.RenderInterval, r.PollInterval, r.Broker, r.Heartbeat)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(eng, publisher, mqttStatus, tracker, r.Heartbeat, time.Now, ticker.C, sigCh, quit)
}

// heartbeater paces heartbeats; *engine.Engine implements it.
type heartbeater interface {
	CheckHeartbeat(now time.Time, interval time.Duration) *logic.HeartbeatData
}

func runLoop(hb heartbeater, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, heartbeat time.Duration, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal, quit <-chan struct{}) error {
	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			refreshMQTT(tracker, mqttStatus)
			publishSystem(publisher, tracker, mqtt.SystemEvent{
				Timestamp: now(),
				Event:     mqtt.EventShutdown,
				Reason:    signalName,
				Retained:  true,
			})
			return nil

		case <-quit:
			log.Printf("terminal closed, shutting down")
			refreshMQTT(tracker, mqttStatus)
			publishSystem(publisher, tracker, mqtt.SystemEvent{
				Timestamp: now(),
				Event:     mqtt.EventShutdown,
				Reason:    "QUIT",
				Retained:  true,
			})
			return nil

		case <-tick:
			t := now()
			if hbData := hb.CheckHeartbeat(t, heartbeat); hbData != nil {
				log.Printf("heartbeat: uptime=%v bells=%d alarms=%d silences=%d power=%d",
					hbData.Uptime.Round(time.Second), hbData.Counts.Bells, hbData.Counts.Alarms,
					hbData.Counts.Silences, hbData.Counts.PowerActions)

				if tracker != nil {
					// Refresh network info for heartbeat
					if net := readNetworkInfo(); net != nil {
						tracker.SetNetwork(net)
					}
				}
				refreshMQTT(tracker, mqttStatus)
				publishSystem(publisher, tracker, mqtt.SystemEvent{
					Timestamp: hbData.Timestamp,
					Event:     mqtt.EventHeartbeat,
				})
			}
			refreshMQTT(tracker, mqttStatus)
		}
	}
}

func refreshMQTT(tracker *status.Tracker, mqttStatus mqtt.ConnectionStatus) {
	if tracker != nil && mqttStatus != nil {
		tracker.SetMQTTConnected(mqttStatus.IsConnected())
	}
}

// publishSystem attaches the full status snapshot and sends ev. A nil
// publisher (MQTT disabled) only logs.
func publishSystem(publisher mqtt.Publisher, tracker *status.Tracker, ev mqtt.SystemEvent) {
	if publisher == nil {
		return
	}
	if tracker != nil {
		ev.RawPayload = status.FormatStatusEvent(tracker.Snapshot(), ev.Event, ev.Reason)
	}
	if err := publisher.PublishSystem(ev); err != nil {
		log.Printf("failed to publish %s event: %v", ev.Event, err)
		return
	}
	if ev.Event != mqtt.EventHeartbeat {
		log.Printf("published %s event", ev.Event)
	}
}

// pollObserver fans poll outcomes out to metrics and the status page.
type pollObserver struct {
	metrics *metrics.Recorder
	tracker *status.Tracker
}

func (p pollObserver) ObservePoll(res alert.Result, took time.Duration) {
	p.metrics.ObservePoll(res, took)
	p.tracker.SetPoll(string(res), time.Now())
}

func clientID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "bell-scheduler"
	}
	return "bell-scheduler-" + host
}

// Run prints the display state at the configured logical time.
func (p *PrintStateCmd) Run(cli *CLI) error {
	file, err := config.Load(cli.Config)
	if err != nil {
		log.Printf("config: %v (using defaults)", err)
	}
	tt, err := file.Timetable()
	if err != nil {
		log.Printf("config: %v", err)
	}
	clk := clock.New(nil)
	clk.Restore(file.Clock())
	now := clk.Now()

	d := logic.Project(now, tt, false, false)
	mode := "real"
	if clk.State().TestMode {
		mode = "test"
	}
	fmt.Printf("%s (%s time): %s\n", now.Format("15:04:05"), mode, d)
	return nil
}

// Run prints the cleaned timetable and settings, failing on an unreadable
// file. Dropped rows are reported but do not fail the check.
func (c *CheckConfigCmd) Run(cli *CLI) error {
	file, err := config.Load(cli.Config)
	if err != nil {
		return err
	}
	tt, err := file.Timetable()
	if err != nil {
		fmt.Printf("warning: %v\n", err)
	}
	fmt.Printf("%d periods\n", tt.Len())
	for _, p := range tt.Periods() {
		line := fmt.Sprintf("  %2d  %s-%s", p.Seq, p.Start, p.End)
		if p.StartRecording != "" || p.EndRecording != "" {
			line += fmt.Sprintf("  [%s / %s]", p.StartRecording, p.EndRecording)
		}
		fmt.Println(line)
	}

	s := file.Settings()
	fmt.Printf("silent mode: %s\n", onOff(s.SilentMode))
	fmt.Printf("minute of silence: %s\n", onOff(s.SilenceEnabled))
	fmt.Printf("shutdown: %s at %s\n", onOff(s.Shutdown.Enabled), s.Shutdown.At)
	fmt.Printf("hibernation: %s at %s\n", onOff(s.Hibernate.Enabled), s.Hibernate.At)
	fmt.Printf("recordings: %d\n", len(file.Recordings))

	env, err := config.LoadEnv(cli.EnvFile)
	if err != nil {
		return err
	}
	fmt.Printf("alert credentials: %s\n", onOff(file.Credentials(env).Valid()))
	return nil
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
