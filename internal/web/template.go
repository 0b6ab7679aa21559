package web

import (
	"fmt"
	"html/template"
	"io"
	"log"
	"time"

	"github.com/sweeney/bell-scheduler/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"percent": func(f float64) string {
		return fmt.Sprintf("%.0f%%", f*100)
	},
	"onOff": func(b bool) string {
		if b {
			return "on"
		}
		return "off"
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Bell Scheduler</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.screen { text-align: center; padding: 1em; border: 1px solid #ddd; }
.screen.alarm { background: #c00; color: #fff; }
.screen.silence { background: #333; color: #fff; }
#title { font-size: 2em; font-weight: bold; }
#countdown { font-size: 3em; }
.bar { height: 8px; background: #eee; margin-top: 0.5em; }
.bar div { height: 8px; background: green; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.connected { color: green; }
.disconnected { color: red; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
.live-dot.pending { background: orange; }
</style>
</head>
<body>
<h1>Bell Scheduler<span id="live-dot" class="live-dot pending" title="connecting"></span></h1>

<div id="screen" class="screen{{if .Alarm}} alarm{{else if .Silence.Active}} silence{{end}}">
<div id="title">{{.Display.Title}}</div>
<div id="countdown">{{.Display.Countdown}}</div>
<div class="bar"><div id="progress" style="width: {{percent .Display.Progress}}"></div></div>
</div>

<h2>State</h2>
<table>
<tr><th>Clock</th><td>{{if not .LogicalNow.IsZero}}{{.LogicalNow.Format "15:04:05"}}{{end}}{{if .TestMode}} (test, offset {{.Offset}}){{end}}</td></tr>
<tr><th>Air raid alert</th><td class="{{onOff .Alarm}}">{{onOff .Alarm}}</td></tr>
<tr><th>Minute of silence</th><td class="{{onOff .Silence.Active}}">{{onOff .Silence.Active}}</td></tr>
<tr><th>Silent mode</th><td class="{{onOff .SilentMode}}">{{onOff .SilentMode}}</td></tr>
<tr><th>Periods</th><td>{{.Periods}}</td></tr>
<tr><th>Fired today</th><td>{{.FiredToday}}</td></tr>
{{with .LastBell}}<tr><th>Last bell</th><td>{{.Time.Format "15:04:05"}} period {{.Seq}} {{.Boundary}} ({{.Sound}})</td></tr>{{end}}
{{if .LastPoll}}<tr><th>Last poll</th><td>{{.LastPoll}} at {{.LastPollTime.Format "15:04:05"}}</td></tr>{{end}}
<tr><th>Shutdown</th><td>{{if .Shutdown.Enabled}}{{.Shutdown.At}}{{else}}disabled{{end}}{{if .Shutdown.LastFired}}, last {{.Shutdown.LastFired}}{{end}}</td></tr>
<tr><th>Hibernation</th><td>{{if .Hibernate.Enabled}}{{.Hibernate.At}}{{else}}disabled{{end}}{{if .Hibernate.LastFired}}, last {{.Hibernate.LastFired}}{{end}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Event Counts</h2>
<table>
<tr><th>Bells</th><td>{{.Counts.Bells}}</td></tr>
<tr><th>Alarms</th><td>{{.Counts.Alarms}}</td></tr>
<tr><th>Minutes of silence</th><td>{{.Counts.Silences}}</td></tr>
<tr><th>Power actions</th><td>{{.Counts.PowerActions}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Worker</th><td>{{.Config.WorkerMs}}ms</td></tr>
<tr><th>Render</th><td>{{.Config.RenderMs}}ms</td></tr>
<tr><th>Alert poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>Relay pin</th><td>{{if eq .Config.RelayPin 0}}disabled{{else}}{{.Config.RelayPin}}{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPPort}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> | <a href="/api/timetable">Timetable</a> | <a href="/metrics">Metrics</a></p>
<script>
(function() {
  var dot = document.getElementById("live-dot");
  var screen = document.getElementById("screen");
  var title = document.getElementById("title");
  var countdown = document.getElementById("countdown");
  var progress = document.getElementById("progress");

  function setDot(cls, text) {
    dot.className = "live-dot " + cls;
    dot.title = text;
  }

  function connect() {
    var proto = location.protocol === "https:" ? "wss://" : "ws://";
    var ws = new WebSocket(proto + location.host + "/ws");
    ws.onopen = function() { setDot("ok", "live"); };
    ws.onclose = function() {
      setDot("err", "offline");
      setTimeout(connect, 5000);
    };
    ws.onmessage = function(ev) {
      try {
        var d = JSON.parse(ev.data);
        title.textContent = d.title;
        countdown.textContent = d.countdown || "";
        progress.style.width = Math.round(d.progress * 100) + "%";
        screen.className = "screen" + (d.kind === "ALARM" ? " alarm" : d.kind === "MINUTE_OF_SILENCE" ? " silence" : "");
      } catch (e) {}
    };
  }
  connect();
})();
</script>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime  time.Duration
		Display status.DisplayJSON
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
		Display:  status.BuildDisplay(snap),
	}
	if err := indexTmpl.Execute(w, data); err != nil {
		log.Printf("web: render index: %v", err)
	}
}
