package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/shake-timer/internal/logic"
	"github.com/sweeney/shake-timer/internal/status"
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
	"seconds":   logic.FormatSeconds,
	"magnitude": logic.FormatMagnitude,
	"capabilityOrUnknown": func(c logic.Capability) string {
		if c == "" {
			return string(logic.CapabilityUnknown)
		}
		return string(c)
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Shake Timer</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
form { display: inline; }
.elapsed { font-size: 3em; }
.running { color: green; font-weight: bold; }
.stopped { color: #888; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Shake Timer</h1>
{{if .LoggedIn}}
<p id="elapsed" class="elapsed">{{seconds .Elapsed}}</p>
<p>
<form method="post" action="/toggle"><button id="toggle">{{if .Stopwatch.Timer.Running}}Stop{{else}}Start{{end}}</button></form>
{{if .Stopwatch.CanSubmit}}<form method="post" action="/submit"><button id="submit">Submit</button></form>{{end}}
<form method="post" action="/logout"><button>Log out</button></form>
</p>

<h2>Timer</h2>
<table>
<tr><th>State</th><td class="{{if .Stopwatch.Timer.Running}}running{{else}}stopped{{end}}">{{.Stopwatch.Timer.State}}</td></tr>
<tr><th>Motion</th><td>{{magnitude .Stopwatch.Magnitude}}</td></tr>
<tr><th>Sensor</th><td class="{{if eq (capabilityOrUnknown .Stopwatch.Capability) "AVAILABLE"}}connected{{else}}unknown{{end}}">{{capabilityOrUnknown .Stopwatch.Capability}}</td></tr>
</table>

<h2>Times</h2>
{{if .Stopwatch.Records}}<table>
{{range .Stopwatch.Records}}<tr><td>{{seconds .Elapsed}}</td><td><form method="post" action="/records/{{.ID}}/delete"><button>Delete</button></form></td></tr>
{{end}}</table>{{else}}<p>No times recorded.</p>{{end}}

<h2>Event Counts</h2>
<table>
<tr><th>Toggles</th><td>{{.Stopwatch.Counts.Accepted}}</td></tr>
<tr><th>Debounced</th><td>{{.Stopwatch.Counts.Dropped}}</td></tr>
<tr><th>Shakes</th><td>{{.Stopwatch.Counts.Crossings}}</td></tr>
<tr><th>Submitted</th><td>{{.Stopwatch.Counts.Submitted}}</td></tr>
<tr><th>Deleted</th><td>{{.Stopwatch.Counts.Deleted}}</td></tr>
</table>
{{else}}
<form id="login" method="post" action="/login">
<p><input name="username" placeholder="username"{{if .Config.Username}} value="{{.Config.Username}}"{{end}}></p>
<p><input name="password" type="password" placeholder="password"></p>
<p><button>Log in</button></p>
</form>
{{end}}

<h2>Connectivity</h2>
<table>
<tr><th>Server</th><td>{{.Config.Server}}</td></tr>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Debounce</th><td>{{.Config.DebounceMs}}ms</td></tr>
<tr><th>Threshold</th><td>{{.Config.Threshold}}</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() and Timer.Elapsed() methods but the template
	// needs plain Duration fields.
	data := struct {
		status.Snapshot
		Uptime  time.Duration
		Elapsed time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
		Elapsed:  snap.Stopwatch.Timer.Elapsed(),
	}
	indexTmpl.Execute(w, data)
}
