package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/genset-controller/internal/logbuf"
	"github.com/sweeney/genset-controller/internal/status"
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
	"onOff": func(b bool) string {
		if b {
			return "ON"
		}
		return "OFF"
	},
	"logTime": func(t time.Time) string {
		return t.UTC().Format("15:04:05")
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Genset Controller</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.warn { color: orange; font-weight: bold; }
.connected { color: green; }
.disconnected { color: red; }
button { font-family: monospace; padding: 6px 16px; margin-right: 8px; }
input { font-family: monospace; width: 8em; }
pre { background: #f6f6f6; padding: 8px; max-height: 20em; overflow-y: auto; }
</style>
</head>
<body>
<h1>Genset Controller</h1>

{{if .UpdateInProgress}}<p class="warn">Firmware update in progress — control loop paused</p>{{end}}

<h2>Controls</h2>
<p>
<button onclick="fetch('/api/start', {method:'POST'}).then(() => location.reload())">Start Generator</button>
<button onclick="fetch('/api/stop', {method:'POST'}).then(() => location.reload())">Stop Generator</button>
</p>

<h2>State</h2>
<table>
<tr><th>Controller</th><td>{{.State}}</td></tr>
<tr><th>Running feedback</th><td class="{{if .Running}}on{{else}}off{{end}}">{{onOff .Running}}</td></tr>
<tr><th>K1 (power-up relay)</th><td class="{{if .K1}}on{{else}}off{{end}}">{{onOff .K1}}</td></tr>
<tr><th>K2 (power-down relay)</th><td class="{{if .K2}}on{{else}}off{{end}}">{{onOff .K2}}</td></tr>
<tr><th>Start attempts</th><td>{{.Attempts}} / {{.Tunables.RetryLimit}}</td></tr>
</table>

<h2>Settings</h2>
<form method="POST" action="/api/config">
<table>
<tr><th>Power-up (ms)</th><td><input name="power_up_ms" value="{{.Tunables.PowerUpMs}}"></td></tr>
<tr><th>Power-down (ms)</th><td><input name="power_down_ms" value="{{.Tunables.PowerDownMs}}"></td></tr>
<tr><th>Retry limit</th><td><input name="retry_limit" value="{{.Tunables.RetryLimit}}"></td></tr>
<tr><th>Allow start</th><td><input name="allow_start" value="{{.Tunables.AllowStart}}"></td></tr>
<tr><th></th><td><button type="submit">Save</button></td></tr>
</table>
</form>

<h2>Counters</h2>
<table>
<tr><th>Starts</th><td>{{.Counts.Starts}}</td></tr>
<tr><th>Stops</th><td>{{.Counts.Stops}}</td></tr>
<tr><th>Retries</th><td>{{.Counts.Retries}}</td></tr>
<tr><th>Start failures</th><td>{{.Counts.Failures}}</td></tr>
<tr><th>Confirmed</th><td>{{.Counts.Confirmed}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}} / {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Control tick</th><td>{{.Config.ControlMs}}ms</td></tr>
<tr><th>Debounce</th><td>{{.Config.DebounceMs}}ms</td></tr>
<tr><th>Verify</th><td>{{.Config.VerifyMs}}ms</td></tr>
</table>

<h2>Log</h2>
<pre>{{range .Log}}{{logTime .Time}} {{.Message}}
{{end}}</pre>

<p><a href="/index.json">JSON</a> &middot; <a href="/log">full log</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot, entries []logbuf.Entry) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
		Log    []logbuf.Entry
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
		Log:      entries,
	}
	indexTmpl.Execute(w, data)
}
