package web

import (
	"fmt"
	"html/template"
	"io"
	"log"
	"strings"
	"time"

	"github.com/sweeney/sensory-game/internal/logic"
	"github.com/sweeney/sensory-game/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": formatUptime,
	"moduleOrNone": func(m logic.Module) string {
		if m == logic.ModuleNone {
			return "-"
		}
		return m.String()
	},
}).Parse(indexHTML))

// formatUptime renders d as "1d 2h 3m 4s", dropping leading zero units.
func formatUptime(d time.Duration) string {
	secs := int64(d / time.Second)
	units := []struct {
		size   int64
		suffix string
	}{{86400, "d"}, {3600, "h"}, {60, "m"}, {1, "s"}}
	var parts []string
	for _, u := range units {
		n := secs / u.size
		secs %= u.size
		if n == 0 && len(parts) == 0 && u.size > 1 {
			continue
		}
		parts = append(parts, fmt.Sprintf("%d%s", n, u.suffix))
	}
	return strings.Join(parts, " ")
}

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="2">
<title>Sensory Game</title>
<style>
body { font-family: ui-monospace, monospace; background: #111; color: #ddd; max-width: 640px; margin: 1.5em auto; padding: 0 1em; }
h1 { font-size: 1.3em; color: #fc6; }
h2 { font-size: 1em; color: #aaa; border-bottom: 1px solid #333; padding-bottom: 2px; }
table { width: 100%; border-spacing: 0; margin: 0.5em 0 1.2em; }
td, th { text-align: left; padding: 3px 6px; }
th { width: 35%; color: #999; font-weight: normal; }
.lcd { background: #1d3b1d; color: #9f9; padding: 6px 10px; white-space: pre; display: inline-block; }
.on, .connected { color: #6f6; }
.off { color: #666; }
.disconnected { color: #f66; }
a { color: #6cf; }
</style>
</head>
<body>
<h1>Sensory Game</h1>

<p><span id="display" class="lcd">{{printf "%-16s" .Display}}</span></p>

<h2>Game</h2>
<table>
<tr><th>Mode</th><td id="mode">{{.Mode}}</td></tr>
<tr><th>Phase</th><td id="phase">{{.Device.Phase}}</td></tr>
<tr><th>Module</th><td>{{moduleOrNone .Device.Module}}</td></tr>
<tr><th>Score</th><td id="score">{{.Device.Score}}</td></tr>
<tr><th>Lights</th><td>{{range .Lights}}<span class="on">{{.}}</span> {{else}}<span class="off">none</span>{{end}}</td></tr>
<tr><th>Instruction</th><td>{{.Device.Instruct}}</td></tr>
<tr><th>Motor</th><td class="{{if eq (printf "%s" .Device.Motor) "ON"}}on{{else}}off{{end}}">{{.Device.Motor}} ({{.Device.Duty}}%, knob {{.Device.Reading}})</td></tr>
</table>

<h2>Sessions</h2>
<table>
<tr><th>Current</th><td>{{if .Sessions.Current}}{{.Sessions.Current}}{{else}}-{{end}}</td></tr>
<tr><th>Games played</th><td>{{.Sessions.GamesPlayed}}</td></tr>
<tr><th>Zen sessions</th><td>{{.Sessions.ZenSessions}}</td></tr>
<tr><th>Last score</th><td>{{.Sessions.LastScore}}</td></tr>
<tr><th>High score</th><td id="high-score">{{.Sessions.HighScore}}</td></tr>
</table>

<h2>Sensors</h2>
<table>
{{range .Sensors}}<tr><th>{{.Channel}}</th><td class="{{if .Triggered}}on{{else}}off{{end}}">{{if .Triggered}}triggered{{else}}idle{{end}} ({{.Triggers}})</td></tr>
{{end}}</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Analog</th><td>{{.Config.AnalogMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPPort}}</td></tr>
{{if .Config.Simulated}}<tr><th>Hardware</th><td>simulated</td></tr>{{end}}
</table>

<p><a href="/index.json">JSON</a> | <a href="/history.json">History</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	data := struct {
		status.Snapshot
		Uptime  time.Duration
		Mode    logic.Mode
		Lights  []string
		Sensors []status.SensorJSON
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
		Mode:     snap.Device.Phase.Mode(),
		Lights:   status.LitModules(snap.Device.Lights),
		Sensors:  status.Sensors(snap.Device),
	}
	if err := indexTmpl.Execute(w, data); err != nil {
		log.Printf("web: render index: %v", err)
	}
}
