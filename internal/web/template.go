package web

import (
	"fmt"
	"html/template"
	"io"
	"log"
	"math"
	"time"

	"github.com/sweeney/weather-station/internal/status"
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
	"num": func(v float64, unit string) string {
		if math.IsNaN(v) {
			return "n/a"
		}
		return fmt.Sprintf("%.1f%s", v, unit)
	},
	"orUnknown": func(s string) string {
		if s == "" {
			return "UNKNOWN"
		}
		return s
	},
	"when": func(t time.Time) string {
		if t.IsZero() {
			return "never"
		}
		return t.UTC().Format("2006-01-02T15:04:05Z")
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="10">
<title>Weather Station {{.Config.StationID}}</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.wet { color: #06c; font-weight: bold; }
.dry { color: #888; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Weather Station {{.Config.StationID}}</h1>

<h2>Rain</h2>
<table>
<tr><th>State</th><td id="rain-state" class="{{if .Wetness.IsWet}}wet{{else}}dry{{end}}">{{if .Wetness.IsWet}}WET{{else}}DRY{{end}}</td></tr>
<tr><th>Wetness</th><td>{{num .Wetness.DisplayPercent "%"}}</td></tr>
<tr><th>Digital / drop</th><td>{{if .Wetness.IsWetHardware}}wet{{else}}dry{{end}} / {{if .Wetness.IsWetByDrop}}wet{{else}}dry{{end}}</td></tr>
<tr><th>Raw</th><td>{{num .Wetness.Raw ""}}</td></tr>
<tr><th>Dry / wet ref</th><td>{{if .Ready}}{{num .Calibration.DryRef ""}} / {{num .Calibration.WetRef ""}}{{else}}calibrating{{end}}</td></tr>
<tr><th>Polarity</th><td>{{orUnknown (printf "%s" .Calibration.Polarity)}}</td></tr>
</table>

<h2>Cover</h2>
<table>
<tr><th>Position</th><td id="cover-position">{{orUnknown (printf "%s" .Position)}} ({{.Angle}}&deg;)</td></tr>
<tr><th>Last move</th><td>{{when .LastMove}}</td></tr>
<tr><th>Moves to wet / dry</th><td>{{.Counts.ToWet}} / {{.Counts.ToDry}}</td></tr>
<tr><th>Overrides</th><td>{{.Counts.Overrides}}</td></tr>
</table>

<h2>Wind &amp; Air</h2>
<table>
<tr><th>Wind</th><td>{{num .Wind.Speed " m/s"}} ({{num .Wind.RPM " rpm"}}, {{.Pulses}} pulses this window)</td></tr>
{{if not .Env.Valid}}<tr><th>Air sensor</th><td>not available</td></tr>{{end}}
<tr><th>Temperature</th><td>{{num .Env.TempC " °C"}}</td></tr>
<tr><th>Humidity</th><td>{{num .Env.Humidity " %"}}</td></tr>
<tr><th>Pressure</th><td>{{num .Env.PressureHPa " hPa"}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
<tr><th>Topics</th><td>{{.Config.TopicBase}}/#</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Publish</th><td>{{.Config.PublishMs}}ms</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPPort}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	if err := indexTmpl.Execute(w, data); err != nil {
		log.Printf("web: render index: %v", err)
	}
}
