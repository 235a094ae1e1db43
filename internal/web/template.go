package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/dht-exporter/internal/dht"
	"github.com/sweeney/dht-exporter/internal/mqtt"
	"github.com/sweeney/dht-exporter/internal/status"
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
	"tenths": func(v float64) string {
		return fmt.Sprintf("%.1f", v)
	},
	"ms": func(d time.Duration) string {
		return fmt.Sprintf("%.1fms", float64(d)/float64(time.Millisecond))
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>DHT Exporter: {{.Config.Name}}</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.value { font-weight: bold; }
.waiting { color: orange; }
.errors { color: red; }
.connected { color: green; }
.disconnected { color: red; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
.live-dot.pending { background: orange; }
</style>
</head>
<body>
<h1>{{.Config.Name}}{{if .Config.WSBroker}}<span id="live-dot" class="live-dot pending" title="connecting"></span>{{end}}</h1>

<h2>Reading</h2>
<table>
{{if .HasReading}}<tr><th>Temperature</th><td id="temperature" class="value">{{tenths .Latest.Celsius}} &deg;C</td></tr>
<tr><th>Humidity</th><td id="humidity" class="value">{{tenths .Latest.RelativeHumidity}} %</td></tr>
<tr><th>Last success</th><td id="last-success">{{.LastSuccess.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
{{else}}<tr><th>Temperature</th><td id="temperature" class="waiting">waiting</td></tr>
<tr><th>Humidity</th><td id="humidity" class="waiting">waiting</td></tr>
<tr><th>Last success</th><td id="last-success">never</td></tr>
{{end}}</table>

<h2>Reads</h2>
<table>
<tr><th>Attempts</th><td>{{.Attempts}}</td></tr>
{{range .ErrorRows}}<tr><th>Errors: {{.Label}}</th><td{{if .Count}} class="errors"{{end}}>{{.Count}}</td></tr>
{{end}}<tr><th>Last read</th><td>{{ms .LastReadDuration}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{if .Config.Broker}}{{.Config.Broker}}{{else}}disabled{{end}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Pin</th><td>{{.Config.Pin}} ({{.Config.Backend}})</td></tr>
<tr><th>Interval</th><td>{{.Config.IntervalMs}}ms</td></tr>
<tr><th>Start pulse</th><td>{{.Config.StartLowMs}}ms</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/metrics">Metrics</a> | <a href="/index.json">JSON</a></p>
{{if .Config.WSBroker}}
<script src="https://unpkg.com/mqtt@5/dist/mqtt.min.js"></script>
<script>
(function() {
  var broker = "{{.Config.WSBroker}}";
  var topic = "{{.Topic}}";
  var dot = document.getElementById("live-dot");
  var tempEl = document.getElementById("temperature");
  var humEl = document.getElementById("humidity");
  var lastEl = document.getElementById("last-success");

  function setValue(el, text) {
    el.textContent = text;
    el.className = "value";
  }

  function setDot(cls, title) {
    dot.className = "live-dot " + cls;
    dot.title = title;
  }

  var client = mqtt.connect(broker, { reconnectPeriod: 5000 });

  client.on("connect", function() {
    setDot("ok", "live");
    client.subscribe(topic);
  });

  client.on("reconnect", function() {
    setDot("pending", "reconnecting");
  });

  client.on("offline", function() {
    setDot("err", "offline");
  });

  client.on("error", function() {
    setDot("err", "error");
  });

  client.on("message", function(t, payload) {
    try {
      var msg = JSON.parse(payload.toString());
      if (msg.reading) {
        setValue(tempEl, msg.reading.temperature_c.toFixed(1) + " °C");
        setValue(humEl, msg.reading.humidity_pct.toFixed(1) + " %");
        lastEl.textContent = msg.reading.timestamp;
      }
    } catch (e) {}
  });
})();
</script>
{{end}}
</body>
</html>
`

type errorRow struct {
	Label string
	Count uint64
}

func renderHTML(w io.Writer, snap status.Snapshot) error {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime    time.Duration
		ErrorRows []errorRow
		Topic     string
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
		Topic:    mqtt.ReadingsTopic(snap.Config.Name),
	}
	for _, k := range dht.Kinds {
		data.ErrorRows = append(data.ErrorRows, errorRow{Label: k.Label(), Count: snap.Errors.Get(k)})
	}
	return indexTmpl.Execute(w, data)
}
