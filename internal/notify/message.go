package notify

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"strconv"
	"text/template"
	"time"

	"github.com/MrSnakeDoc/uptimer/internal/domain"
	"github.com/MrSnakeDoc/uptimer/internal/mailer"
)

// Event is the kind of notification being sent.
type Event string

const (
	EventDown Event = "down"
	EventUp   Event = "up"
)

// DefaultTimezone is used when no timezone is configured.
const DefaultTimezone = "Europe/Tallinn"

// Header names set on every notification.
const (
	HeaderURL   = "X-Uptime-Url"
	HeaderEvent = "X-Uptime-Event"
)

// messageData is the template input of one notification.
type messageData struct {
	Product   string
	URL       string
	Status    string
	Detail    string
	Latency   string
	HTTPCode  string
	Timestamp string
	Owner     string
	Down      bool
}

const textBody = `{{.Product}} alert

URL:       {{.URL}}
Status:    {{.Status}}
{{- if .Down}}
Detail:    {{.Detail}}
{{- else}}
Latency:   {{.Latency}}
{{- end}}
{{- if .HTTPCode}}
HTTP code: {{.HTTPCode}}
{{- end}}
Time:      {{.Timestamp}}
{{if .Down}}
You will receive one more message when the site recovers.
{{- else}}
The site is reachable again. This incident is closed.
{{- end}}
`

const htmlBody = `<!DOCTYPE html>
<html><body style="font-family: sans-serif">
<h2 style="color: {{if .Down}}#c0392b{{else}}#27ae60{{end}}">{{.Status}}: {{.URL}}</h2>
<table cellpadding="4">
<tr><td><strong>URL</strong></td><td><a href="{{.URL}}">{{.URL}}</a></td></tr>
<tr><td><strong>Status</strong></td><td>{{.Status}}</td></tr>
{{if .Down}}<tr><td><strong>Detail</strong></td><td>{{.Detail}}</td></tr>
{{else}}<tr><td><strong>Latency</strong></td><td>{{.Latency}}</td></tr>
{{end}}{{if .HTTPCode}}<tr><td><strong>HTTP code</strong></td><td>{{.HTTPCode}}</td></tr>
{{end}}<tr><td><strong>Time</strong></td><td>{{.Timestamp}}</td></tr>
</table>
<p style="color: #777">{{.Product}}</p>
</body></html>
`

var (
	textTmpl = template.Must(template.New("text").Parse(textBody))
	htmlTmpl = htmltemplate.Must(htmltemplate.New("html").Parse(htmlBody))
)

// Composer renders incident and recovery messages.
type Composer struct {
	product string
	loc     *time.Location
}

// NewComposer loads the timezone used for timestamps. An empty name means
// DefaultTimezone.
func NewComposer(product, timezone string) (*Composer, error) {
	if timezone == "" {
		timezone = DefaultTimezone
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q: %w", timezone, err)
	}
	if product == "" {
		product = "Uptime Monitor"
	}
	return &Composer{product: product, loc: loc}, nil
}

// Location returns the configured timezone.
func (c *Composer) Location() *time.Location { return c.loc }

// Compose renders the message for one recipient.
func (c *Composer) Compose(event Event, target domain.Target, result domain.CheckResult, to string) (mailer.Message, error) {
	data := messageData{
		Product:   c.product,
		URL:       target.URL,
		Detail:    result.Detail,
		Latency:   strconv.FormatFloat(result.LatencyMS, 'f', 2, 64) + " ms",
		Timestamp: result.CheckedAt.In(c.loc).Format(time.RFC3339),
		Owner:     target.Owner,
		Down:      event == EventDown,
	}
	if result.HTTPStatus != nil {
		data.HTTPCode = strconv.Itoa(*result.HTTPStatus)
	}

	var subject string
	if data.Down {
		data.Status = "DOWN"
		subject = fmt.Sprintf("[%s] DOWN: %s", c.product, target.URL)
	} else {
		data.Status = "RECOVERED"
		subject = fmt.Sprintf("[%s] RECOVERED: %s", c.product, target.URL)
	}

	var text, html bytes.Buffer
	if err := textTmpl.Execute(&text, data); err != nil {
		return mailer.Message{}, fmt.Errorf("failed to render text body: %w", err)
	}
	if err := htmlTmpl.Execute(&html, data); err != nil {
		return mailer.Message{}, fmt.Errorf("failed to render html body: %w", err)
	}

	return mailer.Message{
		To:      to,
		Subject: subject,
		Text:    text.String(),
		HTML:    html.String(),
		Headers: map[string]string{
			HeaderURL:   target.URL,
			HeaderEvent: string(event),
		},
	}, nil
}
