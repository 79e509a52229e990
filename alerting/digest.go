package alerting

import (
	"bytes"
	"fmt"
	"html/template"
	"strconv"
	"strings"
	"time"

	"github.com/amirphl/jobboard-alerts/models"
)

// DigestJob is one line of a digest
type DigestJob struct {
	ID            uint   `json:"id"`
	Title         string `json:"title"`
	Location      string `json:"location"`
	PaymentLabel  string `json:"paymentLabel"`
	PostedAtLabel string `json:"postedAtLabel"`
}

// DigestPayload is the input of every digest renderer
type DigestPayload struct {
	RecipientName string      `json:"recipientName"`
	AlertName     string      `json:"alertName"`
	Jobs          []DigestJob `json:"jobs"`
}

const postedAtLayout = "02/01/2006 15:04"

// BuildDigest collates jobs oldest first. jobs is not modified.
func BuildDigest(recipientName, alertName string, jobs []*models.Job, loc *time.Location) DigestPayload {
	if loc == nil {
		loc = time.UTC
	}
	ordered := make([]*models.Job, 0, len(jobs))
	for _, j := range jobs {
		if j != nil {
			ordered = append(ordered, j)
		}
	}
	SortJobsByPostedAt(ordered)

	out := DigestPayload{
		RecipientName: recipientName,
		AlertName:     alertName,
		Jobs:          make([]DigestJob, 0, len(ordered)),
	}
	for _, j := range ordered {
		out.Jobs = append(out.Jobs, DigestJob{
			ID:            j.ID,
			Title:         j.Title,
			Location:      j.Area,
			PaymentLabel:  PaymentLabel(j),
			PostedAtLabel: j.PostedAt.In(loc).Format(postedAtLayout),
		})
	}
	return out
}

// PaymentLabel renders the authoritative pay field of a job
func PaymentLabel(j *models.Job) string {
	switch j.PaymentKind {
	case models.PaymentKindHourly:
		if j.HourlyRate != nil {
			return "₪" + formatAmount(*j.HourlyRate) + " לשעה"
		}
	case models.PaymentKindGlobal:
		if j.GlobalAmount != nil {
			return "₪" + formatAmount(*j.GlobalAmount) + " סה\"כ"
		}
	}
	return "לפי סיכום"
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

var digestHTML = template.Must(template.New("digest").Parse(`<!DOCTYPE html>
<html dir="rtl" lang="he">
<body>
<p>שלום {{.RecipientName}},</p>
<p>משרות חדשות עבור ההתראה <strong>{{.AlertName}}</strong>:</p>
<table>
{{- range .Jobs}}
<tr data-job-id="{{.ID}}"><td>{{.Title}}</td><td>{{.Location}}</td><td>{{.PaymentLabel}}</td><td>{{.PostedAtLabel}}</td></tr>
{{- end}}
</table>
</body>
</html>
`))

// RenderDigestHTML renders the email body of a digest
func RenderDigestHTML(p DigestPayload) (string, error) {
	var buf bytes.Buffer
	if err := digestHTML.Execute(&buf, p); err != nil {
		return "", fmt.Errorf("render digest: %w", err)
	}
	return buf.String(), nil
}

// RenderDigestText renders a short plain text digest, one line per job
func RenderDigestText(p DigestPayload) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d משרות חדשות", p.AlertName, len(p.Jobs))
	for _, j := range p.Jobs {
		fmt.Fprintf(&b, "\n- %s | %s | %s", j.Title, j.Location, j.PaymentLabel)
	}
	return b.String()
}

// DigestSubject is the email subject of a digest
func DigestSubject(p DigestPayload) string {
	if len(p.Jobs) == 1 {
		return fmt.Sprintf("משרה חדשה: %s", p.Jobs[0].Title)
	}
	return fmt.Sprintf("%d משרות חדשות עבור %s", len(p.Jobs), p.AlertName)
}
