package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/mail"
	"strings"
	"sync"
	"time"

	"gopkg.in/gomail.v2"

	"autominer/internal/config"
	"autominer/internal/logbus"
	"autominer/internal/model"
)

type sendFunc func(ctx context.Context, settings model.EmailSettings, events []Event) error

// EmailNotifier batches events that arrive close together into one summary
// mail.
type EmailNotifier struct {
	settings model.EmailSettings
	bus      *logbus.Bus
	send     sendFunc

	mu     sync.Mutex
	queue  chan Event
	ctx    context.Context
	cancel func()
	wg     sync.WaitGroup

	summaryWindow time.Duration
	maxBatch      int
}

func NewEmailNotifier(cfg config.NotifyConfig, bus *logbus.Bus) *EmailNotifier {
	return newEmailNotifier(cfg, bus, SendSummaryEmail)
}

func newEmailNotifier(cfg config.NotifyConfig, bus *logbus.Bus, send sendFunc) *EmailNotifier {
	ctx, cancel := context.WithCancel(context.Background())
	n := &EmailNotifier{
		settings: model.EmailSettings{
			Enabled:  cfg.Email.Enabled,
			Email:    strings.TrimSpace(cfg.Email.Address),
			AuthCode: strings.TrimSpace(cfg.Email.AuthCode),
			Host:     strings.TrimSpace(cfg.Email.Host),
			Port:     cfg.Email.Port,
		},
		bus:           bus,
		send:          send,
		queue:         make(chan Event, 200),
		ctx:           ctx,
		cancel:        cancel,
		summaryWindow: cfg.SummaryWindow(),
		maxBatch:      cfg.MaxBatch,
	}
	n.wg.Add(1)
	go n.loop()
	return n
}

// Close flushes pending events and stops the batching loop.
func (n *EmailNotifier) Close(ctx context.Context) error {
	n.mu.Lock()
	cancel := n.cancel
	n.cancel = nil
	n.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (n *EmailNotifier) NotifyEvent(_ context.Context, evt Event) {
	if evt.At == 0 {
		evt.At = time.Now().UnixMilli()
	}
	select {
	case n.queue <- evt:
	default:
		if n.bus != nil {
			n.bus.Warn("email dropped, queue full", map[string]any{"kind": string(evt.Kind)})
		}
	}
}

func (n *EmailNotifier) loop() {
	defer n.wg.Done()

	var (
		pending []Event
		timer   *time.Timer
		timerCh <-chan time.Time
	)

	stopTimer := func() {
		if timer == nil {
			return
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer = nil
		timerCh = nil
	}

	resetTimer := func() {
		if n.summaryWindow <= 0 {
			return
		}
		if timer == nil {
			timer = time.NewTimer(n.summaryWindow)
			timerCh = timer.C
			return
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(n.summaryWindow)
	}

	flush := func(reason string) {
		if len(pending) == 0 {
			stopTimer()
			return
		}
		events := append([]Event(nil), pending...)
		pending = pending[:0]
		stopTimer()
		n.handleBatch(reason, events)
	}

	for {
		select {
		case <-n.ctx.Done():
			// keep what was queued before shutdown
		drain:
			for {
				select {
				case evt := <-n.queue:
					pending = append(pending, evt)
				default:
					break drain
				}
			}
			flush("shutdown")
			return
		case evt := <-n.queue:
			pending = append(pending, evt)
			if n.maxBatch > 0 && len(pending) >= n.maxBatch {
				flush("max")
				continue
			}
			if n.summaryWindow <= 0 {
				flush("immediate")
				continue
			}
			resetTimer()
		case <-timerCh:
			flush("idle")
		}
	}
}

func (n *EmailNotifier) handleBatch(reason string, events []Event) {
	if !n.settings.Enabled {
		if n.bus != nil {
			n.bus.Info("email notifications disabled", map[string]any{"count": len(events), "reason": reason})
		}
		return
	}
	if err := validateEmailSettings(n.settings); err != nil {
		if n.bus != nil {
			n.bus.Warn("email settings invalid", map[string]any{"error": err.Error()})
		}
		return
	}
	// the loop context is already cancelled on shutdown; the final flush
	// still gets a bounded send
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := n.send(ctx, n.settings, events); err != nil {
		if n.bus != nil {
			n.bus.Warn("email send failed", map[string]any{"error": err.Error(), "count": len(events), "reason": reason})
		}
		return
	}
	if n.bus != nil {
		n.bus.Info("notification email sent", map[string]any{"count": len(events), "reason": reason, "to": n.settings.Email})
	}
}

func validateEmailSettings(s model.EmailSettings) error {
	email := strings.TrimSpace(s.Email)
	if email == "" {
		return errors.New("email is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return errors.New("invalid email")
	}
	if strings.TrimSpace(s.AuthCode) == "" {
		return errors.New("authCode is required")
	}
	return nil
}

// SendSummaryEmail mails events to the operator's own address.
func SendSummaryEmail(ctx context.Context, settings model.EmailSettings, events []Event) error {
	if err := validateEmailSettings(settings); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(events) == 0 {
		return errors.New("no events")
	}

	email := strings.TrimSpace(settings.Email)
	host, port, useSSL, err := smtpConfigForEmail(email)
	if err != nil {
		return err
	}
	if settings.Host != "" {
		host = settings.Host
		if settings.Port > 0 {
			port = settings.Port
		}
		useSSL = port == 465
	}
	htmlBody, textBody, err := buildSummaryEmailBody(events)
	if err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", msg.FormatAddress(email, "autominer"))
	msg.SetHeader("To", email)
	msg.SetHeader("Subject", buildSummarySubject(events))
	msg.SetBody("text/plain", textBody)
	msg.AddAlternative("text/html", htmlBody)

	d := gomail.NewDialer(host, port, email, strings.TrimSpace(settings.AuthCode))
	d.SSL = useSSL
	return d.DialAndSend(msg)
}

func smtpConfigForEmail(email string) (host string, port int, useSSL bool, err error) {
	parts := strings.Split(strings.TrimSpace(email), "@")
	if len(parts) != 2 || strings.TrimSpace(parts[1]) == "" {
		return "", 0, false, errors.New("invalid email format")
	}
	domain := strings.ToLower(strings.TrimSpace(parts[1]))

	switch {
	case domain == "gmail.com" || strings.HasSuffix(domain, ".gmail.com"):
		return "smtp.gmail.com", 587, false, nil
	case domain == "naver.com" || strings.HasSuffix(domain, ".naver.com"):
		return "smtp.naver.com", 465, true, nil
	case domain == "daum.net" || domain == "hanmail.net" || strings.HasSuffix(domain, ".daum.net"):
		return "smtp.daum.net", 465, true, nil
	case domain == "kakao.com" || strings.HasSuffix(domain, ".kakao.com"):
		return "smtp.kakao.com", 465, true, nil
	case domain == "outlook.com" || strings.HasSuffix(domain, ".outlook.com") ||
		domain == "hotmail.com" || strings.HasSuffix(domain, ".hotmail.com") ||
		domain == "live.com" || strings.HasSuffix(domain, ".live.com"):
		return "smtp.office365.com", 587, false, nil
	default:
		return "smtp." + domain, 465, true, nil
	}
}

func buildSummarySubject(events []Event) string {
	if len(events) == 1 {
		return "[autominer] " + events[0].Title
	}
	return fmt.Sprintf("[autominer] %d notifications", len(events))
}

var emailSummaryHTMLTpl = template.Must(template.New("email-summary").Parse(`
<!doctype html>
<html lang="ko">
  <head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width" />
    <title>autominer</title>
  </head>
  <body style="margin:0;padding:0;background:#f6f8fb;font-family:-apple-system,BlinkMacSystemFont,'Segoe UI',Roboto,'Apple SD Gothic Neo','Malgun Gothic',sans-serif;">
    <div style="max-width:720px;margin:0 auto;padding:24px;">
      <div style="background:#ffffff;border:1px solid #e6e8ef;border-radius:14px;overflow:hidden;">
        <div style="padding:18px 22px;background:linear-gradient(135deg,#0ea5e9,#6366f1);color:#ffffff;">
          <div style="font-size:16px;font-weight:700;">autominer</div>
          <div style="margin-top:6px;font-size:12px;opacity:.95;">{{ .Total }} event(s), {{ .Start }} ~ {{ .End }}</div>
        </div>
        <div style="padding:22px;">
          <table role="presentation" cellspacing="0" cellpadding="0" border="0" style="width:100%;border-collapse:collapse;">
            <tbody>
              {{ range .Rows }}
              <tr>
                <td style="width:150px;padding:10px 12px;border-bottom:1px solid #eef0f6;color:#6b7280;font-size:12px;">{{ .At }}</td>
                <td style="padding:10px 12px;border-bottom:1px solid #eef0f6;color:#111827;font-size:12px;">
                  <strong>{{ .Title }}</strong>{{ if .Detail }}<br/>{{ .Detail }}{{ end }}{{ if .Stats }}<br/><span style="color:#6b7280;">{{ .Stats }}</span>{{ end }}
                </td>
              </tr>
              {{ end }}
            </tbody>
          </table>
        </div>
      </div>
    </div>
  </body>
</html>
`))

type summaryRow struct {
	At     string
	Title  string
	Detail string
	Stats  string
}

func statsLine(s *model.SessionStats) string {
	if s == nil {
		return ""
	}
	return fmt.Sprintf("mine %d (%+d) · raid %d (%+d) · downloads %d · errors %d",
		s.MineCount, s.MineReward, s.RaidCount, s.RaidReward, s.DownloadCount, s.Errors)
}

func buildSummaryEmailBody(events []Event) (htmlBody string, textBody string, err error) {
	if len(events) == 0 {
		return "", "", errors.New("no events")
	}

	rows := make([]summaryRow, 0, len(events))
	var minAt, maxAt time.Time
	for i, evt := range events {
		at := time.UnixMilli(evt.At)
		if i == 0 || at.Before(minAt) {
			minAt = at
		}
		if i == 0 || at.After(maxAt) {
			maxAt = at
		}
		title := strings.TrimSpace(evt.Title)
		if title == "" {
			title = string(evt.Kind)
		}
		rows = append(rows, summaryRow{
			At:     at.Format("2006-01-02 15:04:05"),
			Title:  title,
			Detail: strings.TrimSpace(evt.Detail),
			Stats:  statsLine(evt.Stats),
		})
	}

	data := struct {
		Total int
		Start string
		End   string
		Rows  []summaryRow
	}{
		Total: len(events),
		Start: minAt.Format("2006-01-02 15:04:05"),
		End:   maxAt.Format("2006-01-02 15:04:05"),
		Rows:  rows,
	}

	var buf bytes.Buffer
	if err := emailSummaryHTMLTpl.Execute(&buf, data); err != nil {
		return "", "", err
	}

	text := new(strings.Builder)
	fmt.Fprintf(text, "autominer: %d event(s), %s ~ %s\n", len(events), data.Start, data.End)
	for _, row := range rows {
		fmt.Fprintf(text, "- %s | %s", row.At, row.Title)
		if row.Detail != "" {
			fmt.Fprintf(text, " | %s", row.Detail)
		}
		if row.Stats != "" {
			fmt.Fprintf(text, " | %s", row.Stats)
		}
		text.WriteString("\n")
	}
	return buf.String(), text.String(), nil
}
