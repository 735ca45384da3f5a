package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"autominer/internal/model"
)

// Input is everything a session report shows. Progress is optional.
type Input struct {
	SessionID string
	Seed      int64
	StartedAt time.Time
	EndedAt   time.Time
	Reason    string
	Stats     model.SessionStats
	Challenge model.ChallengeCounters
	Progress  *model.DailyProgress
	Timeline  []model.TimelineEvent
}

var reportTpl = template.Must(template.New("report").Funcs(template.FuncMap{
	"clock":  func(t time.Time) string { return t.Format("15:04:05") },
	"stamp":  func(t time.Time) string { return t.Format("2006-01-02 15:04:05") },
	"signed": func(n int) string { return fmt.Sprintf("%+d", n) },
	"cell":   cell,
}).Parse(`# Session {{.SessionID}}

- Started: {{stamp .StartedAt}}
- Ended: {{stamp .EndedAt}} ({{.Duration}})
{{- if .Reason}}
- Stopped by: {{.Reason}}
{{- end}}
- Seed: {{.Seed}}

## Totals

| Activity | Count | Reward |
|---|---:|---:|
| Mining | {{.Stats.MineCount}} | {{signed .Stats.MineReward}} |
| Raid | {{.Stats.RaidCount}} | {{signed .Stats.RaidReward}} |
| Download | {{.Stats.DownloadCount}} | |
| Visit | {{.Stats.VisitCount}} | |
| **Total** | | **{{signed .Stats.TotalReward}}** |

Errors: {{.Stats.Errors}}

## Challenges

| Auto passed | Click passed | Failed |
|---:|---:|---:|
| {{.Challenge.AutoPassed}} | {{.Challenge.ClickPassed}} | {{.Challenge.Failed}} |
{{- with .Progress}}

## Today ({{.Day}})

Mined {{.MineCount}} ({{signed .MineReward}}), raided {{.RaidCount}} ({{signed .RaidReward}}), downloads {{.Downloads}}.
{{- end}}

## Timeline
{{if .Timeline}}
| Time | Kind | Event | Detail |
|---|---|---|---|
{{- range .Timeline}}
| {{clock .At}} | {{cell .Kind}} | {{cell .Title}} | {{cell .Detail}} |
{{- end}}
{{else}}
Nothing happened.
{{end}}`))

type view struct {
	Input
	Duration string
}

// Render produces the markdown session report.
func Render(in Input) (string, error) {
	d := in.EndedAt.Sub(in.StartedAt)
	if d < 0 {
		d = 0
	}
	var b strings.Builder
	if err := reportTpl.Execute(&b, view{Input: in, Duration: d.Round(time.Second).String()}); err != nil {
		return "", fmt.Errorf("render report: %w", err)
	}
	return b.String(), nil
}

// Write renders in into dir and returns the file path.
func Write(dir string, in Input) (string, error) {
	body, err := Render(in)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	id := in.SessionID
	if len(id) > 8 {
		id = id[:8]
	}
	path := filepath.Join(dir, fmt.Sprintf("session-%s-%s.md", in.StartedAt.Format("20060102-150405"), id))
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// cell keeps free text from breaking the table row.
func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.Join(strings.Fields(s), " ")
}
