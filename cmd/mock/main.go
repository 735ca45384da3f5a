// Command mock serves a small stand-in for the community site: a mine board,
// a raid board, two ordinary boards and an optional challenge interstitial.
// Point site.baseURL at it to run a session without touching the real site.
package main

import (
	crand "crypto/rand"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"html/template"
	"log"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"
)

type comment struct {
	ID     string
	Author string
	Body   string
	At     time.Time
}

type site struct {
	mu        sync.Mutex
	rnd       *rand.Rand
	nickname  string
	cooldown  time.Duration
	challenge bool

	lastDig   time.Time
	mine      []comment
	raid      []comment
	attacked  bool
	clearance string
}

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	nickname := flag.String("nickname", "광부", "nickname attached to raid comments")
	cooldown := flag.Duration("cooldown", 5*time.Minute, "mining cooldown enforced by the site")
	challenge := flag.Bool("challenge", false, "serve a challenge interstitial until the clearance cookie is set")
	flag.Parse()

	s := &site{
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
		nickname:  *nickname,
		cooldown:  *cooldown,
		challenge: *challenge,
		clearance: randString(16),
	}
	s.mine = []comment{{ID: "c_1", Author: "운영자", Body: "광산이 열렸습니다.", At: time.Now().Add(-time.Hour)}}

	mux := http.NewServeMux()
	mux.HandleFunc("/mock/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{"ok": true})
	})
	mux.HandleFunc("/", s.gated(s.handleHome))
	mux.HandleFunc("/mine", s.gated(s.handleMineList))
	mux.HandleFunc("/mine/1", s.gated(s.handleMineDetail))
	mux.HandleFunc("/mine/1/dig", s.handleDig)
	mux.HandleFunc("/monster", s.gated(s.handleRaidList))
	mux.HandleFunc("/monster/1", s.gated(s.handleRaidDetail))
	mux.HandleFunc("/monster/1/attack", s.handleAttack)
	mux.HandleFunc("/toki_free", s.gated(s.handleBoard("자유게시판")))
	mux.HandleFunc("/humor", s.gated(s.handleBoard("유머게시판")))

	log.Printf("mock site listening on %s (challenge=%v)", *addr, *challenge)
	srv := &http.Server{Addr: *addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	log.Fatal(srv.ListenAndServe())
}

// gated serves the interstitial until the browser holds the clearance cookie.
func (s *site) gated(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.challenge {
			if c, err := r.Cookie("cf_clearance"); err != nil || c.Value != s.clearance {
				w.Header().Set("Cf-Mitigated", "challenge")
				w.Header().Set("Content-Type", "text/html; charset=utf-8")
				w.WriteHeader(http.StatusForbidden)
				render(w, challengeTpl, map[string]any{"Token": s.clearance})
				return
			}
		}
		next(w, r)
	}
}

func (s *site) handleHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	render(w, homeTpl, nil)
}

func (s *site) handleMineList(w http.ResponseWriter, _ *http.Request) {
	rows := []map[string]string{
		{"Href": "/mine/1", "Name": "금광 3호", "Start": "10-17", "End": ""},
		{"Href": "/mine/0", "Name": "폐광 2호", "Start": "10-16", "End": "10-16"},
	}
	render(w, listTpl, map[string]any{"Title": "광산", "Rows": rows})
}

func (s *site) handleMineDetail(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	comments := views(s.mine)
	s.mu.Unlock()
	render(w, mineTpl, map[string]any{"Comments": comments})
}

// handleDig answers the mining button: an alert while cooling down,
// otherwise a new result comment on the board.
func (s *site) handleDig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if !s.lastDig.IsZero() && now.Sub(s.lastDig) < s.cooldown {
		left := s.cooldown - now.Sub(s.lastDig)
		writeJSON(w, map[string]any{"alert": fmt.Sprintf("이미 채굴하셨습니다. %d초 후 다시 시도하세요.", int(left.Seconds()))})
		return
	}
	s.lastDig = now

	var body string
	if s.rnd.Intn(100) < 70 {
		body = fmt.Sprintf("채굴 성공! 채굴 보상 : %s", commas(1000+s.rnd.Intn(800)))
	} else {
		body = fmt.Sprintf("채굴 실패... 실패 보상 : %s", commas(200+s.rnd.Intn(500)))
	}
	s.mine = append([]comment{{ID: fmt.Sprintf("c_%d", len(s.mine)+1), Author: s.nickname, Body: body, At: now}}, s.mine...)
	writeJSON(w, map[string]any{"ok": true})
}

func (s *site) handleRaidList(w http.ResponseWriter, _ *http.Request) {
	// a raid is alive during the :10 and :40 slots
	m := time.Now().Minute()
	end := "종료"
	if (m >= 10 && m < 20) || (m >= 40 && m < 50) {
		end = ""
	}
	render(w, listTpl, map[string]any{
		"Title": "레이드",
		"Rows":  []map[string]string{{"Href": "/monster/1", "Name": "오우거", "Start": "10-17", "End": end}},
	})
}

func (s *site) handleRaidDetail(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	data := map[string]any{"Comments": views(s.raid), "Attacked": s.attacked}
	s.mu.Unlock()
	render(w, raidTpl, data)
}

func (s *site) handleAttack(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attacked {
		writeJSON(w, map[string]any{"alert": "이미 공격한 레이드입니다."})
		return
	}
	s.attacked = true

	var body string
	if s.rnd.Intn(100) < 85 {
		body = fmt.Sprintf("공격! %d 포인트를 흡수했습니다.", 5+s.rnd.Intn(40))
	} else {
		body = fmt.Sprintf("반격당했습니다. %d 포인트를 잃었습니다.", 5+s.rnd.Intn(20))
	}
	s.raid = append([]comment{{ID: fmt.Sprintf("c_%d", len(s.raid)+1), Author: s.nickname, Body: body, At: time.Now()}}, s.raid...)
	writeJSON(w, map[string]any{"alert": "오우거에게 피해를 주었습니다."})
}

func (s *site) handleBoard(title string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		rows := make([]map[string]string, 0, 10)
		for i := 0; i < 10; i++ {
			rows = append(rows, map[string]string{"Href": "#", "Name": fmt.Sprintf("%s 글 %d", title, i+1), "Start": "10-17"})
		}
		render(w, listTpl, map[string]any{"Title": title, "Rows": rows})
	}
}

type commentView struct {
	ID, Author, Body, Age string
}

func views(cs []comment) []commentView {
	out := make([]commentView, 0, len(cs))
	for _, c := range cs {
		out = append(out, commentView{ID: c.ID, Author: c.Author, Body: c.Body, Age: relativeAge(time.Since(c.At))})
	}
	return out
}

func relativeAge(d time.Duration) string {
	switch {
	case d < 5*time.Second:
		return "방금"
	case d < time.Minute:
		return fmt.Sprintf("%d초 전", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%d분 전", int(d.Minutes()))
	default:
		return fmt.Sprintf("%d시간 전", int(d.Hours()))
	}
}

func commas(n int) string {
	s := fmt.Sprint(n)
	var b strings.Builder
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	return b.String()
}

func render(w http.ResponseWriter, tpl *template.Template, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tpl.Execute(w, data); err != nil {
		log.Printf("render %s: %v", tpl.Name(), err)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func randString(n int) string {
	b := make([]byte, n)
	_, _ = crand.Read(b)
	return hex.EncodeToString(b)[:n]
}

var challengeTpl = template.Must(template.New("challenge").Parse(`<!doctype html>
<html><head><title>Just a moment...</title></head>
<body><div id="cf-challenge-running">Verify you are human</div>
<script>
setTimeout(function () {
  document.cookie = "cf_clearance={{.Token}}; path=/";
  location.reload();
}, 3000);
</script></body></html>`))

var homeTpl = template.Must(template.New("home").Parse(`<!doctype html>
<html><head><title>커뮤니티</title></head>
<body><a href="/mine">광산</a> <a href="/monster">레이드</a> <a href="/toki_free">자유</a> <a href="/humor">유머</a></body></html>`))

var listTpl = template.Must(template.New("list").Parse(`<!doctype html>
<html><head><title>{{.Title}}</title></head>
<body><ul>
{{- range .Rows}}
<li class="list-item">
  <div class="wr-subject"><a class="item-subject" href="{{.Href}}">{{.Name}}</a></div>
  <div class="wr-date">{{.Start}}</div><div class="wr-date">{{.End}}</div>
</li>
{{- end}}
</ul></body></html>`))

var commentsBlock = `<div id="bo_vc">
{{- range .Comments}}
<div class="media" id="{{.ID}}">
  <div class="media-heading"><span class="member">{{.Author}}</span> <span class="media-info">{{.Age}}</span></div>
  <div class="media-content">{{.Body}}</div>
</div>
{{- end}}
</div>`

var mineTpl = template.Must(template.New("mine").Parse(`<!doctype html>
<html><head><title>금광 3호</title></head>
<body>
<input type="radio" name="wr_player_mining_tool" id="wr_player_mining_tool_1" value="100"><label for="wr_player_mining_tool_1">곡괭이</label>
<input type="radio" name="wr_player_mining_tool" id="wr_player_mining_tool_6" value="1000"><label for="wr_player_mining_tool_6">드릴</label>
<button class="raid_mining" id="btn_submit" onclick="act('/mine/1/dig')">채굴</button>
` + commentsBlock + actScript + `</body></html>`))

var raidTpl = template.Must(template.New("raid").Parse(`<!doctype html>
<html><head><title>오우거</title></head>
<body>
{{- if .Attacked}}<div id="raid_captcha">공격 완료</div>{{end}}
<input type="radio" name="wr_player_attack" id="wr_player_attack_1"><input type="radio" name="wr_player_attack" id="wr_player_attack_2">
<input type="radio" name="wr_player_attack" id="wr_player_attack_3"><input type="radio" name="wr_player_attack" id="wr_player_attack_4">
<input type="radio" name="wr_player_attack" id="wr_player_attack_5"><input type="radio" name="wr_player_attack" id="wr_player_attack_6">
<button class="comment-submit raid_attack" onclick="act('/monster/1/attack')">공격</button>
` + commentsBlock + actScript + `</body></html>`))

const actScript = `<script>
function act(path) {
  fetch(path, {method: "POST"}).then(function (r) { return r.json(); }).then(function (body) {
    if (body.alert) { alert(body.alert); }
    location.reload();
  });
}
</script>`
