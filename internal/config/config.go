package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Browser   BrowserConfig   `yaml:"browser"`
	Schedule  ScheduleConfig  `yaml:"schedule"`
	Mining    MiningConfig    `yaml:"mining"`
	Raid      RaidConfig      `yaml:"raid"`
	Download  DownloadConfig  `yaml:"download"`
	Visit     VisitConfig     `yaml:"visit"`
	Challenge ChallengeConfig `yaml:"challenge"`
	Storage   StorageConfig   `yaml:"storage"`
	Log       LogConfig       `yaml:"log"`
	Server    ServerConfig    `yaml:"server"`
	Notify    NotifyConfig    `yaml:"notify"`
}

// Range is an inclusive millisecond range drawn uniformly.
type Range struct {
	MinMs int `yaml:"minMs"`
	MaxMs int `yaml:"maxMs"`
}

func (r Range) Min() time.Duration { return time.Duration(r.MinMs) * time.Millisecond }
func (r Range) Max() time.Duration { return time.Duration(r.MaxMs) * time.Millisecond }

func (r Range) orDefault(minMs, maxMs int) Range {
	if r.MinMs <= 0 && r.MaxMs <= 0 {
		return Range{MinMs: minMs, MaxMs: maxMs}
	}
	if r.MaxMs < r.MinMs {
		r.MaxMs = r.MinMs
	}
	return r
}

func ms(v, def int) time.Duration {
	if v <= 0 {
		return time.Duration(def) * time.Millisecond
	}
	return time.Duration(v) * time.Millisecond
}

type SiteConfig struct {
	BaseURL   string          `yaml:"baseURL"`
	Nickname  string          `yaml:"nickname"`
	ProbeSpan int             `yaml:"probeSpan"`
	TimeoutMs int             `yaml:"timeoutMs"`
	Retry     SiteRetryConfig `yaml:"retry"`
	UserAgent string          `yaml:"userAgent"`
	Proxy     string          `yaml:"proxy"`
}

type SiteRetryConfig struct {
	Count     int `yaml:"count"`
	WaitMs    int `yaml:"waitMs"`
	MaxWaitMs int `yaml:"maxWaitMs"`
}

func (c SiteConfig) Timeout() time.Duration      { return ms(c.TimeoutMs, 15000) }
func (c SiteRetryConfig) Wait() time.Duration    { return ms(c.WaitMs, 500) }
func (c SiteRetryConfig) MaxWait() time.Duration { return ms(c.MaxWaitMs, 3000) }

type BrowserConfig struct {
	Headless     bool           `yaml:"headless"`
	Bin          string         `yaml:"bin"`
	UserDataDir  string         `yaml:"userDataDir"`
	Viewport     ViewportConfig `yaml:"viewport"`
	NavTimeoutMs int            `yaml:"navTimeoutMs"`
	NavQPS       float64        `yaml:"navQPS"`
	NavBurst     int            `yaml:"navBurst"`
	ClickDelay   Range          `yaml:"clickDelay"`
	ClickOffset  int            `yaml:"clickOffset"`
	PageLoad     Range          `yaml:"pageLoad"`
	DialogDelay  Range          `yaml:"dialogDelay"`
	TypeDelay    Range          `yaml:"typeDelay"`
	MouseSteps   int            `yaml:"mouseSteps"`
	SnapshotDir  string         `yaml:"snapshotDir"`
}

type ViewportConfig struct {
	MinWidth  int `yaml:"minWidth"`
	MaxWidth  int `yaml:"maxWidth"`
	MinHeight int `yaml:"minHeight"`
	MaxHeight int `yaml:"maxHeight"`
}

func (c BrowserConfig) NavTimeout() time.Duration { return ms(c.NavTimeoutMs, 30000) }

type ScheduleConfig struct {
	TickMs          int               `yaml:"tickMs"`
	ActiveHours     ActiveHoursConfig `yaml:"activeHours"`
	ErrorBackoffMs  int               `yaml:"errorBackoffMs"`
	StatusEveryMs   int               `yaml:"statusEveryMs"`
	DailyMiningGoal int               `yaml:"dailyMiningGoal"`
	Seed            int64             `yaml:"seed"`
	RolloverCron    string            `yaml:"rolloverCron"`
}

// ActiveHoursConfig is a [Start, End) hour window. End 24 means midnight and
// Start > End wraps past midnight. Start == End disables the gate.
type ActiveHoursConfig struct {
	Start int `yaml:"start"`
	End   int `yaml:"end"`
}

func (c ScheduleConfig) Tick() time.Duration         { return ms(c.TickMs, 1000) }
func (c ScheduleConfig) ErrorBackoff() time.Duration { return ms(c.ErrorBackoffMs, 30000) }
func (c ScheduleConfig) StatusEvery() time.Duration  { return ms(c.StatusEveryMs, 60000) }

// Contains reports whether hour (0..23) falls inside the window.
func (c ActiveHoursConfig) Contains(hour int) bool {
	switch {
	case c.Start == c.End:
		return true
	case c.End >= 24:
		return hour >= c.Start
	case c.Start > c.End:
		return hour >= c.Start || hour < c.End
	default:
		return hour >= c.Start && hour < c.End
	}
}

type ListSelectors struct {
	Item    string `yaml:"item"`
	Link    string `yaml:"link"`
	EndDate string `yaml:"endDate"`
}

type CommentSelectors struct {
	Item   string `yaml:"item"`
	Author string `yaml:"author"`
	Body   string `yaml:"body"`
	Age    string `yaml:"age"`
}

type MiningConfig struct {
	Enabled       bool             `yaml:"enabled"`
	ListPath      string           `yaml:"listPath"`
	CooldownMs    int              `yaml:"cooldownMs"`
	Extra         Range            `yaml:"extra"`
	ToolCost      int              `yaml:"toolCost"`
	ToolSelector  string           `yaml:"toolSelector"`
	ToolCosts     map[string]int   `yaml:"toolCosts"`
	Button        string           `yaml:"button"`
	ControlWaitMs int              `yaml:"controlWaitMs"`
	DialogWait    Range            `yaml:"dialogWait"`
	CommentPollMs int              `yaml:"commentPollMs"`
	CommentWaitMs int              `yaml:"commentWaitMs"`
	List          ListSelectors    `yaml:"list"`
	Comments      CommentSelectors `yaml:"comments"`
}

func (c MiningConfig) Cooldown() time.Duration    { return ms(c.CooldownMs, 300000) }
func (c MiningConfig) ControlWait() time.Duration { return ms(c.ControlWaitMs, 10000) }
func (c MiningConfig) CommentPoll() time.Duration { return ms(c.CommentPollMs, 500) }
func (c MiningConfig) CommentWait() time.Duration { return ms(c.CommentWaitMs, 5000) }

// RaidSlot is a recurring window starting at StartMinute of every hour.
type RaidSlot struct {
	StartMinute     int `yaml:"startMinute"`
	DurationMinutes int `yaml:"durationMinutes"`
}

type RaidConfig struct {
	Enabled        bool             `yaml:"enabled"`
	ListPath       string           `yaml:"listPath"`
	Slots          []RaidSlot       `yaml:"slots"`
	AttackTypes    int              `yaml:"attackTypes"`
	AttackRadio    string           `yaml:"attackRadio"`
	Button         string           `yaml:"button"`
	AttackedMarker string           `yaml:"attackedMarker"`
	ControlWaitMs  int              `yaml:"controlWaitMs"`
	DialogWaitMs   int              `yaml:"dialogWaitMs"`
	CommentWaitMs  int              `yaml:"commentWaitMs"`
	RecencySeconds int              `yaml:"recencySeconds"`
	DefaultReward  int              `yaml:"defaultReward"`
	List           ListSelectors    `yaml:"list"`
	Comments       CommentSelectors `yaml:"comments"`
}

func (c RaidConfig) ControlWait() time.Duration { return ms(c.ControlWaitMs, 5000) }
func (c RaidConfig) DialogWait() time.Duration  { return ms(c.DialogWaitMs, 1500) }
func (c RaidConfig) CommentWait() time.Duration { return ms(c.CommentWaitMs, 5000) }
func (c RaidConfig) Recency() time.Duration {
	if c.RecencySeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.RecencySeconds) * time.Second
}

type DownloadConfig struct {
	Enabled      bool     `yaml:"enabled"`
	StartDelayMs int      `yaml:"startDelayMs"`
	DurationMs   int      `yaml:"durationMs"`
	StepMs       int      `yaml:"stepMs"`
	Pages        []string `yaml:"pages"`
}

func (c DownloadConfig) StartDelay() time.Duration { return ms(c.StartDelayMs, 60000) }
func (c DownloadConfig) Duration() time.Duration   { return ms(c.DurationMs, 180000) }
func (c DownloadConfig) Step() time.Duration       { return ms(c.StepMs, 5000) }

type VisitConfig struct {
	Enabled bool     `yaml:"enabled"`
	Percent float64  `yaml:"percent"`
	Pages   []string `yaml:"pages"`
	Stay    Range    `yaml:"stay"`
}

type ChallengeConfig struct {
	TitleKeywords []string `yaml:"titleKeywords"`
	URLMarkers    []string `yaml:"urlMarkers"`
	DOMMarkers    []string `yaml:"domMarkers"`
	BodyPhrases   []string `yaml:"bodyPhrases"`
	FrameSelector string   `yaml:"frameSelector"`
	PassiveWait   Range    `yaml:"passiveWait"`
	SettleWait    Range    `yaml:"settleWait"`
	PollMs        int      `yaml:"pollMs"`
	ClickX        float64  `yaml:"clickX"`
	ClickY        float64  `yaml:"clickY"`
}

func (c ChallengeConfig) Poll() time.Duration { return ms(c.PollMs, 1000) }

type StorageConfig struct {
	SQLitePath string `yaml:"sqlitePath"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"maxSizeMB"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
	Compress   bool   `yaml:"compress"`
	ReportDir  string `yaml:"reportDir"`
	BusSize    int    `yaml:"busSize"`
}

type ServerConfig struct {
	Addr string     `yaml:"addr"`
	Cors CorsConfig `yaml:"cors"`
}

type CorsConfig struct {
	AllowOrigins     []string `yaml:"allowOrigins"`
	AllowCredentials bool     `yaml:"allowCredentials"`
}

type NotifyConfig struct {
	Email           EmailConfig `yaml:"email"`
	SummaryWindowMs int         `yaml:"summaryWindowMs"`
	MaxBatch        int         `yaml:"maxBatch"`
}

type EmailConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Address  string `yaml:"address"`
	AuthCode string `yaml:"authCode"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
}

func (c NotifyConfig) SummaryWindow() time.Duration { return ms(c.SummaryWindowMs, 60000) }

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return Parse(b)
}

func Parse(b []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Default returns the configuration with feature switches on. Omitted keys in
// a YAML file keep these values; keys whose zero is meaningful get their
// defaults here rather than in applyDefaults.
func Default() Config {
	return Config{
		Mining:   MiningConfig{Enabled: true, Extra: Range{MinMs: 0, MaxMs: 120000}},
		Raid:     RaidConfig{Enabled: true, DefaultReward: 10},
		Download: DownloadConfig{Enabled: true},
		Visit:    VisitConfig{Enabled: true},
		Schedule: ScheduleConfig{ActiveHours: ActiveHoursConfig{Start: 8, End: 24}},
	}
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv("AUTOMINER_SMTP_PASSWORD")); v != "" {
		c.Notify.Email.AuthCode = v
	}
	if v := strings.TrimSpace(os.Getenv("AUTOMINER_HEADLESS")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Browser.Headless = b
		}
	}
	if v := strings.TrimSpace(os.Getenv("AUTOMINER_BASE_URL")); v != "" {
		c.Site.BaseURL = v
	}
}

func (c *Config) applyDefaults() {
	if c.Site.BaseURL == "" {
		c.Site.BaseURL = "http://127.0.0.1:8080"
	}
	c.Site.BaseURL = strings.TrimRight(c.Site.BaseURL, "/")
	if c.Site.ProbeSpan <= 0 {
		c.Site.ProbeSpan = 5
	}
	if c.Site.Retry.Count < 0 {
		c.Site.Retry.Count = 0
	}

	b := &c.Browser
	if b.Viewport.MinWidth <= 0 {
		b.Viewport = ViewportConfig{MinWidth: 1280, MaxWidth: 1920, MinHeight: 720, MaxHeight: 1080}
	}
	if b.NavQPS <= 0 {
		b.NavQPS = 0.5
	}
	if b.NavBurst <= 0 {
		b.NavBurst = 2
	}
	b.ClickDelay = b.ClickDelay.orDefault(100, 500)
	b.PageLoad = b.PageLoad.orDefault(2000, 4000)
	b.DialogDelay = b.DialogDelay.orDefault(500, 1500)
	b.TypeDelay = b.TypeDelay.orDefault(60, 180)
	if b.ClickOffset <= 0 {
		b.ClickOffset = 10
	}
	if b.MouseSteps <= 0 {
		b.MouseSteps = 25
	}
	if b.SnapshotDir == "" {
		b.SnapshotDir = "./data/snapshots"
	}

	s := &c.Schedule
	if s.RolloverCron == "" {
		s.RolloverCron = "0 0 0 * * *"
	}

	m := &c.Mining
	if m.ListPath == "" {
		m.ListPath = "/mine"
	}
	if m.Extra.MaxMs < m.Extra.MinMs {
		m.Extra.MaxMs = m.Extra.MinMs
	}
	if m.ToolCost <= 0 {
		m.ToolCost = 1000
	}
	if m.ToolSelector == "" {
		m.ToolSelector = `input[name="wr_player_mining_tool"]`
	}
	if len(m.ToolCosts) == 0 {
		m.ToolCosts = map[string]int{"wr_player_mining_tool_6": 1000}
	}
	if m.Button == "" {
		m.Button = "button.raid_mining#btn_submit"
	}
	m.DialogWait = m.DialogWait.orDefault(3000, 5000)
	m.List = m.List.orDefault()
	m.Comments = m.Comments.orDefault()

	r := &c.Raid
	if r.ListPath == "" {
		r.ListPath = "/monster"
	}
	if len(r.Slots) == 0 {
		r.Slots = []RaidSlot{{StartMinute: 10, DurationMinutes: 10}, {StartMinute: 40, DurationMinutes: 10}}
	}
	if r.AttackTypes <= 0 {
		r.AttackTypes = 6
	}
	if r.AttackRadio == "" {
		r.AttackRadio = "#wr_player_attack_%d"
	}
	if r.Button == "" {
		r.Button = "button.comment-submit.raid_attack"
	}
	if r.AttackedMarker == "" {
		r.AttackedMarker = "#raid_captcha"
	}
	r.List = r.List.orDefault()
	r.Comments = r.Comments.orDefault()

	if len(c.Visit.Pages) == 0 {
		c.Visit.Pages = []string{"/toki_free", "/humor"}
	}
	if c.Visit.Percent <= 0 {
		c.Visit.Percent = 2
	}
	c.Visit.Stay = c.Visit.Stay.orDefault(10000, 30000)
	if len(c.Download.Pages) == 0 {
		c.Download.Pages = c.Visit.Pages
	}

	ch := &c.Challenge
	if len(ch.TitleKeywords) == 0 {
		ch.TitleKeywords = []string{"Just a moment", "Checking your browser", "Attention Required"}
	}
	if len(ch.URLMarkers) == 0 {
		ch.URLMarkers = []string{"__cf_chl", "/cdn-cgi/challenge-platform"}
	}
	if len(ch.DOMMarkers) == 0 {
		ch.DOMMarkers = []string{`iframe[src*="challenges.cloudflare.com"]`, "#challenge-form", "#cf-challenge-running"}
	}
	if len(ch.BodyPhrases) == 0 {
		ch.BodyPhrases = []string{"Verify you are human", "완료하여 사람임을 확인", "I am human"}
	}
	if ch.FrameSelector == "" {
		ch.FrameSelector = `iframe[src*="challenges.cloudflare.com"]`
	}
	ch.PassiveWait = ch.PassiveWait.orDefault(15000, 20000)
	ch.SettleWait = ch.SettleWait.orDefault(10000, 15000)
	if ch.ClickX == 0 && ch.ClickY == 0 {
		ch.ClickX, ch.ClickY = 253, 289
	}

	if c.Storage.SQLitePath == "" {
		c.Storage.SQLitePath = "./data/autominer.db"
	}
	l := &c.Log
	if l.Level == "" {
		l.Level = "info"
	}
	if l.File == "" {
		l.File = "./logs/autominer.log"
	}
	if l.MaxSizeMB <= 0 {
		l.MaxSizeMB = 20
	}
	if l.MaxBackups <= 0 {
		l.MaxBackups = 5
	}
	if l.MaxAgeDays <= 0 {
		l.MaxAgeDays = 14
	}
	if l.ReportDir == "" {
		l.ReportDir = "./logs/reports"
	}
	if l.BusSize <= 0 {
		l.BusSize = 200
	}
	if c.Notify.MaxBatch <= 0 {
		c.Notify.MaxBatch = 20
	}
}

func (s ListSelectors) orDefault() ListSelectors {
	if s.Item == "" {
		s.Item = "li.list-item"
	}
	if s.Link == "" {
		s.Link = ".wr-subject a.item-subject"
	}
	if s.EndDate == "" {
		s.EndDate = ".wr-date"
	}
	return s
}

func (s CommentSelectors) orDefault() CommentSelectors {
	if s.Item == "" {
		s.Item = `#bo_vc .media[id^="c_"]`
	}
	if s.Author == "" {
		s.Author = ".media-heading .member"
	}
	if s.Body == "" {
		s.Body = ".media-content"
	}
	if s.Age == "" {
		s.Age = ".media-heading .media-info"
	}
	return s
}

func (c Config) validate() error {
	if c.Site.BaseURL == "" {
		return errors.New("site.baseURL is required")
	}
	if c.Mining.Extra.MinMs < 0 {
		return errors.New("mining.extra.minMs must not be negative")
	}
	h := c.Schedule.ActiveHours
	if h.Start < 0 || h.Start > 23 || h.End < 0 || h.End > 24 {
		return errors.New("schedule.activeHours must be within 0..24")
	}
	for i, s := range c.Raid.Slots {
		if s.StartMinute < 0 || s.StartMinute > 59 || s.DurationMinutes <= 0 || s.DurationMinutes > 60 {
			return fmt.Errorf("raid.slots[%d] is out of range", i)
		}
	}
	if c.Visit.Percent > 100 {
		return errors.New("visit.percent must be <= 100")
	}
	if c.Notify.Email.Enabled && c.Notify.Email.Address == "" {
		return errors.New("notify.email.address is required when email is enabled")
	}
	return nil
}
