package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"autominer/internal/browser"
	"autominer/internal/config"
	"autominer/internal/logbus"
	"autominer/internal/model"
	"autominer/internal/notify"
	"autominer/internal/random"
)

// ErrGoalReached ends Run once today's mining count meets the daily goal.
var ErrGoalReached = errors.New("engine: daily mining goal reached")

const (
	PhaseIdle     = "idle"
	PhaseMining   = "mining"
	PhaseRaid     = "raid"
	PhaseDownload = "download"
	PhaseVisit    = "visit"
	PhaseResting  = "resting"
	PhaseBackoff  = "backoff"
	PhaseStopped  = "stopped"
)

const maxTimeline = 500

type Attempter interface {
	Attempt(ctx context.Context, page browser.Page) (model.ActivityResult, error)
}

// Filler occupies the page until done reports true.
type Filler interface {
	Fill(ctx context.Context, page browser.Page, done func() bool) (model.ActivityResult, error)
}

// Recorder persists attempts and answers the daily goal question.
type Recorder interface {
	RecordAttempt(ctx context.Context, a model.Attempt) error
	Progress(ctx context.Context, day string) (model.DailyProgress, error)
	ResetDay(ctx context.Context, day string) error
}

type Options struct {
	Config   config.Config
	Page     browser.Page
	Miner    Attempter
	Raider   Attempter
	Filler   Filler
	Visitor  Attempter
	Recorder Recorder
	Notifier notify.Notifier
	Bus      *logbus.Bus
	Clock    Clock
	Rand     *random.Policy
}

// ActivityEvent is published on the bus after every attempt.
type ActivityEvent struct {
	Kind   model.ActivityKind   `json:"kind"`
	Result model.ActivityResult `json:"result"`
	Stats  model.SessionStats   `json:"stats"`
}

// DailySummary is published when the day rolls over.
type DailySummary struct {
	Progress model.DailyProgress `json:"progress"`
	Session  model.SessionStats  `json:"session"`
}

type downloadWindow struct {
	start time.Time
	end   time.Time
	used  bool
}

func (w downloadWindow) contains(t time.Time) bool {
	return !w.start.IsZero() && !t.Before(w.start) && t.Before(w.end)
}

// Scheduler is the single tick loop that owns the page and every timer.
// Only the loop goroutine runs activities; the exported getters may be
// called from anywhere.
type Scheduler struct {
	cfg      config.Config
	page     browser.Page
	miner    Attempter
	raider   Attempter
	filler   Filler
	visitor  Attempter
	recorder Recorder
	notifier notify.Notifier
	bus      *logbus.Bus
	clock    Clock
	rnd      *random.Policy

	snapshots chan struct{}

	mu          sync.Mutex
	running     bool
	cancel      context.CancelFunc
	startedAt   time.Time
	phase       string
	activeHours bool
	nextMineAt  time.Time
	lastSlot    string
	window      downloadWindow
	stats       model.SessionStats
	mineDay     string
	mineToday   int
	timeline    []model.TimelineEvent
	lastStatus  time.Time
}

func New(opts Options) *Scheduler {
	s := &Scheduler{
		cfg:       opts.Config,
		page:      opts.Page,
		miner:     opts.Miner,
		raider:    opts.Raider,
		filler:    opts.Filler,
		visitor:   opts.Visitor,
		recorder:  opts.Recorder,
		notifier:  opts.Notifier,
		bus:       opts.Bus,
		clock:     opts.Clock,
		rnd:       opts.Rand,
		snapshots: make(chan struct{}, 1),
		phase:     PhaseStopped,
	}
	if s.recorder == nil {
		s.recorder = nopRecorder{}
	}
	if s.notifier == nil {
		s.notifier = notify.Noop{}
	}
	if s.clock == nil {
		s.clock = RealClock{}
	}
	if s.rnd == nil {
		s.rnd = random.New(s.cfg.Schedule.Seed)
	}
	return s
}

// Run ticks until ctx ends, Stop is called or the daily goal is met. An
// activity failure never ends the loop.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("engine: already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.running = true
	s.cancel = cancel
	s.startedAt = s.clock.Now()
	s.phase = PhaseIdle
	s.mu.Unlock()

	defer func() {
		cancel()
		s.mu.Lock()
		s.running = false
		s.cancel = nil
		s.phase = PhaseStopped
		s.mu.Unlock()
		s.bus.Info("scheduler stopped", map[string]any{"stats": s.Stats()})
	}()

	stopRollover, err := s.startRollover(runCtx)
	if err != nil {
		return err
	}
	defer stopRollover()

	s.bus.Info("scheduler started", map[string]any{
		"mining":   s.miningEnabled(),
		"raid":     s.raidEnabled(),
		"download": s.downloadEnabled(),
		"visit":    s.visitEnabled(),
		"seed":     s.rnd.Seed(),
	})

	tick := s.cfg.Schedule.Tick()
	for {
		if runCtx.Err() != nil {
			return nil
		}
		if err := s.tick(runCtx); err != nil {
			if errors.Is(err, ErrGoalReached) {
				return err
			}
			if runCtx.Err() != nil {
				return nil
			}
			return err
		}
		if err := s.clock.Sleep(runCtx, tick); err != nil {
			return nil
		}
	}
}

// Stop asks the loop to exit. Safe to call more than once.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (s *Scheduler) State() model.SchedulerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return model.SchedulerState{
		Running:      s.running,
		Phase:        s.phase,
		ActiveHours:  s.activeHours,
		NextMineAt:   s.nextMineAt,
		LastRaidSlot: s.lastSlot,
		WindowStart:  s.window.start,
		WindowEnd:    s.window.end,
		Stats:        s.stats,
		StartedAt:    s.startedAt,
	}
}

func (s *Scheduler) Stats() model.SessionStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *Scheduler) Timeline() []model.TimelineEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.TimelineEvent, len(s.timeline))
	copy(out, s.timeline)
	return out
}

// RequestSnapshot queues an HTML and screenshot capture for the next tick.
// It reports false when one is already pending.
func (s *Scheduler) RequestSnapshot() bool {
	select {
	case s.snapshots <- struct{}{}:
		return true
	default:
		return false
	}
}

func (s *Scheduler) miningEnabled() bool   { return s.cfg.Mining.Enabled && s.miner != nil }
func (s *Scheduler) raidEnabled() bool     { return s.cfg.Raid.Enabled && s.raider != nil }
func (s *Scheduler) downloadEnabled() bool { return s.cfg.Download.Enabled && s.filler != nil }
func (s *Scheduler) visitEnabled() bool    { return s.cfg.Visit.Enabled && s.visitor != nil }

// tick runs at most one activity. Priority: mining, raid slot, download
// window, random visit, idle status.
func (s *Scheduler) tick(ctx context.Context) error {
	s.serveSnapshot(ctx)

	now := s.clock.Now()
	active := s.cfg.Schedule.ActiveHours.Contains(now.Hour())
	s.mu.Lock()
	s.activeHours = active
	nextMineAt := s.nextMineAt
	lastSlot := s.lastSlot
	window := s.window
	s.mu.Unlock()

	if !active {
		s.setPhase(PhaseResting)
		s.status(now)
		return nil
	}

	if s.miningEnabled() && !now.Before(nextMineAt) {
		return s.runMining(ctx, now)
	}
	if s.raidEnabled() {
		if id, ok := SlotAt(now, s.cfg.Raid.Slots); ok && id != lastSlot {
			return s.runRaid(ctx, now, id)
		}
	}
	inWindow := s.downloadEnabled() && window.contains(now)
	if inWindow && !window.used {
		return s.runDownload(ctx, now)
	}
	if !inWindow && s.visitEnabled() && s.rnd.Chance(s.cfg.Visit.Percent) {
		return s.runVisit(ctx, now)
	}

	s.setPhase(PhaseIdle)
	s.status(now)
	return nil
}

func (s *Scheduler) runMining(ctx context.Context, now time.Time) error {
	s.setPhase(PhaseMining)
	res, err := s.guard(model.KindMining, func() (model.ActivityResult, error) {
		return s.miner.Attempt(ctx, s.page)
	})

	// The cooldown advances whatever happened so a failing page cannot spin.
	done := s.clock.Now()
	next := done.Add(s.cfg.Mining.Cooldown() + s.rnd.Duration(s.cfg.Mining.Extra.Min(), s.cfg.Mining.Extra.Max()))
	s.mu.Lock()
	s.nextMineAt = next
	s.window = s.allocateWindow(done, next)
	window := s.window
	s.mu.Unlock()
	fields := map[string]any{"nextMineAt": next.Format(time.RFC3339)}
	if !window.used {
		fields["downloadStart"] = window.start.Format(time.RFC3339)
		fields["downloadEnd"] = window.end.Format(time.RFC3339)
	}
	s.bus.Debug("mining cooldown scheduled", fields)

	if err != nil {
		return s.backoff(ctx, model.KindMining, err)
	}
	s.finish(ctx, model.KindMining, now, res)
	return s.checkGoal(ctx)
}

// allocateWindow derives the download window from a fresh cooldown. A window
// that would close before it opens is marked used.
func (s *Scheduler) allocateWindow(now, nextMineAt time.Time) downloadWindow {
	if !s.downloadEnabled() {
		return downloadWindow{used: true}
	}
	start := now.Add(s.cfg.Download.StartDelay())
	end := start.Add(s.cfg.Download.Duration())
	if end.After(nextMineAt) {
		end = nextMineAt
	}
	return downloadWindow{start: start, end: end, used: !start.Before(end)}
}

func (s *Scheduler) runRaid(ctx context.Context, now time.Time, slot string) error {
	s.setPhase(PhaseRaid)
	s.bus.Info("raid slot open", map[string]any{"slot": slot})
	res, err := s.guard(model.KindRaid, func() (model.ActivityResult, error) {
		return s.raider.Attempt(ctx, s.page)
	})
	s.mu.Lock()
	s.lastSlot = slot
	s.mu.Unlock()
	if err != nil {
		return s.backoff(ctx, model.KindRaid, err)
	}
	s.finish(ctx, model.KindRaid, now, res)
	return nil
}

func (s *Scheduler) runDownload(ctx context.Context, now time.Time) error {
	s.setPhase(PhaseDownload)
	s.mu.Lock()
	s.window.used = true
	end := s.window.end
	nextMineAt := s.nextMineAt
	s.mu.Unlock()

	s.bus.Info("download window open", map[string]any{"until": end.Format(time.RFC3339)})
	done := func() bool {
		t := s.clock.Now()
		return ctx.Err() != nil || !t.Before(end) || (s.miningEnabled() && !t.Before(nextMineAt))
	}
	res, err := s.guard(model.KindDownload, func() (model.ActivityResult, error) {
		return s.filler.Fill(ctx, s.page, done)
	})
	if err != nil {
		return s.backoff(ctx, model.KindDownload, err)
	}
	s.finish(ctx, model.KindDownload, now, res)
	return nil
}

func (s *Scheduler) runVisit(ctx context.Context, now time.Time) error {
	s.setPhase(PhaseVisit)
	res, err := s.guard(model.KindVisit, func() (model.ActivityResult, error) {
		return s.visitor.Attempt(ctx, s.page)
	})
	if err != nil {
		return s.backoff(ctx, model.KindVisit, err)
	}
	s.finish(ctx, model.KindVisit, now, res)
	return nil
}

// guard runs one activity and turns a panic into an error.
func (s *Scheduler) guard(kind model.ActivityKind, fn func() (model.ActivityResult, error)) (res model.ActivityResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s panicked: %v", kind, r)
		}
	}()
	return fn()
}

// backoff is the fault boundary. It returns nil so the loop keeps going;
// a stop during the pause is seen at the top of the next iteration.
func (s *Scheduler) backoff(ctx context.Context, kind model.ActivityKind, err error) error {
	if ctx.Err() != nil {
		return nil
	}
	pause := s.cfg.Schedule.ErrorBackoff()
	s.mu.Lock()
	s.stats.Errors++
	s.phase = PhaseBackoff
	s.mu.Unlock()
	s.addTimeline(string(kind), "error", err.Error())
	s.bus.Error("activity failed", map[string]any{
		"kind":    string(kind),
		"error":   err.Error(),
		"fatal":   browser.IsFatal(err),
		"backoff": pause.String(),
	})
	_ = s.clock.Sleep(ctx, pause)
	return nil
}

// finish folds one result into the session, the bus and the recorder.
func (s *Scheduler) finish(ctx context.Context, kind model.ActivityKind, at time.Time, res model.ActivityResult) {
	s.mu.Lock()
	switch kind {
	case model.KindMining:
		if res.Consumed() {
			s.stats.MineCount++
			s.stats.MineReward += res.Reward
			if day := model.Today(at); day != s.mineDay {
				s.mineDay = day
				s.mineToday = 0
			}
			s.mineToday++
		}
	case model.KindRaid:
		if res.Consumed() {
			s.stats.RaidCount++
			s.stats.RaidReward += res.Reward
		}
	case model.KindDownload:
		if res.Success {
			s.stats.DownloadCount++
		}
	case model.KindVisit:
		if res.Success {
			s.stats.VisitCount++
		}
	}
	stats := s.stats
	s.mu.Unlock()

	title := string(res.Outcome)
	if res.Consumed() && (kind == model.KindMining || kind == model.KindRaid) {
		title = fmt.Sprintf("%s %+d", res.Outcome, res.Reward)
	}
	s.addTimeline(string(kind), title, res.Target)
	s.bus.Publish(logbus.TypeActivity, ActivityEvent{Kind: kind, Result: res, Stats: stats})
	s.bus.Info(string(kind)+" attempt", map[string]any{
		"success": res.Success,
		"reward":  res.Reward,
		"outcome": string(res.Outcome),
		"target":  res.Target,
		"total":   stats.TotalReward(),
	})

	err := s.recorder.RecordAttempt(ctx, model.Attempt{
		ID:      uuid.NewString(),
		Kind:    kind,
		Target:  res.Target,
		Success: res.Success,
		Reward:  res.Reward,
		Outcome: res.Outcome,
		Note:    res.Note,
		At:      at,
	})
	if err != nil {
		s.bus.Warn("record attempt failed", map[string]any{"kind": string(kind), "error": err.Error()})
	}
}

func (s *Scheduler) checkGoal(ctx context.Context) error {
	goal := s.cfg.Schedule.DailyMiningGoal
	if goal <= 0 {
		return nil
	}
	day := model.Today(s.clock.Now())
	count := s.minedOn(day)
	if p, err := s.recorder.Progress(ctx, day); err != nil {
		s.bus.Warn("read daily progress failed", map[string]any{"error": err.Error()})
	} else if p.MineCount > count {
		count = p.MineCount
	}
	if count < goal {
		return nil
	}
	stats := s.Stats()
	s.addTimeline("goal", fmt.Sprintf("daily mining goal %d reached", goal), "")
	s.bus.Info("daily mining goal reached", map[string]any{"goal": goal, "count": count})
	s.notifier.NotifyEvent(ctx, notify.Event{
		At:    s.clock.Now().UnixMilli(),
		Kind:  notify.EventGoalReached,
		Title: fmt.Sprintf("daily mining goal %d reached", goal),
		Stats: &stats,
	})
	return ErrGoalReached
}

// minedOn is the session's mining count for day; attempts from earlier
// days of a long run do not count.
func (s *Scheduler) minedOn(day string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mineDay != day {
		return 0
	}
	return s.mineToday
}

// status broadcasts the remaining-time projection every tick and logs it
// every StatusEvery.
func (s *Scheduler) status(now time.Time) {
	st := s.State()
	s.bus.Broadcast(logbus.TypeStatus, st)

	s.mu.Lock()
	due := s.lastStatus.IsZero() || now.Sub(s.lastStatus) >= s.cfg.Schedule.StatusEvery()
	if due {
		s.lastStatus = now
	}
	s.mu.Unlock()
	if !due {
		return
	}
	fields := map[string]any{
		"phase":  st.Phase,
		"mined":  st.Stats.MineCount,
		"raided": st.Stats.RaidCount,
		"total":  st.Stats.TotalReward(),
	}
	if s.miningEnabled() && st.NextMineAt.After(now) {
		fields["nextMineIn"] = st.NextMineAt.Sub(now).Round(time.Second).String()
	}
	s.bus.Info("status", fields)
}

func (s *Scheduler) serveSnapshot(ctx context.Context) {
	select {
	case <-s.snapshots:
	default:
		return
	}
	dir := s.cfg.Browser.SnapshotDir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		s.bus.Warn("snapshot dir unavailable", map[string]any{"dir": dir, "error": err.Error()})
		return
	}
	base := filepath.Join(dir, "snapshot-"+s.clock.Now().Format("20060102-150405"))
	fields := map[string]any{"url": s.page.URL()}
	if err := s.page.SaveHTML(ctx, base+".html"); err != nil {
		fields["htmlError"] = err.Error()
	} else {
		fields["html"] = base + ".html"
	}
	if err := s.page.Screenshot(ctx, base+".png"); err != nil {
		fields["screenshotError"] = err.Error()
	} else {
		fields["screenshot"] = base + ".png"
	}
	s.bus.Info("snapshot saved", fields)
}

func (s *Scheduler) setPhase(phase string) {
	s.mu.Lock()
	s.phase = phase
	s.mu.Unlock()
}

func (s *Scheduler) addTimeline(kind, title, detail string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timeline = append(s.timeline, model.TimelineEvent{At: s.clock.Now(), Kind: kind, Title: title, Detail: detail})
	if len(s.timeline) > maxTimeline {
		s.timeline = append([]model.TimelineEvent(nil), s.timeline[len(s.timeline)-maxTimeline:]...)
	}
}

type nopRecorder struct{}

func (nopRecorder) RecordAttempt(context.Context, model.Attempt) error { return nil }
func (nopRecorder) Progress(_ context.Context, day string) (model.DailyProgress, error) {
	return model.DailyProgress{Day: day}, nil
}
func (nopRecorder) ResetDay(context.Context, string) error { return nil }
