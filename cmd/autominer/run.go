package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"autominer/internal/activity"
	"autominer/internal/browser"
	"autominer/internal/challenge"
	"autominer/internal/config"
	"autominer/internal/engine"
	"autominer/internal/httpapi"
	"autominer/internal/logbus"
	"autominer/internal/model"
	"autominer/internal/notify"
	"autominer/internal/provider"
	"autominer/internal/random"
	"autominer/internal/report"
	"autominer/internal/store/sqlite"
)

const shutdownTimeout = 15 * time.Second

func runSession(ctx context.Context, flags rootFlags, cmd *cobra.Command) error {
	cfg, err := loadConfig(flags, cmd)
	if err != nil {
		return err
	}
	bus, closeLogs := startLogging(cfg)
	defer closeLogs()

	sessionID := uuid.NewString()
	if cfg.Schedule.Seed == 0 {
		cfg.Schedule.Seed = time.Now().UnixNano()
	}
	rnd := random.New(cfg.Schedule.Seed)
	bus.Info("session starting", map[string]any{"session": sessionID, "seed": cfg.Schedule.Seed})

	store, err := sqlite.Open(ctx, cfg.Storage.SQLitePath)
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}
	defer store.Close()

	base, err := resolveSite(ctx, cfg, store, bus)
	if err != nil {
		return err
	}
	origin := provider.NewOrigin(base)

	rodPage, err := browser.Launch(ctx, cfg.Browser, cfg.Site.UserAgent, rnd, bus)
	if err != nil {
		bus.Error("browser launch failed", map[string]any{"error": err.Error()})
		return fmt.Errorf("browser: %w", err)
	}
	defer rodPage.Close()

	gate := challenge.New(cfg.Challenge, rnd, bus)
	if err := openSite(ctx, rodPage, gate, store, base); err != nil {
		return err
	}
	origin.Follow(browser.HostOf(rodPage.URL()))

	env := &activity.Env{
		Site:  origin,
		Human: browser.NewHuman(rnd, cfg.Browser),
		Gate:  gate,
		Bus:   bus,
		Rand:  rnd,
	}

	var notifier notify.Notifier = notify.Noop{}
	var email *notify.EmailNotifier
	if cfg.Notify.Email.Enabled {
		email = notify.NewEmailNotifier(cfg.Notify, bus)
		notifier = email
	}
	relayCtx, stopRelay := context.WithCancel(context.Background())
	relayDone := make(chan struct{})
	go func() {
		defer close(relayDone)
		notify.Relay(relayCtx, bus, notifier)
	}()

	sched := engine.New(engine.Options{
		Config:   cfg,
		Page:     rodPage,
		Miner:    activity.NewMining(env, cfg.Mining),
		Raider:   activity.NewRaid(env, cfg.Raid, cfg.Site.Nickname),
		Filler:   activity.NewDownload(env, cfg.Download),
		Visitor:  activity.NewVisit(env, cfg.Visit),
		Recorder: store,
		Notifier: notifier,
		Bus:      bus,
		Rand:     rnd,
	})

	var apiStopped atomic.Bool
	srv := startAPI(cfg, bus, store, gate, sched, &apiStopped)

	startedAt := time.Now()
	runErr := sched.Run(ctx)
	reason := stopReason(ctx, runErr, apiStopped.Load())
	bus.Info("session ending", map[string]any{"reason": reason})

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if srv != nil {
		_ = srv.Shutdown(shutdownCtx)
	}
	saveCookies(shutdownCtx, rodPage, store, bus, origin.String())

	stats := sched.Stats()
	in := report.Input{
		SessionID: sessionID,
		Seed:      rnd.Seed(),
		StartedAt: startedAt,
		EndedAt:   time.Now(),
		Reason:    reason,
		Stats:     stats,
		Challenge: gate.Counters(),
		Timeline:  sched.Timeline(),
	}
	if p, err := store.Today(shutdownCtx); err == nil {
		in.Progress = &p
	}
	if path, err := report.Write(cfg.Log.ReportDir, in); err != nil {
		bus.Warn("report not written", map[string]any{"error": err.Error()})
	} else {
		bus.Info("report written", map[string]any{"path": path})
	}
	fmt.Fprintf(cmd.OutOrStdout(),
		"mined %d (%+d)  raided %d (%+d)  downloads %d  visits %d  errors %d\n",
		stats.MineCount, stats.MineReward, stats.RaidCount, stats.RaidReward,
		stats.DownloadCount, stats.VisitCount, stats.Errors)

	notifier.NotifyEvent(shutdownCtx, notify.Event{
		At:     time.Now().UnixMilli(),
		Kind:   notify.EventSessionSummary,
		Title:  "session ended: " + reason,
		Detail: fmt.Sprintf("total reward %+d", stats.TotalReward()),
		Stats:  &stats,
	})
	stopRelay()
	<-relayDone
	if email != nil {
		if err := email.Close(shutdownCtx); err != nil {
			bus.Warn("email flush failed", map[string]any{"error": err.Error()})
		}
	}

	if runErr != nil && !errors.Is(runErr, engine.ErrGoalReached) {
		return runErr
	}
	return nil
}

// resolveSite finds where the site lives today. A probe failure is not
// fatal: the browser may still get through where the plain client could not.
func resolveSite(ctx context.Context, cfg config.Config, store *sqlite.Store, bus *logbus.Bus) (string, error) {
	res, err := provider.New(cfg.Site, bus)
	if err != nil {
		return "", err
	}
	if cookies, ok, err := store.LoadCookies(ctx, siteHost(cfg.Site.BaseURL)); err == nil && ok {
		res.UseCookies(cookies)
	}
	live, err := res.Resolve(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		bus.Warn("site probe failed, using configured address", map[string]any{"error": err.Error()})
		return cfg.Site.BaseURL, nil
	}
	return live, nil
}

func openSite(ctx context.Context, page browser.Page, gate *challenge.Gate, store *sqlite.Store, base string) error {
	if cookies, ok, err := store.LoadCookies(ctx, siteHost(base)); err == nil && ok {
		if err := page.SetCookies(ctx, model.CookiesForHost(cookies, siteHost(base), time.Now())); err != nil {
			return fmt.Errorf("restore cookies: %w", err)
		}
	}
	if err := page.Navigate(ctx, base+"/"); err != nil {
		return fmt.Errorf("open site: %w", err)
	}
	if hit, _ := gate.Detect(ctx, page); hit {
		gate.Await(ctx, page)
	}
	return nil
}

func saveCookies(ctx context.Context, page browser.Page, store *sqlite.Store, bus *logbus.Bus, base string) {
	cookies, err := page.Cookies(ctx)
	if err != nil {
		bus.Warn("read cookies failed", map[string]any{"error": err.Error()})
		return
	}
	if err := store.SaveCookies(ctx, siteHost(base), cookies); err != nil {
		bus.Warn("save cookies failed", map[string]any{"error": err.Error()})
	}
}

// apiController records that the stop came from the API so the report can
// say so.
type apiController struct {
	*engine.Scheduler
	stopped *atomic.Bool
}

func (c apiController) Stop() {
	c.stopped.Store(true)
	c.Scheduler.Stop()
}

func startAPI(cfg config.Config, bus *logbus.Bus, store *sqlite.Store, gate *challenge.Gate, sched *engine.Scheduler, stopped *atomic.Bool) *http.Server {
	if cfg.Server.Addr == "" {
		return nil
	}
	api := httpapi.New(httpapi.Options{
		Cfg:       cfg,
		Bus:       bus,
		Scheduler: apiController{Scheduler: sched, stopped: stopped},
		Attempts:  store,
		Challenge: gate.Counters,
	})
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			bus.Error("http server error", map[string]any{"error": err.Error()})
		}
	}()
	bus.Info("status api listening", map[string]any{"addr": cfg.Server.Addr})
	return srv
}

func stopReason(ctx context.Context, err error, viaAPI bool) string {
	switch {
	case errors.Is(err, engine.ErrGoalReached):
		return "daily goal reached"
	case err != nil:
		return "error: " + err.Error()
	case viaAPI:
		return "stop requested"
	case ctx.Err() != nil:
		return "signal"
	default:
		return "stopped"
	}
}
