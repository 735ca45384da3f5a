package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autominer/internal/config"
	"autominer/internal/logbus"
	"autominer/internal/model"
)

type fakeScheduler struct {
	stops     int
	snapshots int
	pending   bool
}

func (f *fakeScheduler) State() model.SchedulerState {
	return model.SchedulerState{Running: true, Phase: "idle", Stats: model.SessionStats{MineCount: 4}}
}

func (f *fakeScheduler) Stop() { f.stops++ }

func (f *fakeScheduler) RequestSnapshot() bool {
	if f.pending {
		return false
	}
	f.pending = true
	f.snapshots++
	return true
}

type fakeAttempts struct {
	list  []model.Attempt
	err   error
	limit int
}

func (f *fakeAttempts) ListAttempts(_ context.Context, limit int) ([]model.Attempt, error) {
	f.limit = limit
	return f.list, f.err
}

func newServer(sched *fakeScheduler, attempts AttemptLister) http.Handler {
	cfg := config.Config{Server: config.ServerConfig{Cors: config.CorsConfig{AllowOrigins: []string{"http://dash.test"}}}}
	return New(Options{
		Cfg:       cfg,
		Bus:       logbus.New(20),
		Scheduler: sched,
		Attempts:  attempts,
		Challenge: func() model.ChallengeCounters { return model.ChallengeCounters{AutoPassed: 2} },
	}).Handler()
}

func do(h http.Handler, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestHealth(t *testing.T) {
	rec := do(newServer(&fakeScheduler{}, nil), http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())
}

func TestState(t *testing.T) {
	rec := do(newServer(&fakeScheduler{}, nil), http.MethodGet, "/api/v1/state")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data struct {
			Running   bool                    `json:"running"`
			Phase     string                  `json:"phase"`
			Stats     model.SessionStats      `json:"stats"`
			Challenge model.ChallengeCounters `json:"challenge"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Data.Running)
	assert.Equal(t, "idle", body.Data.Phase)
	assert.Equal(t, 4, body.Data.Stats.MineCount)
	assert.Equal(t, 2, body.Data.Challenge.AutoPassed)

	assert.Equal(t, http.StatusMethodNotAllowed, do(newServer(&fakeScheduler{}, nil), http.MethodPost, "/api/v1/state").Code)
}

func TestAttempts(t *testing.T) {
	at := time.Date(2026, 1, 2, 9, 0, 0, 0, time.UTC)
	store := &fakeAttempts{list: []model.Attempt{{ID: "a1", Kind: model.KindMining, Success: true, Reward: 266, At: at}}}
	h := newServer(&fakeScheduler{}, store)

	rec := do(h, http.MethodGet, "/api/v1/attempts?limit=5")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, store.limit)
	var body struct {
		Data []model.Attempt `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	assert.Equal(t, 266, body.Data[0].Reward)

	assert.Equal(t, http.StatusBadRequest, do(h, http.MethodGet, "/api/v1/attempts?limit=abc").Code)

	store.err = errors.New("disk gone")
	assert.Equal(t, http.StatusInternalServerError, do(h, http.MethodGet, "/api/v1/attempts").Code)
	assert.Equal(t, 50, store.limit)
}

func TestAttemptsWithoutStore(t *testing.T) {
	rec := do(newServer(&fakeScheduler{}, nil), http.MethodGet, "/api/v1/attempts")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":[]}`, rec.Body.String())
}

func TestStop(t *testing.T) {
	sched := &fakeScheduler{}
	h := newServer(sched, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, do(h, http.MethodGet, "/api/v1/stop").Code)
	assert.Equal(t, http.StatusOK, do(h, http.MethodPost, "/api/v1/stop").Code)
	assert.Equal(t, 1, sched.stops)
}

func TestSnapshot(t *testing.T) {
	sched := &fakeScheduler{}
	h := newServer(sched, nil)
	assert.Equal(t, http.StatusAccepted, do(h, http.MethodPost, "/api/v1/snapshot").Code)
	assert.Equal(t, http.StatusConflict, do(h, http.MethodPost, "/api/v1/snapshot").Code)
	assert.Equal(t, 1, sched.snapshots)
}

func TestCORS(t *testing.T) {
	h := newServer(&fakeScheduler{}, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/stop", nil)
	req.Header.Set("Origin", "http://dash.test")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://dash.test", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/v1/state", nil)
	req.Header.Set("Origin", "http://evil.test")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
