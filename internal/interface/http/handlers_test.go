package http

import (
	"context"
	"encoding/json"
	"errors"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camr-club/ranking-hub/internal/application/command"
	"github.com/camr-club/ranking-hub/internal/domain/ranking"
	"github.com/camr-club/ranking-hub/internal/domain/shared"
	"github.com/camr-club/ranking-hub/internal/infrastructure/persistence/kv"
	"github.com/camr-club/ranking-hub/pkg/logger"
)

type stubRanking struct {
	views  map[string]*ranking.View
	err    error
	status kv.Status
	resets int
}

func (s *stubRanking) View(_ context.Context, key ranking.ViewKey) (*ranking.View, error) {
	if s.err != nil {
		return nil, s.err
	}
	view, ok := s.views[key.String()]
	if !ok {
		view = &ranking.View{Key: key, Entries: []ranking.Entry{}}
	}
	return view, nil
}

func (s *stubRanking) Tiers(context.Context) (*ranking.TierTable, error) {
	return ranking.NewTierTable([]ranking.Tier{
		{ID: 1, Name: "Kyuu", MinPoints: 0, MaxPoints: 999},
		{ID: 2, Name: "Dan", MinPoints: 1000, MaxPoints: 9999},
	})
}

func (s *stubRanking) CacheStatus(context.Context) kv.Status { return s.status }
func (s *stubRanking) ResetCacheBreaker()                    { s.resets++ }

type stubMutator struct {
	err      error
	lastCall string
}

func (m *stubMutator) Update(_ context.Context, resource string, id int64, _ map[string]any) error {
	m.lastCall = "update"
	return m.err
}

func (m *stubMutator) Delete(_ context.Context, resource string, id int64, expected int) error {
	m.lastCall = "delete"
	return m.err
}

func (m *stubMutator) Restore(_ context.Context, resource string, id int64) error {
	m.lastCall = "restore"
	return m.err
}

type stubCloser struct {
	err          error
	openSeasonID int64
}

func (c *stubCloser) Handle(_ context.Context, seasonID, openSeasonID int64) (*command.CloseSeasonResult, error) {
	c.openSeasonID = openSeasonID
	if c.err != nil {
		return nil, c.err
	}
	return &command.CloseSeasonResult{SeasonID: seasonID, SnapshotRows: 2, AggregateRows: 3, OpenedSeasonID: openSeasonID}, nil
}

type stubFinalizer struct {
	err error
}

func (f *stubFinalizer) Handle(_ context.Context, tournamentID int64) (*command.FinalizeTournamentResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &command.FinalizeTournamentResult{TournamentID: tournamentID}, nil
}

type stubHealth struct {
	err error
}

func (h *stubHealth) Ping(context.Context) error { return h.err }

type fixture struct {
	server    *Server
	ranking   *stubRanking
	mutator   *stubMutator
	closer    *stubCloser
	finalizer *stubFinalizer
	health    *stubHealth
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		ranking:   &stubRanking{views: map[string]*ranking.View{}},
		mutator:   &stubMutator{},
		closer:    &stubCloser{},
		finalizer: &stubFinalizer{},
		health:    &stubHealth{},
	}
	log := logger.New(logger.Options{Output: nullWriter{}, Level: logger.LevelError})
	f.server = NewServer(Config{AdminToken: "secret"}, Dependencies{
		Ranking:   f.ranking,
		Writes:    f.mutator,
		Seasons:   f.closer,
		Finalizer: f.finalizer,
		Health:    f.health,
		Logger:    log,
	})
	return f
}

type nullWriter struct{}

func (nullWriter) Write(p []byte) (int, error) { return len(p), nil }

func (f *fixture) do(t *testing.T, method, path, body string, admin bool) *httptest.ResponseRecorder {
	t.Helper()
	var req *stdhttp.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if admin {
		req.Header.Set("Authorization", "Bearer secret")
	}
	rec := httptest.NewRecorder()
	f.server.Router().ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) JSONResponse {
	t.Helper()
	var resp JSONResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHealthAndReady(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, stdhttp.MethodGet, "/health", "", false)
	assert.Equal(t, stdhttp.StatusOK, rec.Code)

	rec = f.do(t, stdhttp.MethodGet, "/ready", "", false)
	assert.Equal(t, stdhttp.StatusOK, rec.Code)

	f.health.err = errors.New("connection refused")
	rec = f.do(t, stdhttp.MethodGet, "/ready", "", false)
	assert.Equal(t, stdhttp.StatusServiceUnavailable, rec.Code)
}

func TestGetRankingRoutes(t *testing.T) {
	f := newFixture(t)
	f.ranking.views["ranking:general:activos:4p"] = &ranking.View{
		Key: ranking.ViewKey{Scope: ranking.ScopeGeneral, Population: ranking.PopulationActive},
		Entries: []ranking.Entry{
			{Position: 1, PlayerID: 7, DisplayName: "Lucia", Points: 1200},
		},
	}

	rec := f.do(t, stdhttp.MethodGet, "/api/v1/ranking/general/activos", "", false)
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"Lucia"`)

	rec = f.do(t, stdhttp.MethodGet, "/api/v1/ranking/temporada/todos?mode=3p", "", false)
	assert.Equal(t, stdhttp.StatusOK, rec.Code)

	rec = f.do(t, stdhttp.MethodGet, "/api/v1/ranking/lifetime/activos", "", false)
	assert.Equal(t, stdhttp.StatusNotFound, rec.Code)

	rec = f.do(t, stdhttp.MethodGet, "/api/v1/ranking/general/activos?mode=5p", "", false)
	assert.Equal(t, stdhttp.StatusNotFound, rec.Code)
}

func TestGetTiers(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, stdhttp.MethodGet, "/api/v1/tiers", "", false)
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"Kyuu"`)
	assert.Contains(t, rec.Body.String(), `"Dan"`)
}

func TestStatusReportsCacheCooldown(t *testing.T) {
	f := newFixture(t)
	f.ranking.status = kv.Status{
		Enabled:           true,
		Provider:          "redis",
		Disabled:          true,
		CooldownRemaining: 23 * time.Hour,
		TripCount:         1,
	}

	rec := f.do(t, stdhttp.MethodGet, "/api/v1/status", "", false)
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"disabled":true`)
	assert.Contains(t, rec.Body.String(), `"redis"`)
}

func TestAdminEndpointsRequireToken(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, stdhttp.MethodPatch, "/api/v1/players/1", `{"version":1,"display_name":"X"}`, false)
	assert.Equal(t, stdhttp.StatusUnauthorized, rec.Code)

	rec = f.do(t, stdhttp.MethodPost, "/api/v1/admin/seasons/1/close", "", false)
	assert.Equal(t, stdhttp.StatusUnauthorized, rec.Code)
}

func TestGatedUpdateErrorMapping(t *testing.T) {
	f := newFixture(t)

	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"missing version", shared.NewDomainError("write", "Update", shared.ErrMissingVersion, "version required"), stdhttp.StatusBadRequest, "invalid_request"},
		{"stale version", &shared.LockConflictError{Resource: "players", ID: 1, CurrentVersion: 5, LastModified: time.Now()}, stdhttp.StatusConflict, "version_conflict"},
		{"duplicate", &shared.DuplicateKeyError{Resource: "players", Field: "display_name", Value: "X"}, stdhttp.StatusConflict, "duplicate"},
		{"not found", shared.ErrPlayerNotFound, stdhttp.StatusNotFound, "not_found"},
		{"store failure", errors.New("boom"), stdhttp.StatusInternalServerError, "internal_error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f.mutator.err = tc.err
			rec := f.do(t, stdhttp.MethodPatch, "/api/v1/players/1", `{"version":1,"display_name":"X"}`, true)
			assert.Equal(t, tc.status, rec.Code)
			resp := decodeResponse(t, rec)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tc.code, resp.Error.Code)
		})
	}
}

func TestConflictResponseCarriesCurrentVersion(t *testing.T) {
	f := newFixture(t)
	f.mutator.err = &shared.LockConflictError{
		Resource:       "players",
		ID:             1,
		CurrentVersion: 9,
		LastModified:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}

	rec := f.do(t, stdhttp.MethodPatch, "/api/v1/players/1", `{"version":8,"display_name":"X"}`, true)
	require.Equal(t, stdhttp.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), `"current_version":9`)
}

func TestGatedDeleteAndRestore(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, stdhttp.MethodDelete, "/api/v1/players/1?version=2", "", true)
	assert.Equal(t, stdhttp.StatusOK, rec.Code)
	assert.Equal(t, "delete", f.mutator.lastCall)

	rec = f.do(t, stdhttp.MethodDelete, "/api/v1/players/1", "", true)
	assert.Equal(t, stdhttp.StatusBadRequest, rec.Code)

	rec = f.do(t, stdhttp.MethodPost, "/api/v1/players/1/restore", "", true)
	assert.Equal(t, stdhttp.StatusOK, rec.Code)
	assert.Equal(t, "restore", f.mutator.lastCall)
}

func TestCloseSeasonEndpoint(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, stdhttp.MethodPost, "/api/v1/admin/seasons/7/close", "", true)
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"season_id":7`)
	assert.Zero(t, f.closer.openSeasonID)

	rec = f.do(t, stdhttp.MethodPost, "/api/v1/admin/seasons/7/close", `{"open_season_id":8}`, true)
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	assert.Equal(t, int64(8), f.closer.openSeasonID)
	assert.Contains(t, rec.Body.String(), `"opened_season_id":8`)

	f.closer.err = shared.ErrSeasonNotOpen
	rec = f.do(t, stdhttp.MethodPost, "/api/v1/admin/seasons/7/close", "", true)
	assert.Equal(t, stdhttp.StatusConflict, rec.Code)
}

func TestFinalizeTournamentEndpoint(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, stdhttp.MethodPost, "/api/v1/admin/tournaments/5/finalize", "", true)
	require.Equal(t, stdhttp.StatusOK, rec.Code)

	f.finalizer.err = shared.ErrTournamentNoResults
	rec = f.do(t, stdhttp.MethodPost, "/api/v1/admin/tournaments/5/finalize", "", true)
	assert.Equal(t, stdhttp.StatusConflict, rec.Code)
}

func TestCacheResetEndpoint(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, stdhttp.MethodPost, "/api/v1/admin/cache/reset", "", true)
	assert.Equal(t, stdhttp.StatusOK, rec.Code)
	assert.Equal(t, 1, f.ranking.resets)
}
