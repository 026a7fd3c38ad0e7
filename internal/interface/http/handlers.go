package http

import (
	"context"
	"encoding/json"
	stdhttp "net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/camr-club/ranking-hub/internal/application/command"
	"github.com/camr-club/ranking-hub/internal/domain/ranking"
	"github.com/camr-club/ranking-hub/internal/infrastructure/persistence/kv"
	"github.com/camr-club/ranking-hub/pkg/logger"
)

// RankingReader is the read-side surface the handlers depend on.
type RankingReader interface {
	View(ctx context.Context, key ranking.ViewKey) (*ranking.View, error)
	Tiers(ctx context.Context) (*ranking.TierTable, error)
	CacheStatus(ctx context.Context) kv.Status
	ResetCacheBreaker()
}

// Mutator is the gated write surface.
type Mutator interface {
	Update(ctx context.Context, resource string, id int64, payload map[string]any) error
	Delete(ctx context.Context, resource string, id int64, expected int) error
	Restore(ctx context.Context, resource string, id int64) error
}

// SeasonCloser runs the season-close workflow. A non-zero openSeasonID opens
// the successor season in the same transaction.
type SeasonCloser interface {
	Handle(ctx context.Context, seasonID, openSeasonID int64) (*command.CloseSeasonResult, error)
}

// TournamentFinalizer runs the tournament finalization workflow.
type TournamentFinalizer interface {
	Handle(ctx context.Context, tournamentID int64) (*command.FinalizeTournamentResult, error)
}

// HealthChecker reports whether the durable store is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Dependencies contains everything the handlers need.
type Dependencies struct {
	Ranking   RankingReader
	Writes    Mutator
	Seasons   SeasonCloser
	Finalizer TournamentFinalizer
	Health    HealthChecker
	Logger    *logger.Logger
}

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleHealth(w stdhttp.ResponseWriter, _ *stdhttp.Request) {
	writeJSON(w, stdhttp.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	if s.deps.Health != nil {
		if err := s.deps.Health.Ping(r.Context()); err != nil {
			writeError(w, stdhttp.StatusServiceUnavailable, "not_ready", "database unreachable", nil)
			return
		}
	}
	writeJSON(w, stdhttp.StatusOK, map[string]string{"status": "ready"})
}

// statusResponse is the status probe payload. The cache section tells an
// operator at a glance whether the KV layer is quota-disabled and for how
// much longer.
type statusResponse struct {
	Database string    `json:"database"`
	Cache    kv.Status `json:"cache"`
}

func (s *Server) handleStatus(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	resp := statusResponse{Database: "ok"}
	if s.deps.Health != nil {
		if err := s.deps.Health.Ping(r.Context()); err != nil {
			resp.Database = "unreachable"
		}
	}
	resp.Cache = s.deps.Ranking.CacheStatus(r.Context())
	writeJSON(w, stdhttp.StatusOK, resp)
}

// ══════════════════════════════════════════════════════════════════════════════
// RANKING VIEWS
// ══════════════════════════════════════════════════════════════════════════════

// parseViewKey maps the path segments and mode query parameter onto one of
// the 8 fixed views.
func parseViewKey(r *stdhttp.Request) (ranking.ViewKey, bool) {
	var key ranking.ViewKey

	switch chi.URLParam(r, "scope") {
	case "general":
		key.Scope = ranking.ScopeGeneral
	case "temporada":
		key.Scope = ranking.ScopeSeason
	default:
		return key, false
	}

	switch chi.URLParam(r, "population") {
	case "activos":
		key.Population = ranking.PopulationActive
	case "todos":
		key.Population = ranking.PopulationAll
	default:
		return key, false
	}

	switch r.URL.Query().Get("mode") {
	case "", "4p":
	case "3p":
		key.Sanma = true
	default:
		return key, false
	}
	return key, true
}

func (s *Server) handleGetRanking(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	key, ok := parseViewKey(r)
	if !ok {
		writeError(w, stdhttp.StatusNotFound, "unknown_view",
			"ranking views are general|temporada / activos|todos with mode=4p|3p", nil)
		return
	}

	view, err := s.deps.Ranking.View(r.Context(), key)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, stdhttp.StatusOK, view)
}

func (s *Server) handleGetTiers(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	table, err := s.deps.Ranking.Tiers(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	tiers := make([]ranking.Tier, 0, table.Len())
	tier := table.Lowest()
	for {
		tiers = append(tiers, tier)
		next, ok := table.Next(tier)
		if !ok {
			break
		}
		tier = next
	}
	writeJSON(w, stdhttp.StatusOK, tiers)
}

// ══════════════════════════════════════════════════════════════════════════════
// GATED WRITES
// ══════════════════════════════════════════════════════════════════════════════

func pathID(r *stdhttp.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

func (s *Server) handleGatedUpdate(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, stdhttp.StatusBadRequest, "invalid_id", "id must be a positive integer", nil)
		return
	}

	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, stdhttp.StatusBadRequest, "invalid_body", "request body must be a JSON object", nil)
		return
	}

	if err := s.deps.Writes.Update(r.Context(), chi.URLParam(r, "resource"), id, payload); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, stdhttp.StatusOK, map[string]any{"id": id})
}

func (s *Server) handleGatedDelete(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, stdhttp.StatusBadRequest, "invalid_id", "id must be a positive integer", nil)
		return
	}

	expected, err := strconv.Atoi(r.URL.Query().Get("version"))
	if err != nil {
		writeError(w, stdhttp.StatusBadRequest, "missing_version", "delete requires the expected version", nil)
		return
	}

	if err := s.deps.Writes.Delete(r.Context(), chi.URLParam(r, "resource"), id, expected); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, stdhttp.StatusOK, map[string]any{"id": id, "deleted": true})
}

func (s *Server) handleRestore(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, stdhttp.StatusBadRequest, "invalid_id", "id must be a positive integer", nil)
		return
	}

	if err := s.deps.Writes.Restore(r.Context(), chi.URLParam(r, "resource"), id); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, stdhttp.StatusOK, map[string]any{"id": id, "deleted": false})
}

// ══════════════════════════════════════════════════════════════════════════════
// FINALIZATION WORKFLOWS
// ══════════════════════════════════════════════════════════════════════════════

// closeSeasonRequest is the optional body of a season close. When
// open_season_id is set, that season is opened in the same transaction.
type closeSeasonRequest struct {
	OpenSeasonID int64 `json:"open_season_id"`
}

func (s *Server) handleCloseSeason(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, stdhttp.StatusBadRequest, "invalid_id", "id must be a positive integer", nil)
		return
	}

	var req closeSeasonRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, stdhttp.StatusBadRequest, "invalid_body", "request body must be a JSON object", nil)
			return
		}
	}

	result, err := s.deps.Seasons.Handle(r.Context(), id, req.OpenSeasonID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, stdhttp.StatusOK, result)
}

func (s *Server) handleFinalizeTournament(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, stdhttp.StatusBadRequest, "invalid_id", "id must be a positive integer", nil)
		return
	}

	result, err := s.deps.Finalizer.Handle(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, stdhttp.StatusOK, result)
}

func (s *Server) handleCacheReset(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	s.deps.Ranking.ResetCacheBreaker()
	writeJSON(w, stdhttp.StatusOK, s.deps.Ranking.CacheStatus(r.Context()))
}
