package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	lru "github.com/hashicorp/golang-lru"

	"sizzle/internal/catalog"
	"sizzle/internal/config"
	"sizzle/internal/engine"
	"sizzle/internal/leaderboard"
	"sizzle/internal/ledger"
)

const leaderboardCacheSize = 128

type Server struct {
	cfg    config.APIConfig
	log    *slog.Logger
	engine *engine.Engine
	mux    *chi.Mux
	now    func() time.Time

	// Hot leaderboard pages are served from a short-lived cache; the index
	// itself is already eventually consistent with the ledger, so a few
	// extra seconds of staleness is within contract.
	boardCache *lru.Cache
}

type cachedBoard struct {
	rows []boardRow
	at   time.Time
}

func New(cfg config.APIConfig, logger *slog.Logger, eng *engine.Engine) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	cache, _ := lru.New(leaderboardCacheSize)
	s := &Server{
		cfg:        cfg,
		log:        logger,
		engine:     eng,
		mux:        chi.NewRouter(),
		now:        func() time.Time { return time.Now().UTC() },
		boardCache: cache,
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	r := s.mux
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/players", s.handleEnsurePlayer)
		r.Get("/players/{id}/state", s.handleState)
		r.Post("/players/{id}/purchase", s.handlePurchase)
		r.Post("/players/{id}/bonus", s.handleBonus)
		r.Get("/players/{id}/achievements", s.handleAchievements)
		r.Get("/players/{id}/rank", s.handleRank)
		r.Get("/upgrades", s.handleUpgrades)
		r.Get("/leaderboard", s.handleLeaderboard)
	})
}

func (s *Server) handleEnsurePlayer(w http.ResponseWriter, r *http.Request) {
	var in struct {
		PlayerID    string `json:"player_id"`
		DisplayName string `json:"display_name"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	snap, err := s.engine.EnsurePlayer(r.Context(), strings.TrimSpace(in.PlayerID), strings.TrimSpace(in.DisplayName), s.now())
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	snap, err := s.engine.QueryState(r.Context(), chi.URLParam(r, "id"), s.now())
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handlePurchase(w http.ResponseWriter, r *http.Request) {
	var in struct {
		UpgradeID string `json:"upgrade_id"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	if strings.TrimSpace(in.UpgradeID) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "upgrade_id is required")
		return
	}
	res, err := s.engine.PurchaseUpgrade(r.Context(), chi.URLParam(r, "id"), strings.TrimSpace(in.UpgradeID), s.now())
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"upgrade_id":   res.UpgradeID,
		"new_level":    res.NewLevel,
		"cost_micros":  res.CostMicros,
		"cost_display": ledger.FormatBucks(res.CostMicros),
		"state":        res.Snapshot,
	})
}

func (s *Server) handleBonus(w http.ResponseWriter, r *http.Request) {
	var in struct {
		AmountMicros int64  `json:"amount_micros"`
		Source       string `json:"source"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	snap, err := s.engine.GrantBonus(r.Context(), chi.URLParam(r, "id"), in.AmountMicros, strings.TrimSpace(in.Source), s.now())
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleAchievements(w http.ResponseWriter, r *http.Request) {
	snap, err := s.engine.QueryState(r.Context(), chi.URLParam(r, "id"), s.now())
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	unlocked := 0
	for _, a := range snap.Achievements {
		if a.Unlocked {
			unlocked++
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"achievements":   snap.Achievements,
		"unlocked_count": unlocked,
		"total_count":    len(snap.Achievements),
	})
}

func (s *Server) handleRank(w http.ResponseWriter, r *http.Request) {
	by, err := parseOrdering(r.URL.Query().Get("by"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	playerID := chi.URLParam(r, "id")
	rank, err := s.engine.Board().RankOf(by, playerID)
	if err != nil {
		if errors.Is(err, leaderboard.ErrNotRanked) {
			writeError(w, http.StatusNotFound, "not_ranked", "player has no leaderboard entry yet")
			return
		}
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"player_id": playerID, "by": by.String(), "rank": rank})
}

func (s *Server) handleUpgrades(w http.ResponseWriter, _ *http.Request) {
	type upgradeView struct {
		UpgradeID      string  `json:"upgrade_id"`
		Name           string  `json:"name"`
		Category       string  `json:"category"`
		BaseCostMicros int64   `json:"base_cost_micros"`
		CostGrowth     float64 `json:"cost_growth"`
		RatePerLevel   int64   `json:"rate_per_level_micros"`
		GuestsPerLevel int64   `json:"guests_per_level"`
		MaxLevel       int32   `json:"max_level,omitempty"`
		Description    string  `json:"description,omitempty"`
	}
	var out []upgradeView
	for _, u := range s.engine.Catalog().Upgrades() {
		out = append(out, upgradeView{
			UpgradeID:      u.ID,
			Name:           u.Name,
			Category:       u.Category,
			BaseCostMicros: u.BaseCostMicros,
			CostGrowth:     u.CostGrowth,
			RatePerLevel:   u.RatePerLevelMicros,
			GuestsPerLevel: u.GuestsPerLevel,
			MaxLevel:       u.MaxLevel,
			Description:    u.Description,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"upgrades": out})
}

type boardRow struct {
	Rank       int    `json:"rank"`
	PlayerID   string `json:"player_id"`
	KeyMicros  int64  `json:"key_micros"`
	KeyDisplay string `json:"key_display"`
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	by, err := parseOrdering(r.URL.Query().Get("by"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	top := 10
	if v := r.URL.Query().Get("top"); v != "" {
		top, err = strconv.Atoi(v)
		if err != nil || top < 1 || top > 1000 {
			writeError(w, http.StatusBadRequest, "bad_request", "top must be 1..1000")
			return
		}
	}
	idsParam := strings.TrimSpace(r.URL.Query().Get("ids"))

	// Group scope: membership comes pre-resolved from the caller.
	if idsParam != "" {
		members := make(map[string]struct{})
		for _, id := range strings.Split(idsParam, ",") {
			if id = strings.TrimSpace(id); id != "" {
				members[id] = struct{}{}
			}
		}
		rows := s.engine.Board().TopKAmong(by, top, members)
		writeJSON(w, http.StatusOK, map[string]any{"by": by.String(), "scope": "group", "rows": displayRows(rows)})
		return
	}

	cacheKey := fmt.Sprintf("%s|%d", by.String(), top)
	if v, ok := s.boardCache.Get(cacheKey); ok {
		if hit := v.(cachedBoard); s.now().Sub(hit.at) < s.cfg.LeaderboardCacheTTL {
			writeJSON(w, http.StatusOK, map[string]any{"by": by.String(), "scope": "global", "rows": hit.rows})
			return
		}
	}
	rows := displayRows(s.engine.Board().TopK(by, top))
	s.boardCache.Add(cacheKey, cachedBoard{rows: rows, at: s.now()})
	writeJSON(w, http.StatusOK, map[string]any{"by": by.String(), "scope": "global", "rows": rows})
}

func displayRows(rows []leaderboard.Row) []boardRow {
	out := make([]boardRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, boardRow{
			Rank:       row.Rank,
			PlayerID:   row.PlayerID,
			KeyMicros:  row.KeyMicros,
			KeyDisplay: ledger.FormatBucks(row.KeyMicros),
		})
	}
	return out
}

func parseOrdering(v string) (leaderboard.Ordering, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "balance":
		return leaderboard.ByBalance, nil
	case "rate":
		return leaderboard.ByRate, nil
	default:
		return 0, fmt.Errorf("by must be balance or rate")
	}
}

func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, catalog.ErrUnknownUpgrade):
		writeError(w, http.StatusNotFound, "unknown_upgrade", err.Error())
	case errors.Is(err, engine.ErrMaxLevelReached):
		writeError(w, http.StatusConflict, "max_level_reached", err.Error())
	case errors.Is(err, engine.ErrInsufficientFunds):
		writeError(w, http.StatusUnprocessableEntity, "insufficient_funds", err.Error())
	case errors.Is(err, engine.ErrInvalidAmount),
		errors.Is(err, engine.ErrInvalidPlayerID),
		errors.Is(err, catalog.ErrInvalidLevel):
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, engine.ErrBusy):
		writeError(w, http.StatusTooManyRequests, "busy", err.Error())
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		writeError(w, http.StatusGatewayTimeout, "timeout", "request cancelled")
	default:
		s.log.Error("storage error", "err", err)
		writeError(w, http.StatusServiceUnavailable, "storage_unavailable", "temporary storage failure")
	}
}

func decodeJSON(r *http.Request, dst any) error {
	defer io.Copy(io.Discard, r.Body)
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid json body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]any{"error": code, "message": msg})
}
