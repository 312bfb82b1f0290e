package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator"
	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"

	"github.com/sells-group/geoint-cli/internal/boundary"
	"github.com/sells-group/geoint-cli/internal/choropleth"
	"github.com/sells-group/geoint-cli/internal/mapview"
	"github.com/sells-group/geoint-cli/internal/scoreapi"
)

var validate = validator.New()

// server holds the handler dependencies of the map API.
type server struct {
	// ctx outlives requests; background selections run under it.
	ctx     context.Context
	engine  *boundary.Engine
	scores  mapview.ScoreSource
	views   *mapview.Registry
	palette *choropleth.Palette
}

type layerQuery struct {
	Keyword string `validate:"required,max=200"`
}

// buildRouter wires the map API routes.
func buildRouter(s *server, origins []string) *chi.Mux {
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders: []string{"X-Merge-Matched", "X-Merge-Degraded"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/boundaries/{level}", s.handleBoundaries)

	r.Route("/map", func(r chi.Router) {
		r.Get("/provinces", s.handleProvinces)
		r.Get("/provinces/{code}/districts", s.handleDistricts)
		r.Get("/comparisons/{id}", s.handleComparison)
	})

	r.Get("/styles/{name}", s.handleStyle)

	r.Get("/views/{id}", s.handleView)
	r.Post("/views/{id}/selection", s.handleSelection)

	r.Get("/stats", s.handleStats)

	return r
}

func (s *server) handleBoundaries(w http.ResponseWriter, r *http.Request) {
	level, err := boundary.ParseLevel(chi.URLParam(r, "level"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	set, err := s.engine.Cache().Get(r.Context(), level)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	writeGeoJSON(w, set.FeatureCollection(), nil)
}

func (s *server) handleProvinces(w http.ResponseWriter, r *http.Request) {
	q := layerQuery{Keyword: r.URL.Query().Get("keyword")}
	if err := validate.Struct(q); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	sc, err := s.scores.Provinces(r.Context(), q.Keyword)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	fc, stats := s.engine.Provinces(r.Context(), sc)
	s.colorize(r, fc, "geoint")
	writeGeoJSON(w, fc, &stats)
}

func (s *server) handleDistricts(w http.ResponseWriter, r *http.Request) {
	q := layerQuery{Keyword: r.URL.Query().Get("keyword")}
	if err := validate.Struct(q); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	code := boundary.PadProvinceCode(chi.URLParam(r, "code"))
	sc, err := s.scores.Districts(r.Context(), q.Keyword, code)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	fc, stats := s.engine.Districts(r.Context(), sc, code)
	s.colorize(r, fc, "geoint")
	writeGeoJSON(w, fc, &stats)
}

func (s *server) handleComparison(w http.ResponseWriter, r *http.Request) {
	regions, err := s.scores.Comparison(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	fc, stats := s.engine.Comparison(r.Context(), regions)
	s.colorize(r, fc, "gap")
	writeGeoJSON(w, fc, &stats)
}

func (s *server) handleStyle(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	style, err := s.palette.Style(name)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"name":       name,
		"fill_color": style.Expression(),
	})
}

func (s *server) handleSelection(w http.ResponseWriter, r *http.Request) {
	var sel mapview.Selection
	if err := json.NewDecoder(r.Body).Decode(&sel); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}
	if err := validate.Struct(sel); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if sel.Kind == mapview.KindComparison && sel.ComparisonID == "" {
		http.Error(w, `{"error":"comparison_id is required"}`, http.StatusBadRequest)
		return
	}
	if sel.Kind != mapview.KindComparison && sel.Keyword == "" {
		http.Error(w, `{"error":"keyword is required"}`, http.StatusBadRequest)
		return
	}
	if sel.ProvinceCode != "" {
		sel.ProvinceCode = boundary.PadProvinceCode(sel.ProvinceCode)
	}

	svc := &mapview.Service{Engine: s.engine, Scores: s.scores}
	view, err := s.views.View(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	ticket := view.Select(s.ctx, sel, svc.Load)

	writeJSON(w, http.StatusAccepted, map[string]any{
		"status": "accepted",
		"ticket": ticket,
	})
}

func (s *server) handleView(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	v, ok := s.views.Lookup(id)
	if !ok {
		http.Error(w, `{"error":"view not found"}`, http.StatusNotFound)
		return
	}
	layer, _ := v.Current()
	writeJSON(w, http.StatusOK, map[string]any{
		"view":    id,
		"pending": v.Pending(),
		"layer":   layer,
	})
}

func (s *server) handleStats(w http.ResponseWriter, r *http.Request) {
	out := map[string]any{
		"boundaries": s.engine.Cache().Stats(),
		"views":      s.views.Stats(),
	}
	if c, ok := s.scores.(interface{ CacheStats() scoreapi.CacheStats }); ok {
		out["scores"] = c.CacheStats()
	}
	writeJSON(w, http.StatusOK, out)
}

// colorize adds fill_color when the request asks for ?colorize=true.
func (s *server) colorize(r *http.Request, fc *geojson.FeatureCollection, styleName string) {
	on, _ := strconv.ParseBool(r.URL.Query().Get("colorize"))
	if !on {
		return
	}
	style, err := s.palette.Style(styleName)
	if err != nil {
		return
	}
	choropleth.Colorize(fc, style)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("write response", zap.Error(err))
	}
}

func writeGeoJSON(w http.ResponseWriter, fc *geojson.FeatureCollection, stats *boundary.MergeStats) {
	if stats != nil {
		w.Header().Set("X-Merge-Matched", strconv.Itoa(stats.Matched()))
		w.Header().Set("X-Merge-Degraded", strconv.FormatBool(stats.Degraded))
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(fc); err != nil {
		zap.L().Warn("write geojson", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// writeUpstreamError maps a score API failure: unknown ids are 404, anything
// else is a bad gateway since no layer can be rendered without scores.
func writeUpstreamError(w http.ResponseWriter, err error) {
	if errors.Is(err, scoreapi.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	zap.L().Error("score api request failed", zap.Error(err))
	writeError(w, http.StatusBadGateway, err)
}
