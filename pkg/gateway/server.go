// Package gateway serves DOPA endpoint results over HTTP as JSON, CSV and
// GeoJSON.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/coolbeans/dopa/pkg/categories"
	"github.com/coolbeans/dopa/pkg/client"
	"github.com/coolbeans/dopa/pkg/dopaerr"
	"github.com/coolbeans/dopa/pkg/geometry"
	"github.com/coolbeans/dopa/pkg/logging"
	"github.com/coolbeans/dopa/pkg/table"
)

// Service is the subset of *client.Client the gateway needs.
type Service interface {
	CountryList(ctx context.Context) (*table.Table, error)
	SpeciesList(ctx context.Context, countryID any, statuses []string) (*table.Table, error)
	SpeciesCount(ctx context.Context, countryID any, statuses []string) (*table.Table, error)
	ProtectedAreaStats(ctx context.Context, countryID any) (*table.Table, error)
	ProtectedAreaGeometries(ctx context.Context, countryID any) (*geometry.Collection, error)
}

// Server routes gateway requests to a Service.
type Server struct {
	service        Service
	logger         *logging.Logger
	metricsHandler http.Handler
}

// New creates a Server. metricsHandler may be nil, in which case /metrics is
// not mounted.
func New(service Service, logger *logging.Logger, metricsHandler http.Handler) *Server {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Server{
		service:        service,
		logger:         logger,
		metricsHandler: metricsHandler,
	}
}

// Routes returns the gateway router.
func (server *Server) Routes() chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(server.logRequests)

	router.Get("/healthz", server.handleHealth)
	router.Get("/categories", server.handleCategories)
	router.Get("/countries", server.handleCountries)
	router.Route("/countries/{country}", func(r chi.Router) {
		r.Get("/species", server.handleSpecies)
		r.Get("/species/count", server.handleSpeciesCount)
		r.Get("/pa/stats", server.handleProtectedAreaStats)
		r.Get("/pa", server.handleProtectedAreas)
	})
	if server.metricsHandler != nil {
		router.Method(http.MethodGet, "/metrics", server.metricsHandler)
	}
	return router
}

func (server *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		wrapped := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(wrapped, r)
		server.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.Status(),
			"duration", time.Since(started),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

func (server *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (server *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	server.writeTable(w, r, categories.Categories())
}

func (server *Server) handleCountries(w http.ResponseWriter, r *http.Request) {
	countries, err := server.service.CountryList(r.Context())
	if err != nil {
		server.writeError(w, err)
		return
	}
	server.writeTable(w, r, countries)
}

func (server *Server) handleSpecies(w http.ResponseWriter, r *http.Request) {
	countryArg, ok := server.countryParam(w, r)
	if !ok {
		return
	}
	species, err := server.service.SpeciesList(r.Context(), countryArg, statusParam(r))
	if err != nil {
		server.writeError(w, err)
		return
	}
	server.writeTable(w, r, species)
}

func (server *Server) handleSpeciesCount(w http.ResponseWriter, r *http.Request) {
	countryArg, ok := server.countryParam(w, r)
	if !ok {
		return
	}
	counts, err := server.service.SpeciesCount(r.Context(), countryArg, statusParam(r))
	if err != nil {
		server.writeError(w, err)
		return
	}
	server.writeTable(w, r, counts)
}

func (server *Server) handleProtectedAreaStats(w http.ResponseWriter, r *http.Request) {
	countryArg, ok := server.countryParam(w, r)
	if !ok {
		return
	}
	stats, err := server.service.ProtectedAreaStats(r.Context(), countryArg)
	if err != nil {
		server.writeError(w, err)
		return
	}
	server.writeTable(w, r, stats)
}

func (server *Server) handleProtectedAreas(w http.ResponseWriter, r *http.Request) {
	countryArg, ok := server.countryParam(w, r)
	if !ok {
		return
	}
	collection, err := server.service.ProtectedAreaGeometries(r.Context(), countryArg)
	if err != nil {
		server.writeError(w, err)
		return
	}
	data, err := collection.MarshalGeoJSON()
	if err != nil {
		server.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// countryParam returns the {country} path segment percent-decoded. chi
// matches against the raw path when one is set, so names such as
// "Trinidad & Tobago" arrive still escaped. It writes a 400 and reports false
// when the segment is not valid escaping.
func (server *Server) countryParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	raw := chi.URLParam(r, "country")
	countryArg, err := url.PathUnescape(raw)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid country in path: " + err.Error()})
		return "", false
	}
	return countryArg, true
}

// statusParam splits ?status=EN,VU. Repeated parameters are also accepted.
func statusParam(r *http.Request) []string {
	var statuses []string
	for _, raw := range r.URL.Query()[client.ParamStatus] {
		for _, token := range strings.Split(raw, ",") {
			if token = strings.TrimSpace(token); token != "" {
				statuses = append(statuses, token)
			}
		}
	}
	return statuses
}

// writeTable encodes normalized as JSON, or CSV when ?format=csv.
func (server *Server) writeTable(w http.ResponseWriter, r *http.Request, normalized *table.Table) {
	if strings.EqualFold(r.URL.Query().Get("format"), "csv") {
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		if err := table.WriteCSV(w, normalized); err != nil {
			server.logger.Error("failed to write CSV", "error", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, normalized)
}

type errorResponse struct {
	Error string `json:"error"`
}

func (server *Server) writeError(w http.ResponseWriter, err error) {
	statusCode := statusFor(err)
	if statusCode >= http.StatusInternalServerError {
		server.logger.Error("request failed", "error", err)
	}
	writeJSON(w, statusCode, errorResponse{Error: err.Error()})
}

// statusFor maps client errors to gateway status codes: bad arguments are
// the caller's fault, upstream failures are reported as a bad gateway.
func statusFor(err error) int {
	var validationErr *dopaerr.ValidationError
	var resolutionErr *dopaerr.ResolutionError
	var typeErr *dopaerr.TypeError
	var httpErr *client.HTTPError
	var geometryErr *dopaerr.GeometryError

	switch {
	case errors.As(err, &validationErr), errors.As(err, &resolutionErr), errors.As(err, &typeErr):
		return http.StatusBadRequest
	case errors.As(err, &httpErr), errors.As(err, &geometryErr), errors.Is(err, table.ErrUnexpectedShape),
		errors.Is(err, client.ErrBodyTooLarge):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}
