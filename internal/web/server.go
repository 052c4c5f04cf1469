package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"sort"
	"strconv"
	"time"

	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/revo-market/contracts/internal/logger"
	"github.com/revo-market/contracts/internal/metrics"
	"github.com/revo-market/contracts/internal/state"
	"github.com/revo-market/contracts/internal/vault"
	"github.com/rs/zerolog"
)

// Config holds what the API reads from.
type Config struct {
	Port    string
	Vault   vault.CompoundingVault
	Store   state.Store
	Metrics *metrics.Metrics // optional; /metrics is only served when set
}

// WebServer handles HTTP requests for vault data
type WebServer struct {
	logger  zerolog.Logger
	router  *mux.Router
	port    string
	vault   vault.CompoundingVault
	store   state.Store
	metrics *metrics.Metrics
	started time.Time
}

// NewWebServer creates a new web server instance
func NewWebServer(cfg Config) *WebServer {
	if cfg.Port == "" {
		cfg.Port = "8080"
	}

	server := &WebServer{
		logger:  logger.GetForComponent("web_server"),
		router:  mux.NewRouter(),
		port:    cfg.Port,
		vault:   cfg.Vault,
		store:   cfg.Store,
		metrics: cfg.Metrics,
		started: time.Now(),
	}

	server.setupRoutes()
	return server
}

// setupRoutes configures all HTTP routes
func (ws *WebServer) setupRoutes() {
	// Health endpoint (direct route)
	ws.router.HandleFunc("/health", ws.handleHealth).Methods("GET")

	if ws.metrics != nil {
		ws.router.Handle("/metrics", promhttp.HandlerFor(ws.metrics.Registry(), promhttp.HandlerOpts{})).Methods("GET")
	}

	// API endpoints
	api := ws.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", ws.handleHealth).Methods("GET")
	api.HandleFunc("/cycles", ws.handleGetCycles).Methods("GET")
	api.HandleFunc("/cycles/latest", ws.handleGetLatestCycle).Methods("GET")
	api.HandleFunc("/cycles/{id:[0-9]+}", ws.handleGetCycle).Methods("GET")
	api.HandleFunc("/vault/summary", ws.handleGetVaultSummary).Methods("GET")
	api.HandleFunc("/vault/holders", ws.handleGetHolders).Methods("GET")
	api.HandleFunc("/vault/holders/{address}", ws.handleGetHolder).Methods("GET")
	api.HandleFunc("/fee-parameters", ws.handleGetFeeParameters).Methods("GET")
	api.HandleFunc("/performance", ws.handleGetPerformanceMetrics).Methods("GET")

	// Add CORS middleware
	ws.router.Use(ws.corsMiddleware)
	ws.router.Use(ws.loggingMiddleware)
}

// Handler exposes the router, mainly for tests.
func (ws *WebServer) Handler() http.Handler {
	return ws.router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (ws *WebServer) Start(ctx context.Context) error {
	ws.logger.Info().Str("port", ws.port).Msg("Starting web server")

	server := &http.Server{
		Addr:         ":" + ws.port,
		Handler:      ws.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		ws.logger.Info().Msg("Shutting down web server")
		return server.Shutdown(shutdownCtx)
	}
}

// handleHealth reports runtime stats and whether the last compound cycle succeeded
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	cycleInfo := map[string]interface{}{
		"current_cycle":     0,
		"last_cycle_time":   nil,
		"last_cycle_status": "none",
	}
	hasErrors := false
	latest, err := ws.store.GetLatestCycle(r.Context())
	switch {
	case err == nil:
		status := "success"
		if !latest.Success {
			status = "failed"
			hasErrors = true
		}
		cycleInfo = map[string]interface{}{
			"current_cycle":     latest.CycleNumber,
			"last_cycle_time":   latest.Timestamp,
			"last_cycle_status": status,
			"attempts":          latest.Attempts,
		}
	case errors.Is(err, state.ErrNotFound):
		// no cycle has run yet
	default:
		ws.logger.Error().Err(err).Msg("Failed to read latest cycle for health check")
		hasErrors = true
	}

	// Determine overall status
	overallStatus := "OK"
	if hasErrors {
		overallStatus = "DEGRADED"
	}

	response := map[string]interface{}{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"system": map[string]interface{}{
			"version":          runtime.Version(),
			"goroutines_count": runtime.NumGoroutine(),
			"alloc_bytes":      memStats.Alloc,
			"sys_bytes":        memStats.Sys,
			"gc_cycles":        memStats.NumGC,
			"uptime_seconds":   int64(time.Since(ws.started).Seconds()),
		},
		"component": map[string]interface{}{
			"name":    "farmbot",
			"version": "1.0.0",
		},
		"farmbot_status": map[string]interface{}{
			"vault":             ws.vault.Address().Hex(),
			"has_recent_errors": hasErrors,
			"cycle_info":        cycleInfo,
		},
	}

	// Set appropriate HTTP status code
	statusCode := http.StatusOK
	if hasErrors {
		statusCode = http.StatusServiceUnavailable
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// handleGetCycles returns paginated cycle data
func (ws *WebServer) handleGetCycles(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 && parsedLimit <= 100 {
			limit = parsedLimit
		}
	}

	cycles, err := ws.store.GetRecentCycles(r.Context(), limit)
	if err != nil {
		ws.logger.Error().Err(err).Msg("Failed to get recent cycles")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve cycles")
		return
	}

	response := map[string]interface{}{
		"cycles": cycles,
		"count":  len(cycles),
		"limit":  limit,
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetCycle returns a specific cycle by ID
func (ws *WebServer) handleGetCycle(w http.ResponseWriter, r *http.Request) {
	idStr := mux.Vars(r)["id"]

	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid cycle ID")
		return
	}

	cycle, err := ws.store.GetCycleByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, state.ErrNotFound) {
			ws.writeErrorResponse(w, http.StatusNotFound, "Cycle not found")
			return
		}
		ws.logger.Error().Err(err).Int64("cycleId", id).Msg("Failed to get cycle")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve cycle")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, cycle)
}

// handleGetLatestCycle returns the most recent cycle
func (ws *WebServer) handleGetLatestCycle(w http.ResponseWriter, r *http.Request) {
	cycle, err := ws.store.GetLatestCycle(r.Context())
	if err != nil {
		if errors.Is(err, state.ErrNotFound) {
			ws.writeErrorResponse(w, http.StatusNotFound, "No cycles found")
			return
		}
		ws.logger.Error().Err(err).Msg("Failed to get latest cycle")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve latest cycle")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, cycle)
}

// handleGetVaultSummary returns the vault read model
func (ws *WebServer) handleGetVaultSummary(w http.ResponseWriter, r *http.Request) {
	ws.writeJSONResponse(w, http.StatusOK, ws.vault.Summary())
}

// handleGetHolders lists every share holder, largest first
func (ws *WebServer) handleGetHolders(w http.ResponseWriter, r *http.Request) {
	type holderBalance struct {
		Address common.Address `json:"address"`
		Shares  math.Int       `json:"shares"`
	}

	holders := make([]holderBalance, 0)
	for _, h := range ws.vault.Holders() {
		holders = append(holders, holderBalance{Address: h, Shares: ws.vault.BalanceOf(h)})
	}
	sort.Slice(holders, func(i, j int) bool {
		return holders[i].Shares.GT(holders[j].Shares)
	})

	response := map[string]interface{}{
		"holders":      holders,
		"count":        len(holders),
		"total_shares": ws.vault.TotalShares(),
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetHolder returns one account's shares and what they are worth in staking token
func (ws *WebServer) handleGetHolder(w http.ResponseWriter, r *http.Request) {
	addr := mux.Vars(r)["address"]
	if !common.IsHexAddress(addr) {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid address")
		return
	}
	holder := common.HexToAddress(addr)
	shares := ws.vault.BalanceOf(holder)
	lpAmount, err := ws.vault.GetLpAmount(shares)
	if err != nil {
		ws.logger.Error().Err(err).Str("holder", holder.Hex()).Msg("Failed to value holder shares")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to value shares")
		return
	}

	response := map[string]interface{}{
		"address":   holder.Hex(),
		"shares":    shares,
		"lp_amount": lpAmount,
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetFeeParameters returns the vault's active fee parameters
func (ws *WebServer) handleGetFeeParameters(w http.ResponseWriter, r *http.Request) {
	params, err := ws.store.LoadActiveFeeParameters(r.Context(), ws.vault.Address())
	if err != nil {
		if errors.Is(err, state.ErrNotFound) {
			ws.writeErrorResponse(w, http.StatusNotFound, "No active fee parameters")
			return
		}
		ws.logger.Error().Err(err).Msg("Failed to get fee parameters")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve fee parameters")
		return
	}

	response := map[string]interface{}{
		"parameters": params,
		"timestamp":  time.Now().UTC(),
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetPerformanceMetrics returns performance metrics
func (ws *WebServer) handleGetPerformanceMetrics(w http.ResponseWriter, r *http.Request) {
	metrics, err := ws.store.GetPerformanceMetrics(r.Context())
	if err != nil {
		ws.logger.Error().Err(err).Msg("Failed to get performance metrics")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve performance metrics")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, metrics)
}

// writeJSONResponse writes a JSON response
func (ws *WebServer) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		ws.logger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeErrorResponse writes an error response
func (ws *WebServer) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	response := map[string]interface{}{
		"error":     true,
		"message":   message,
		"timestamp": time.Now().UTC(),
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// corsMiddleware adds CORS headers
func (ws *WebServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (ws *WebServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Create a response writer wrapper to capture status code
		wrapper := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		ws.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Int("status", wrapper.statusCode).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

// responseWriterWrapper wraps http.ResponseWriter to capture status code
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
