package health

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/casperlink/intent-engine/pkg/models"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// EngineStatus is the view of the engine the status endpoints expose.
type EngineStatus interface {
	StatusCounts() map[models.Status]int
	Countdowns() map[string]int64
	VenueStates() map[string]bool
	ResetVenue(venue string) bool
	FeedStatus() (time.Time, int)
	InFlight() int
}

// Server represents a health check HTTP server
type Server struct {
	port          string
	engine        EngineStatus
	metricsAPIKey string
}

// NewServer creates a new health check server
func NewServer(port string, engine EngineStatus) *Server {
	return &Server{
		port:          port,
		engine:        engine,
		metricsAPIKey: os.Getenv("METRICS_API_KEY"),
	}
}

// metricsAuthMiddleware is a middleware that checks for a valid API key
func (s *Server) metricsAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Skip auth if no API key is configured
		if s.metricsAPIKey == "" {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Missing Authorization header", http.StatusUnauthorized)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			http.Error(w, "Invalid Authorization header format", http.StatusUnauthorized)
			return
		}

		if parts[1] != s.metricsAPIKey {
			http.Error(w, "Invalid API key", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Start starts the health check server
func (s *Server) Start() {
	// Health check endpoint
	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	// Readiness check: ready once at least one price snapshot landed, or
	// when nothing needs prices.
	http.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		counts := s.engine.StatusCounts()
		fetchedAt, _ := s.engine.FeedStatus()
		if counts[models.StatusWatching] > 0 && fetchedAt.IsZero() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("No price snapshot yet"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("Ready"))
	})

	// Engine status endpoint
	http.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		counts := s.engine.StatusCounts()
		intents := make(map[string]int, len(counts))
		total := 0
		for status, n := range counts {
			intents[string(status)] = n
			total += n
		}

		venues := make(map[string]string)
		for venue, open := range s.engine.VenueStates() {
			if open {
				venues[venue] = "open"
			} else {
				venues[venue] = "closed"
			}
		}

		status := map[string]interface{}{
			"intents_total": total,
			"intents":       intents,
			"in_flight":     s.engine.InFlight(),
			"venues":        venues,
		}

		// Seconds until the next execution per scheduled DCA intent.
		if countdowns := s.engine.Countdowns(); len(countdowns) > 0 {
			status["countdowns"] = countdowns
		}

		fetchedAt, quoteCount := s.engine.FeedStatus()
		if !fetchedAt.IsZero() {
			status["feed"] = map[string]interface{}{
				"fetched_at":  fetchedAt.UTC().Format(time.RFC3339),
				"age_seconds": int(time.Since(fetchedAt).Seconds()),
				"quotes":      quoteCount,
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(status); err != nil {
			log.Printf("Error encoding status JSON: %v", err)
		}
	})

	// Circuit breaker admin control endpoint
	http.HandleFunc("/circuit/reset", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		venue := r.URL.Query().Get("venue")
		if venue == "" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte("Missing venue parameter"))
			return
		}

		if !s.engine.ResetVenue(venue) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(fmt.Sprintf("No circuit breaker for venue %s", venue)))
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(fmt.Sprintf("Circuit breaker for venue %s reset", venue)))
	})

	// Expose Prometheus metrics with API key authentication
	http.Handle("/metrics", s.metricsAuthMiddleware(promhttp.Handler()))

	log.Printf("Starting health and metrics server on port %s", s.port)
	if err := http.ListenAndServe(":"+s.port, nil); err != nil {
		log.Printf("Health server error: %v", err)
	}
}
