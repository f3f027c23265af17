// Package api serves the settlement engine over HTTP. Callers are
// authenticated with a shared bearer token and identified by the
// X-User-ID header, which the identity provider's gateway sets.
package api

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fundflow-dev/fundflow/internal/ledger"
	"github.com/fundflow-dev/fundflow/internal/logging"
)

// UserHeader carries the authenticated caller's user ID.
const UserHeader = "X-User-ID"

type ctxKey int

const userIDKey ctxKey = iota

// Server is the fundflow HTTP API.
type Server struct {
	ledger    *ledger.Service
	authToken string
	logger    logging.Logger
}

// NewServer creates a Server. A nil logger discards output.
func NewServer(svc *ledger.Service, authToken string, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.Nop
	}
	return &Server{ledger: svc, authToken: authToken, logger: logger}
}

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Get("/admin/revenue", s.handleRevenue)

		r.Group(func(r chi.Router) {
			r.Use(s.userMiddleware)

			r.Get("/recipients/{tag}", s.handleVerifyRecipient)
			r.Post("/transfers", s.handleTransfer)
			r.Get("/fees/quote", s.handleFeeQuote)
			r.Get("/balance", s.handleBalance)
			r.Post("/transactions", s.handleRecordTransaction)

			r.Route("/goals", func(r chi.Router) {
				r.Post("/", s.handleCreateGoal)
				r.Get("/", s.handleListGoals)
				r.Post("/{goalID}/contributions", s.handleContribute)
				r.Post("/{goalID}/withdrawals", s.handleWithdraw)
				r.Post("/{goalID}/cancel", s.handleCancelGoal)
			})
		})
	})
	return r
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractBearerToken(r.Header.Get("Authorization"))
		if s.authToken == "" || !secureCompare(token, s.authToken) {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing or invalid bearer token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) userMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(UserHeader))
		if userID == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized", UserHeader+" header is required")
			return
		}
		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userID(r *http.Request) string {
	id, _ := r.Context().Value(userIDKey).(string)
	return id
}

func extractBearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
