// Package httpapi exposes the marketplace over HTTP: session management,
// balance queries, the listing catalog, purchases and the notification
// stream.
package httpapi

import (
	"bufio"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"solana-marketplace/internal/auth"
	"solana-marketplace/internal/notify"
	"solana-marketplace/internal/observability"
	"solana-marketplace/internal/settlement"
	"solana-marketplace/internal/storage"
	"solana-marketplace/internal/wallet"
)

// Options carries the server dependencies.
type Options struct {
	Manager      *wallet.Manager
	Engine       *settlement.Engine
	Gate         *auth.Gate
	Stream       *notify.Stream
	Listings     storage.ListingStore
	Transactions storage.TransactionStore
	Users        storage.UserStore
	Metrics      *observability.Metrics
	Logger       *slog.Logger
}

// Server is the HTTP front of the marketplace.
type Server struct {
	manager      *wallet.Manager
	engine       *settlement.Engine
	gate         *auth.Gate
	stream       *notify.Stream
	listings     storage.ListingStore
	transactions storage.TransactionStore
	users        storage.UserStore
	metrics      *observability.Metrics
	logger       *slog.Logger
	upgrader     websocket.Upgrader
}

// NewServer creates a Server.
func NewServer(opts Options) *Server {
	return &Server{
		manager:      opts.Manager,
		engine:       opts.Engine,
		gate:         opts.Gate,
		stream:       opts.Stream,
		listings:     opts.Listings,
		transactions: opts.Transactions,
		users:        opts.Users,
		metrics:      opts.Metrics,
		logger:       opts.Logger.With("component", "httpapi"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// Handler builds the route tree.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.observe)

	r.Route("/api", func(r chi.Router) {
		r.Route("/session", func(r chi.Router) {
			r.Post("/connect", s.handleConnect)
			r.Post("/disconnect", s.handleDisconnect)
			r.Get("/", s.handleSession)
		})

		r.Get("/balance/{address}", s.handleBalance)

		r.Route("/listings", func(r chi.Router) {
			r.Get("/", s.handleListListings)
			r.Get("/{id}", s.handleGetListing)
			r.With(s.requireSession).Post("/", s.handleCreateListing)
		})

		r.With(s.requireSession).Post("/buy", s.handleBuy)
		r.With(s.requireSession).Get("/transactions", s.handleTransactions)

		r.Post("/users", s.handleRegister)

		r.Get("/notifications", s.handleNotifications)
	})

	r.Get("/ws/notifications", s.handleNotificationsWS)
	r.Method(http.MethodGet, "/metrics", observability.Handler())
	r.Get("/healthz", s.handleHealthz)

	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// observe records one counter increment per request, labeled by the chi route
// pattern rather than the raw path.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.metrics == nil {
			next.ServeHTTP(w, r)
			return
		}
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		s.metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(sw.status)).Inc()
	})
}

type statusWriter struct {
	http.ResponseWriter
	status  int
	written bool
}

func (w *statusWriter) WriteHeader(status int) {
	if !w.written {
		w.status = status
		w.written = true
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.written = true
	return w.ResponseWriter.Write(b)
}

// Hijack lets the websocket upgrade reach the underlying connection.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return h.Hijack()
}
