package http

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"smartledger/internal/auth"
	"smartledger/internal/backup"
	"smartledger/internal/core"
	"smartledger/internal/live"
	"smartledger/internal/log"
	"smartledger/internal/middleware/ratelimit"
	"smartledger/internal/middleware/security"
	"smartledger/internal/middleware/trace"
	"smartledger/internal/services"
)

// Ledger is the part of services.Ledger the handlers use.
type Ledger interface {
	Add(ctx context.Context, sess *auth.Session, in services.TransactionInput) (core.Transaction, error)
	Update(ctx context.Context, sess *auth.Session, tx core.Transaction) (core.Transaction, error)
	Delete(ctx context.Context, sess *auth.Session, id string, confirmed bool) error
	List(ctx context.Context, sess *auth.Session, query string) ([]core.Transaction, error)
	Report(ctx context.Context, sess *auth.Session, year, month int) (core.MonthlyReport, error)
	Export(ctx context.Context, sess *auth.Session, w io.Writer) error
	Import(ctx context.Context, sess *auth.Session, payload []byte) (backup.Result, error)
}

type Authenticator interface {
	SignUp(ctx context.Context, email, password, name string) (*auth.Session, error)
	SignIn(ctx context.Context, email, password string) (*auth.Session, error)
	Restore(ctx context.Context, token string) (*auth.Session, error)
	SignOut(ctx context.Context, sess *auth.Session) error
}

// Subscriber streams snapshots of one user's ledger.
type Subscriber interface {
	Subscribe(ctx context.Context, userID string) (<-chan live.Snapshot, error)
}

// Deps are the collaborators of the server. Ready may be nil.
type Deps struct {
	Ledger             Ledger
	Auth               Authenticator
	Live               Subscriber
	Ready              func(ctx context.Context) error
	Logger             *log.Logger
	RateLimitPerMinute int
	// Heartbeat is the idle interval between keep-alive comments on the
	// snapshot stream.
	Heartbeat time.Duration
}

type Server struct {
	http.Server
	ledger    Ledger
	auth      Authenticator
	live      Subscriber
	ready     func(ctx context.Context) error
	logger    *log.Logger
	limiter   *ratelimit.Limiter
	detector  *security.Detector
	heartbeat time.Duration
	now       func() time.Time

	// closing is closed when shutdown starts so long-lived streams end
	// instead of holding Shutdown until its deadline.
	closing      chan struct{}
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.Discard()
	}
	heartbeat := deps.Heartbeat
	if heartbeat <= 0 {
		heartbeat = 25 * time.Second
	}

	s := &Server{
		ledger:    deps.Ledger,
		auth:      deps.Auth,
		live:      deps.Live,
		ready:     deps.Ready,
		logger:    logger.WithComponent(log.ComponentHTTP),
		limiter:   ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: deps.RateLimitPerMinute}),
		detector:  security.NewDetector(logger),
		heartbeat: heartbeat,
		now:       time.Now,
		closing:   make(chan struct{}),
	}

	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("not found").Write(w)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusMethodNotAllowed, "method not allowed").Write(w)
	})

	r.HandleFunc("/healthz", handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)

	authRouter := r.PathPrefix("/auth").Subrouter()
	authRouter.HandleFunc("/signup", s.handleSignUp).Methods(http.MethodPost)
	authRouter.HandleFunc("/signin", s.handleSignIn).Methods(http.MethodPost)
	authRouter.Handle("/session", s.requireSession(http.HandlerFunc(s.handleSession))).Methods(http.MethodGet)
	authRouter.Handle("/signout", s.requireSession(http.HandlerFunc(s.handleSignOut))).Methods(http.MethodPost)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(s.requireSession)
	api.HandleFunc("/categories", s.handleCategories).Methods(http.MethodGet)
	api.HandleFunc("/transactions", s.handleListTransactions).Methods(http.MethodGet)
	api.HandleFunc("/transactions", s.handleCreateTransaction).Methods(http.MethodPost)
	api.HandleFunc("/transactions/stream", s.handleStream).Methods(http.MethodGet)
	api.HandleFunc("/transactions/{id}", s.handleUpdateTransaction).Methods(http.MethodPut)
	api.HandleFunc("/transactions/{id}", s.handleDeleteTransaction).Methods(http.MethodDelete)
	api.HandleFunc("/reports/{year:[0-9]{1,4}}/{month:[0-9]{1,2}}", s.handleReport).Methods(http.MethodGet)
	api.HandleFunc("/backup", s.handleExport).Methods(http.MethodGet)
	api.HandleFunc("/backup", s.handleImport).Methods(http.MethodPost)

	limited := s.limiter.Middleware(s.detector.ExtractClientIP, isRateLimited, func(w http.ResponseWriter, r *http.Request) {
		s.logger.WarnContext(r.Context(), "Rate limit exceeded",
			log.FieldClientIP, s.detector.ExtractClientIP(r),
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path)
		ErrorResponse(http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.").Write(w)
	})

	var handler http.Handler = r
	handler = limited(handler)
	handler = s.detector.Middleware(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = trace.NewMiddleware(s.detector.ExtractClientIP, logger).Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	s.Server.RegisterOnShutdown(func() { close(s.closing) })
	return s
}

// isRateLimited selects authentication attempts and every mutating request.
func isRateLimited(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/auth/") {
		return true
	}
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	default:
		return true
	}
}

// Shutdown gracefully shuts down the server and the limiter's cleanup
// goroutine. Open snapshot streams are ended first.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			s.logger.WarnContext(r.Context(), "Readiness check failed", "error", err)
			ErrorResponse(http.StatusServiceUnavailable, "not ready").Write(w)
			return
		}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
