package server

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/zombor/expense-assistant/internal/receipt"
	"github.com/zombor/expense-assistant/internal/report"
	"github.com/zombor/expense-assistant/internal/session"
)

// Messages handles inbound chat text
type Messages interface {
	HandleText(ctx context.Context, phoneNumber, text string) error
}

// Receipts handles inbound receipt uploads
type Receipts interface {
	HandleReceipt(ctx context.Context, phoneNumber, filename string, data []byte, contentType string, extracted []byte) (*receipt.Receipt, error)
}

// Archive serves and removes stored receipts
type Archive interface {
	GetReceiptFile(path string) ([]byte, error)
	DeleteReceipt(phoneNumber, id string) error
}

// Reports gives access to the reports directory
type Reports interface {
	Path(filename string) (string, error)
	GetReportStats() (report.Stats, error)
	CleanupOldReports(daysOld int) (int, error)
}

// Plans changes a user's subscription plan
type Plans interface {
	SetPlan(phoneNumber string, plan session.Plan) error
}

// Deps are the collaborators the server routes to
type Deps struct {
	Messages Messages
	Receipts Receipts
	Archive  Archive
	Reports  Reports
	Plans    Plans
}

// Server handles HTTP requests for the assistant
type Server struct {
	deps      Deps
	basicAuth BasicAuth
	mux       *http.ServeMux
}

// BasicAuth holds basic authentication credentials
type BasicAuth struct {
	Username string
	Password string
}

// NewServer creates a new Server with default mux
func NewServer(deps Deps, basicAuth BasicAuth) *Server {
	return NewServerWithMux(deps, basicAuth, http.NewServeMux())
}

// NewServerWithMux creates a new Server with a custom mux for testing
func NewServerWithMux(deps Deps, basicAuth BasicAuth, mux *http.ServeMux) *Server {
	s := &Server{
		deps:      deps,
		basicAuth: basicAuth,
		mux:       mux,
	}
	s.registerRoutes()
	return s
}

// authenticate checks basic auth credentials
func (s *Server) authenticate(r *http.Request) bool {
	if s.basicAuth.Username == "" && s.basicAuth.Password == "" {
		return true // No auth required if not configured
	}

	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Basic ") {
		return false
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(auth, "Basic "))
	if err != nil {
		return false
	}

	user, pass, ok := strings.Cut(string(decoded), ":")
	if !ok {
		return false
	}

	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(s.basicAuth.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(s.basicAuth.Password)) == 1
	return userOK && passOK
}

// requireAuth middleware
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authenticate(r) {
			w.Header().Set("WWW-Authenticate", `Basic realm="Expense Assistant"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// registerRoutes registers all routes on the server's mux.
// Report and receipt links are sent to users in chat so they stay public.
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)

	s.mux.HandleFunc("GET /reports/{name}", s.handleGetReport)
	s.mux.HandleFunc("GET /receipts/{user}/{name}", s.handleGetReceiptFile)

	s.mux.HandleFunc("POST /api/messages", s.requireAuth(s.handleMessage))
	s.mux.HandleFunc("POST /api/receipts", s.requireAuth(s.handleUploadReceipt))
	s.mux.HandleFunc("DELETE /api/receipts/{phone}/{id}", s.requireAuth(s.handleDeleteReceipt))
	s.mux.HandleFunc("GET /api/reports/stats", s.requireAuth(s.handleReportStats))
	s.mux.HandleFunc("POST /api/reports/cleanup", s.requireAuth(s.handleCleanup))
	s.mux.HandleFunc("POST /api/sessions/{phone}/plan", s.requireAuth(s.handleSetPlan))
}

// Start serves on addr until ctx is cancelled
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting server", "address", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	slog.Info("Shutting down server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
