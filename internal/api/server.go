package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"tasnim.dev/role-grant/internal/aws/iam"
	"tasnim.dev/role-grant/internal/grant"
	"tasnim.dev/role-grant/internal/metrics"
)

type Submitter interface {
	Submit(ctx context.Context, in grant.SubmitInput) (grant.SubmitResult, error)
}

type Decider interface {
	Decide(ctx context.Context, requestID, action string) (grant.Decision, error)
}

type PolicyCatalog interface {
	ListPoliciesPage(ctx context.Context, scope string, marker *string) ([]iam.IAMPolicy, *string, error)
}

type Server struct {
	submitter Submitter
	decider   Decider
	catalog   PolicyCatalog
	logger    *slog.Logger
}

func NewServer(submitter Submitter, decider Decider, catalog PolicyCatalog, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		submitter: submitter,
		decider:   decider,
		catalog:   catalog,
		logger:    logger.With("component", "api"),
	}
}

// Handler returns the routed API with CORS applied to every response.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()
	router.Use(instrument(s.logger))

	router.HandleFunc("/request", s.handleSubmit).Methods(http.MethodPost)
	router.HandleFunc("/decide", s.handleDecide).Methods(http.MethodGet)
	router.HandleFunc("/policies", s.handlePolicies).Methods(http.MethodGet)
	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusNotFound, "Not found", "")
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, "Method not allowed", "")
	})

	return CORSMiddleware(router)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
