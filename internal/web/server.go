package web

import (
	"context"
	"io/fs"
	"log"
	"net/http"
	"time"
)

// DefaultStatusInterval is how often a robot snapshot is pushed to
// stream clients.
const DefaultStatusInterval = time.Second

// Server wraps the HTTP server and handlers.
type Server struct {
	addr           string
	handlers       *Handlers
	StatusInterval time.Duration
}

// NewServer creates a server configured for the given address and dependencies.
func NewServer(addr string, broadcaster *StatusBroadcaster, rb Robot) *Server {
	subFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		log.Fatalf("web: failed to sub static fs: %v", err)
	}

	return &Server{
		addr:           addr,
		handlers:       NewHandlers(broadcaster, rb, subFS),
		StatusInterval: DefaultStatusInterval,
	}
}

// Mux returns an http.Handler with all routes registered.
func (s *Server) Mux() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /command", s.handlers.HandleCommand)
	mux.HandleFunc("GET /status", s.handlers.HandleStatus)
	mux.HandleFunc("GET /status/stream", s.handlers.HandleStatusStream)
	mux.HandleFunc("GET /status/ws", s.handlers.HandleStatusWS)
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(s.handlers.staticFS))))
	mux.HandleFunc("GET /{$}", s.handlers.ServeIndex) // exact match for root only

	return mux
}

// Run starts the server and blocks until ctx is cancelled, then shuts down
// gracefully. While running it pushes a robot snapshot to stream clients
// every StatusInterval.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.Mux()}
	errCh := make(chan error, 1)
	go func() {
		log.Printf("web server listening on %s", s.addr)
		errCh <- srv.ListenAndServe()
	}()
	go s.publishStatus(ctx)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// publishStatus broadcasts snapshots until ctx is done. Nothing is sent
// while no client listens.
func (s *Server) publishStatus(ctx context.Context) {
	h := s.handlers
	if h.Robot == nil || s.StatusInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.StatusInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if h.Broadcaster.Clients() == 0 {
				continue
			}
			if err := h.Broadcaster.BroadcastStatus(h.Robot.Status()); err != nil {
				log.Printf("web: status snapshot: %v", err)
			}
		}
	}
}
