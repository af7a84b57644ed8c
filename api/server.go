// Package api implements the JSON HTTP surface external clients use to
// query the ledger and inspect node status.
package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"github.com/axiomproject/axiom/errs"
)

// Server is the external HTTP API.
type Server struct {
	addr  string
	debug bool
	srv   *http.Server
	ln    net.Listener
	log   *logrus.Entry
}

// NewServer builds a Server on addr, wiring every route spec.md §6 names.
// debug gates /debug/propose_block, matching AXIOM_DEBUG=true at startup.
func NewServer(addr string, h *Handlers, debug bool, log *logrus.Entry) *Server {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Get("/status", h.Status)
	r.Get("/get_chain_height", h.GetChainHeight)
	r.Get("/get_blocks", h.GetBlocks)
	r.Get("/get_peers", h.GetPeers)
	r.Get("/get_fact_ids", h.GetFactIDs)
	r.Post("/get_facts_by_id", h.GetFactsByID)
	r.Post("/validator/stake", h.Stake)
	r.Post("/chat", h.Chat)
	if debug {
		r.Post("/debug/propose_block", h.DebugProposeBlock)
	}

	s := &Server{
		addr:  addr,
		debug: debug,
		log:   log,
		srv: &http.Server{
			Addr:              addr,
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
			// spec.md §5: the HTTP task uses a fixed worker pool of 16.
			// net/http has no native pool knob, so we bound it with a
			// buffered semaphore middleware instead (see withWorkerPool).
		},
	}
	s.srv.Handler = withWorkerPool(r, 16)
	return s
}

// Start binds the listener synchronously, then serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.ln = ln
	go func() {
		if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.log.Errorf("server error: %v", err)
		}
	}()
	return nil
}

// Addr returns the bound listener address. Useful when started on ":0".
func (s *Server) Addr() net.Addr {
	if s.ln != nil {
		return s.ln.Addr()
	}
	return nil
}

// Stop gracefully shuts the server down, waiting up to 5s for in-flight requests.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}

// withWorkerPool bounds concurrent handler execution to n in-flight
// requests; callers beyond that block until a slot frees up.
func withWorkerPool(next http.Handler, n int) http.Handler {
	sem := make(chan struct{}, n)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sem <- struct{}{}
		defer func() { <-sem }()
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError emits the {status, kind, message} envelope spec.md §7 mandates
// for every HTTP failure, so clients can branch on kind instead of parsing
// message strings.
func writeError(w http.ResponseWriter, status int, kind errs.Kind, message string) {
	writeJSON(w, status, map[string]any{"status": "error", "kind": kind, "message": message})
}
