// Package api serves the HTTP inspection surface: live window state,
// recent lifecycle transitions, config and build info.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/ItsNotGoodName/x-compd/internal/build"
	"github.com/ItsNotGoodName/x-compd/internal/bus"
	"github.com/ItsNotGoodName/x-compd/internal/comp"
	"github.com/ItsNotGoodName/x-compd/internal/config"
	"github.com/ItsNotGoodName/x-compd/pkg/chiext"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/k0kubun/pp/v3"
)

const transitionLog = 128

type Server struct {
	session *comp.Session
	store   *config.Store
	addr    string

	mu     sync.Mutex
	recent []transitionEntry
}

type transitionEntry struct {
	Time      time.Time `json:"time"`
	Window    string    `json:"window"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Animation string    `json:"animation,omitempty"`
}

func NewServer(session *comp.Session, store *config.Store, addr string) *Server {
	return &Server{
		session: session,
		store:   store,
		addr:    addr,
	}
}

func (s *Server) String() string { return "api.Server" }

func (s *Server) Serve(ctx context.Context) error {
	transitions, unsub := bus.NewHub[comp.EventStateTransition]().Register().Subscribe(ctx)
	defer unsub()
	go func() {
		for t := range transitions {
			s.record(t)
		}
	}()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chiext.Logger())
	r.Use(middleware.Recoverer)

	r.Get("/api/windows", s.handleWindows)
	r.Get("/api/windows/{id}", s.handleWindow)
	r.Get("/api/tree", s.handleTree)
	r.Get("/api/transitions", s.handleTransitions)
	r.Get("/api/config", s.handleConfig)
	r.Get("/api/build", func(w http.ResponseWriter, r *http.Request) {
		respond(w, build.Current)
	})
	r.Get("/debug/dump", s.handleDump)

	srv := &http.Server{
		Addr:    s.addr,
		Handler: r,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	errC := make(chan error, 1)
	go func() { errC <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
		<-errC
		return ctx.Err()
	case err := <-errC:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) record(t comp.EventStateTransition) {
	e := transitionEntry{
		Time:   time.Now(),
		Window: t.ID.String(),
		From:   t.From.String(),
		To:     t.To.String(),
	}
	if t.Animation != uuid.Nil {
		e.Animation = t.Animation.String()
	}
	s.mu.Lock()
	s.recent = append(s.recent, e)
	if len(s.recent) > transitionLog {
		s.recent = s.recent[len(s.recent)-transitionLog:]
	}
	s.mu.Unlock()
}

func (s *Server) handleWindows(w http.ResponseWriter, r *http.Request) {
	wins, err := s.session.Snapshot(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	respond(w, wins)
}

// handleWindow looks one window up by its full identity string, zombies
// included.
func (s *Server) handleWindow(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	wins, err := s.session.Snapshot(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	for _, win := range wins {
		if win.ID.String() == id {
			respond(w, win)
			return
		}
	}
	http.Error(w, "unknown window", http.StatusNotFound)
}

func (s *Server) handleTree(w http.ResponseWriter, r *http.Request) {
	tree, err := s.session.Tree(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	respond(w, tree)
}

func (s *Server) handleTransitions(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	out := make([]transitionEntry, len(s.recent))
	copy(out, s.recent)
	s.mu.Unlock()
	respond(w, out)
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.store.GetConfig()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respond(w, cfg)
}

// handleDump renders the whole snapshot with pp for terminal-friendly
// debugging via curl.
func (s *Server) handleDump(w http.ResponseWriter, r *http.Request) {
	wins, err := s.session.Snapshot(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	printer := pp.New()
	printer.SetColoringEnabled(false)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	printer.Fprintln(w, wins)
}

func respond(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
