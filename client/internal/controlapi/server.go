package controlapi

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/tunnelguard/tunnelguard/client/internal/event"
	"github.com/tunnelguard/tunnelguard/client/internal/supervisor"
)

// Controller is the slice of the supervisor surface the API exposes.
type Controller interface {
	Stop()
	GracefulStop()
	Pause()
	Resume()
	Reconnect(delay time.Duration)
	DontRestart()
	Status() supervisor.Status
}

// EventSource serves the recent event history.
type EventSource interface {
	Recent() []event.Event
}

// Server exposes the client control surface over a local HTTP listener.
type Server struct {
	ctrl   Controller
	events EventSource
	log    *log.Entry

	httpSrv  *http.Server
	listener net.Listener
}

func NewServer(ctrl Controller, events EventSource) *Server {
	return &Server{
		ctrl:   ctrl,
		events: events,
		log:    log.WithField("component", "control-api"),
	}
}

// Start binds the listener and serves in the background.
func (s *Server) Start(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.listener = listener
	s.httpSrv = &http.Server{Handler: s.Handler()}

	go func() {
		err := s.httpSrv.Serve(listener)
		if err != nil && err != http.ErrServerClosed {
			s.log.Errorf("control api server stopped: %v", err)
		}
	}()

	s.log.Infof("control api listening on %s", listener.Addr())
	return nil
}

func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// Handler returns the routed handler, used by tests.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/v1/status", s.handleStatus).Methods(http.MethodGet)
	router.HandleFunc("/v1/events", s.handleEvents).Methods(http.MethodGet)
	router.HandleFunc("/v1/stop", s.command(s.ctrl.GracefulStop)).Methods(http.MethodPost)
	router.HandleFunc("/v1/pause", s.command(s.ctrl.Pause)).Methods(http.MethodPost)
	router.HandleFunc("/v1/resume", s.command(s.ctrl.Resume)).Methods(http.MethodPost)
	router.HandleFunc("/v1/dont-restart", s.command(s.ctrl.DontRestart)).Methods(http.MethodPost)
	router.HandleFunc("/v1/reconnect", s.handleReconnect).Methods(http.MethodPost)
	return router
}

func (s *Server) command(fn func()) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fn()
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.ctrl.Status())
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	events := s.events.Recent()
	if events == nil {
		events = []event.Event{}
	}
	s.writeJSON(w, events)
}

type reconnectRequest struct {
	DelaySeconds int `json:"delaySeconds"`
}

func (s *Server) handleReconnect(w http.ResponseWriter, r *http.Request) {
	var req reconnectRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
	}
	s.ctrl.Reconnect(time.Duration(req.DelaySeconds) * time.Second)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Errorf("failed encoding response: %v", err)
	}
}
