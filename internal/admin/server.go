package admin

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
)

// Server is the admin HTTP surface: read-only JSON snapshots plus the
// live WebSocket feed, routed with gorilla/mux.
type Server struct {
	addr   string
	hub    *Hub
	source *Source
	http   *http.Server
}

func NewServer(addr string, source *Source) *Server {
	hub := NewHub(source)
	s := &Server{addr: addr, hub: hub, source: source}

	router := mux.NewRouter()
	router.HandleFunc("/api/machines", s.handleMachines).Methods(http.MethodGet)
	router.HandleFunc("/api/environments", s.handleEnvironments).Methods(http.MethodGet)
	router.HandleFunc("/api/streams/{machine}/{stream}", s.handleStream).Methods(http.MethodGet)
	router.HandleFunc("/api/ws", hub.ServeWS)

	s.http = &http.Server{Addr: addr, Handler: router}
	return s
}

// Start begins serving in a background goroutine and starts the change
// poller. Errors other than a clean Shutdown are sent to errc.
func (s *Server) Start(errc chan<- error) {
	s.hub.Start()
	go func() {
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
	}()
}

// Shutdown gracefully stops the HTTP server and the WebSocket hub.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Stop()
	return s.http.Shutdown(ctx)
}

func (s *Server) handleMachines(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.source.Snapshot().Machines)
}

func (s *Server) handleEnvironments(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]int{"count": s.source.Environments.Count()})
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	peer, ok := s.source.Machines.Get(vars["machine"])
	if !ok {
		http.NotFound(w, r)
		return
	}
	stream, ok := peer.Streams[vars["stream"]]
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, stream)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
