package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"slices"

	"github.com/gorilla/handlers"
	"github.com/gorilla/websocket"
	"github.com/npezzotti/go-presence/internal/config"
	"github.com/npezzotti/go-presence/internal/identity"
	"github.com/npezzotti/go-presence/internal/server"
	"github.com/npezzotti/go-presence/internal/types"
)

// Server exposes the websocket handshake endpoint. There is no REST surface;
// everything after the upgrade flows over the event channel.
type Server struct {
	log            *log.Logger
	ps             *server.PresenceServer
	resolver       identity.Resolver
	srv            *http.Server
	allowedOrigins []string
}

func NewServer(mux *http.ServeMux, logger *log.Logger, ps *server.PresenceServer, resolver identity.Resolver, cfg *config.Config) *Server {
	s := &Server{
		log:            logger,
		ps:             ps,
		resolver:       resolver,
		allowedOrigins: cfg.AllowedOrigins,
	}

	mux.HandleFunc("GET /ws", s.serveWs)

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept"}),
		handlers.AllowCredentials(),
	)(mux)

	s.srv = &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	return s
}

// serveWs resolves the caller's credential, upgrades the connection, and
// hands the client to the presence server. A failed resolution refuses the
// handshake before anything reaches the registry.
func (s *Server) serveWs(w http.ResponseWriter, r *http.Request) {
	credential := r.URL.Query().Get("token")
	if credential == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	ident, err := s.resolver.Resolve(r.Context(), credential)
	if err != nil {
		if errors.Is(err, identity.ErrHandshakeRejected) {
			s.log.Println("handshake rejected:", err)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		s.log.Println("resolve identity:", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}

			return slices.Contains(s.allowedOrigins, origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Println("error upgrading connection:", err)
		return
	}

	client := server.NewClient(types.User{
		Id:          ident.UserId,
		DisplayName: ident.DisplayName,
	}, conn, s.ps, s.log)

	s.ps.Connect(r.Context(), client)

	go client.Write()
	go client.Read()
}

func (s *Server) Start() error {
	s.log.Printf("starting server on %s\n", s.srv.Addr)
	return s.srv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
