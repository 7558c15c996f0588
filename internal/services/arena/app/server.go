// Package server wires the arena engine and gRPC lifecycle.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/louisbranch/skirmish.space/internal/platform/config"
	platformrandom "github.com/louisbranch/skirmish.space/internal/platform/random"
	"github.com/louisbranch/skirmish.space/internal/services/arena/domain/battle"
	"github.com/louisbranch/skirmish.space/internal/services/arena/domain/roster"
	"github.com/louisbranch/skirmish.space/internal/services/arena/domain/session"
	arenasqlite "github.com/louisbranch/skirmish.space/internal/services/arena/storage/sqlite"
	"github.com/louisbranch/skirmish.space/internal/services/arena/transport"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

type serverEnv struct {
	DBPath  string `env:"SKIRMISH_SPACE_ARENA_DB_PATH"`
	AIURL   string `env:"SKIRMISH_SPACE_ARENA_AI_URL"`
	AIModel string `env:"SKIRMISH_SPACE_ARENA_AI_MODEL" envDefault:"gpt-4o-mini"`
	AIKey   string `env:"SKIRMISH_SPACE_ARENA_AI_KEY"`
}

func loadServerEnv() serverEnv {
	var cfg serverEnv
	_ = config.ParseEnv(&cfg)
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = filepath.Join("data", "arena.db")
	}
	return cfg
}

// Server hosts the arena engine, its storage lifecycle, and the gRPC
// health surface.
type Server struct {
	listener   net.Listener
	grpcServer *grpc.Server
	health     *health.Server
	store      *arenasqlite.Store
	sessions   *session.Store
	controller *session.Controller
	recorder   *battle.Recorder
}

// New creates a configured arena server listening on the provided port.
func New(port int) (*Server, error) {
	return NewWithAddr(fmt.Sprintf(":%d", port))
}

// NewWithAddr creates a configured arena server for the provided address.
func NewWithAddr(addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	env := loadServerEnv()
	store, err := openArenaStore(env.DBPath)
	if err != nil {
		_ = listener.Close()
		return nil, err
	}

	seed, err := platformrandom.NewSeed()
	if err != nil {
		_ = store.Close()
		_ = listener.Close()
		return nil, fmt.Errorf("seed random source: %w", err)
	}

	invoker := transport.NewOpenAIInvoker(transport.OpenAIConfig{
		URL:    env.AIURL,
		Model:  env.AIModel,
		APIKey: env.AIKey,
	})
	sessions := session.NewStore()
	controller, err := session.NewController(session.Deps{
		Store:        sessions,
		Games:        store,
		Roles:        store,
		Heroes:       store,
		Queue:        store,
		Participants: store,
		Invoker:      invoker,
		Matcher:      roster.NewWindowMatcher(),
		Rand:         rand.New(rand.NewSource(seed)),
	})
	if err != nil {
		_ = store.Close()
		_ = listener.Close()
		return nil, fmt.Errorf("build session controller: %w", err)
	}

	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)

	return &Server{
		listener:   listener,
		grpcServer: grpcServer,
		health:     healthServer,
		store:      store,
		sessions:   sessions,
		controller: controller,
		recorder:   battle.NewRecorder(store, store),
	}, nil
}

// Addr returns the listener address for the server.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Controller exposes the session controller for in-process consumers.
func (s *Server) Controller() *session.Controller {
	if s == nil {
		return nil
	}
	return s.controller
}

// Recorder exposes the battle recorder for in-process consumers.
func (s *Server) Recorder() *battle.Recorder {
	if s == nil {
		return nil
	}
	return s.recorder
}

// Run creates and serves an arena server until context cancellation.
func Run(ctx context.Context, port int) error {
	server, err := New(port)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

// Serve starts the gRPC server until context cancellation.
func (s *Server) Serve(ctx context.Context) error {
	if s == nil {
		return errors.New("server is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.Close()

	log.Printf("arena server listening at %v", s.listener.Addr())
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.grpcServer.Serve(s.listener)
	}()

	select {
	case <-ctx.Done():
		if s.health != nil {
			s.health.Shutdown()
		}
		s.grpcServer.GracefulStop()
		err := <-serveErr
		if err == nil || errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return fmt.Errorf("serve gRPC: %w", err)
	case err := <-serveErr:
		if err == nil || errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return fmt.Errorf("serve gRPC: %w", err)
	}
}

// Close releases arena server resources.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.health != nil {
		s.health.Shutdown()
	}
	if s.grpcServer != nil {
		s.grpcServer.Stop()
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			log.Printf("close arena store: %v", err)
		}
	}
}

func openArenaStore(path string) (*arenasqlite.Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := arenasqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open arena sqlite store: %w", err)
	}
	return store, nil
}
