package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/harborline/ledgerd/internal/ledger/api/httpapi"
	"github.com/harborline/ledgerd/internal/ledger/sealer"
	ledgersqlite "github.com/harborline/ledgerd/internal/ledger/storage/sqlite"
	"github.com/harborline/ledgerd/internal/platform/config"
	"github.com/harborline/ledgerd/internal/platform/timeouts"
)

type serverEnv struct {
	DBPath       string        `env:"LEDGERD_DB_PATH"`
	BatchSize    int           `env:"LEDGERD_BATCH_SIZE" envDefault:"10"`
	SealInterval time.Duration `env:"LEDGERD_SEAL_INTERVAL" envDefault:"0"`
	JWTSecret    string        `env:"LEDGERD_API_JWT_SECRET"`
}

func loadServerEnv() serverEnv {
	var cfg serverEnv
	_ = config.ParseEnv(&cfg)
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = filepath.Join("data", "ledger.db")
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = sealer.DefaultBatchSize
	}
	return cfg
}

// Server hosts the ledger HTTP API, storage lifecycle, and the optional
// periodic sealing loop.
type Server struct {
	httpAddr     string
	httpServer   *http.Server
	store        *ledgersqlite.Store
	service      *Service
	sealInterval time.Duration
}

// New creates a configured ledger server listening on the provided port.
func New(port int) (*Server, error) {
	return NewWithAddr(fmt.Sprintf(":%d", port))
}

// NewWithAddr creates a configured ledger server for the provided address.
func NewWithAddr(addr string) (*Server, error) {
	env := loadServerEnv()

	store, err := openLedgerStore(env.DBPath)
	if err != nil {
		return nil, err
	}

	blockSealer := sealer.New(store, sealer.WithBatchSize(env.BatchSize))
	service := NewService(store, blockSealer)
	handler := httpapi.NewHandler(service, []byte(env.JWTSecret))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: timeouts.ReadHeader,
	}

	return &Server{
		httpAddr:     addr,
		httpServer:   httpServer,
		store:        store,
		service:      service,
		sealInterval: env.SealInterval,
	}, nil
}

// Service exposes the ledger facade for in-process callers and tests.
func (s *Server) Service() *Service {
	if s == nil {
		return nil
	}
	return s.service
}

// Run creates and serves a ledger server until context cancellation.
func Run(ctx context.Context, port int) error {
	server, err := New(port)
	if err != nil {
		return err
	}
	return server.ListenAndServe(ctx)
}

// ListenAndServe runs the HTTP server until the context ends. When a seal
// interval is configured it also runs the periodic sealing loop, a safety net
// for statements recorded through paths that never trigger an eager seal.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s == nil {
		return errors.New("ledger server is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	defer func() {
		if err := s.store.Close(); err != nil {
			log.Printf("close ledger store: %v", err)
		}
	}()

	if s.sealInterval > 0 {
		go s.sealLoop(ctx)
	}

	serveErr := make(chan error, 1)
	log.Printf("ledgerd listening on %s", s.httpAddr)
	go func() {
		serveErr <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		err := s.httpServer.Shutdown(shutdownCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}

// sealLoop attempts a seal on every tick until the context ends.
func (s *Server) sealLoop(ctx context.Context) {
	ticker := time.NewTicker(s.sealInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			block, err := s.service.AttemptSeal(ctx)
			if err != nil {
				log.Printf("periodic seal: %v", err)
				continue
			}
			if block != nil {
				log.Printf("sealed block %d (%s)", block.Index, block.Hash)
			}
		}
	}
}

func openLedgerStore(path string) (*ledgersqlite.Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := ledgersqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open ledger store: %w", err)
	}
	return store, nil
}
