// Package chainwatch polls the ledger chain and reports its health.
package chainwatch

import (
	"context"
	"flag"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/harborline/ledgerd/internal/ledger/app"
	ledgersqlite "github.com/harborline/ledgerd/internal/ledger/storage/sqlite"
	entrypoint "github.com/harborline/ledgerd/internal/platform/cmd"
	"github.com/harborline/ledgerd/internal/platform/timeouts"
)

// Config holds chainwatch command configuration.
type Config struct {
	DBPath   string        `env:"LEDGERD_DB_PATH"`
	Interval time.Duration `env:"LEDGERD_WATCH_INTERVAL" envDefault:"2s"`
	Once     bool
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to the ledger SQLite database")
	fs.DurationVar(&cfg.Interval, "interval", cfg.Interval, "Poll interval")
	fs.BoolVar(&cfg.Once, "once", false, "Report once and exit")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = filepath.Join("data", "ledger.db")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}
	return cfg, nil
}

// Run watches the ledger database until the context ends.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceChainwatch, func(context.Context) error {
		return watch(ctx, cfg)
	})
}

func watch(ctx context.Context, cfg Config) error {
	store, err := ledgersqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open ledger store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("close ledger store: %v", err)
		}
	}()

	service := app.NewService(store, nil)
	lastIndex := int64(-1)

	for {
		pollCtx, cancel := context.WithTimeout(ctx, timeouts.Storage)
		headIndex, err := report(pollCtx, service, lastIndex)
		cancel()
		if err != nil {
			if cfg.Once {
				return err
			}
			log.Printf("chainwatch: %v", err)
		} else {
			lastIndex = headIndex
		}
		if cfg.Once {
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(cfg.Interval):
		}
	}
}

// report prints one observation: unsealed backlog, head block when it moved,
// and the verification verdict. It returns the current head index.
func report(ctx context.Context, service *app.Service, lastIndex int64) (int64, error) {
	unsealed, err := service.CountUnsealed(ctx)
	if err != nil {
		return lastIndex, fmt.Errorf("count unsealed: %w", err)
	}
	fmt.Printf("unsealed statements: %d\n", unsealed)

	page, err := service.ListBlocks(ctx, 1, 1)
	if err != nil {
		return lastIndex, fmt.Errorf("list blocks: %w", err)
	}
	headIndex := lastIndex
	if len(page.Blocks) > 0 {
		head := page.Blocks[0]
		headIndex = head.Block.Index
		if headIndex != lastIndex {
			fmt.Printf(
				"new block idx=%d time=%s hash=%s... prev=%s... statements=%d total_blocks=%d\n",
				head.Block.Index,
				head.Block.CreatedAt.Format("2006-01-02 15:04:05"),
				shortHash(head.Block.Hash),
				shortHash(head.Block.PrevHash),
				head.StatementCount,
				page.TotalCount,
			)
		}
	} else {
		fmt.Println("no blocks yet")
	}

	corruption, err := service.VerifyChain(ctx)
	if err != nil {
		return headIndex, fmt.Errorf("verify chain: %w", err)
	}
	if corruption != nil {
		fmt.Println(corruption.String())
	} else {
		fmt.Printf("chain ok (%d blocks)\n", page.TotalCount)
	}
	return headIndex, nil
}

func shortHash(hash string) string {
	if len(hash) <= 12 {
		return hash
	}
	return hash[:12]
}
