// Package sealer batches unsealed statements into hash-chained blocks.
package sealer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/harborline/ledgerd/internal/ledger/domain"
	"github.com/harborline/ledgerd/internal/ledger/storage"
)

// DefaultBatchSize is the number of statements sealed into each block unless
// configured otherwise.
const DefaultBatchSize = 10

// Sealer converts runs of unsealed statements into immutable blocks. Every
// sealed block holds exactly BatchSize statements; partial blocks are never
// created.
type Sealer struct {
	store     storage.Store
	batchSize int
	clock     func() time.Time

	// mu serializes the whole attempt; the store's transaction and the unique
	// block index remain as the backstop for sealers in other processes.
	mu sync.Mutex
}

// Option configures a Sealer.
type Option func(*Sealer)

// WithBatchSize overrides the number of statements per block.
func WithBatchSize(size int) Option {
	return func(s *Sealer) {
		if size > 0 {
			s.batchSize = size
		}
	}
}

// WithClock overrides the sealing timestamp source.
func WithClock(clock func() time.Time) Option {
	return func(s *Sealer) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// New creates a sealer over the given store.
func New(store storage.Store, opts ...Option) *Sealer {
	s := &Sealer{
		store:     store,
		batchSize: DefaultBatchSize,
		clock:     time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// BatchSize returns the configured statements-per-block threshold.
func (s *Sealer) BatchSize() int {
	if s == nil {
		return 0
	}
	return s.batchSize
}

// AttemptSeal seals one block if at least a full batch of unsealed statements
// exists. A nil block with a nil error means "no block sealed", which is the
// normal outcome below the threshold and when another sealer wins the race.
func (s *Sealer) AttemptSeal(ctx context.Context) (*domain.Block, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("sealer store is not configured")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	unsealed, err := s.store.CountUnsealed(ctx)
	if err != nil {
		return nil, fmt.Errorf("count unsealed: %w", err)
	}
	if unsealed < int64(s.batchSize) {
		return nil, nil
	}

	batch, err := s.store.OldestUnsealed(ctx, s.batchSize)
	if err != nil {
		return nil, fmt.Errorf("select batch: %w", err)
	}
	// A short batch means a concurrent attempt claimed statements after the
	// count; abort rather than seal a partial block.
	if len(batch) < s.batchSize {
		return nil, nil
	}

	index, prevHash, err := s.chainPosition(ctx)
	if err != nil {
		return nil, err
	}

	createdAt := s.clock().UTC().Truncate(time.Millisecond)
	hash, err := domain.BlockHash(index, prevHash, createdAt, batch)
	if err != nil {
		return nil, fmt.Errorf("compute block hash: %w", err)
	}

	ids := make([]int64, 0, len(batch))
	for _, st := range batch {
		ids = append(ids, st.ID)
	}

	block, err := s.store.SealBlock(ctx, domain.Block{
		Index:     index,
		PrevHash:  prevHash,
		Hash:      hash,
		CreatedAt: createdAt,
	}, ids)
	if err != nil {
		if errors.Is(err, storage.ErrIndexConflict) {
			// Another sealer claimed this chain position first; the
			// statements stay unsealed for the next attempt.
			log.Printf("seal attempt lost index %d: %v", index, err)
			return nil, nil
		}
		return nil, fmt.Errorf("seal block %d: %w", index, err)
	}

	return &block, nil
}

// chainPosition reads the chain tip from durable storage. The tip is never
// cached: other processes may have sealed since the last attempt.
func (s *Sealer) chainPosition(ctx context.Context) (int64, string, error) {
	last, err := s.store.LatestBlock(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return 0, "", nil
		}
		return 0, "", fmt.Errorf("latest block: %w", err)
	}
	return last.Index + 1, last.Hash, nil
}
