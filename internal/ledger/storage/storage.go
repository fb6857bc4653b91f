// Package storage defines persistence contracts for the audit ledger.
package storage

import (
	"context"
	"errors"

	"github.com/harborline/ledgerd/internal/ledger/domain"
)

// ErrUnavailable indicates the durable store cannot be reached. Callers on
// the audit path treat it as non-fatal to their own operation but must log it.
var ErrUnavailable = errors.New("storage unavailable")

// ErrAlreadySealed indicates a sealing attempt targeted a statement that
// already belongs to a block. Under correct serialization this never happens;
// seeing it means a concurrency bug, so it is never silently swallowed.
var ErrAlreadySealed = errors.New("statement already sealed")

// ErrIndexConflict indicates another sealer claimed the same chain position.
// The losing attempt reports "no block sealed" and retries later.
var ErrIndexConflict = errors.New("block index already claimed")

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

// BlockSummary pairs a sealed block with the number of statements it holds.
type BlockSummary struct {
	Block          domain.Block
	StatementCount int64
}

// BlockPage is one page of sealed blocks, most recent first.
type BlockPage struct {
	Blocks     []BlockSummary
	Page       int
	PageSize   int
	TotalCount int64
}

// StatementStore persists the append-only statement journal.
type StatementStore interface {
	// RecordStatement persists a new unsealed statement with a fresh id and
	// the current UTC time. Payload shape is never validated.
	RecordStatement(ctx context.Context, kind string, payload domain.Payload, userID *int64) (domain.Statement, error)

	// CountUnsealed returns the number of statements not yet assigned to a block.
	CountUnsealed(ctx context.Context) (int64, error)

	// OldestUnsealed returns up to limit unsealed statements in ascending id order.
	OldestUnsealed(ctx context.Context, limit int) ([]domain.Statement, error)
}

// BlockStore persists sealed blocks and answers chain queries.
type BlockStore interface {
	// LatestBlock returns the block with the highest index, or ErrNotFound
	// when no block has been sealed yet. The chain tip is always re-read from
	// durable storage, never cached.
	LatestBlock(ctx context.Context) (domain.Block, error)

	// SealBlock atomically inserts the block and assigns exactly the given
	// statements to it. It fails with ErrAlreadySealed if any target statement
	// is already sealed and ErrIndexConflict if the chain position is taken;
	// in both cases nothing is persisted.
	SealBlock(ctx context.Context, block domain.Block, statementIDs []int64) (domain.Block, error)

	// ListBlocks returns one page of blocks ordered by index descending,
	// each with its statement count.
	ListBlocks(ctx context.Context, page, pageSize int) (BlockPage, error)

	// BlocksAscending returns all blocks ordered by index ascending, for
	// chain verification.
	BlocksAscending(ctx context.Context) ([]domain.Block, error)

	// StatementsForBlock returns a block's statements in ascending id order.
	StatementsForBlock(ctx context.Context, blockID int64) ([]domain.Statement, error)
}

// Store combines the statement journal and the block chain.
type Store interface {
	StatementStore
	BlockStore
}
