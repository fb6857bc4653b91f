package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/harborline/ledgerd/internal/ledger/domain"
	"github.com/harborline/ledgerd/internal/ledger/storage"
)

// LatestBlock returns the block with the highest index. The chain tip is
// always a fresh query; it is never cached in process state.
func (s *Store) LatestBlock(ctx context.Context) (domain.Block, error) {
	if err := ctx.Err(); err != nil {
		return domain.Block{}, err
	}
	if s == nil || s.sqlDB == nil {
		return domain.Block{}, fmt.Errorf("storage is not configured: %w", storage.ErrUnavailable)
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, block_index, prev_hash, hash, created_at
		 FROM blocks
		 ORDER BY block_index DESC
		 LIMIT 1`,
	)
	block, err := scanBlock(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Block{}, storage.ErrNotFound
		}
		return domain.Block{}, storageErr("latest block", err)
	}
	return block, nil
}

// SealBlock atomically inserts a block and assigns exactly the given
// statements to it. Any failure rolls the whole attempt back: no block is
// left referencing statements it does not exclusively own, and no statement
// references a rolled-back block.
func (s *Store) SealBlock(ctx context.Context, block domain.Block, statementIDs []int64) (domain.Block, error) {
	if err := ctx.Err(); err != nil {
		return domain.Block{}, err
	}
	if s == nil || s.sqlDB == nil {
		return domain.Block{}, fmt.Errorf("storage is not configured: %w", storage.ErrUnavailable)
	}
	if len(statementIDs) == 0 {
		return domain.Block{}, fmt.Errorf("statement ids are required")
	}
	if strings.TrimSpace(block.Hash) == "" {
		return domain.Block{}, fmt.Errorf("block hash is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Block{}, storageErr("begin seal tx", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	res, err := tx.ExecContext(
		ctx,
		`INSERT INTO blocks (block_index, prev_hash, hash, created_at)
		 VALUES (?, ?, ?, ?)`,
		block.Index,
		block.PrevHash,
		block.Hash,
		timeToUnixMillis(block.CreatedAt),
	)
	if err != nil {
		if isBlockIndexConflict(err) {
			return domain.Block{}, fmt.Errorf("insert block %d: %w", block.Index, storage.ErrIndexConflict)
		}
		return domain.Block{}, storageErr("insert block", err)
	}
	blockID, err := res.LastInsertId()
	if err != nil {
		return domain.Block{}, storageErr("insert block id", err)
	}

	// Claim only rows that are still unsealed; a short row count means a
	// competing sealer already owns one of the targets.
	query := fmt.Sprintf(
		`UPDATE statements SET block_id = ? WHERE id IN (%s) AND block_id IS NULL`,
		placeholders(len(statementIDs)),
	)
	args := make([]any, 0, len(statementIDs)+1)
	args = append(args, blockID)
	for _, id := range statementIDs {
		args = append(args, id)
	}
	res, err = tx.ExecContext(ctx, query, args...)
	if err != nil {
		return domain.Block{}, storageErr("mark statements sealed", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Block{}, storageErr("mark statements sealed", err)
	}
	if affected != int64(len(statementIDs)) {
		return domain.Block{}, fmt.Errorf("claimed %d of %d statements: %w", affected, len(statementIDs), storage.ErrAlreadySealed)
	}

	if err := tx.Commit(); err != nil {
		return domain.Block{}, storageErr("commit seal tx", err)
	}

	block.ID = blockID
	return block, nil
}

// ListBlocks returns one page of blocks ordered by index descending, each
// with the number of statements it seals.
func (s *Store) ListBlocks(ctx context.Context, page, pageSize int) (storage.BlockPage, error) {
	if err := ctx.Err(); err != nil {
		return storage.BlockPage{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.BlockPage{}, fmt.Errorf("storage is not configured: %w", storage.ErrUnavailable)
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		return storage.BlockPage{}, fmt.Errorf("page size must be positive")
	}

	var total int64
	row := s.sqlDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM blocks`)
	if err := row.Scan(&total); err != nil {
		return storage.BlockPage{}, storageErr("count blocks", err)
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT b.id, b.block_index, b.prev_hash, b.hash, b.created_at, COUNT(st.id)
		 FROM blocks b
		 LEFT JOIN statements st ON st.block_id = b.id
		 GROUP BY b.id
		 ORDER BY b.block_index DESC
		 LIMIT ? OFFSET ?`,
		pageSize,
		(page-1)*pageSize,
	)
	if err != nil {
		return storage.BlockPage{}, storageErr("list blocks", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := storage.BlockPage{
		Blocks:     make([]storage.BlockSummary, 0, pageSize),
		Page:       page,
		PageSize:   pageSize,
		TotalCount: total,
	}
	for rows.Next() {
		var summary storage.BlockSummary
		var createdAt int64
		if err := rows.Scan(
			&summary.Block.ID,
			&summary.Block.Index,
			&summary.Block.PrevHash,
			&summary.Block.Hash,
			&createdAt,
			&summary.StatementCount,
		); err != nil {
			return storage.BlockPage{}, fmt.Errorf("scan block summary: %w", err)
		}
		summary.Block.CreatedAt = unixMillisToTime(createdAt)
		result.Blocks = append(result.Blocks, summary)
	}
	if err := rows.Err(); err != nil {
		return storage.BlockPage{}, storageErr("iterate blocks", err)
	}
	return result, nil
}

// BlocksAscending returns every block ordered by index ascending for chain
// verification walks.
func (s *Store) BlocksAscending(ctx context.Context) ([]domain.Block, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured: %w", storage.ErrUnavailable)
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, block_index, prev_hash, hash, created_at
		 FROM blocks
		 ORDER BY block_index ASC`,
	)
	if err != nil {
		return nil, storageErr("list blocks ascending", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var blocks []domain.Block
	for rows.Next() {
		block, err := scanBlock(rows)
		if err != nil {
			return nil, fmt.Errorf("scan block: %w", err)
		}
		blocks = append(blocks, block)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate blocks ascending", err)
	}
	return blocks, nil
}

// StatementsForBlock returns a block's statements in ascending id order.
func (s *Store) StatementsForBlock(ctx context.Context, blockID int64) ([]domain.Statement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured: %w", storage.ErrUnavailable)
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, kind, user_id, payload, created_at, block_id
		 FROM statements
		 WHERE block_id = ?
		 ORDER BY id ASC`,
		blockID,
	)
	if err != nil {
		return nil, storageErr("list block statements", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var statements []domain.Statement
	for rows.Next() {
		st, err := scanStatement(rows)
		if err != nil {
			return nil, fmt.Errorf("scan block statement: %w", err)
		}
		statements = append(statements, st)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate block statements", err)
	}
	return statements, nil
}

func scanBlock(row rowScanner) (domain.Block, error) {
	var block domain.Block
	var createdAt int64
	if err := row.Scan(&block.ID, &block.Index, &block.PrevHash, &block.Hash, &createdAt); err != nil {
		return domain.Block{}, err
	}
	block.CreatedAt = unixMillisToTime(createdAt)
	return block, nil
}

func placeholders(count int) string {
	return strings.TrimSuffix(strings.Repeat("?,", count), ",")
}
