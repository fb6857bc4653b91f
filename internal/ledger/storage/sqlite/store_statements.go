package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/harborline/ledgerd/internal/ledger/domain"
	"github.com/harborline/ledgerd/internal/ledger/storage"
)

// RecordStatement persists a new unsealed statement with a fresh id and the
// current UTC time. The payload is stored opaquely in canonical form; no
// schema is enforced on it.
func (s *Store) RecordStatement(ctx context.Context, kind string, payload domain.Payload, userID *int64) (domain.Statement, error) {
	if err := ctx.Err(); err != nil {
		return domain.Statement{}, err
	}
	if s == nil || s.sqlDB == nil {
		return domain.Statement{}, fmt.Errorf("storage is not configured: %w", storage.ErrUnavailable)
	}
	kind = strings.TrimSpace(kind)
	if kind == "" {
		return domain.Statement{}, fmt.Errorf("statement kind is required")
	}
	if len(payload) == 0 {
		payload = domain.Payload("{}")
	}

	createdAt := time.Now().UTC().Truncate(time.Millisecond)
	res, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO statements (kind, user_id, payload, created_at, block_id)
		 VALUES (?, ?, ?, ?, NULL)`,
		kind,
		toNullInt64(userID),
		payload.String(),
		timeToUnixMillis(createdAt),
	)
	if err != nil {
		return domain.Statement{}, storageErr("record statement", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.Statement{}, storageErr("record statement id", err)
	}

	return domain.Statement{
		ID:        id,
		Kind:      kind,
		UserID:    userID,
		Payload:   payload,
		CreatedAt: createdAt,
	}, nil
}

// CountUnsealed returns the number of statements not yet assigned to a block.
func (s *Store) CountUnsealed(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured: %w", storage.ErrUnavailable)
	}

	var count int64
	row := s.sqlDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM statements WHERE block_id IS NULL`)
	if err := row.Scan(&count); err != nil {
		return 0, storageErr("count unsealed statements", err)
	}
	return count, nil
}

// OldestUnsealed returns up to limit unsealed statements in ascending id order.
func (s *Store) OldestUnsealed(ctx context.Context, limit int) ([]domain.Statement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured: %w", storage.ErrUnavailable)
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, kind, user_id, payload, created_at, block_id
		 FROM statements
		 WHERE block_id IS NULL
		 ORDER BY id ASC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, storageErr("list unsealed statements", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	statements := make([]domain.Statement, 0, limit)
	for rows.Next() {
		st, err := scanStatement(rows)
		if err != nil {
			return nil, fmt.Errorf("scan unsealed statement: %w", err)
		}
		statements = append(statements, st)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate unsealed statements", err)
	}
	return statements, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scan helpers.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanStatement(row rowScanner) (domain.Statement, error) {
	var st domain.Statement
	var userID sql.NullInt64
	var payload string
	var createdAt int64
	var blockID sql.NullInt64
	if err := row.Scan(&st.ID, &st.Kind, &userID, &payload, &createdAt, &blockID); err != nil {
		return domain.Statement{}, err
	}
	st.UserID = fromNullInt64(userID)
	st.Payload = domain.Payload(payload)
	st.CreatedAt = unixMillisToTime(createdAt)
	st.BlockID = fromNullInt64(blockID)
	return st, nil
}
