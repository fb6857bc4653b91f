// Package app wires the ledger runtime: the service facade over storage and
// sealing, and the HTTP server lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/harborline/ledgerd/internal/ledger/domain"
	"github.com/harborline/ledgerd/internal/ledger/sealer"
	"github.com/harborline/ledgerd/internal/ledger/storage"
	"github.com/harborline/ledgerd/internal/platform/pagination"
)

var tracer = otel.Tracer("github.com/harborline/ledgerd/internal/ledger/app")

const (
	defaultListBlocksPageSize = 20
	maxListBlocksPageSize     = 100
)

// Service is the ledger facade used by the HTTP API and operator tooling.
type Service struct {
	store  storage.Store
	sealer *sealer.Sealer
}

// NewService creates a ledger service over the given store and sealer.
func NewService(store storage.Store, blockSealer *sealer.Sealer) *Service {
	return &Service{store: store, sealer: blockSealer}
}

// Record appends one statement to the journal. The payload is stored opaquely;
// only storage-level failures surface.
func (s *Service) Record(ctx context.Context, kind string, payload domain.Payload, userID *int64) (domain.Statement, error) {
	if s == nil || s.store == nil {
		return domain.Statement{}, fmt.Errorf("ledger store is not configured")
	}

	ctx, span := tracer.Start(ctx, "ledger.record",
		trace.WithAttributes(attribute.String("statement.kind", kind)))
	defer span.End()

	st, err := s.store.RecordStatement(ctx, kind, payload, userID)
	if err != nil {
		return domain.Statement{}, spanErr(span, err)
	}
	span.SetAttributes(attribute.Int64("statement.id", st.ID))
	return st, nil
}

// RecordAndSeal appends a statement and then eagerly attempts a seal, the
// trigger policy the surrounding application uses on every audited write.
// Sealing failures never surface to the recording caller; they are logged for
// later reconciliation and the statements stay unsealed for the next attempt.
func (s *Service) RecordAndSeal(ctx context.Context, kind string, payload domain.Payload, userID *int64) (domain.Statement, error) {
	st, err := s.Record(ctx, kind, payload, userID)
	if err != nil {
		return domain.Statement{}, err
	}
	if _, err := s.AttemptSeal(ctx); err != nil {
		log.Printf("seal after record %d: %v", st.ID, err)
	}
	return st, nil
}

// AttemptSeal seals one block when a full batch of unsealed statements
// exists. A nil block with nil error means "no block sealed".
func (s *Service) AttemptSeal(ctx context.Context) (*domain.Block, error) {
	if s == nil || s.sealer == nil {
		return nil, fmt.Errorf("ledger sealer is not configured")
	}

	ctx, span := tracer.Start(ctx, "ledger.attempt_seal")
	defer span.End()

	block, err := s.sealer.AttemptSeal(ctx)
	if err != nil {
		return nil, spanErr(span, err)
	}
	if block != nil {
		span.SetAttributes(attribute.Int64("block.index", block.Index))
	}
	return block, nil
}

// CountUnsealed reports how many statements await sealing.
func (s *Service) CountUnsealed(ctx context.Context) (int64, error) {
	if s == nil || s.store == nil {
		return 0, fmt.Errorf("ledger store is not configured")
	}
	return s.store.CountUnsealed(ctx)
}

// ListBlocks returns one page of sealed blocks, most recent first, with
// per-block statement counts. Page inputs are clamped to sane bounds.
func (s *Service) ListBlocks(ctx context.Context, page, pageSize int) (storage.BlockPage, error) {
	if s == nil || s.store == nil {
		return storage.BlockPage{}, fmt.Errorf("ledger store is not configured")
	}

	page = pagination.ClampPage(page)
	pageSize = pagination.ClampPageSize(pageSize, pagination.PageSizeConfig{
		Default: defaultListBlocksPageSize,
		Max:     maxListBlocksPageSize,
	})

	ctx, span := tracer.Start(ctx, "ledger.list_blocks",
		trace.WithAttributes(attribute.Int("page", page), attribute.Int("page_size", pageSize)))
	defer span.End()

	result, err := s.store.ListBlocks(ctx, page, pageSize)
	if err != nil {
		return storage.BlockPage{}, spanErr(span, err)
	}
	return result, nil
}

// VerifyChain recomputes every block's hash from its stored statements and
// checks prev-hash linkage and index gaplessness. It is read-only. A nil
// report means the chain is consistent; a non-nil report identifies the first
// failing index. The returned error covers storage faults only.
func (s *Service) VerifyChain(ctx context.Context) (*domain.CorruptionReport, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("ledger store is not configured")
	}

	ctx, span := tracer.Start(ctx, "ledger.verify_chain")
	defer span.End()

	blocks, err := s.store.BlocksAscending(ctx)
	if err != nil {
		return nil, spanErr(span, err)
	}

	prevHash := ""
	for i, block := range blocks {
		if block.Index != int64(i) {
			return report(span, block.Index, domain.ReasonIndexGap), nil
		}
		if block.PrevHash != prevHash {
			return report(span, block.Index, domain.ReasonLinkageMismatch), nil
		}

		statements, err := s.store.StatementsForBlock(ctx, block.ID)
		if err != nil {
			return nil, spanErr(span, err)
		}
		recomputed, err := domain.BlockHash(block.Index, block.PrevHash, block.CreatedAt, statements)
		if err != nil {
			return nil, spanErr(span, fmt.Errorf("recompute block %d: %w", block.Index, err))
		}
		if recomputed != block.Hash {
			return report(span, block.Index, domain.ReasonHashMismatch), nil
		}

		prevHash = block.Hash
	}
	return nil, nil
}

// Unavailable reports whether err represents a StorageUnavailable condition.
func Unavailable(err error) bool {
	return errors.Is(err, storage.ErrUnavailable)
}

func report(span trace.Span, index int64, reason string) *domain.CorruptionReport {
	span.SetAttributes(
		attribute.Int64("corruption.block_index", index),
		attribute.String("corruption.reason", reason),
	)
	return &domain.CorruptionReport{BlockIndex: index, Reason: reason}
}

func spanErr(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
