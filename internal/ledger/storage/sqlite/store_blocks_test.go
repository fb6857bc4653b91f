package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/harborline/ledgerd/internal/ledger/domain"
	"github.com/harborline/ledgerd/internal/ledger/storage"
)

func sealTestBlock(t *testing.T, store *Store, index int64, prevHash string, statements []domain.Statement) domain.Block {
	t.Helper()
	createdAt := time.Now().UTC().Truncate(time.Millisecond)
	hash, err := domain.BlockHash(index, prevHash, createdAt, statements)
	if err != nil {
		t.Fatalf("block hash: %v", err)
	}
	ids := make([]int64, 0, len(statements))
	for _, st := range statements {
		ids = append(ids, st.ID)
	}
	sealed, err := store.SealBlock(context.Background(), domain.Block{
		Index:     index,
		PrevHash:  prevHash,
		Hash:      hash,
		CreatedAt: createdAt,
	}, ids)
	if err != nil {
		t.Fatalf("seal block %d: %v", index, err)
	}
	return sealed
}

func TestLatestBlockEmptyChain(t *testing.T) {
	store := openTestStore(t)
	_, err := store.LatestBlock(context.Background())
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSealBlockAssignsStatements(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	statements := recordN(t, store, 3, "login")

	sealed := sealTestBlock(t, store, 0, "", statements)
	if sealed.ID == 0 {
		t.Fatal("expected block row id to be set")
	}

	count, err := store.CountUnsealed(ctx)
	if err != nil {
		t.Fatalf("count unsealed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 unsealed after seal, got %d", count)
	}

	loaded, err := store.StatementsForBlock(ctx, sealed.ID)
	if err != nil {
		t.Fatalf("statements for block: %v", err)
	}
	if len(loaded) != 3 {
		t.Fatalf("expected 3 statements, got %d", len(loaded))
	}
	for i, st := range loaded {
		if st.ID != statements[i].ID {
			t.Fatalf("expected id %d at position %d, got %d", statements[i].ID, i, st.ID)
		}
		if !st.Sealed() || *st.BlockID != sealed.ID {
			t.Fatalf("statement %d not assigned to block %d: %v", st.ID, sealed.ID, st.BlockID)
		}
	}

	tip, err := store.LatestBlock(ctx)
	if err != nil {
		t.Fatalf("latest block: %v", err)
	}
	if tip.Index != 0 || tip.Hash != sealed.Hash {
		t.Fatalf("unexpected tip %+v", tip)
	}
	if !tip.CreatedAt.Equal(sealed.CreatedAt) {
		t.Fatalf("created_at drifted: %v != %v", tip.CreatedAt, sealed.CreatedAt)
	}
}

func TestSealBlockAlreadySealedRollsBack(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	statements := recordN(t, store, 3, "login")
	sealTestBlock(t, store, 0, "", statements)

	fresh := recordN(t, store, 2, "logout")
	ids := []int64{statements[0].ID, fresh[0].ID, fresh[1].ID}
	_, err := store.SealBlock(ctx, domain.Block{
		Index:     1,
		PrevHash:  "aa",
		Hash:      "bb",
		CreatedAt: time.Now().UTC(),
	}, ids)
	if !errors.Is(err, storage.ErrAlreadySealed) {
		t.Fatalf("expected ErrAlreadySealed, got %v", err)
	}

	// The whole attempt rolls back: the fresh statements stay unsealed and
	// no block with index 1 exists.
	count, err := store.CountUnsealed(ctx)
	if err != nil {
		t.Fatalf("count unsealed: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 unsealed after rollback, got %d", count)
	}
	tip, err := store.LatestBlock(ctx)
	if err != nil {
		t.Fatalf("latest block: %v", err)
	}
	if tip.Index != 0 {
		t.Fatalf("expected tip index 0, got %d", tip.Index)
	}
}

func TestSealBlockDuplicateIndexConflicts(t *testing.T) {
	store := openTestStore(t)
	statements := recordN(t, store, 2, "login")
	sealTestBlock(t, store, 0, "", statements[:1])

	_, err := store.SealBlock(context.Background(), domain.Block{
		Index:     0,
		PrevHash:  "",
		Hash:      "cc",
		CreatedAt: time.Now().UTC(),
	}, []int64{statements[1].ID})
	if !errors.Is(err, storage.ErrIndexConflict) {
		t.Fatalf("expected ErrIndexConflict, got %v", err)
	}

	// The loser's statement stays claimable.
	count, err := store.CountUnsealed(context.Background())
	if err != nil {
		t.Fatalf("count unsealed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 unsealed, got %d", count)
	}
}

func TestSealBlockValidatesInput(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if _, err := store.SealBlock(ctx, domain.Block{Hash: "aa"}, nil); err == nil {
		t.Fatal("expected error for empty statement ids")
	}
	if _, err := store.SealBlock(ctx, domain.Block{}, []int64{1}); err == nil {
		t.Fatal("expected error for missing hash")
	}
}

func TestListBlocksPaginates(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	prevHash := ""
	var hashes []string
	for i := int64(0); i < 3; i++ {
		statements := recordN(t, store, 2, "login")
		block := sealTestBlock(t, store, i, prevHash, statements)
		prevHash = block.Hash
		hashes = append(hashes, block.Hash)
	}

	page, err := store.ListBlocks(ctx, 1, 2)
	if err != nil {
		t.Fatalf("list blocks: %v", err)
	}
	if page.TotalCount != 3 {
		t.Fatalf("expected total 3, got %d", page.TotalCount)
	}
	if len(page.Blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d", len(page.Blocks))
	}
	// Descending by index.
	if page.Blocks[0].Block.Index != 2 || page.Blocks[1].Block.Index != 1 {
		t.Fatalf("unexpected order: %d, %d", page.Blocks[0].Block.Index, page.Blocks[1].Block.Index)
	}
	if page.Blocks[0].Block.Hash != hashes[2] {
		t.Fatalf("unexpected head hash %q", page.Blocks[0].Block.Hash)
	}
	for _, summary := range page.Blocks {
		if summary.StatementCount != 2 {
			t.Fatalf("expected 2 statements in block %d, got %d", summary.Block.Index, summary.StatementCount)
		}
	}

	last, err := store.ListBlocks(ctx, 2, 2)
	if err != nil {
		t.Fatalf("list blocks page 2: %v", err)
	}
	if len(last.Blocks) != 1 || last.Blocks[0].Block.Index != 0 {
		t.Fatalf("unexpected last page %+v", last.Blocks)
	}

	empty, err := store.ListBlocks(ctx, 5, 2)
	if err != nil {
		t.Fatalf("list blocks past the end: %v", err)
	}
	if len(empty.Blocks) != 0 || empty.TotalCount != 3 {
		t.Fatalf("expected empty page with total 3, got %+v", empty)
	}
}

func TestBlocksAscending(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	prevHash := ""
	for i := int64(0); i < 3; i++ {
		statements := recordN(t, store, 1, "login")
		block := sealTestBlock(t, store, i, prevHash, statements)
		prevHash = block.Hash
	}

	blocks, err := store.BlocksAscending(ctx)
	if err != nil {
		t.Fatalf("blocks ascending: %v", err)
	}
	if len(blocks) != 3 {
		t.Fatalf("expected 3 blocks, got %d", len(blocks))
	}
	for i, block := range blocks {
		if block.Index != int64(i) {
			t.Fatalf("expected index %d at position %d, got %d", i, i, block.Index)
		}
	}
	if blocks[1].PrevHash != blocks[0].Hash || blocks[2].PrevHash != blocks[1].Hash {
		t.Fatal("prev hash linkage broken")
	}
}
