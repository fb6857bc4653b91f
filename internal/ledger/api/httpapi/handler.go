// Package httpapi exposes the ledger's ingress and operator surface over
// HTTP JSON. Only the statement-recording route writes; the block listing and
// the verification report are read-only.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/harborline/ledgerd/internal/ledger/domain"
	"github.com/harborline/ledgerd/internal/ledger/storage"
)

// Service is the ledger facade the handler depends on; *app.Service
// satisfies it.
type Service interface {
	RecordAndSeal(ctx context.Context, kind string, payload domain.Payload, userID *int64) (domain.Statement, error)
	ListBlocks(ctx context.Context, page, pageSize int) (storage.BlockPage, error)
	VerifyChain(ctx context.Context) (*domain.CorruptionReport, error)
}

// Handler serves the ledger HTTP API.
type Handler struct {
	service Service
}

// NewHandler builds the route table. When jwtSecret is non-empty every /v1
// route requires a valid HS256 bearer token.
func NewHandler(service Service, jwtSecret []byte) http.Handler {
	h := &Handler{service: service}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", h.handleHealthz)
	mux.HandleFunc("POST /v1/statements", h.handleRecordStatement)
	mux.HandleFunc("GET /v1/blocks", h.handleListBlocks)
	mux.HandleFunc("GET /v1/verify", h.handleVerifyChain)

	return requireAuth(mux, jwtSecret, "/healthz")
}

func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

type recordStatementRequest struct {
	Kind    string          `json:"kind"`
	UserID  *int64          `json:"user_id"`
	Payload json.RawMessage `json:"payload"`
}

type statementResponse struct {
	ID        int64     `json:"id"`
	Kind      string    `json:"kind"`
	CreatedAt time.Time `json:"created_at"`
}

// handleRecordStatement records one audit statement and eagerly attempts a
// seal. Sealing problems are the ledger's to log, never the caller's to see.
func (h *Handler) handleRecordStatement(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		writeError(w, http.StatusInternalServerError, "ledger service is not configured")
		return
	}

	var req recordStatementRequest
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Kind) == "" {
		writeError(w, http.StatusBadRequest, "kind is required")
		return
	}

	payload, err := domain.NewPayload(req.Payload)
	if err != nil {
		writeError(w, http.StatusBadRequest, "payload must be a JSON document")
		return
	}

	st, err := h.service.RecordAndSeal(r.Context(), req.Kind, payload, req.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrUnavailable) {
			writeError(w, http.StatusServiceUnavailable, "ledger storage is unavailable")
			return
		}
		log.Printf("record statement: %v", err)
		writeError(w, http.StatusInternalServerError, "record statement failed")
		return
	}

	writeJSON(w, http.StatusAccepted, statementResponse{
		ID:        st.ID,
		Kind:      st.Kind,
		CreatedAt: st.CreatedAt,
	})
}

type blockResponse struct {
	Index          int64     `json:"index"`
	PrevHash       string    `json:"prev_hash"`
	Hash           string    `json:"hash"`
	CreatedAt      time.Time `json:"created_at"`
	StatementCount int64     `json:"statement_count"`
}

type listBlocksResponse struct {
	Blocks     []blockResponse `json:"blocks"`
	Page       int             `json:"page"`
	PageSize   int             `json:"page_size"`
	TotalCount int64           `json:"total_count"`
}

func (h *Handler) handleListBlocks(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		writeError(w, http.StatusInternalServerError, "ledger service is not configured")
		return
	}

	page := queryInt(r, "page")
	pageSize := queryInt(r, "page_size")

	result, err := h.service.ListBlocks(r.Context(), page, pageSize)
	if err != nil {
		if errors.Is(err, storage.ErrUnavailable) {
			writeError(w, http.StatusServiceUnavailable, "ledger storage is unavailable")
			return
		}
		log.Printf("list blocks: %v", err)
		writeError(w, http.StatusInternalServerError, "list blocks failed")
		return
	}

	resp := listBlocksResponse{
		Blocks:     make([]blockResponse, 0, len(result.Blocks)),
		Page:       result.Page,
		PageSize:   result.PageSize,
		TotalCount: result.TotalCount,
	}
	for _, summary := range result.Blocks {
		resp.Blocks = append(resp.Blocks, blockResponse{
			Index:          summary.Block.Index,
			PrevHash:       summary.Block.PrevHash,
			Hash:           summary.Block.Hash,
			CreatedAt:      summary.Block.CreatedAt,
			StatementCount: summary.StatementCount,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

type verifyResponse struct {
	OK         bool   `json:"ok"`
	BlockIndex *int64 `json:"block_index,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

func (h *Handler) handleVerifyChain(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		writeError(w, http.StatusInternalServerError, "ledger service is not configured")
		return
	}

	corruption, err := h.service.VerifyChain(r.Context())
	if err != nil {
		if errors.Is(err, storage.ErrUnavailable) {
			writeError(w, http.StatusServiceUnavailable, "ledger storage is unavailable")
			return
		}
		log.Printf("verify chain: %v", err)
		writeError(w, http.StatusInternalServerError, "verify chain failed")
		return
	}

	if corruption == nil {
		writeJSON(w, http.StatusOK, verifyResponse{OK: true})
		return
	}
	writeJSON(w, http.StatusOK, verifyResponse{
		OK:         false,
		BlockIndex: &corruption.BlockIndex,
		Reason:     corruption.Reason,
	})
}

func queryInt(r *http.Request, name string) int {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return value
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil && !errors.Is(err, http.ErrBodyNotAllowed) {
		log.Printf("write json response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
