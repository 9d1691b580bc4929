package httpapi

import (
	"PayoutRecon/internal/core/domain"
	"PayoutRecon/internal/core/ports"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// PayoutService is the settlement surface the API drives.
type PayoutService interface {
	Create(ctx context.Context, req domain.NewPayout) (*domain.Payout, error)
	Get(ctx context.Context, payoutID string) (*domain.Payout, error)
	ListByStatus(ctx context.Context, status domain.PayoutStatus, limit int) ([]*domain.Payout, error)
	Approve(ctx context.Context, approverID, payoutID string) (*domain.ApproveResult, error)
	Reject(ctx context.Context, approverID, payoutID, reason string) (*domain.Payout, error)
	Verify(ctx context.Context, operatorID, payoutID string) (*domain.VerifyResult, error)
	MarkTransferredManually(ctx context.Context, actor, payoutID, note string) (*domain.Payout, error)
}

// Handlers holds the HTTP handlers.
type Handlers struct {
	payouts PayoutService
	wallets ports.WalletStore
	log     zerolog.Logger
}

func NewHandlers(payouts PayoutService, wallets ports.WalletStore, baseLogger *zerolog.Logger) *Handlers {
	return &Handlers{
		payouts: payouts,
		wallets: wallets,
		log:     baseLogger.With().Str("component", "http_handlers").Logger(),
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

type createWalletRequest struct {
	UserID         string `json:"user_id"`
	OpeningBalance int64  `json:"opening_balance"`
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

type markTransferredRequest struct {
	Note string `json:"note"`
}

func (h *Handlers) CreateWallet(w http.ResponseWriter, r *http.Request) {
	var req createWalletRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "user_id is required"})
		return
	}

	wallet, err := h.wallets.CreateWallet(r.Context(), req.UserID, req.OpeningBalance)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, wallet)
}

func (h *Handlers) GetWallet(w http.ResponseWriter, r *http.Request) {
	wallet, err := h.wallets.GetWallet(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wallet)
}

func (h *Handlers) CreatePayout(w http.ResponseWriter, r *http.Request) {
	var req domain.NewPayout
	if !decodeJSON(w, r, &req) {
		return
	}

	p, err := h.payouts.Create(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *Handlers) GetPayout(w http.ResponseWriter, r *http.Request) {
	p, err := h.payouts.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// ListPayouts lists by ?status= (default REQUESTED) and ?limit=.
func (h *Handlers) ListPayouts(w http.ResponseWriter, r *http.Request) {
	status := domain.PayoutStatus(strings.ToUpper(r.URL.Query().Get("status")))
	if status == "" {
		status = domain.StatusRequested
	}
	switch status {
	case domain.StatusRequested, domain.StatusPending, domain.StatusApproved, domain.StatusTransferred, domain.StatusRejected:
	default:
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unknown status"})
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 500 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be between 1 and 500"})
			return
		}
		limit = n
	}

	payouts, err := h.payouts.ListByStatus(r.Context(), status, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if payouts == nil {
		payouts = []*domain.Payout{}
	}
	writeJSON(w, http.StatusOK, payouts)
}

func (h *Handlers) Approve(w http.ResponseWriter, r *http.Request) {
	res, err := h.payouts.Approve(r.Context(), operatorFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handlers) Reject(w http.ResponseWriter, r *http.Request) {
	var req rejectRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	p, err := h.payouts.Reject(r.Context(), operatorFrom(r.Context()), chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handlers) Verify(w http.ResponseWriter, r *http.Request) {
	res, err := h.payouts.Verify(r.Context(), operatorFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// MarkTransferred accepts an optional JSON body with a note.
func (h *Handlers) MarkTransferred(w http.ResponseWriter, r *http.Request) {
	var req markTransferredRequest
	if !decodeOptionalJSON(w, r, &req) {
		return
	}

	p, err := h.payouts.MarkTransferredManually(r.Context(), operatorFrom(r.Context()), chi.URLParam(r, "id"), req.Note)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
		writeJSON(w, status, errorResponse{Error: "internal error"})
		return
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrPayoutNotFound), errors.Is(err, domain.ErrWalletNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidState), errors.Is(err, domain.ErrStatusConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrReasonRequired), errors.Is(err, domain.ErrInvalidAmount), errors.Is(err, domain.ErrIncompleteRequest):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInsufficientBalance):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return false
	}
	return true
}

// decodeOptionalJSON is decodeJSON for endpoints where the body may be
// omitted. An empty body, chunked or not, leaves dst untouched.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
