package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"neuramark/internal/did/models"
	"neuramark/internal/did/syncer"
	proofmodels "neuramark/internal/proof/models"
	id "neuramark/pkg/domain"
	dErrors "neuramark/pkg/domain-errors"
	"neuramark/pkg/platform/httputil"
	"neuramark/pkg/requestcontext"
)

// Service defines the DID document operations exposed over HTTP.
type Service interface {
	Create(ctx context.Context, accountID id.AccountID, email, displayName string, wallets []string) (*models.Document, error)
	Get(ctx context.Context, accountID id.AccountID) (*models.Record, error)
	Mutate(ctx context.Context, accountID id.AccountID, action models.Action) (*models.Record, error)
}

type ProofRegistrar interface {
	Register(ctx context.Context, proof *proofmodels.Proof) (*proofmodels.Proof, error)
}

type SyncQueue interface {
	Enqueue(ctx context.Context, accountID id.AccountID, ref models.ProofReference) (string, error)
}

// Handler serves DID document endpoints and the proof registration hook.
type Handler struct {
	dids   Service
	proofs ProofRegistrar
	sync   SyncQueue
	logger *slog.Logger
}

func New(dids Service, proofs ProofRegistrar, sync SyncQueue, logger *slog.Logger) *Handler {
	return &Handler{dids: dids, proofs: proofs, sync: sync, logger: logger}
}

// Register mounts the DID routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/did", h.handleCreate)
	r.Get("/did/{accountID}", h.handleGet)
	r.Post("/did/{accountID}/actions", h.handleAction)
	r.Post("/did/{accountID}/proofs/registered", h.handleProofRegistered)
}

type createRequest struct {
	AccountID string   `json:"accountId"`
	Email     string   `json:"email"`
	Name      string   `json:"name"`
	Wallets   []string `json:"wallets"`
}

type recordResponse struct {
	Document   models.Document `json:"document"`
	CurrentCID string          `json:"currentCID"`
	ProofCount int             `json:"proofCount"`
	Version    int64           `json:"version"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

func toRecordResponse(rec *models.Record) recordResponse {
	return recordResponse{
		Document:   rec.Document,
		CurrentCID: rec.CurrentCID,
		ProofCount: rec.ProofCount,
		Version:    rec.Version,
		UpdatedAt:  rec.UpdatedAt,
	}
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req createRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	accountID, err := id.ParseAccountID(req.AccountID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	doc, err := h.dids.Create(ctx, accountID, req.Email, req.Name, req.Wallets)
	if err != nil {
		h.logFailure(ctx, "did create failed", accountID, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, doc)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	accountID, err := id.ParseAccountID(chi.URLParam(r, "accountID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	rec, err := h.dids.Get(r.Context(), accountID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toRecordResponse(rec))
}

func (h *Handler) handleAction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	accountID, err := id.ParseAccountID(chi.URLParam(r, "accountID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	body, err := httputil.ReadBody(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	action, err := models.ParseAction(body)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	rec, err := h.dids.Mutate(ctx, accountID, action)
	if err != nil {
		h.logFailure(ctx, "did mutation failed", accountID, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toRecordResponse(rec))
}

type proofRegisteredResponse struct {
	Proof      *proofmodels.Proof `json:"proof"`
	SyncTaskID string             `json:"syncTaskId,omitempty"`
	SyncQueued bool               `json:"syncQueued"`
}

// handleProofRegistered records a freshly anchored proof and schedules the
// DID document append. The account must exist and own the proof, directly or
// through a linked wallet. The append runs in the background; a full queue is
// logged and does not fail the registration.
func (h *Handler) handleProofRegistered(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	accountID, err := id.ParseAccountID(chi.URLParam(r, "accountID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var proof proofmodels.Proof
	if err := httputil.DecodeJSON(r, &proof); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if proof.CreatedAt.IsZero() {
		proof.CreatedAt = requestcontext.Now(ctx).UTC()
	}
	rec, err := h.dids.Get(ctx, accountID)
	if err != nil {
		h.logFailure(ctx, "proof registration failed", accountID, err)
		httputil.WriteError(w, err)
		return
	}
	if err := bindOwner(&proof, accountID, &rec.Document); err != nil {
		h.logFailure(ctx, "proof registration rejected", accountID, err)
		httputil.WriteError(w, err)
		return
	}

	saved, err := h.proofs.Register(ctx, &proof)
	if err != nil {
		h.logFailure(ctx, "proof registration failed", accountID, err)
		httputil.WriteError(w, err)
		return
	}

	resp := proofRegisteredResponse{Proof: saved}
	taskID, err := h.sync.Enqueue(ctx, accountID, saved.Reference())
	switch {
	case err == nil:
		resp.SyncTaskID = taskID
		resp.SyncQueued = true
	case errors.Is(err, syncer.ErrQueueFull):
		h.logger.ErrorContext(ctx, "did sync not queued",
			"request_id", requestcontext.RequestID(ctx),
			"account_id", accountID.String(),
			"proof_id", saved.ProofID.String(),
			"error", err,
		)
	default:
		h.logFailure(ctx, "did sync enqueue failed", accountID, err)
	}
	httputil.WriteJSON(w, http.StatusAccepted, resp)
}

// bindOwner accepts a proof for accountID only when it is already bound to
// the account or was registered from one of the account's wallets. An unbound
// proof is bound to the account before it is stored.
func bindOwner(proof *proofmodels.Proof, accountID id.AccountID, doc *models.Document) error {
	if proof.HasOwner() {
		if proof.UserID != accountID {
			return dErrors.New(dErrors.CodeUnauthorized, "proof belongs to another account")
		}
		return nil
	}
	if !doc.HasWallet(proof.Wallet) {
		return dErrors.New(dErrors.CodeUnauthorized, "proof wallet is not linked to the account")
	}
	proof.UserID = accountID
	return nil
}

func (h *Handler) logFailure(ctx context.Context, msg string, accountID id.AccountID, err error) {
	level := slog.LevelWarn
	if dErrors.CodeOf(err) == dErrors.CodeInternal || dErrors.CodeOf(err) == dErrors.CodeUpstreamUnavailable {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, msg,
		"request_id", requestcontext.RequestID(ctx),
		"account_id", accountID.String(),
		"error", err,
	)
}
