package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"neuramark/internal/vc/issuer"
	"neuramark/internal/vc/models"
	id "neuramark/pkg/domain"
	"neuramark/pkg/platform/httputil"
	"neuramark/pkg/requestcontext"
)

type Service interface {
	IssueForProof(ctx context.Context, accountID id.AccountID, proofID id.ProofID) (*models.Credential, error)
	Get(ctx context.Context, credentialID string) (*models.Credential, error)
	Verify(ctx context.Context, input any) (*models.Report, error)
}

type Handler struct {
	credentials Service
	logger      *slog.Logger
}

func New(credentials Service, logger *slog.Logger) *Handler {
	return &Handler{credentials: credentials, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/credentials", h.handleIssue)
	r.Post("/credentials/verify", h.handleVerify)
	r.Get("/credentials/{credentialID}", h.handleExport)
}

type issueRequest struct {
	AccountID string `json:"accountId"`
	ProofID   string `json:"proofId"`
}

func (h *Handler) handleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req issueRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	accountID, err := id.ParseAccountID(req.AccountID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	proofID, err := id.ParseProofID(req.ProofID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	cred, err := h.credentials.IssueForProof(ctx, accountID, proofID)
	if err != nil {
		h.logger.WarnContext(ctx, "credential issuance failed",
			"request_id", requestcontext.RequestID(ctx),
			"account_id", accountID.String(),
			"proof_id", proofID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	h.writeCanonical(w, http.StatusCreated, cred)
}

// handleExport returns the stored credential in its canonical text form.
func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	cred, err := h.credentials.Get(r.Context(), chi.URLParam(r, "credentialID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.writeCanonical(w, http.StatusOK, cred)
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	body, err := httputil.ReadBody(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	report, err := h.credentials.Verify(r.Context(), json.RawMessage(body))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}

func (h *Handler) writeCanonical(w http.ResponseWriter, status int, cred *models.Credential) {
	text, err := issuer.Export(cred)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(text))
}
