package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"neuramark/internal/did/handler/mocks"
	"neuramark/internal/did/models"
	"neuramark/internal/platform/logger"
	proofmodels "neuramark/internal/proof/models"
	id "neuramark/pkg/domain"
	dErrors "neuramark/pkg/domain-errors"
	"neuramark/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service,ProofRegistrar,SyncQueue

const registeredProof = `{"proofId":"p1","outputHash":"0x2","outputCID":"Qm1","modelInfo":"gpt-4","txHash":"0xdef","wallet":"` + wallet + `","createdAt":"2024-01-01T00:00:00Z"}`

// HandlerFailureSuite drives the handler against mocked collaborators to pin
// the error mapping of each route.
type HandlerFailureSuite struct {
	suite.Suite
	dids   *mocks.MockService
	proofs *mocks.MockProofRegistrar
	queue  *mocks.MockSyncQueue
	router chi.Router
}

func TestHandlerFailureSuite(t *testing.T) {
	suite.Run(t, new(HandlerFailureSuite))
}

func (s *HandlerFailureSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.dids = mocks.NewMockService(ctrl)
	s.proofs = mocks.NewMockProofRegistrar(ctrl)
	s.queue = mocks.NewMockSyncQueue(ctrl)

	s.router = chi.NewRouter()
	New(s.dids, s.proofs, s.queue, logger.Discard()).Register(s.router)
}

func linkedRecord() *models.Record {
	return &models.Record{
		Document: models.Document{ID: "did:neuramark:u1", Wallets: []string{strings.ToLower(wallet)}},
		Version:  1,
	}
}

func (s *HandlerFailureSuite) TestCreate() {
	s.Run("blob store outage is 503", func() {
		s.dids.EXPECT().Create(gomock.Any(), id.AccountID("u1"), "a@x.com", "Ann", []string{wallet}).
			Return(nil, dErrors.Wrap(errors.New("connection refused"), dErrors.CodeUpstreamUnavailable, "failed to store document"))

		rec := testutil.Serve(s.router, http.MethodPost, "/did", `{"accountId":"u1","email":"a@x.com","name":"Ann","wallets":["`+wallet+`"]}`)
		testutil.AssertStatusAndError(s.T(), rec, http.StatusServiceUnavailable, "upstream_unavailable")
	})
}

func (s *HandlerFailureSuite) TestGet() {
	s.Run("internal failure is 500", func() {
		s.dids.EXPECT().Get(gomock.Any(), id.AccountID("u1")).
			Return(nil, dErrors.New(dErrors.CodeInternal, "stored document does not decode"))

		rec := testutil.Serve(s.router, http.MethodGet, "/did/u1", "")
		testutil.AssertStatusAndError(s.T(), rec, http.StatusInternalServerError, "internal_error")
	})

	s.Run("uncoded error is 500", func() {
		s.dids.EXPECT().Get(gomock.Any(), id.AccountID("u1")).Return(nil, errors.New("boom"))

		rec := testutil.Serve(s.router, http.MethodGet, "/did/u1", "")
		testutil.AssertStatusAndError(s.T(), rec, http.StatusInternalServerError, "internal_error")
	})

	s.Run("invalid account id never reaches the service", func() {
		rec := testutil.Serve(s.router, http.MethodGet, "/did/a:b", "")
		testutil.AssertStatusAndError(s.T(), rec, http.StatusBadRequest, "bad_request")
	})
}

func (s *HandlerFailureSuite) TestAction() {
	s.Run("exhausted optimistic retries are 409", func() {
		s.dids.EXPECT().Mutate(gomock.Any(), id.AccountID("u1"), models.AddWallet{Address: wallet}).
			Return(nil, dErrors.New(dErrors.CodeConflict, "document changed concurrently"))

		rec := testutil.Serve(s.router, http.MethodPost, "/did/u1/actions", `{"type":"add_wallet","address":"`+wallet+`"}`)
		testutil.AssertStatusAndError(s.T(), rec, http.StatusConflict, "conflict")
	})

	s.Run("blob store outage is 503", func() {
		s.dids.EXPECT().Mutate(gomock.Any(), id.AccountID("u1"), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeUpstreamUnavailable, "failed to store document"))

		rec := testutil.Serve(s.router, http.MethodPost, "/did/u1/actions", `{"type":"remove_wallet","address":"`+wallet+`"}`)
		testutil.AssertStatusAndError(s.T(), rec, http.StatusServiceUnavailable, "upstream_unavailable")
	})
}

func (s *HandlerFailureSuite) TestProofRegistered() {
	s.Run("linked wallet binds the proof before it is stored", func() {
		s.dids.EXPECT().Get(gomock.Any(), id.AccountID("u1")).Return(linkedRecord(), nil)
		s.proofs.EXPECT().Register(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, p *proofmodels.Proof) (*proofmodels.Proof, error) {
				s.Equal(id.AccountID("u1"), p.UserID)
				return p, nil
			})
		s.queue.EXPECT().Enqueue(gomock.Any(), id.AccountID("u1"), gomock.Any()).Return("task-1", nil)

		rec := testutil.Serve(s.router, http.MethodPost, "/did/u1/proofs/registered", registeredProof)
		s.Require().Equal(http.StatusAccepted, rec.Code)
		resp := testutil.Decode[proofRegisteredResponse](s.T(), rec)
		s.True(resp.SyncQueued)
		s.Equal("task-1", resp.SyncTaskID)
	})

	s.Run("unlinked wallet is rejected before registration", func() {
		s.dids.EXPECT().Get(gomock.Any(), id.AccountID("u1")).
			Return(&models.Record{Document: models.Document{ID: "did:neuramark:u1"}}, nil)

		rec := testutil.Serve(s.router, http.MethodPost, "/did/u1/proofs/registered", registeredProof)
		testutil.AssertStatusAndError(s.T(), rec, http.StatusForbidden, "unauthorized")
	})

	s.Run("DID store outage is 503", func() {
		s.dids.EXPECT().Get(gomock.Any(), id.AccountID("u1")).
			Return(nil, dErrors.New(dErrors.CodeUpstreamUnavailable, "failed to load document"))

		rec := testutil.Serve(s.router, http.MethodPost, "/did/u1/proofs/registered", registeredProof)
		testutil.AssertStatusAndError(s.T(), rec, http.StatusServiceUnavailable, "upstream_unavailable")
	})

	s.Run("proof store outage is 503 and nothing is queued", func() {
		s.dids.EXPECT().Get(gomock.Any(), id.AccountID("u1")).Return(linkedRecord(), nil)
		s.proofs.EXPECT().Register(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeUpstreamUnavailable, "failed to save proof"))

		rec := testutil.Serve(s.router, http.MethodPost, "/did/u1/proofs/registered", registeredProof)
		testutil.AssertStatusAndError(s.T(), rec, http.StatusServiceUnavailable, "upstream_unavailable")
	})

	s.Run("proof store internal failure is 500", func() {
		s.dids.EXPECT().Get(gomock.Any(), id.AccountID("u1")).Return(linkedRecord(), nil)
		s.proofs.EXPECT().Register(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeInternal, "stored proof does not decode"))

		rec := testutil.Serve(s.router, http.MethodPost, "/did/u1/proofs/registered", registeredProof)
		testutil.AssertStatusAndError(s.T(), rec, http.StatusInternalServerError, "internal_error")
	})

	s.Run("enqueue failure still accepts the registration", func() {
		s.dids.EXPECT().Get(gomock.Any(), id.AccountID("u1")).Return(linkedRecord(), nil)
		s.proofs.EXPECT().Register(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, p *proofmodels.Proof) (*proofmodels.Proof, error) { return p, nil })
		s.queue.EXPECT().Enqueue(gomock.Any(), id.AccountID("u1"), gomock.Any()).Return("", errors.New("worker stopped"))

		rec := testutil.Serve(s.router, http.MethodPost, "/did/u1/proofs/registered", registeredProof)
		s.Require().Equal(http.StatusAccepted, rec.Code)
		resp := testutil.Decode[proofRegisteredResponse](s.T(), rec)
		s.False(resp.SyncQueued)
		s.Empty(resp.SyncTaskID)
	})
}
