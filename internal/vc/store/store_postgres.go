package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"neuramark/internal/vc/models"
	"neuramark/pkg/platform/sentinel"
)

// Postgres persists issued credentials as JSONB.
type Postgres struct {
	db *sqlx.DB
}

func NewPostgres(db *sqlx.DB) *Postgres {
	return &Postgres{db: db}
}

// Save upserts cred by id. Re-issuance for the same proof replaces the body.
func (s *Postgres) Save(ctx context.Context, cred *models.Credential) error {
	body, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("marshal credential: %w", err)
	}
	issuedAt, err := time.Parse(time.RFC3339, cred.IssuanceDate)
	if err != nil {
		return fmt.Errorf("parse issuance date: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO credentials (id, proof_id, subject_did, body, issued_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET subject_did = EXCLUDED.subject_did, body = EXCLUDED.body, issued_at = EXCLUDED.issued_at`,
		cred.ID, cred.CredentialSubject.BlockchainProof.ProofID, cred.CredentialSubject.ID, body, issuedAt)
	if err != nil {
		return fmt.Errorf("save credential: %w: %w", sentinel.ErrUnavailable, err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, credentialID string) (*models.Credential, error) {
	var body []byte
	err := s.db.GetContext(ctx, &body, `SELECT body FROM credentials WHERE id = $1`, credentialID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find credential: %w: %w", sentinel.ErrUnavailable, err)
	}
	var cred models.Credential
	if err := json.Unmarshal(body, &cred); err != nil {
		return nil, fmt.Errorf("unmarshal credential: %w", err)
	}
	return &cred, nil
}
