package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"neuramark/internal/platform/postgres"
	"neuramark/internal/proof/models"
	id "neuramark/pkg/domain"
	"neuramark/pkg/platform/sentinel"
)

// Postgres persists proofs in PostgreSQL.
type Postgres struct {
	db *sqlx.DB
}

// NewPostgres constructs a PostgreSQL-backed proof store.
func NewPostgres(db *sqlx.DB) *Postgres {
	return &Postgres{db: db}
}

type proofRow struct {
	ProofID    string         `db:"proof_id"`
	PromptHash string         `db:"prompt_hash"`
	OutputHash string         `db:"output_hash"`
	PromptCID  string         `db:"prompt_cid"`
	OutputCID  string         `db:"output_cid"`
	ModelInfo  string         `db:"model_info"`
	OutputType string         `db:"output_type"`
	TxHash     string         `db:"tx_hash"`
	Wallet     string         `db:"wallet"`
	UserID     sql.NullString `db:"user_id"`
	CreatedAt  time.Time      `db:"created_at"`
}

func (s *Postgres) FindByID(ctx context.Context, proofID id.ProofID) (*models.Proof, error) {
	var row proofRow
	err := s.db.GetContext(ctx, &row, `
		SELECT proof_id, prompt_hash, output_hash, prompt_cid, output_cid, model_info,
		       output_type, tx_hash, wallet, user_id, created_at
		FROM proofs WHERE proof_id = $1`, proofID.String())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find proof: %w: %w", sentinel.ErrUnavailable, err)
	}
	return &models.Proof{
		ProofID:    id.ProofID(row.ProofID),
		PromptHash: row.PromptHash,
		OutputHash: row.OutputHash,
		PromptCID:  row.PromptCID,
		OutputCID:  row.OutputCID,
		ModelInfo:  row.ModelInfo,
		OutputType: row.OutputType,
		TxHash:     row.TxHash,
		Wallet:     row.Wallet,
		UserID:     id.AccountID(row.UserID.String),
		CreatedAt:  row.CreatedAt,
	}, nil
}

func (s *Postgres) Save(ctx context.Context, proof *models.Proof) error {
	row := proofRow{
		ProofID:    proof.ProofID.String(),
		PromptHash: proof.PromptHash,
		OutputHash: proof.OutputHash,
		PromptCID:  proof.PromptCID,
		OutputCID:  proof.OutputCID,
		ModelInfo:  proof.ModelInfo,
		OutputType: proof.OutputType,
		TxHash:     proof.TxHash,
		Wallet:     proof.Wallet,
		UserID:     sql.NullString{String: proof.UserID.String(), Valid: proof.HasOwner()},
		CreatedAt:  proof.CreatedAt,
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO proofs (proof_id, prompt_hash, output_hash, prompt_cid, output_cid, model_info,
		                    output_type, tx_hash, wallet, user_id, created_at)
		VALUES (:proof_id, :prompt_hash, :output_hash, :prompt_cid, :output_cid, :model_info,
		        :output_type, :tx_hash, :wallet, :user_id, :created_at)`, row)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("save proof: %w: %w", sentinel.ErrUnavailable, err)
	}
	return nil
}

// AssignUser sets user_id only while it is unset or already equal, so
// concurrent migrations for the same account converge.
func (s *Postgres) AssignUser(ctx context.Context, proofID id.ProofID, accountID id.AccountID) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE proofs SET user_id = $2
		WHERE proof_id = $1 AND (user_id IS NULL OR user_id = $2)`,
		proofID.String(), accountID.String())
	if err != nil {
		return fmt.Errorf("assign proof owner: %w: %w", sentinel.ErrUnavailable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("assign proof owner: %w", err)
	}
	if n == 1 {
		return nil
	}
	var exists bool
	if err := s.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM proofs WHERE proof_id = $1)`, proofID.String()); err != nil {
		return fmt.Errorf("assign proof owner: %w: %w", sentinel.ErrUnavailable, err)
	}
	if !exists {
		return sentinel.ErrNotFound
	}
	return sentinel.ErrConflict
}
