package record

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"neuramark/internal/did/models"
	"neuramark/internal/platform/postgres"
	id "neuramark/pkg/domain"
	"neuramark/pkg/platform/sentinel"
)

// Postgres persists current-pointer records in PostgreSQL. Update is a
// conditional write on the version column.
type Postgres struct {
	db *sqlx.DB
}

// NewPostgres constructs a PostgreSQL-backed record store.
func NewPostgres(db *sqlx.DB) *Postgres {
	return &Postgres{db: db}
}

type recordRow struct {
	AccountID  string    `db:"account_id"`
	DIDID      string    `db:"did_id"`
	Document   []byte    `db:"document"`
	CurrentCID string    `db:"current_cid"`
	ProofCount int       `db:"proof_count"`
	Version    int64     `db:"version"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

const selectRecord = `
	SELECT account_id, did_id, document, current_cid, proof_count, version, created_at, updated_at
	FROM did_records`

func (s *Postgres) FindByAccount(ctx context.Context, accountID id.AccountID) (*models.Record, error) {
	var row recordRow
	if err := s.db.GetContext(ctx, &row, selectRecord+` WHERE account_id = $1`, accountID.String()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find did record: %w: %w", sentinel.ErrUnavailable, err)
	}
	return toRecord(row)
}

func (s *Postgres) FindByDID(ctx context.Context, did string) (*models.Record, error) {
	var row recordRow
	if err := s.db.GetContext(ctx, &row, selectRecord+` WHERE did_id = $1`, did); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find did record by did: %w: %w", sentinel.ErrUnavailable, err)
	}
	return toRecord(row)
}

func (s *Postgres) Create(ctx context.Context, rec *models.Record) error {
	row, err := fromRecord(rec)
	if err != nil {
		return err
	}
	_, err = s.db.NamedExecContext(ctx, `
		INSERT INTO did_records (account_id, did_id, document, current_cid, proof_count, version, created_at, updated_at)
		VALUES (:account_id, :did_id, :document, :current_cid, :proof_count, :version, :created_at, :updated_at)`, row)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create did record: %w: %w", sentinel.ErrUnavailable, err)
	}
	return nil
}

func (s *Postgres) Update(ctx context.Context, rec *models.Record, expectedVersion int64) error {
	doc, err := json.Marshal(rec.Document)
	if err != nil {
		return fmt.Errorf("marshal did document: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE did_records
		SET document = $1, current_cid = $2, proof_count = $3, version = $4, updated_at = $5
		WHERE account_id = $6 AND version = $7`,
		doc, rec.CurrentCID, rec.ProofCount, rec.Version, rec.UpdatedAt, rec.AccountID.String(), expectedVersion)
	if err != nil {
		return fmt.Errorf("update did record: %w: %w", sentinel.ErrUnavailable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update did record: %w", err)
	}
	if n == 1 {
		return nil
	}
	// Zero rows: either the record is gone or someone committed first.
	var exists bool
	if err := s.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM did_records WHERE account_id = $1)`, rec.AccountID.String()); err != nil {
		return fmt.Errorf("update did record: %w: %w", sentinel.ErrUnavailable, err)
	}
	if !exists {
		return sentinel.ErrNotFound
	}
	return sentinel.ErrConflict
}

func fromRecord(rec *models.Record) (recordRow, error) {
	doc, err := json.Marshal(rec.Document)
	if err != nil {
		return recordRow{}, fmt.Errorf("marshal did document: %w", err)
	}
	return recordRow{
		AccountID:  rec.AccountID.String(),
		DIDID:      rec.DIDID,
		Document:   doc,
		CurrentCID: rec.CurrentCID,
		ProofCount: rec.ProofCount,
		Version:    rec.Version,
		CreatedAt:  rec.CreatedAt,
		UpdatedAt:  rec.UpdatedAt,
	}, nil
}

func toRecord(row recordRow) (*models.Record, error) {
	var doc models.Document
	if err := json.Unmarshal(row.Document, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal did document: %w", err)
	}
	return &models.Record{
		AccountID:  id.AccountID(row.AccountID),
		DIDID:      row.DIDID,
		Document:   doc,
		CurrentCID: row.CurrentCID,
		ProofCount: row.ProofCount,
		Version:    row.Version,
		CreatedAt:  row.CreatedAt,
		UpdatedAt:  row.UpdatedAt,
	}, nil
}
