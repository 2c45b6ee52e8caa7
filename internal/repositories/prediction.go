package repositories

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/reelx/internal/models"
)

var _ models.Repository[*models.PredictionRecord] = (*PredictionRepository)(nil)

// PredictionRepository implements models.Repository[*models.PredictionRecord] for prediction history.
type PredictionRepository struct {
	db *sql.DB
}

// NewPredictionRepository creates a new PredictionRepository with the given database connection
func NewPredictionRepository(db *sql.DB) *PredictionRepository {
	return &PredictionRepository{db: db}
}

// Create inserts a prediction record
func (r *PredictionRepository) Create(record *models.PredictionRecord) error {
	if err := record.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO predictions (
			id, ticker, company_name, last_close_price, last_close_date,
			predicted_price, prediction_date, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	p := record.Prediction()
	_, err := r.db.Exec(query,
		record.ID(),
		strings.ToUpper(p.Ticker),
		p.CompanyName,
		p.LastClosePrice,
		p.LastCloseDate,
		p.PredictedPrice,
		p.PredictionDate,
		record.CreatedAt().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert prediction: %w", err)
	}
	return nil
}

// Get retrieves a prediction record by ID
func (r *PredictionRepository) Get(id string) (*models.PredictionRecord, error) {
	query := `
		SELECT id, ticker, company_name, last_close_price, last_close_date,
			predicted_price, prediction_date, created_at
		FROM predictions
		WHERE id = ?
	`

	record, err := scanPrediction(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("prediction not found: %s", id)
	}
	return record, err
}

// Delete removes a prediction record by ID
func (r *PredictionRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM predictions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete prediction: %w", err)
	}
	return requireRows(result, "prediction", id)
}

// List retrieves the most recent prediction records, newest first. limit <= 0 returns all.
func (r *PredictionRepository) List(limit int) ([]*models.PredictionRecord, error) {
	return r.list("", limit)
}

// ListByTicker retrieves the most recent prediction records for ticker, newest first.
func (r *PredictionRepository) ListByTicker(ticker string, limit int) ([]*models.PredictionRecord, error) {
	return r.list(strings.ToUpper(strings.TrimSpace(ticker)), limit)
}

func (r *PredictionRepository) list(ticker string, limit int) ([]*models.PredictionRecord, error) {
	query := `
		SELECT id, ticker, company_name, last_close_price, last_close_date,
			predicted_price, prediction_date, created_at
		FROM predictions
	`
	args := []any{}

	if ticker != "" {
		query += " WHERE ticker = ?"
		args = append(args, ticker)
	}
	query += " ORDER BY created_at DESC, rowid DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query predictions: %w", err)
	}
	defer rows.Close()

	var records []*models.PredictionRecord
	for rows.Next() {
		record, err := scanPrediction(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return records, nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scanPrediction scans a [sql.Row] or [sql.Rows] into a [models.PredictionRecord].
// A missing row is returned as [sql.ErrNoRows] unwrapped.
func scanPrediction(s scanner) (*models.PredictionRecord, error) {
	var (
		id        string
		p         models.Prediction
		createdAt time.Time
	)

	err := s.Scan(&id, &p.Ticker, &p.CompanyName, &p.LastClosePrice, &p.LastCloseDate,
		&p.PredictedPrice, &p.PredictionDate, &createdAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan prediction: %w", err)
	}

	return models.RestorePredictionRecord(id, p, createdAt), nil
}
