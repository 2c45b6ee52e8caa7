package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Prediction is the next-day price prediction for a ticker.
type Prediction struct {
	CompanyName    string  `json:"company_name"`
	Ticker         string  `json:"ticker"`
	LastClosePrice float64 `json:"last_close_price"`
	LastCloseDate  string  `json:"last_close_date"`
	PredictedPrice float64 `json:"predicted_price"`
	PredictionDate string  `json:"prediction_date"`
}

// StockMetrics are the model evaluation metrics for a trained prediction.
type StockMetrics struct {
	MSE  float64 `json:"mse"`
	RMSE float64 `json:"rmse"`
	R2   float64 `json:"r2"`
}

// StockPrediction is the result of training a model for a ticker: metrics plus named plot URLs.
type StockPrediction struct {
	Metrics StockMetrics      `json:"metrics"`
	Plots   map[string]string `json:"plots"`
}

// PredictionRecord is a [Prediction] recorded locally.
type PredictionRecord struct {
	id         string
	prediction Prediction
	createdAt  time.Time
}

// NewPredictionRecord creates a new [PredictionRecord] with a generated ID.
func NewPredictionRecord(p Prediction) *PredictionRecord {
	return &PredictionRecord{
		id:         uuid.New().String(),
		prediction: p,
		createdAt:  time.Now(),
	}
}

// RestorePredictionRecord rebuilds a record read from storage.
func RestorePredictionRecord(id string, p Prediction, createdAt time.Time) *PredictionRecord {
	return &PredictionRecord{id: id, prediction: p, createdAt: createdAt}
}

func (r *PredictionRecord) ID() string             { return r.id }
func (r *PredictionRecord) CreatedAt() time.Time   { return r.createdAt }
func (r *PredictionRecord) Prediction() Prediction { return r.prediction }

// Validate ensures the record has an ID and a ticker.
func (r *PredictionRecord) Validate() error {
	if r.id == "" {
		return fmt.Errorf("prediction record ID is required")
	}
	if strings.TrimSpace(r.prediction.Ticker) == "" {
		return fmt.Errorf("ticker is required")
	}
	return nil
}
