package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/reelx/internal/formatter"
	"github.com/desertthunder/reelx/internal/models"
	"github.com/desertthunder/reelx/internal/services"
	"github.com/desertthunder/reelx/internal/shared"
)

// PredictRun fetches a next-day prediction and records it in local history.
func (r *Runner) PredictRun(ctx context.Context, cmd *cli.Command) error {
	backend, err := r.backendService(ctx)
	if err != nil {
		return err
	}

	prediction, err := backend.Predict(ctx, cmd.StringArg("ticker"))
	if err != nil {
		return fmt.Errorf("%s: %w", services.UserMessage(err, services.MsgPredictFailed), err)
	}

	if cmd.Bool("save") {
		if repo, err := r.predictionRepo(ctx); err != nil {
			r.logger.Warn("prediction not saved", "error", err)
		} else if err := repo.Create(models.NewPredictionRecord(*prediction)); err != nil {
			r.logger.Warn("prediction not saved", "error", err)
		}
	}

	if cmd.Bool("json") {
		return r.writeJSON(prediction, cmd.Bool("pretty"))
	}
	return r.writePlain("%s\n", formatter.PredictionText(*prediction))
}

// PredictStock runs the full model for a ticker. Requires an authenticated session.
func (r *Runner) PredictStock(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireAuth(ctx); err != nil {
		return err
	}
	backend, err := r.backendService(ctx)
	if err != nil {
		return err
	}

	ticker := strings.ToUpper(strings.TrimSpace(cmd.StringArg("ticker")))
	result, err := backend.PredictStock(ctx, ticker)
	if err != nil {
		return fmt.Errorf("%s: %w", services.UserMessage(err, services.MsgPredictStockFailed), err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(result, cmd.Bool("pretty"))
	}
	return r.writePlain("%s\n", formatter.StockPredictionText(ticker, *result))
}

// PredictHistory lists recorded predictions, newest first.
func (r *Runner) PredictHistory(ctx context.Context, cmd *cli.Command) error {
	repo, err := r.predictionRepo(ctx)
	if err != nil {
		return err
	}

	limit := int(cmd.Int("limit"))
	var records []*models.PredictionRecord
	if ticker := strings.TrimSpace(cmd.String("ticker")); ticker != "" {
		records, err = repo.ListByTicker(ticker, limit)
	} else {
		records, err = repo.List(limit)
	}
	if err != nil {
		return fmt.Errorf("failed to load prediction history: %w", err)
	}

	if cmd.Bool("json") {
		out := make([]map[string]any, len(records))
		for i, rec := range records {
			out[i] = map[string]any{
				"id":         rec.ID(),
				"created_at": rec.CreatedAt(),
				"prediction": rec.Prediction(),
			}
		}
		return r.writeJSON(out, cmd.Bool("pretty"))
	}

	if len(records) == 0 {
		return r.writePlain("No predictions recorded yet. Run `reelx predict run <ticker>`.\n")
	}
	return r.writePlain("%s\n", formatter.PredictionsTable(records))
}

// PredictForget deletes one recorded prediction.
func (r *Runner) PredictForget(ctx context.Context, cmd *cli.Command) error {
	id := strings.TrimSpace(cmd.StringArg("id"))
	if id == "" {
		return fmt.Errorf("%w: id is required", shared.ErrMissingArgument)
	}

	repo, err := r.predictionRepo(ctx)
	if err != nil {
		return err
	}
	if err := repo.Delete(id); err != nil {
		return err
	}
	return r.writePlain("✓ Deleted prediction %s\n", id)
}
