package formatter

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/desertthunder/reelx/internal/models"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

// MoviesTable renders movies as a table of ID, title, year and rating.
func MoviesTable(movies []models.Movie) string {
	t := newTable("ID", "Title", "Year", "Rating")
	for _, m := range movies {
		t.Row(strconv.Itoa(m.ID), truncate(m.Title, 48), m.Year(), fmt.Sprintf("%.1f", m.VoteAverage))
	}
	return t.Render()
}

// StudentsTable renders one page of students.
func StudentsTable(page models.Page[models.Student]) string {
	t := newTable("ID", "Student ID", "Name", "Branch", "Created")
	for _, s := range page.Items {
		created := ""
		if !s.CreatedAt.IsZero() {
			created = s.CreatedAt.Local().Format("2006-01-02")
		}
		t.Row(strconv.Itoa(s.ID), s.StudentID, s.Name, s.Branch, created)
	}
	return t.Render() + "\n" + PageSummary(page.Page, page.TotalPages, page.TotalCount)
}

// PredictionsTable renders recorded predictions, newest first.
func PredictionsTable(records []*models.PredictionRecord) string {
	t := newTable("Ticker", "Company", "Last Close", "Predicted", "For", "Fetched")
	for _, r := range records {
		p := r.Prediction()
		t.Row(p.Ticker, truncate(p.CompanyName, 32), Price(p.LastClosePrice), Price(p.PredictedPrice),
			p.PredictionDate, r.CreatedAt().Local().Format("2006-01-02 15:04"))
	}
	return t.Render()
}

// PredictionText renders a single prediction the way the prediction page lays it out.
func PredictionText(p models.Prediction) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s)\n", p.CompanyName, p.Ticker)
	fmt.Fprintf(&b, "Last close:      %s on %s\n", Price(p.LastClosePrice), p.LastCloseDate)
	fmt.Fprintf(&b, "Predicted close: %s on %s\n", Price(p.PredictedPrice), p.PredictionDate)
	fmt.Fprintf(&b, "Change:          %s\n", Change(p.LastClosePrice, p.PredictedPrice))
	return b.String()
}

// StockPredictionText renders model metrics followed by the plot URLs in name order.
func StockPredictionText(ticker string, sp models.StockPrediction) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Model metrics for %s\n", ticker)
	fmt.Fprintf(&b, "  MSE:  %.4f\n", sp.Metrics.MSE)
	fmt.Fprintf(&b, "  RMSE: %.4f\n", sp.Metrics.RMSE)
	fmt.Fprintf(&b, "  R²:   %.4f\n", sp.Metrics.R2)

	if len(sp.Plots) > 0 {
		b.WriteString("Plots\n")
		for _, name := range slices.Sorted(maps.Keys(sp.Plots)) {
			fmt.Fprintf(&b, "  %s: %s\n", name, sp.Plots[name])
		}
	}
	return b.String()
}

// PageSummary describes a page position, e.g. "Page 2 of 5 (43 total)".
func PageSummary(page, totalPages, totalCount int) string {
	if totalPages == 0 {
		return "No results"
	}
	return fmt.Sprintf("Page %d of %d (%d total)", page, totalPages, totalCount)
}

// Price formats a price with two decimals and a dollar sign.
func Price(v float64) string {
	return fmt.Sprintf("$%.2f", v)
}

// Change formats the signed difference and percentage from last to next.
func Change(last, next float64) string {
	diff := next - last
	if last == 0 {
		return fmt.Sprintf("%+.2f", diff)
	}
	return fmt.Sprintf("%+.2f (%+.2f%%)", diff, diff/last*100)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
