package server

import (
	"hash/fnv"
	"math"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/desertthunder/reelx/internal/models"
)

var tickerPattern = regexp.MustCompile(`^[A-Z][A-Z.\-]{0,9}$`)

// PredictHandler serves deterministic stand-in predictions.
//
// Prices are derived from a hash of the ticker so repeated calls agree.
type PredictHandler struct {
	auth *Authenticator
	now  func() time.Time
}

// NewPredictHandler creates a [PredictHandler].
func NewPredictHandler(auth *Authenticator) *PredictHandler {
	return &PredictHandler{auth: auth, now: time.Now}
}

// Routes returns the HTTP routes this handler serves.
func (h *PredictHandler) Routes() []string {
	return []string{"/predict/", "/predict-stock/"}
}

func (h *PredictHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case strings.HasSuffix(r.URL.Path, "/predict/") && r.Method == http.MethodGet:
		h.predict(w, r)
	case strings.HasSuffix(r.URL.Path, "/predict-stock/") && r.Method == http.MethodPost:
		h.predictStock(w, r)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, detail("Method \""+r.Method+"\" not allowed."))
	}
}

func (h *PredictHandler) predict(w http.ResponseWriter, r *http.Request) {
	ticker, ok := h.ticker(w, r.URL.Query().Get("ticker"))
	if !ok {
		return
	}

	last := basePrice(ticker)
	today := h.now().UTC()
	writeJSON(w, http.StatusOK, models.Prediction{
		CompanyName:    ticker + " Corporation",
		Ticker:         ticker,
		LastClosePrice: last,
		LastCloseDate:  today.AddDate(0, 0, -1).Format(time.DateOnly),
		PredictedPrice: round2(last * (1 + drift(ticker))),
		PredictionDate: today.Format(time.DateOnly),
	})
}

func (h *PredictHandler) predictStock(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.auth.Authenticate(w, r); !ok {
		return
	}

	var body struct {
		Ticker string `json:"ticker"`
	}
	if err := readJSON(w, r, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}
	ticker, ok := h.ticker(w, body.Ticker)
	if !ok {
		return
	}

	price := basePrice(ticker)
	mse := round2(price * 0.02)
	writeJSON(w, http.StatusOK, models.StockPrediction{
		Metrics: models.StockMetrics{MSE: mse, RMSE: round2(math.Sqrt(mse)), R2: 0.9 + drift(ticker)},
		Plots: map[string]string{
			"closing_price":    "/media/" + ticker + "_closing_price.png",
			"moving_average":   "/media/" + ticker + "_100_dma.png",
			"prediction":       "/media/" + ticker + "_prediction.png",
			"final_prediction": "/media/" + ticker + "_final_prediction.png",
		},
	})
}

// ticker validates raw and writes a 400 {"error": ...} when it is unusable.
func (h *PredictHandler) ticker(w http.ResponseWriter, raw string) (string, bool) {
	ticker := strings.ToUpper(strings.TrimSpace(raw))
	if ticker == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Ticker symbol is required"})
		return "", false
	}
	if !tickerPattern.MatchString(ticker) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid ticker symbol"})
		return "", false
	}
	return ticker, true
}

func basePrice(ticker string) float64 {
	h := fnv.New32a()
	h.Write([]byte(ticker))
	return round2(20 + float64(h.Sum32()%48000)/100)
}

// drift is a per-ticker change in [-0.05, 0.05).
func drift(ticker string) float64 {
	h := fnv.New32a()
	h.Write([]byte("drift:" + ticker))
	return float64(int(h.Sum32()%1000)-500) / 10000
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
