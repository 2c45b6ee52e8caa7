// Backend API implementation of [Backend]
package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/desertthunder/reelx/internal/models"
	"github.com/desertthunder/reelx/internal/pipeline"
	"github.com/desertthunder/reelx/internal/shared"
)

const (
	StudentsPath     = "/students/"
	PredictPath      = "/predict/"
	PredictStockPath = "/predict-stock/"

	DefaultStudentPageSize = 10
	DefaultStudentOrdering = "-created_at"
)

// Messages shown when the backend gives no reason of its own.
const (
	MsgPredictFailed      = "Failed to fetch prediction"
	MsgPredictStockFailed = "An error occurred. Please try again."
	MsgCreateFailed       = "Failed to create student. Please check the data."
)

// Requester is the subset of [pipeline.Client] the backend service uses.
type Requester interface {
	Get(ctx context.Context, path string, query url.Values) (*pipeline.Response, error)
	Post(ctx context.Context, path string, body any) (*pipeline.Response, error)
	Delete(ctx context.Context, path string) (*pipeline.Response, error)
}

// StudentQuery selects a page of students.
type StudentQuery struct {
	Page     int
	PageSize int
	Search   string
	Branch   string
	Ordering string
}

func (q StudentQuery) values() url.Values {
	params := url.Values{}
	params.Set("page", strconv.Itoa(max(q.Page, 1)))
	params.Set("page_size", strconv.Itoa(q.pageSize()))
	if s := strings.TrimSpace(q.Search); s != "" {
		params.Set("search", s)
	}
	if q.Branch != "" {
		params.Set("branch", q.Branch)
	}
	ordering := q.Ordering
	if ordering == "" {
		ordering = DefaultStudentOrdering
	}
	params.Set("ordering", ordering)
	return params
}

func (q StudentQuery) pageSize() int {
	if q.PageSize <= 0 {
		return DefaultStudentPageSize
	}
	return q.PageSize
}

type studentList struct {
	Count   int              `json:"count"`
	Results []models.Student `json:"results"`
}

// BackendService calls the application API through the request pipeline, so every call carries
// the session credentials and is replayed once after a token refresh.
type BackendService struct {
	api Requester
}

// NewBackendService creates a [BackendService].
func NewBackendService(api Requester) *BackendService {
	return &BackendService{api: api}
}

// ListStudents fetches one page of the user's students.
//
// Calls GET /students/?page=&page_size=&search=&branch=&ordering=.
func (s *BackendService) ListStudents(ctx context.Context, q StudentQuery) (models.Page[models.Student], error) {
	if q.Branch != "" && !models.IsBranch(q.Branch) {
		return models.Page[models.Student]{}, fmt.Errorf("%w: unknown branch %q", shared.ErrInvalidArgument, q.Branch)
	}

	resp, err := s.api.Get(ctx, StudentsPath, q.values())
	if err != nil {
		return models.Page[models.Student]{}, fmt.Errorf("failed to list students: %w", err)
	}

	list, err := pipeline.DecodeJSON[studentList](resp)
	if err != nil {
		return models.Page[models.Student]{}, err
	}
	if list.Results == nil {
		list.Results = []models.Student{}
	}

	return models.Page[models.Student]{
		Items:      list.Results,
		Page:       max(q.Page, 1),
		TotalPages: TotalPages(list.Count, q.pageSize()),
		TotalCount: list.Count,
	}, nil
}

// CreateStudent validates in and creates the student.
//
// Calls POST /students/.
func (s *BackendService) CreateStudent(ctx context.Context, in models.StudentInput) (*models.Student, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.StudentID = strings.TrimSpace(in.StudentID)
	in.Branch = strings.ToUpper(strings.TrimSpace(in.Branch))
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	resp, err := s.api.Post(ctx, StudentsPath, in)
	if err != nil {
		return nil, fmt.Errorf("failed to create student: %w", err)
	}

	student, err := pipeline.DecodeJSON[models.Student](resp)
	if err != nil {
		return nil, err
	}
	return &student, nil
}

// DeleteStudent deletes the student with the given primary key.
//
// Calls DELETE /students/{id}/.
func (s *BackendService) DeleteStudent(ctx context.Context, id int) error {
	if id <= 0 {
		return fmt.Errorf("%w: student id must be positive", shared.ErrInvalidArgument)
	}
	if _, err := s.api.Delete(ctx, fmt.Sprintf("%s%d/", StudentsPath, id)); err != nil {
		return fmt.Errorf("failed to delete student %d: %w", id, err)
	}
	return nil
}

// Predict fetches the next-day price prediction for ticker.
//
// Calls GET /predict/?ticker=.
func (s *BackendService) Predict(ctx context.Context, ticker string) (*models.Prediction, error) {
	ticker, err := normalizeTicker(ticker)
	if err != nil {
		return nil, err
	}

	resp, err := s.api.Get(ctx, PredictPath, url.Values{"ticker": {ticker}})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch prediction for %s: %w", ticker, err)
	}

	prediction, err := pipeline.DecodeJSON[models.Prediction](resp)
	if err != nil {
		return nil, err
	}
	return &prediction, nil
}

// PredictStock trains the model for ticker and returns its metrics and plots.
//
// Calls POST /predict-stock/.
func (s *BackendService) PredictStock(ctx context.Context, ticker string) (*models.StockPrediction, error) {
	ticker, err := normalizeTicker(ticker)
	if err != nil {
		return nil, err
	}

	resp, err := s.api.Post(ctx, PredictStockPath, map[string]string{"ticker": ticker})
	if err != nil {
		return nil, fmt.Errorf("failed to predict %s: %w", ticker, err)
	}

	result, err := pipeline.DecodeJSON[models.StockPrediction](resp)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// TotalPages is ceil(count/pageSize); zero results give zero pages.
func TotalPages(count, pageSize int) int {
	if count <= 0 || pageSize <= 0 {
		return 0
	}
	return (count + pageSize - 1) / pageSize
}

// PageAfterDelete returns the page to show after removing one item from page.
// Deleting the only item on a page past the first steps back one page.
func PageAfterDelete(page, itemsOnPage int) int {
	if itemsOnPage == 1 && page > 1 {
		return page - 1
	}
	return page
}

// UserMessage returns the message the backend gave for err, or fallback when it gave none.
func UserMessage(err error, fallback string) string {
	if err == nil {
		return ""
	}
	if serr, ok := pipeline.AsStatusError(err); ok && serr.Response != nil {
		if msg := pipeline.BodyMessage(serr.Response.Body); msg != "" {
			return msg
		}
	}
	if errors.Is(err, shared.ErrInvalidInput) || errors.Is(err, shared.ErrInvalidArgument) {
		return err.Error()
	}
	return fallback
}

func normalizeTicker(ticker string) (string, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return "", fmt.Errorf("%w: ticker is required", shared.ErrMissingArgument)
	}
	return ticker, nil
}
