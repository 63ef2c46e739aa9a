package httpapi

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/assortlab/noos-go/internal/domain/noos"
	"github.com/assortlab/noos-go/internal/domain/task"
)

// taskView is the JSON rendering of a task row
type taskView struct {
	ID                    int64      `json:"id"`
	Kind                  string     `json:"kind"`
	Status                string     `json:"status"`
	Progress              float64    `json:"progress"`
	Phase                 string     `json:"phase,omitempty"`
	Message               string     `json:"message,omitempty"`
	FileName              string     `json:"fileName,omitempty"`
	Parameters            string     `json:"parameters,omitempty"`
	TotalRecords          int        `json:"totalRecords"`
	ProcessedRecords      int        `json:"processedRecords"`
	ErrorCount            int        `json:"errorCount"`
	ErrorMessage          string     `json:"errorMessage,omitempty"`
	CancellationRequested bool       `json:"cancellationRequested"`
	CreatedAt             time.Time  `json:"createdAt"`
	StartedAt             *time.Time `json:"startedAt,omitempty"`
	EndedAt               *time.Time `json:"endedAt,omitempty"`
	UpdatedAt             time.Time  `json:"updatedAt"`
}

func toTaskView(t *task.Task) taskView {
	return taskView{
		ID:                    t.ID(),
		Kind:                  string(t.Kind()),
		Status:                string(t.Status()),
		Progress:              t.Progress(),
		Phase:                 t.Phase(),
		Message:               t.Message(),
		FileName:              t.FileName(),
		Parameters:            t.Parameters(),
		TotalRecords:          t.TotalRecords(),
		ProcessedRecords:      t.ProcessedRecords(),
		ErrorCount:            t.ErrorCount(),
		ErrorMessage:          t.ErrorMessage(),
		CancellationRequested: t.CancellationRequested(),
		CreatedAt:             t.CreatedAt(),
		StartedAt:             t.StartedAt(),
		EndedAt:               t.EndedAt(),
		UpdatedAt:             t.UpdatedAt(),
	}
}

func toTaskViews(tasks []*task.Task) []taskView {
	views := make([]taskView, 0, len(tasks))
	for _, t := range tasks {
		views = append(views, toTaskView(t))
	}
	return views
}

// taskStatsView is the GET /api/tasks/stats response
type taskStatsView struct {
	Total     int64 `json:"total"`
	Running   int64 `json:"running"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Cancelled int64 `json:"cancelled"`
}

// kindStatsView is the GET /api/tasks/stats/{kind} response: outcomes
// of one task kind over a trailing window of days
type kindStatsView struct {
	Kind      string `json:"kind"`
	Days      int    `json:"days"`
	Total     int64  `json:"total"`
	Completed int64  `json:"completed"`
	Failed    int64  `json:"failed"`
}

// resultView is the JSON rendering of one classification row. Decimals
// marshal as quoted strings, which keeps the 4-decimal precision exact.
type resultView struct {
	ID                   int64           `json:"id"`
	AlgorithmRunID       int64           `json:"algorithmRunId"`
	Category             string          `json:"category"`
	StyleCode            string          `json:"styleCode"`
	StyleROS             decimal.Decimal `json:"styleROS"`
	Type                 string          `json:"type"`
	StyleRevContribution decimal.Decimal `json:"styleRevContribution"`
	TotalQuantitySold    int             `json:"totalQuantitySold"`
	TotalRevenue         decimal.Decimal `json:"totalRevenue"`
	DaysAvailable        int             `json:"daysAvailable"`
	DaysWithSales        int             `json:"daysWithSales"`
	AvgDiscount          decimal.Decimal `json:"avgDiscount"`
	CalculatedAt         time.Time       `json:"calculatedAt"`
}

func toResultViews(results []*noos.Result) []resultView {
	views := make([]resultView, 0, len(results))
	for _, r := range results {
		views = append(views, resultView{
			ID:                   r.ID,
			AlgorithmRunID:       r.AlgorithmRunID,
			Category:             r.Category,
			StyleCode:            r.StyleCode,
			StyleROS:             r.StyleROS,
			Type:                 string(r.Type),
			StyleRevContribution: r.StyleRevContribution,
			TotalQuantitySold:    r.TotalQuantitySold,
			TotalRevenue:         r.TotalRevenue,
			DaysAvailable:        r.DaysAvailable,
			DaysWithSales:        r.DaysWithSales,
			AvgDiscount:          r.AvgDiscount,
			CalculatedAt:         r.CalculatedAt,
		})
	}
	return views
}

// summaryView is the GET /api/results/noos/summary response
type summaryView struct {
	AlgorithmRunID int64             `json:"algorithmRunId"`
	TotalStyles    int64             `json:"totalStyles"`
	ByType         map[string]int64  `json:"byType"`
	ByCategory     []categoryRevView `json:"byCategory"`
	CalculatedAt   *time.Time        `json:"calculatedAt,omitempty"`
}

type categoryRevView struct {
	Category string          `json:"category"`
	Revenue  decimal.Decimal `json:"revenue"`
	Styles   int64           `json:"styles"`
}

func toSummaryView(s *noos.Summary) summaryView {
	byType := make(map[string]int64, len(s.ByType))
	for _, tc := range s.ByType {
		byType[string(tc.Type)] = tc.Count
	}
	byCategory := make([]categoryRevView, 0, len(s.ByCategory))
	for _, cr := range s.ByCategory {
		byCategory = append(byCategory, categoryRevView{
			Category: cr.Category,
			Revenue:  cr.Revenue,
			Styles:   cr.Styles,
		})
	}
	return summaryView{
		AlgorithmRunID: s.AlgorithmRunID,
		TotalStyles:    s.TotalStyles,
		ByType:         byType,
		ByCategory:     byCategory,
		CalculatedAt:   s.CalculatedAt,
	}
}

// parametersPayload is the request body and response view of a
// parameter set. Dates travel as yyyy-MM-dd strings.
type parametersPayload struct {
	ParameterSet           string  `json:"parameterSet"`
	LiquidationThreshold   float64 `json:"liquidationThreshold"`
	BestsellerMultiplier   float64 `json:"bestsellerMultiplier"`
	MinVolumeThreshold     float64 `json:"minVolumeThreshold"`
	ConsistencyThreshold   float64 `json:"consistencyThreshold"`
	AnalysisStartDate      string  `json:"analysisStartDate,omitempty"`
	AnalysisEndDate        string  `json:"analysisEndDate,omitempty"`
	CoreDurationMonths     int     `json:"coreDurationMonths,omitempty"`
	BestsellerDurationDays int     `json:"bestsellerDurationDays,omitempty"`
	AvailabilityPolicy     string  `json:"availabilityPolicy,omitempty"`
	IsActive               bool    `json:"isActive"`
}

func (p *parametersPayload) toDomain() (*noos.Parameters, error) {
	out := &noos.Parameters{
		ParameterSet:           p.ParameterSet,
		LiquidationThreshold:   p.LiquidationThreshold,
		BestsellerMultiplier:   p.BestsellerMultiplier,
		MinVolumeThreshold:     p.MinVolumeThreshold,
		ConsistencyThreshold:   p.ConsistencyThreshold,
		CoreDurationMonths:     p.CoreDurationMonths,
		BestsellerDurationDays: p.BestsellerDurationDays,
		AvailabilityPolicy:     p.AvailabilityPolicy,
		IsActive:               p.IsActive,
	}
	if p.AnalysisStartDate != "" {
		t, err := time.Parse("2006-01-02", p.AnalysisStartDate)
		if err != nil {
			return nil, fmt.Errorf("invalid analysisStartDate %q: expected yyyy-MM-dd", p.AnalysisStartDate)
		}
		out.AnalysisStartDate = &t
	}
	if p.AnalysisEndDate != "" {
		t, err := time.Parse("2006-01-02", p.AnalysisEndDate)
		if err != nil {
			return nil, fmt.Errorf("invalid analysisEndDate %q: expected yyyy-MM-dd", p.AnalysisEndDate)
		}
		out.AnalysisEndDate = &t
	}
	return out, nil
}

func toParametersPayload(p *noos.Parameters) parametersPayload {
	out := parametersPayload{
		ParameterSet:           p.ParameterSet,
		LiquidationThreshold:   p.LiquidationThreshold,
		BestsellerMultiplier:   p.BestsellerMultiplier,
		MinVolumeThreshold:     p.MinVolumeThreshold,
		ConsistencyThreshold:   p.ConsistencyThreshold,
		CoreDurationMonths:     p.CoreDurationMonths,
		BestsellerDurationDays: p.BestsellerDurationDays,
		AvailabilityPolicy:     p.AvailabilityPolicy,
		IsActive:               p.IsActive,
	}
	if p.AnalysisStartDate != nil {
		out.AnalysisStartDate = p.AnalysisStartDate.Format("2006-01-02")
	}
	if p.AnalysisEndDate != nil {
		out.AnalysisEndDate = p.AnalysisEndDate.Format("2006-01-02")
	}
	return out
}

func toParametersPayloads(sets []*noos.Parameters) []parametersPayload {
	views := make([]parametersPayload, 0, len(sets))
	for _, p := range sets {
		views = append(views, toParametersPayload(p))
	}
	return views
}

// errorBody is the uniform error envelope
type errorBody struct {
	Error string `json:"error"`
}

// messageBody is the uniform acknowledgement envelope
type messageBody struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}
