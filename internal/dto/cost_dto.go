package dto

import "github.com/arketa-lab/gradeflow-api/internal/repository"

// CostReportRequest filters cost aggregation endpoints.
type CostReportRequest struct {
	Days int `query:"days" validate:"omitempty,gte=1,lte=365"`
}

// CostBucketResponse is one aggregated cost bucket.
type CostBucketResponse struct {
	Day              string  `json:"day"`
	Model            string  `json:"model"`
	OperationType    string  `json:"operation_type"`
	Requests         int64   `json:"requests"`
	PromptTokens     int64   `json:"prompt_tokens"`
	CompletionTokens int64   `json:"completion_tokens"`
	TotalTokens      int64   `json:"total_tokens"`
	CostUsd          float64 `json:"cost_usd"`
}

// CostReportResponse is the full cost report for a scope (system/task/user).
type CostReportResponse struct {
	Scope        string               `json:"scope"`
	Days         int                  `json:"days,omitempty"`
	TotalCostUsd float64              `json:"total_cost_usd"`
	TotalTokens  int64                `json:"total_tokens"`
	Buckets      []CostBucketResponse `json:"buckets"`
	CacheHit     bool                 `json:"cache_hit,omitempty"`
}

// NewCostReportResponse converts usage aggregates into a report DTO.
func NewCostReportResponse(scope string, days int, aggregates []repository.UsageAggregate) CostReportResponse {
	buckets := make([]CostBucketResponse, 0, len(aggregates))
	totalCost := 0.0
	var totalTokens int64
	for _, aggregate := range aggregates {
		buckets = append(buckets, CostBucketResponse{
			Day:              aggregate.Day,
			Model:            aggregate.Model,
			OperationType:    aggregate.OperationType,
			Requests:         aggregate.Requests,
			PromptTokens:     aggregate.PromptTokens,
			CompletionTokens: aggregate.CompletionTokens,
			TotalTokens:      aggregate.TotalTokens,
			CostUsd:          aggregate.CostUsd,
		})
		totalCost += aggregate.CostUsd
		totalTokens += aggregate.TotalTokens
	}

	return CostReportResponse{
		Scope:        scope,
		Days:         days,
		TotalCostUsd: totalCost,
		TotalTokens:  totalTokens,
		Buckets:      buckets,
	}
}
