package dto

import (
	"github.com/SscSPs/transfer_engine/internal/core/domain"
)

// StatsBucketResponse is one row of the journal breakdown.
type StatsBucketResponse struct {
	Kind         domain.TransactionKind   `json:"kind"`
	Status       domain.TransactionStatus `json:"status"`
	CurrencyCode string                   `json:"currencyCode"`
	Count        int64                    `json:"count"`
	Volume       int64                    `json:"volume"`
}

// StatsResponse is the journal-wide summary. Volumes are in minor units.
type StatsResponse struct {
	TotalCount      int64                 `json:"totalCount"`
	CompletedVolume map[string]int64      `json:"completedVolume"`
	Breakdown       []StatsBucketResponse `json:"breakdown"`
}

// ToStatsResponse converts domain.TransactionStats to StatsResponse DTO
func ToStatsResponse(s *domain.TransactionStats) StatsResponse {
	resp := StatsResponse{
		TotalCount:      s.TotalCount,
		CompletedVolume: s.CompletedVolume,
		Breakdown:       make([]StatsBucketResponse, 0, len(s.Breakdown)),
	}
	for _, b := range s.Breakdown {
		resp.Breakdown = append(resp.Breakdown, StatsBucketResponse(b))
	}
	return resp
}
