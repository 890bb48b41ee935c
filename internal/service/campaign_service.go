// internal/service/campaign_service.go
package service

import (
	"context"
	"time"

	"github.com/unclebandit/wa-dispatch/internal/model"
	"github.com/unclebandit/wa-dispatch/internal/repository"
)

type CampaignStatsSource interface {
	StatsByCampaign(ctx context.Context, campaignID int64) (map[string]int, error)
}

type CampaignService struct {
	CampaignRepo repository.CampaignRepositoryInterface
	SendLogs     CampaignStatsSource
}

type CampaignDetails struct {
	ID           int64          `json:"id"`
	BusinessID   int64          `json:"business_id"`
	Name         string         `json:"name"`
	Provider     model.Provider `json:"provider"`
	TemplateName string         `json:"template_name"`
	LanguageCode string         `json:"language_code"`
	Status       string         `json:"status"`
	ScheduledAt  *time.Time     `json:"scheduled_at,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    *time.Time     `json:"updated_at"`
	Stats        map[string]int `json:"stats"`
}

// GetCampaignDetailsWithStats returns the campaign plus send counts keyed by
// the latest known state of each send (delivery status when present).
func (s *CampaignService) GetCampaignDetailsWithStats(ctx context.Context, campaignID int64) (*CampaignDetails, error) {
	campaign, err := s.CampaignRepo.GetByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	rows, err := s.SendLogs.StatsByCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	stats := map[string]int{
		"total":     0,
		"sent":      0,
		"failed":    0,
		"delivered": 0,
		"read":      0,
	}
	for status, count := range rows {
		stats[status] = count
		stats["total"] += count
	}

	return &CampaignDetails{
		ID:           campaign.ID,
		BusinessID:   campaign.BusinessID,
		Name:         campaign.Name,
		Provider:     campaign.Provider,
		TemplateName: campaign.TemplateName,
		LanguageCode: campaign.LanguageCode,
		Status:       campaign.Status,
		ScheduledAt:  campaign.ScheduledAt,
		CreatedAt:    campaign.CreatedAt,
		UpdatedAt:    campaign.UpdatedAt,
		Stats:        stats,
	}, nil
}
