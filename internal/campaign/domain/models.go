package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type CampaignStatus string

const (
	CampaignStatusDraft   CampaignStatus = "DRAFT"
	CampaignStatusSending CampaignStatus = "SENDING"
	CampaignStatusSent    CampaignStatus = "SENT"
)

// Campaign is a marketing email sent once to every opted-in client of a studio.
type Campaign struct {
	ID             snowflake.ID   `gorm:"primaryKey" json:"id"`
	StudioID       snowflake.ID   `gorm:"not null;index" json:"studio_id"`
	Name           string         `gorm:"type:text;not null" json:"name"`
	Subject        string         `gorm:"type:text;not null" json:"subject"`
	HTMLBody       string         `gorm:"type:text;not null" json:"html_body"`
	Status         CampaignStatus `gorm:"type:text;not null;default:'DRAFT'" json:"status"`
	RecipientCount int            `gorm:"not null;default:0" json:"recipient_count"`
	SentCount      int            `gorm:"not null;default:0" json:"sent_count"`
	FailedCount    int            `gorm:"not null;default:0" json:"failed_count"`
	SentAt         *time.Time     `json:"sent_at,omitempty"`
	CreatedAt      time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Campaign) TableName() string { return "campaigns" }
