package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Studio is the tenant. Every invoice, payment and booking belongs to one.
type Studio struct {
	ID             snowflake.ID    `gorm:"primaryKey" json:"id"`
	Name           string          `gorm:"type:text;not null" json:"name"`
	Email          string          `gorm:"type:text" json:"email"`
	Currency       string          `gorm:"type:text;not null;default:'USD'" json:"currency"`
	DefaultTaxRate decimal.Decimal `gorm:"type:numeric(5,2);not null;default:0" json:"default_tax_rate"`
	// NextInvoiceNumber is advanced under a row lock when an invoice is created.
	NextInvoiceNumber int64     `gorm:"not null;default:1" json:"-"`
	CreatedAt         time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt         time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Studio) TableName() string { return "studios" }

type Client struct {
	ID               snowflake.ID    `gorm:"primaryKey" json:"id"`
	StudioID         snowflake.ID    `gorm:"not null;index" json:"studio_id"`
	Name             string          `gorm:"type:text;not null" json:"name"`
	Email            string          `gorm:"type:text" json:"email"`
	EmailOptIn       bool            `gorm:"not null" json:"email_opt_in"`
	StripeCustomerID *string         `gorm:"type:text" json:"stripe_customer_id,omitempty"`
	LifetimeSpend    decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"lifetime_spend"`
	CreatedAt        time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Client) TableName() string { return "clients" }
