package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type ClaimType string

const (
	ClaimTravel            ClaimType = "travel"
	ClaimBusinessPromotion ClaimType = "business_promotion"
	ClaimConveyance        ClaimType = "conveyance"
	ClaimMobileBill        ClaimType = "mobile_bill"
	ClaimRelocation        ClaimType = "relocation"
	ClaimOther             ClaimType = "other"
)

func (t ClaimType) Valid() bool {
	switch t {
	case ClaimTravel, ClaimBusinessPromotion, ClaimConveyance, ClaimMobileBill, ClaimRelocation, ClaimOther:
		return true
	}
	return false
}

type ClaimStatus string

const (
	StatusDraft      ClaimStatus = "draft"
	StatusSubmitted  ClaimStatus = "submitted"
	StatusApproved   ClaimStatus = "approved"
	StatusRejected   ClaimStatus = "rejected"
	StatusProcessing ClaimStatus = "processing"
	StatusPaid       ClaimStatus = "paid"
)

func (s ClaimStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusSubmitted, StatusApproved, StatusRejected, StatusProcessing, StatusPaid:
		return true
	}
	return false
}

// Claim — заявка на возмещение расходов.
// CurrentApproverID заполнен только пока заявка в submitted и ждёт решения.
type Claim struct {
	ID                string              `gorm:"primaryKey;size:36" json:"id"`
	UserID            string              `gorm:"index;size:36;not null" json:"userId"`
	Type              ClaimType           `gorm:"column:claim_type;size:32;not null" json:"claimType"`
	Status            ClaimStatus         `gorm:"index;size:16;not null" json:"status"`
	Title             string              `gorm:"size:255" json:"title"`
	TotalAmount       decimal.Decimal     `gorm:"type:decimal(14,2);not null" json:"totalAmount"`
	ApprovedAmount    decimal.NullDecimal `gorm:"type:decimal(14,2)" json:"approvedAmount"`
	Details           datatypes.JSON      `json:"details"`
	CurrentApproverID *string             `gorm:"index;size:36" json:"currentApproverId"`
	Notes             *string             `gorm:"type:text" json:"notes"`
	CreatedAt         time.Time           `json:"createdAt"`
	UpdatedAt         time.Time           `json:"updatedAt"`
	SubmittedAt       *time.Time          `json:"submittedAt"`
	ApprovedAt        *time.Time          `json:"approvedAt"`
	RejectedAt        *time.Time          `json:"rejectedAt"`
	PaidAt            *time.Time          `json:"paidAt"`
}

// TypedDetails разбирает сохранённый JSON в вариант по типу заявки.
func (c *Claim) TypedDetails() (Details, error) {
	return ParseDetails(c.Type, c.Details)
}
