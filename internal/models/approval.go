package models

import (
	"fmt"
	"strings"
	"time"
)

// ApprovalLevel — порядковый уровень согласования.
type ApprovalLevel int

const (
	LevelManager  ApprovalLevel = 1
	LevelFinance  ApprovalLevel = 2
	LevelDirector ApprovalLevel = 3
	LevelCXO      ApprovalLevel = 4
)

func (l ApprovalLevel) Valid() bool { return l >= LevelManager && l <= LevelCXO }

func (l ApprovalLevel) String() string {
	switch l {
	case LevelManager:
		return "manager"
	case LevelFinance:
		return "finance"
	case LevelDirector:
		return "director"
	case LevelCXO:
		return "cxo"
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// ParseLevel принимает имя уровня ("finance") или его номер ("2").
func ParseLevel(s string) (ApprovalLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "manager", "1":
		return LevelManager, nil
	case "finance", "2":
		return LevelFinance, nil
	case "director", "3":
		return LevelDirector, nil
	case "cxo", "4":
		return LevelCXO, nil
	}
	return 0, fmt.Errorf("unknown approval level %q", s)
}

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// Approval — решение одного согласующего на одном уровне.
type Approval struct {
	ID             string         `gorm:"primaryKey;size:36" json:"id"`
	ClaimID        string         `gorm:"index;size:36;not null" json:"claimId"`
	ApproverID     string         `gorm:"index;size:36;not null" json:"approverId"`
	Level          ApprovalLevel  `gorm:"column:approval_level;not null" json:"approvalLevel"`
	Status         ApprovalStatus `gorm:"index;size:16;not null" json:"status"`
	Notes          *string        `gorm:"type:text" json:"notes"`
	NextApproverID *string        `gorm:"size:36" json:"nextApproverId"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
	DecidedAt      *time.Time     `json:"decidedAt"`
}
