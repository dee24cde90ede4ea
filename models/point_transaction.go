package models

import (
	"gorm.io/datatypes"
)

type TransactionType string

const (
	TransactionEarned      TransactionType = "earned"
	TransactionSpent       TransactionType = "spent"
	TransactionTransferIn  TransactionType = "transfer_in"
	TransactionTransferOut TransactionType = "transfer_out"
)

// PointTransaction is an immutable ledger row. Points is signed: negative rows debit the balance.
type PointTransaction struct {
	Base
	UserID          string          `gorm:"size:36;not null;index" json:"user_id"`
	Points          int64           `gorm:"not null" json:"points"`
	BalanceAfter    int64           `gorm:"not null" json:"balance_after"`
	TransactionType TransactionType `gorm:"size:20;not null;index" json:"transaction_type"`
	Source          string          `gorm:"size:50;not null;index" json:"source"`
	Reason          string          `json:"reason"`
	RuleType        string          `gorm:"size:50" json:"rule_type,omitempty"`
	Multiplier      float64         `gorm:"not null;default:1" json:"multiplier"`
	RelatedUserID   *string         `gorm:"size:36" json:"related_user_id,omitempty"`
	Metadata        datatypes.JSON  `json:"metadata,omitempty"`
}
