package models

import (
	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/google/uuid"
)

// AccountModel is the persistence model for the Account aggregate root
type AccountModel struct {
	AggregateModel
	CompanyID   uuid.UUID          `gorm:"type:uuid;not null;uniqueIndex:idx_accounts_company_code,priority:1"`
	Code        string             `gorm:"type:varchar(32);not null;uniqueIndex:idx_accounts_company_code,priority:2"`
	Name        string             `gorm:"type:varchar(200);not null"`
	Type        ledger.AccountType `gorm:"type:varchar(20);not null;index"`
	ParentID    *uuid.UUID         `gorm:"type:uuid;index"`
	Description string             `gorm:"type:text"`
	Balance     Amount             `gorm:"not null;default:0"`
	IsActive    bool               `gorm:"not null;default:true"`
}

// TableName returns the table name for GORM
func (AccountModel) TableName() string {
	return "accounts"
}

// ToDomain converts the persistence model to a domain Account
func (m *AccountModel) ToDomain() *ledger.Account {
	return &ledger.Account{
		CompanyAggregateRoot: m.toRoot(m.CompanyID),
		Code:                 m.Code,
		Name:                 m.Name,
		Type:                 m.Type,
		ParentID:             m.ParentID,
		Description:          m.Description,
		Balance:              m.Balance.Decimal,
		IsActive:             m.IsActive,
	}
}

// FromDomain populates the persistence model from a domain Account
func (m *AccountModel) FromDomain(a *ledger.Account) {
	m.CompanyID = m.fromRoot(a.CompanyAggregateRoot)
	m.Code = a.Code
	m.Name = a.Name
	m.Type = a.Type
	m.ParentID = a.ParentID
	m.Description = a.Description
	m.Balance = NewAmount(a.Balance)
	m.IsActive = a.IsActive
}

// AccountModelFromDomain creates a new persistence model from a domain Account
func AccountModelFromDomain(a *ledger.Account) *AccountModel {
	m := &AccountModel{}
	m.FromDomain(a)
	return m
}
