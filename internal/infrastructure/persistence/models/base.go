package models

import (
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
)

// AggregateModel holds the columns every ledger aggregate table shares. The
// version column backs the "WHERE version = ?" compare-and-set updates.
// Company-scoped models declare CompanyID themselves so it can lead their
// composite unique indexes.
type AggregateModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
	Version   int       `gorm:"not null;default:1"`
}

// fromRoot copies the aggregate header and returns the owning company
func (m *AggregateModel) fromRoot(root shared.CompanyAggregateRoot) uuid.UUID {
	m.ID = root.ID
	m.CreatedAt = root.CreatedAt
	m.UpdatedAt = root.UpdatedAt
	m.Version = root.Version
	return root.CompanyID
}

// toRoot rebuilds the aggregate header. Pending domain events are never
// stored, so the result carries none.
func (m *AggregateModel) toRoot(companyID uuid.UUID) shared.CompanyAggregateRoot {
	return shared.CompanyAggregateRoot{
		BaseAggregateRoot: shared.BaseAggregateRoot{
			BaseEntity: shared.BaseEntity{ID: m.ID, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
			Version:    m.Version,
		},
		CompanyID: companyID,
	}
}
