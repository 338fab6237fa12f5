// Package models contains the GORM persistence models of the ledger tables.
// They are kept apart from the domain types so the domain layer stays free of
// ORM tags; each model converts with ToDomain and FromDomain.
//
// Amounts are stored as decimal(18,4), the maximum scale the ledger accepts,
// and as exact decimal text on sqlite (see Amount).
package models
