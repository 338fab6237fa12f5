package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSortSpec_Resolve(t *testing.T) {
	tests := []struct {
		name      string
		spec      SortSpec
		orderBy   string
		orderDir  string
		wantField string
		wantDesc  bool
	}{
		{"defaults for accounts", AccountSort, "", "", "code", false},
		{"defaults for transactions", TransactionSort, "", "", "accounting_date", true},
		{"allowed account field", AccountSort, "name", "desc", "name", true},
		{"allowed transaction field", TransactionSort, "posted_at", "asc", "posted_at", false},
		{"unknown field falls back", TransactionSort, "memo", "", "accounting_date", true},
		{"injection falls back", AccountSort, "code; DROP TABLE accounts;--", "", "code", false},
		{"injection in direction falls back", AccountSort, "name", "ASC; DROP TABLE accounts;--", "name", false},
		{"fields are case sensitive", AccountSort, "CODE", "", "code", false},
		{"whitespace is trimmed", AccountSort, "  balance ", "  desc ", "balance", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			field, desc := tt.spec.Resolve(tt.orderBy, tt.orderDir)
			assert.Equal(t, tt.wantField, field)
			assert.Equal(t, tt.wantDesc, desc)
		})
	}
}

func TestSortSpec_Clauses(t *testing.T) {
	assert.Equal(t, []string{"accounting_date DESC", "number DESC"}, TransactionSort.Clauses("", ""))
	assert.Equal(t, []string{"number ASC"}, TransactionSort.Clauses("number", "asc"))
	assert.Equal(t, []string{"balance DESC", "code DESC"}, AccountSort.Clauses("balance", "desc"))
	assert.Equal(t, []string{"code ASC"}, AccountSort.Clauses("", ""))
}
