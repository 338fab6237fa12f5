package persistence

import (
	"slices"
	"strings"
)

// SortSpec whitelists the columns a listing may be ordered by. OrderBy
// values from callers never reach SQL unless they are in Fields.
type SortSpec struct {
	Fields     []string
	DefaultBy  string
	DefaultDir string // ASC or DESC
	// TieBreak orders rows that compare equal on the chosen column
	TieBreak string
}

// AccountSort orders the chart of accounts, by code unless asked otherwise
var AccountSort = SortSpec{
	Fields:     []string{"code", "name", "type", "balance", "created_at", "updated_at"},
	DefaultBy:  "code",
	DefaultDir: "ASC",
	TieBreak:   "code",
}

// TransactionSort lists transactions newest accounting date first. Numbers
// are unique per company so they make the order total.
var TransactionSort = SortSpec{
	Fields:     []string{"number", "accounting_date", "status", "type", "posted_at", "created_at"},
	DefaultBy:  "accounting_date",
	DefaultDir: "DESC",
	TieBreak:   "number",
}

// Resolve returns the whitelisted column and direction for a request,
// falling back to the defaults for anything unknown
func (s SortSpec) Resolve(orderBy, orderDir string) (field string, desc bool) {
	field = strings.TrimSpace(orderBy)
	if !slices.Contains(s.Fields, field) {
		field = s.DefaultBy
	}
	switch strings.ToUpper(strings.TrimSpace(orderDir)) {
	case "ASC":
		return field, false
	case "DESC":
		return field, true
	default:
		return field, strings.EqualFold(s.DefaultDir, "DESC")
	}
}

// Clauses renders Resolve as ORDER BY terms, the tie-break in the same
// direction
func (s SortSpec) Clauses(orderBy, orderDir string) []string {
	field, desc := s.Resolve(orderBy, orderDir)
	dir := " ASC"
	if desc {
		dir = " DESC"
	}
	clauses := []string{field + dir}
	if s.TieBreak != "" && s.TieBreak != field {
		clauses = append(clauses, s.TieBreak+dir)
	}
	return clauses
}
