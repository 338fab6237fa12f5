package shared

const (
	// DefaultPageSize applies when a listing does not ask for one
	DefaultPageSize = 20
	// MaxPageSize caps a single page so a listing cannot load a whole ledger
	MaxPageSize = 500
)

// Filter holds the paging, ordering and free-text search shared by ledger
// listings. Repositories whitelist OrderBy before it reaches SQL.
type Filter struct {
	Page     int
	PageSize int
	OrderBy  string
	OrderDir string
	Search   string
}

// DefaultFilter returns the first page in creation order, newest first
func DefaultFilter() Filter {
	return Filter{Page: 1, PageSize: DefaultPageSize, OrderBy: "created_at", OrderDir: "desc"}
}

// Offset is the number of rows skipped before the current page
func (f Filter) Offset() int {
	if f.Page <= 1 {
		return 0
	}
	return (f.Page - 1) * f.Limit()
}

// Limit is the page size clamped to [1, MaxPageSize]
func (f Filter) Limit() int {
	switch {
	case f.PageSize < 1:
		return DefaultPageSize
	case f.PageSize > MaxPageSize:
		return MaxPageSize
	default:
		return f.PageSize
	}
}

// Paginated is one page of a listing together with the unpaged total
type Paginated[T any] struct {
	Items      []T   `json:"items"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

// NewPaginated wraps items as the page of f
func NewPaginated[T any](items []T, total int64, f Filter) Paginated[T] {
	size := f.Limit()
	page := max(f.Page, 1)
	if items == nil {
		items = []T{}
	}
	return Paginated[T]{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   size,
		TotalPages: int((total + int64(size) - 1) / int64(size)),
	}
}
