// Package pagination normalises page/pageSize pairs and builds page
// envelopes for offset-paginated listings.
package pagination

const (
	// DefaultPageSize is used when the caller configures none.
	DefaultPageSize = 20
	// DefaultMaxPageSize caps pageSize to prevent unbounded queries.
	DefaultMaxPageSize = 100
)

// Options control how Normalize treats out-of-range input.
type Options struct {
	DefaultPageSize int
	MaxPageSize     int
}

func (o Options) withDefaults() Options {
	if o.DefaultPageSize <= 0 {
		o.DefaultPageSize = DefaultPageSize
	}
	if o.MaxPageSize <= 0 {
		o.MaxPageSize = DefaultMaxPageSize
	}
	if o.DefaultPageSize > o.MaxPageSize {
		o.DefaultPageSize = o.MaxPageSize
	}
	return o
}

// Page is the envelope returned by paginated listings.
type Page[T any] struct {
	Items      []T
	Page       int
	PageSize   int
	TotalItems int
	TotalPages int
}

// Normalize maps page < 1 to 1 and pageSize < 1 to the default, capping
// pageSize at the maximum.
func Normalize(page, pageSize int, opts Options) (int, int) {
	opts = opts.withDefaults()
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = opts.DefaultPageSize
	}
	if pageSize > opts.MaxPageSize {
		pageSize = opts.MaxPageSize
	}
	return page, pageSize
}

// TotalPages returns how many pages of pageSize hold total items.
func TotalPages(total, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}

// Clamp returns page limited to the last page holding data. An empty
// result set always yields page 1.
func Clamp(page, pageSize, total int) int {
	pages := TotalPages(total, pageSize)
	if pages == 0 || page < 1 {
		return 1
	}
	return min(page, pages)
}

// Offset is the number of rows preceding page.
func Offset(page, pageSize int) int {
	if page < 1 {
		return 0
	}
	return (page - 1) * pageSize
}

// New builds the envelope for items found on page of a total-sized set.
func New[T any](items []T, page, pageSize, total int) Page[T] {
	if total <= 0 {
		return Page[T]{Items: []T{}, Page: 1, PageSize: pageSize}
	}
	if items == nil {
		items = []T{}
	}
	return Page[T]{
		Items:      items,
		Page:       page,
		PageSize:   pageSize,
		TotalItems: total,
		TotalPages: TotalPages(total, pageSize),
	}
}
