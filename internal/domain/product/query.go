package product

import (
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// AllSentinel disables the category and subcategory filters.
const AllSentinel = "All"

// DefaultLimit is the page size used when none is requested.
const DefaultLimit = 20

// SortField is a product attribute the catalog can be ordered by.
type SortField string

const (
	SortByName      SortField = "name"
	SortByPrice     SortField = "price"
	SortByRating    SortField = "rating"
	SortByCreatedAt SortField = "createdAt"
)

// Filters holds raw, unvalidated catalog query parameters.
type Filters struct {
	Category    string
	Subcategory string
	Search      string
	MinPrice    string
	MaxPrice    string
	IsNew       string
	IsSale      string
	SortBy      string
	SortOrder   string
	Page        string
	Limit       string
}

// Query is a normalized catalog query. Empty Category or Subcategory means no
// filter; nil price bounds are open.
type Query struct {
	Category    string
	Subcategory string
	Search      string
	MinPrice    *decimal.Decimal
	MaxPrice    *decimal.Decimal
	IsNew       bool
	IsSale      bool
	SortBy      SortField
	Desc        bool
	Page        int
	Limit       int
}

// Normalize converts raw filters into a Query. It never fails: unknown or
// malformed values fall back to their defaults.
func (f Filters) Normalize() Query {
	q := Query{
		Category:    categoryFilter(f.Category),
		Subcategory: categoryFilter(f.Subcategory),
		Search:      strings.TrimSpace(f.Search),
		MinPrice:    priceBound(f.MinPrice),
		MaxPrice:    priceBound(f.MaxPrice),
		IsNew:       f.IsNew == "true",
		IsSale:      f.IsSale == "true",
		SortBy:      SortByName,
		Desc:        f.SortOrder == "desc",
		Page:        positiveInt(f.Page, 1),
		Limit:       positiveInt(f.Limit, DefaultLimit),
	}
	switch s := SortField(f.SortBy); s {
	case SortByPrice, SortByRating, SortByCreatedAt:
		q.SortBy = s
	}
	return q
}

func categoryFilter(v string) string {
	v = strings.TrimSpace(v)
	if v == AllSentinel {
		return ""
	}
	return v
}

func priceBound(v string) *decimal.Decimal {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return nil
	}
	return &d
}

func positiveInt(v string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < 1 {
		return def
	}
	return n
}

// Offset returns the number of matching products preceding the page. It
// saturates at math.MaxInt, which selects an empty page.
func (q Query) Offset() int {
	if q.Page <= 1 || q.Limit < 1 {
		return 0
	}
	if q.Page-1 > math.MaxInt/q.Limit {
		return math.MaxInt
	}
	return (q.Page - 1) * q.Limit
}

// Matches reports whether p satisfies every filter of q.
func (q Query) Matches(p *Product) bool {
	if q.Category != "" && p.Category != q.Category {
		return false
	}
	if q.Subcategory != "" && p.Subcategory != q.Subcategory {
		return false
	}
	if q.IsNew && !p.Flags.IsNew {
		return false
	}
	if q.IsSale && !p.Flags.IsSale {
		return false
	}
	if q.MinPrice != nil && p.Price.LessThan(*q.MinPrice) {
		return false
	}
	if q.MaxPrice != nil && p.Price.GreaterThan(*q.MaxPrice) {
		return false
	}
	if q.Search != "" {
		needle := strings.ToLower(q.Search)
		if !containsFold(p.Name, needle) &&
			!containsFold(p.Description, needle) &&
			!containsFold(p.Category, needle) {
			return false
		}
	}
	return true
}

func containsFold(s, lowerNeedle string) bool {
	return strings.Contains(strings.ToLower(s), lowerNeedle)
}

// Less orders a before b according to q. Ties are broken by ID so that
// pagination is stable.
func (q Query) Less(a, b *Product) bool {
	c := compare(q.SortBy, a, b)
	if c == 0 {
		return a.ID < b.ID
	}
	if q.Desc {
		return c > 0
	}
	return c < 0
}

func compare(field SortField, a, b *Product) int {
	switch field {
	case SortByPrice:
		return a.Price.Cmp(b.Price)
	case SortByRating:
		switch {
		case a.Rating < b.Rating:
			return -1
		case a.Rating > b.Rating:
			return 1
		}
		return 0
	case SortByCreatedAt:
		return a.CreatedAt.Compare(b.CreatedAt)
	default:
		return strings.Compare(a.Name, b.Name)
	}
}

// Pagination describes where a page sits in the full result set.
type Pagination struct {
	Page       int
	Limit      int
	Total      int
	TotalPages int
	HasNext    bool
	HasPrev    bool
}

// NewPagination derives page metadata for total matching items.
func NewPagination(page, limit, total int) Pagination {
	p := Pagination{Page: page, Limit: limit, Total: total}
	if total == 0 || limit < 1 {
		return p
	}
	p.TotalPages = total / limit
	if total%limit != 0 {
		p.TotalPages++
	}
	p.HasNext = page < p.TotalPages
	p.HasPrev = page > 1
	return p
}

// Page is one page of catalog results.
type Page struct {
	Items      []Product
	Pagination Pagination
}
