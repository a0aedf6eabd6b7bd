// Package query turns list parameters from the query string into store
// pages and filters, and wraps results in the paginated envelope.
package query

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/FacundoTogliefoso/transaction-log/internal/store"
)

// ErrInvalidParam wraps every rejected query parameter.
var ErrInvalidParam = errors.New("invalid query parameter")

const dateLayout = "2006-01-02"

// Limits bounds the page size a caller may ask for.
type Limits struct {
	DefaultSize int
	MaxSize     int
}

type Params struct {
	PageNumber int
	PageSize   int
	OrderBy    string
	SearchBy   string
	Search     string
	FromDate   string
	ToDate     string
}

// ParseParams reads page_number, page_size, order_by, search_by, search,
// from_date and to_date. page_number defaults to 1 and may be 0, which is
// read as the first page. page_size defaults to lim.DefaultSize and is
// capped at lim.MaxSize.
func ParseParams(v url.Values, lim Limits) (Params, error) {
	p := Params{
		PageNumber: 1,
		PageSize:   lim.DefaultSize,
		OrderBy:    strings.TrimSpace(v.Get("order_by")),
		SearchBy:   strings.TrimSpace(v.Get("search_by")),
		Search:     v.Get("search"),
		FromDate:   strings.TrimSpace(v.Get("from_date")),
		ToDate:     strings.TrimSpace(v.Get("to_date")),
	}

	if s := v.Get("page_number"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return p, fmt.Errorf("%w: page_number %q", ErrInvalidParam, s)
		}
		p.PageNumber = n
	}
	if s := v.Get("page_size"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			return p, fmt.Errorf("%w: page_size %q", ErrInvalidParam, s)
		}
		p.PageSize = n
	}
	if p.PageSize <= 0 {
		p.PageSize = 10
	}
	if lim.MaxSize > 0 && p.PageSize > lim.MaxSize {
		p.PageSize = lim.MaxSize
	}
	return p, nil
}

// Offset is the index of the first row of a page. Pages 0 and 1 both
// start at row 0.
func Offset(pageNumber, pageSize int) int {
	if pageNumber == 0 {
		return 0
	}
	return (pageNumber - 1) * pageSize
}

// Page resolves p into the store's offset, limit and ORDER BY.
func (p Params) Page() store.Page {
	return store.Page{
		Offset: Offset(p.PageNumber, p.PageSize),
		Limit:  p.PageSize,
		Order:  OrderClause(p.OrderBy),
	}
}

var sortColumns = map[string]string{
	"created":     "created",
	"description": "description",
	"amount":      "amount",
	"date":        "timestamp_date",
	"type":        "type",
	"owner":       "assigned_id",
	"id":          "id",
}

// OrderClause maps a sort key such as "amount_desc" to its ORDER BY
// clause. Keys outside the allow-list give "", the store default.
func OrderClause(key string) string {
	i := strings.LastIndexByte(key, '_')
	if i <= 0 {
		return ""
	}
	col, ok := sortColumns[key[:i]]
	if !ok {
		return ""
	}
	switch key[i+1:] {
	case "asc":
		return col + " ASC"
	case "desc":
		return col + " DESC"
	}
	return ""
}

// Filter builds the ledger filter for p. A non-nil owner limits the result
// to that owner whatever else was asked for.
func (p Params) Filter(owner *string) (store.Filter, error) {
	f := store.Filter{Owner: owner}

	switch p.SearchBy {
	case "date":
		if p.FromDate == "" || p.ToDate == "" {
			return f, fmt.Errorf("%w: search_by=date needs from_date and to_date", ErrInvalidParam)
		}
		from, err := time.Parse(dateLayout, p.FromDate)
		if err != nil {
			return f, fmt.Errorf("%w: from_date %q", ErrInvalidParam, p.FromDate)
		}
		to, err := time.Parse(dateLayout, p.ToDate)
		if err != nil {
			return f, fmt.Errorf("%w: to_date %q", ErrInvalidParam, p.ToDate)
		}
		f.HasRange = true
		f.From = from.Unix()
		f.To = to.Unix()
	case "type", "description":
		if p.Search != "" {
			f.Column = p.SearchBy
			f.Term = p.Search
		}
	}
	return f, nil
}

// Envelope is the uniform wrapper of every paginated listing. Next and
// Previous are page numbers, or null at either end.
type Envelope[T any] struct {
	Data       []T   `json:"data"`
	Next       *int  `json:"next"`
	Previous   *int  `json:"previous"`
	TotalItems int64 `json:"total_items"`
	TotalPages int64 `json:"total_pages"`
}

// NewEnvelope wraps one page of data. TotalPages is total/size rounded
// half to even, not a ceiling, so a short last page may not be counted.
func NewEnvelope[T any](data []T, total int64, pageNumber, pageSize int) Envelope[T] {
	if data == nil {
		data = []T{}
	}
	env := Envelope[T]{Data: data, TotalItems: total}
	if pageSize > 0 {
		env.TotalPages = int64(math.RoundToEven(float64(total) / float64(pageSize)))
	}

	end := Offset(pageNumber, pageSize) + pageSize
	if int64(end) < total {
		next := pageNumber + 1
		env.Next = &next
	}
	if pageNumber > 1 {
		prev := pageNumber - 1
		env.Previous = &prev
	}
	return env
}
