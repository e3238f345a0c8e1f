package paginate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tidwall/gjson"
)

// Defaults applied when Options fields are zero.
const (
	DefaultPageSize = 50
	DefaultMaxPages = 1000
)

// ErrPageLimit is returned when an endpoint never signals completion within
// Options.MaxPages requests. Callers treat it like any other transport failure.
var ErrPageLimit = errors.New("paginate: page limit exceeded")

// itemKeys are the fields upstream list endpoints use for their result array.
// The agile sprint/board endpoints use "values"; issue listings use "issues".
var itemKeys = []string{"values", "issues"}

// Request identifies one page. Page is a page index, not an item offset.
type Request struct {
	Page     int
	PageSize int
}

// StartAt is the item offset sent upstream for this page.
func (r Request) StartAt() int {
	return r.Page * r.PageSize
}

// Page is one upstream response. The optional fields are nil when the server
// did not send them.
type Page[T any] struct {
	Items []T

	// IsLast is the explicit completion flag. When present it wins over Total.
	IsLast *bool

	// Total is the server-reported item count across all pages.
	Total *int

	// MaxResults is the page size the server actually used. It may differ from
	// the requested size and replaces it for every following request.
	MaxResults *int
}

// done reports whether accumulated items complete the listing.
// A page carrying neither signal is a single-page listing.
func (p *Page[T]) done(accumulated int) bool {
	if p.IsLast != nil {
		return *p.IsLast
	}
	if p.Total != nil {
		return accumulated >= *p.Total
	}
	return true
}

// FetchFunc requests a single page. It must be safe to call again with the
// same Request.
type FetchFunc[T any] func(ctx context.Context, req Request) (*Page[T], error)

// Options tunes a walk. Zero values select the defaults.
type Options struct {
	PageSize int
	MaxPages int
}

func (o Options) withDefaults() Options {
	if o.PageSize <= 0 {
		o.PageSize = DefaultPageSize
	}
	if o.MaxPages <= 0 {
		o.MaxPages = DefaultMaxPages
	}
	return o
}

// All walks fetch from page 0 until the listing reports completion and
// returns every item in upstream order.
//
// Any fetch error aborts the walk; no partial result is returned and nothing
// is retried.
func All[T any](ctx context.Context, fetch FetchFunc[T], opts Options) ([]T, error) {
	opts = opts.withDefaults()
	size := opts.PageSize

	var items []T
	for page := 0; ; page++ {
		if page >= opts.MaxPages {
			return nil, fmt.Errorf("%w: no completion after %d pages", ErrPageLimit, opts.MaxPages)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		p, err := fetch(ctx, Request{Page: page, PageSize: size})
		if err != nil {
			return nil, fmt.Errorf("paginate: page %d: %w", page, err)
		}
		if p == nil {
			return nil, fmt.Errorf("paginate: page %d: empty response", page)
		}

		items = append(items, p.Items...)
		if p.MaxResults != nil && *p.MaxResults > 0 && *p.MaxResults != size {
			slog.Debug("paginate: server changed page size",
				"requested", size, "effective", *p.MaxResults)
			size = *p.MaxResults
		}

		if p.done(len(items)) {
			return items, nil
		}
	}
}

// ParsePage decodes a JSON list response. Items are collected from every
// known result key in document order.
func ParsePage(body []byte) (*Page[gjson.Result], error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.New("paginate: response is not valid JSON")
	}
	doc := gjson.ParseBytes(body)

	p := &Page[gjson.Result]{}
	for _, key := range itemKeys {
		if v := doc.Get(key); v.IsArray() {
			p.Items = append(p.Items, v.Array()...)
		}
	}

	if v := doc.Get("isLast"); v.Type == gjson.True || v.Type == gjson.False {
		last := v.Bool()
		p.IsLast = &last
	}
	if v := doc.Get("total"); v.Type == gjson.Number {
		total := int(v.Int())
		p.Total = &total
	}
	if v := doc.Get("maxResults"); v.Type == gjson.Number {
		max := int(v.Int())
		p.MaxResults = &max
	}
	return p, nil
}
