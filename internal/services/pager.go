package services

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/desertthunder/spm/internal/models"
	"github.com/desertthunder/spm/internal/shared"
)

const (
	// DefaultPageSize is the limit sent with every page request.
	DefaultPageSize = 50
	// DefaultMaxPages bounds a single [FetchAll] walk.
	DefaultMaxPages = 1000
)

// PageFunc fetches the page at an absolute URL.
type PageFunc[T any] func(ctx context.Context, pageURL string) (*models.Page[T], error)

// PagerOpts tunes [FetchAll]. Zero values select the defaults.
type PagerOpts struct {
	PageSize int
	MaxPages int
}

func (o PagerOpts) withDefaults() PagerOpts {
	if o.PageSize <= 0 {
		o.PageSize = DefaultPageSize
	}
	if o.MaxPages <= 0 {
		o.MaxPages = DefaultMaxPages
	}
	return o
}

// FetchAll walks a cursor-paginated collection from seedURL, following `next` until it is null,
// and returns a single page holding every item in fetch order.
//
// Pages are fetched one at a time. Every page URL has its `limit` query parameter set to the page
// size and its query sorted. The walk stops with [shared.ErrPaginationLimit] after MaxPages pages
// and with [shared.ErrPaginationLoop] when a cursor repeats. Cancel ctx to bound elapsed time.
func FetchAll[T any](ctx context.Context, fetch PageFunc[T], seedURL string, opts PagerOpts) (*models.Page[T], error) {
	if seedURL == "" {
		return nil, fmt.Errorf("%w: empty seed URL", shared.ErrInvalidArgument)
	}
	opts = opts.withDefaults()

	all := &models.Page[T]{Items: []T{}, Limit: opts.PageSize}
	visited := make(map[string]bool)
	next := &seedURL

	for pages := 0; next != nil; pages++ {
		if pages >= opts.MaxPages {
			return nil, fmt.Errorf("%w: stopped after %d pages", shared.ErrPaginationLimit, opts.MaxPages)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		pageURL, err := withLimit(*next, opts.PageSize)
		if err != nil {
			return nil, err
		}
		if visited[pageURL] {
			return nil, fmt.Errorf("%w: %s", shared.ErrPaginationLoop, pageURL)
		}
		visited[pageURL] = true

		page, err := fetch(ctx, pageURL)
		if err != nil {
			return nil, err
		}

		if pages == 0 {
			all.Href = page.Href
		}
		all.Items = append(all.Items, page.Items...)
		all.Offset = page.Offset
		all.Total = page.Total
		next = page.Next
	}

	return all, nil
}

// withLimit sets the limit parameter on rawURL and re-encodes its query in key order.
func withLimit(rawURL string, limit int) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: page URL %q: %v", shared.ErrInvalidArgument, rawURL, err)
	}
	q := u.Query()
	q.Set("limit", strconv.Itoa(limit))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
