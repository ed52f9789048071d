package client

import (
	"context"
	"fmt"
	"iter"
	"net/url"
	"strconv"

	"github.com/oxidecomputer/console-sub002/internal/domain"
)

// PageOptions selects one page of a list call.
type PageOptions struct {
	Limit     int
	PageToken string
}

func (o PageOptions) apply(q url.Values) url.Values {
	if q == nil {
		q = url.Values{}
	}
	if o.Limit > 0 {
		q.Set("limit", strconv.Itoa(o.Limit))
	}
	if o.PageToken != "" {
		q.Set("page_token", o.PageToken)
	}
	return q
}

// ListPage fetches one page of list operation op.
func ListPage[T any](ctx context.Context, c *Client, op string, p Params, opts PageOptions) (domain.ResultsPage[T], error) {
	p.Query = opts.apply(cloneValues(p.Query))
	var page domain.ResultsPage[T]
	err := c.Do(ctx, op, p, nil, &page)
	return page, err
}

// Pages walks list operation op page by page, limit items at a time (the
// server default when limit is 0). Iteration stops after the first error.
func Pages[T any](ctx context.Context, c *Client, op string, p Params, limit int) iter.Seq2[domain.ResultsPage[T], error] {
	return func(yield func(domain.ResultsPage[T], error) bool) {
		seen := map[string]bool{}
		opts := PageOptions{Limit: limit}
		for {
			page, err := ListPage[T](ctx, c, op, p, opts)
			if err != nil {
				yield(page, err)
				return
			}
			if !yield(page, nil) || page.NextPage == nil {
				return
			}
			next := *page.NextPage
			if seen[next] {
				yield(domain.ResultsPage[T]{}, fmt.Errorf("%s: page token %q repeated", op, next))
				return
			}
			seen[next] = true
			opts.PageToken = next
		}
	}
}

// Items walks every item of list operation op.
func Items[T any](ctx context.Context, c *Client, op string, p Params, limit int) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for page, err := range Pages[T](ctx, c, op, p, limit) {
			if err != nil {
				var zero T
				yield(zero, err)
				return
			}
			for _, item := range page.Items {
				if !yield(item, nil) {
					return
				}
			}
		}
	}
}

// ListAll collects every item of list operation op.
func ListAll[T any](ctx context.Context, c *Client, op string, p Params) ([]T, error) {
	var out []T
	for item, err := range Items[T](ctx, c, op, p, 0) {
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for k, vals := range v {
		out[k] = append([]string(nil), vals...)
	}
	return out
}
