package domain

// DefaultPageLimit is the page size used when a list request carries no limit.
const DefaultPageLimit = 100

// Identified is implemented by every record that can appear in a paginated list.
type Identified interface {
	RecordID() string
}

// PageParams selects one page of a collection.
type PageParams struct {
	Limit     int
	PageToken string
}

// ResultsPage is one page of a list response.
type ResultsPage[T any] struct {
	Items    []T     `json:"items"`
	NextPage *string `json:"next_page"`
}

// Paginate returns the page of items that starts immediately after the record
// whose identifier equals p.PageToken. An empty or unknown token starts at the
// beginning. NextPage is the identifier of the last returned record, or nil
// when the page reaches the end of items.
func Paginate[T Identified](items []T, p PageParams) ResultsPage[T] {
	limit := p.Limit
	if limit <= 0 {
		limit = DefaultPageLimit
	}

	start := 0
	if p.PageToken != "" {
		for i, item := range items {
			if item.RecordID() == p.PageToken {
				start = i + 1
				break
			}
		}
	}

	end := start + limit
	if end > len(items) {
		end = len(items)
	}

	page := make([]T, end-start)
	copy(page, items[start:end])

	var next *string
	if end < len(items) && end > start {
		id := items[end-1].RecordID()
		next = &id
	}
	return ResultsPage[T]{Items: page, NextPage: next}
}

// MapPage converts the items of a page, keeping its cursor.
func MapPage[T, U any](p ResultsPage[T], f func(T) U) ResultsPage[U] {
	out := ResultsPage[U]{Items: make([]U, len(p.Items)), NextPage: p.NextPage}
	for i, item := range p.Items {
		out.Items[i] = f(item)
	}
	return out
}
