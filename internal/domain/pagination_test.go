package domain

import (
	"fmt"
	"testing"
)

type rec struct{ id string }

func (r rec) RecordID() string { return r.id }

func makeRecs(n int) []rec {
	out := make([]rec, n)
	for i := range out {
		out[i] = rec{id: fmt.Sprintf("id-%03d", i)}
	}
	return out
}

func TestPaginate_Completeness(t *testing.T) {
	for n := 0; n <= 12; n++ {
		for limit := 1; limit <= 13; limit++ {
			items := makeRecs(n)
			var got []rec
			token := ""
			for pages := 0; ; pages++ {
				if pages > n+1 {
					t.Fatalf("n=%d limit=%d: pagination did not terminate", n, limit)
				}
				page := Paginate(items, PageParams{Limit: limit, PageToken: token})
				got = append(got, page.Items...)
				if page.NextPage == nil {
					break
				}
				token = *page.NextPage
			}
			if len(got) != n {
				t.Fatalf("n=%d limit=%d: got %d items", n, limit, len(got))
			}
			for i := range got {
				if got[i] != items[i] {
					t.Fatalf("n=%d limit=%d: item %d = %v, want %v", n, limit, i, got[i], items[i])
				}
			}
		}
	}
}

func TestPaginate_StartsAfterToken(t *testing.T) {
	items := makeRecs(10)
	for i := range items {
		page := Paginate(items, PageParams{Limit: 3, PageToken: items[i].id})
		if i == len(items)-1 {
			if len(page.Items) != 0 || page.NextPage != nil {
				t.Fatalf("token of last record: got %d items, next %v", len(page.Items), page.NextPage)
			}
			continue
		}
		if page.Items[0] != items[i+1] {
			t.Fatalf("token %s: first item %v, want %v", items[i].id, page.Items[0], items[i+1])
		}
	}
}

func TestPaginate_Defaults(t *testing.T) {
	items := makeRecs(150)

	page := Paginate(items, PageParams{})
	if len(page.Items) != DefaultPageLimit {
		t.Fatalf("expected %d items, got %d", DefaultPageLimit, len(page.Items))
	}
	if page.NextPage == nil || *page.NextPage != items[DefaultPageLimit-1].id {
		t.Fatalf("unexpected next page %v", page.NextPage)
	}

	unknown := Paginate(items, PageParams{Limit: 2, PageToken: "nope"})
	if unknown.Items[0] != items[0] {
		t.Fatalf("unknown token should start at the beginning, got %v", unknown.Items[0])
	}
}

func TestPaginate_ExactFit(t *testing.T) {
	items := makeRecs(4)
	page := Paginate(items, PageParams{Limit: 4})
	if len(page.Items) != 4 {
		t.Fatalf("expected 4 items, got %d", len(page.Items))
	}
	if page.NextPage != nil {
		t.Fatalf("expected no next page, got %q", *page.NextPage)
	}
}

func TestPaginate_DoesNotAliasInput(t *testing.T) {
	items := makeRecs(3)
	page := Paginate(items, PageParams{Limit: 3})
	page.Items[0] = rec{id: "changed"}
	if items[0].id != "id-000" {
		t.Fatalf("page shares backing array with input")
	}
}

func TestMapPage(t *testing.T) {
	next := "id-001"
	in := ResultsPage[rec]{Items: makeRecs(2), NextPage: &next}
	out := MapPage(in, func(r rec) string { return r.id })
	if len(out.Items) != 2 || out.Items[1] != "id-001" {
		t.Fatalf("unexpected items %v", out.Items)
	}
	if out.NextPage != in.NextPage {
		t.Fatalf("cursor not preserved")
	}
}
