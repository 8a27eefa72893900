package models

import (
	"math"
	"testing"
)

func TestNewPagingClampsInvalidValues(t *testing.T) {
	cases := []struct {
		page, size int
		want       Paging
	}{
		{0, 0, Paging{Page: 1, PageSize: 8}},
		{-3, -1, Paging{Page: 1, PageSize: 8}},
		{2, 5, Paging{Page: 2, PageSize: 5}},
		{1, 1000, Paging{Page: 1, PageSize: MaxPageSize}},
	}
	for _, c := range cases {
		got := NewPaging(c.page, c.size, DefaultPageSize, MaxPageSize)
		if got != c.want {
			t.Errorf("NewPaging(%d, %d) = %+v, want %+v", c.page, c.size, got, c.want)
		}
	}
}

func TestPaginateLengthInvariant(t *testing.T) {
	for total := 0; total <= 20; total++ {
		all := make([]int, total)
		for i := range all {
			all[i] = i
		}
		for size := 1; size <= 7; size++ {
			for page := 1; page <= 6; page++ {
				res := Paginate(all, NewPaging(page, size, DefaultPageSize, MaxPageSize))
				want := min(size, max(0, total-(page-1)*size))
				if len(res.Items) != want {
					t.Fatalf("total=%d page=%d size=%d: got %d items, want %d", total, page, size, len(res.Items), want)
				}
				if res.TotalCount != total {
					t.Fatalf("total count = %d, want %d", res.TotalCount, total)
				}
				if want > 0 && res.Items[0] != (page-1)*size {
					t.Fatalf("window starts at %d, want %d", res.Items[0], (page-1)*size)
				}
			}
			res := Paginate(all, NewPaging(math.MaxInt64, size, DefaultPageSize, MaxPageSize))
			if len(res.Items) != 0 || res.TotalCount != total {
				t.Fatalf("total=%d size=%d huge page: got %d items, total %d", total, size, len(res.Items), res.TotalCount)
			}
		}
	}
}

func TestOffsetNeverOverflows(t *testing.T) {
	p := NewPaging(math.MaxInt64, 8, DefaultPageSize, MaxPageSize)
	if p.Offset() < 0 {
		t.Fatalf("offset = %d for page %d", p.Offset(), p.Page)
	}
	if got := (Paging{Page: math.MaxInt, PageSize: MaxPageSize}).Offset(); got != math.MaxInt {
		t.Fatalf("unclamped offset = %d, want saturation", got)
	}
	if got := (Paging{Page: 0, PageSize: 8}).Offset(); got != 0 {
		t.Fatalf("offset of page 0 = %d", got)
	}
	res := Paginate([]int{1, 2, 3}, Paging{Page: math.MaxInt, PageSize: 8})
	if len(res.Items) != 0 || res.TotalCount != 3 {
		t.Fatalf("res = %+v", res)
	}
}

func TestPaginateNeverReturnsNilItems(t *testing.T) {
	res := Paginate[int](nil, NewPaging(4, 8, DefaultPageSize, MaxPageSize))
	if res.Items == nil {
		t.Fatal("items must be an empty slice so it encodes as []")
	}
}
