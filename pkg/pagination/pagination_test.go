package pagination

import "testing"

func TestTotalPages(t *testing.T) {
	cases := []struct {
		total, size, want int
	}{
		{25, 10, 3},
		{15, 10, 2},
		{10, 10, 1},
		{0, 10, 0},
		{5, 0, 0},
	}
	for _, tc := range cases {
		if got := TotalPages(tc.total, tc.size); got != tc.want {
			t.Fatalf("TotalPages(%d,%d)=%d want %d", tc.total, tc.size, got, tc.want)
		}
	}
}

func TestClampPageStaysInRange(t *testing.T) {
	for total := 0; total <= 60; total++ {
		pages := TotalPages(total, 7)
		for page := -2; page <= 12; page++ {
			got := ClampPage(page, pages)
			upper := pages
			if upper < 1 {
				upper = 1
			}
			if got < 1 || got > upper {
				t.Fatalf("ClampPage(%d,%d)=%d escapes [1,%d]", page, pages, got, upper)
			}
		}
	}
}

func TestNormalizeLimit(t *testing.T) {
	if got := NormalizeLimit(0, 0, 0); got != DefaultLimit {
		t.Fatalf("expected default limit, got %d", got)
	}
	if got := NormalizeLimit(500, 10, 50); got != 50 {
		t.Fatalf("expected max clamp, got %d", got)
	}
}
