package pagination

import "testing"

func TestClampPageSizeDefaultsWhenZero(t *testing.T) {
	got := ClampPageSize(0, PageSizeConfig{Default: 20, Max: 100})
	if got != 20 {
		t.Fatalf("expected default 20, got %d", got)
	}
}

func TestClampPageSizeLimitsToMax(t *testing.T) {
	got := ClampPageSize(500, PageSizeConfig{Default: 20, Max: 100})
	if got != 100 {
		t.Fatalf("expected max 100, got %d", got)
	}
}

func TestClampPageSizeFallsBackToOne(t *testing.T) {
	got := ClampPageSize(-3, PageSizeConfig{})
	if got != 1 {
		t.Fatalf("expected floor of 1, got %d", got)
	}
}

func TestClampPage(t *testing.T) {
	if got := ClampPage(0); got != 1 {
		t.Fatalf("expected page 1, got %d", got)
	}
	if got := ClampPage(7); got != 7 {
		t.Fatalf("expected page 7, got %d", got)
	}
}
