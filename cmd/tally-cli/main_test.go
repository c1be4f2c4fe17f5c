package main

import (
	"testing"

	"tally/internal/core"
)

func TestFormatDate(t *testing.T) {
	if got := formatDate(core.Date{}); got != "" {
		t.Errorf("formatDate(zero) = %q, want empty default", got)
	}
	if got := formatDate(core.NewDate(2024, 1, 15)); got != "2024-01-15" {
		t.Errorf("formatDate = %q, want 2024-01-15", got)
	}
}

func TestFormatAmount(t *testing.T) {
	if got := formatAmount(0); got != "" {
		t.Errorf("formatAmount(0) = %q, want empty default", got)
	}
	if got := formatAmount(12.5); got != "12.5" {
		t.Errorf("formatAmount(12.5) = %q", got)
	}
}
