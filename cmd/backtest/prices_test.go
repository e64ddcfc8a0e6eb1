package main

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestParsePricesCSV(t *testing.T) {
	in := `date,symbol,adjusted_close,ma20,rsi14
2024-01-02,TQQQ,50.5,48.1,
2024-01-02,SPY,470,,
2024-01-03,TQQQ,49.75,,41.2
`
	points, err := parsePricesCSV(strings.NewReader(in), "TQQQ")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(points))
	}

	first := points[0]
	if first.Symbol != "TQQQ" || first.AdjustedClose != 50.5 {
		t.Errorf("unexpected first point: %+v", first)
	}
	if !first.Date.Equal(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected date %s", first.Date)
	}
	if first.MA20 == nil || *first.MA20 != 48.1 {
		t.Errorf("expected ma20 48.1, got %v", first.MA20)
	}
	if first.RSI14 != nil {
		t.Errorf("expected empty rsi14 to stay nil")
	}
	if points[1].RSI14 == nil || *points[1].RSI14 != 41.2 {
		t.Errorf("expected rsi14 41.2 on second point")
	}
}

func TestParsePricesCSV_CloseFallbackWithoutSymbol(t *testing.T) {
	in := "Date,Close\n2024-01-02,10\n"
	points, err := parsePricesCSV(strings.NewReader(in), "ABC")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(points) != 1 || points[0].Symbol != "ABC" || points[0].AdjustedClose != 10 {
		t.Errorf("unexpected points: %+v", points)
	}
}

func TestParsePricesCSV_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"no date column", "day,close\n2024-01-02,1\n"},
		{"no close column", "date,open\n2024-01-02,1\n"},
		{"bad date", "date,close\n01/02/2024,1\n"},
		{"bad price", "date,close\n2024-01-02,abc\n"},
		{"bad indicator", "date,close,ma50\n2024-01-02,1,x\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parsePricesCSV(strings.NewReader(tt.in), "ABC")
			if !errors.Is(err, ErrBadCSV) {
				t.Errorf("expected ErrBadCSV, got %v", err)
			}
		})
	}
}
