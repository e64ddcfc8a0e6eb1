package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"dca-backtest-lab/internal/domain"
)

// ErrBadCSV is returned for a malformed price file.
var ErrBadCSV = errors.New("malformed price csv")

// optional indicator columns, keyed by header name
var indicatorColumns = map[string]func(*domain.PricePoint, *float64){
	"ma20":         func(p *domain.PricePoint, v *float64) { p.MA20 = v },
	"ma50":         func(p *domain.PricePoint, v *float64) { p.MA50 = v },
	"ma200":        func(p *domain.PricePoint, v *float64) { p.MA200 = v },
	"rsi14":        func(p *domain.PricePoint, v *float64) { p.RSI14 = v },
	"volatility20": func(p *domain.PricePoint, v *float64) { p.Volatility20 = v },
}

// loadPricesCSV reads a header-led CSV with at least date and adjusted_close
// (or close) columns. A symbol column, when present, must match symbol.
func loadPricesCSV(path, symbol string) ([]*domain.PricePoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open prices: %w", err)
	}
	defer f.Close()
	return parsePricesCSV(f, symbol)
}

func parsePricesCSV(r io.Reader, symbol string) ([]*domain.PricePoint, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: read header: %v", ErrBadCSV, err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}

	dateCol, ok := cols["date"]
	if !ok {
		return nil, fmt.Errorf("%w: missing date column", ErrBadCSV)
	}
	closeCol, ok := cols["adjusted_close"]
	if !ok {
		if closeCol, ok = cols["close"]; !ok {
			return nil, fmt.Errorf("%w: missing adjusted_close column", ErrBadCSV)
		}
	}
	symbolCol, hasSymbol := cols["symbol"]

	var points []*domain.PricePoint
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrBadCSV, line, err)
		}
		if hasSymbol && rec[symbolCol] != symbol {
			continue
		}

		date, err := time.Parse(time.DateOnly, rec[dateCol])
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: date: %v", ErrBadCSV, line, err)
		}
		price, err := strconv.ParseFloat(rec[closeCol], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: close: %v", ErrBadCSV, line, err)
		}

		p := &domain.PricePoint{Symbol: symbol, Date: date, AdjustedClose: price}
		for name, set := range indicatorColumns {
			i, ok := cols[name]
			if !ok || rec[i] == "" {
				continue
			}
			v, err := strconv.ParseFloat(rec[i], 64)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %s: %v", ErrBadCSV, line, name, err)
			}
			set(p, &v)
		}
		points = append(points, p)
	}
	return points, nil
}
