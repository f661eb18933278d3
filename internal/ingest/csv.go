package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/lox/floodsim/internal/models"
)

var dateLayouts = []string{
	time.DateOnly,
	"2006-01-02 15:04:05",
	"1/2/2006",
	"01/02/2006",
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

// parseValue reads a numeric cell. Empty cells are missing and become NaN.
func parseValue(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "nan") {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}

// ParseDaysCSV reads the historical record. The first column is the date index;
// "inflow" and "storage" columns are located by header name.
func ParseDaysCSV(r io.Reader) ([]models.Day, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.New("empty csv")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	inflowCol, storageCol := -1, -1
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "inflow":
			inflowCol = i
		case "storage":
			storageCol = i
		}
	}
	if inflowCol <= 0 || storageCol <= 0 {
		return nil, fmt.Errorf("header %v: need a date index column followed by inflow and storage", header)
	}

	var days []models.Day
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		line, _ := cr.FieldPos(0)

		date, err := parseDate(strings.TrimSpace(rec[0]))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		inflow, err := parseValue(rec[inflowCol])
		if err != nil {
			return nil, fmt.Errorf("line %d: inflow: %w", line, err)
		}
		storage, err := parseValue(rec[storageCol])
		if err != nil {
			return nil, fmt.Errorf("line %d: storage: %w", line, err)
		}

		days = append(days, models.Day{Date: date, Inflow: inflow, Storage: storage})
	}
	return days, nil
}

// Slice keeps days in [start, end). Zero bounds are open.
func Slice(days []models.Day, start, end time.Time) []models.Day {
	var out []models.Day
	for _, d := range days {
		if !start.IsZero() && d.Date.Before(start) {
			continue
		}
		if !end.IsZero() && !d.Date.Before(end) {
			continue
		}
		out = append(out, d)
	}
	return out
}
