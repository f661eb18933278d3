package ingest

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// MinDemandDays is the shortest table that covers every water-year day.
const MinDemandDays = 365

// ParseDemand reads a whitespace separated demand table, one value per
// water-year day. Text after '#' is ignored.
func ParseDemand(r io.Reader) ([]float64, error) {
	var demand []float64
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := sc.Text()
		if i := strings.IndexByte(text, '#'); i >= 0 {
			text = text[:i]
		}
		for _, field := range strings.Fields(text) {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			demand = append(demand, v)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(demand) == 0 {
		return nil, errors.New("empty demand table")
	}
	if len(demand) < MinDemandDays {
		return nil, fmt.Errorf("demand table has %d values, need at least %d", len(demand), MinDemandDays)
	}
	return demand, nil
}
