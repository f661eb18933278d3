package ingest

import (
	"bytes"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/lox/floodsim/internal/metrics"
	"github.com/lox/floodsim/internal/store"
)

const (
	KindDays   = "days"
	KindDemand = "demand"

	// maxFlagLogs bounds per-import quality flag logging.
	maxFlagLogs = 10
)

// Importer loads input tables into the store, auditing each load.
type Importer struct {
	store    *store.Store
	capacity float64
}

func NewImporter(st *store.Store, capacity float64) *Importer {
	return &Importer{store: st, capacity: capacity}
}

func (i *Importer) begin(kind, source string, body []byte) *store.ImportRun {
	run, err := i.store.StartImportRun(kind, source)
	if err != nil {
		log.Printf("import: start %s run: %v", kind, err)
		return nil
	}
	if _, err := i.store.StoreSourceFile(&run.ID, kind, source, body); err != nil {
		log.Printf("import: store %s source file: %v", kind, err)
	}
	return run
}

func (i *Importer) finish(run *store.ImportRun, parsed, stored, flagged int, err error) {
	if run == nil {
		return
	}
	run.Success = err == nil
	run.RecordsParsed = sql.NullInt64{Int64: int64(parsed), Valid: err == nil || parsed > 0}
	run.RecordsStored = sql.NullInt64{Int64: int64(stored), Valid: err == nil}
	run.QualityFlags = sql.NullInt64{Int64: int64(flagged), Valid: err == nil}
	if err != nil {
		run.ErrorMessage = sql.NullString{String: err.Error(), Valid: true}
	}
	if cerr := i.store.CompleteImportRun(run); cerr != nil {
		log.Printf("import: complete run %d: %v", run.ID, cerr)
	}
}

// ImportDays parses a historical CSV, keeps days in [start, end) and stores them.
func (i *Importer) ImportDays(source string, body []byte, start, end time.Time) (n int, err error) {
	run := i.begin(KindDays, source, body)
	parsed, flagged := 0, 0
	defer func() { i.finish(run, parsed, n, flagged, err) }()

	days, err := ParseDaysCSV(bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", source, err)
	}
	days = Slice(days, start, end)
	parsed = len(days)
	if parsed == 0 {
		return 0, fmt.Errorf("%s: no days in range", source)
	}

	for _, d := range days {
		flags := ValidateDay(d, i.capacity)
		if len(flags) == 0 {
			continue
		}
		if flagged < maxFlagLogs {
			log.Printf("import: %s %s", d.Date.Format(time.DateOnly), QualityFlagsToJSON(flags))
		}
		flagged++
	}
	if flagged > 0 {
		metrics.RowsFlagged.WithLabelValues(KindDays).Add(float64(flagged))
		log.Printf("import: %d of %d days flagged", flagged, parsed)
	}

	n, err = i.store.UpsertDays(days)
	if err != nil {
		return 0, err
	}
	metrics.RowsImported.WithLabelValues(KindDays).Add(float64(n))
	log.Printf("import: stored %d days (%s to %s)", n,
		days[0].Date.Format(time.DateOnly), days[len(days)-1].Date.Format(time.DateOnly))
	return n, nil
}

// ImportDemand parses a demand table and replaces the stored one.
func (i *Importer) ImportDemand(source string, body []byte) (n int, err error) {
	run := i.begin(KindDemand, source, body)
	parsed, flagged := 0, 0
	defer func() { i.finish(run, parsed, n, flagged, err) }()

	demand, err := ParseDemand(bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", source, err)
	}
	parsed = len(demand)

	for wd, v := range demand {
		if flags := ValidateDemand(v); len(flags) > 0 {
			if flagged < maxFlagLogs {
				log.Printf("import: demand water day %d %s", wd, QualityFlagsToJSON(flags))
			}
			flagged++
		}
	}
	if flagged > 0 {
		metrics.RowsFlagged.WithLabelValues(KindDemand).Add(float64(flagged))
	}

	n, err = i.store.ReplaceDemand(demand)
	if err != nil {
		return 0, err
	}
	metrics.RowsImported.WithLabelValues(KindDemand).Add(float64(n))
	log.Printf("import: stored %d demand rows", n)
	return n, nil
}
