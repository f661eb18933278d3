package ingest

import (
	"context"
	"log"
	"time"
)

// Sources names where the input tables come from: local paths, ftp:// or
// http(s):// URLs. Empty entries are skipped.
type Sources struct {
	Days   string
	Demand string
	Start  time.Time
	End    time.Time
}

// Scheduler re-imports the input tables on an interval so a long-running
// server picks up revised records.
type Scheduler struct {
	importer *Importer
	fetcher  *Fetcher
	sources  Sources
	interval time.Duration
}

func NewScheduler(importer *Importer, fetcher *Fetcher, sources Sources, interval time.Duration) *Scheduler {
	return &Scheduler{
		importer: importer,
		fetcher:  fetcher,
		sources:  sources,
		interval: interval,
	}
}

func (s *Scheduler) Run(ctx context.Context) {
	s.refresh(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("scheduler: shutting down")
			return
		case <-ticker.C:
			s.refresh(ctx)
		}
	}
}

func (s *Scheduler) refresh(ctx context.Context) {
	if err := s.ImportOnce(ctx); err != nil {
		log.Printf("scheduler: %v", err)
	}
}

// ImportOnce fetches and imports each configured source. The demand table is
// imported first so a failing record import still leaves it current.
func (s *Scheduler) ImportOnce(ctx context.Context) error {
	if s.sources.Demand != "" {
		log.Printf("scheduler: importing demand from %s", s.sources.Demand)
		body, err := s.fetcher.ReadSource(ctx, s.sources.Demand)
		if err != nil {
			return err
		}
		if _, err := s.importer.ImportDemand(s.sources.Demand, body); err != nil {
			return err
		}
	}

	if s.sources.Days != "" {
		log.Printf("scheduler: importing days from %s", s.sources.Days)
		body, err := s.fetcher.ReadSource(ctx, s.sources.Days)
		if err != nil {
			return err
		}
		if _, err := s.importer.ImportDays(s.sources.Days, body, s.sources.Start, s.sources.End); err != nil {
			return err
		}
	}
	return nil
}
