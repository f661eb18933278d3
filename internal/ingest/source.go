package ingest

import (
	"context"
	"net/http"
	"os"
	"strings"

	"github.com/lox/floodsim/internal/httputil"
	"github.com/lox/floodsim/internal/metrics"
)

// Fetcher loads input tables from local paths, ftp:// or http(s):// URLs.
type Fetcher struct {
	ftp  *FTPClient
	http *http.Client
}

func NewFetcher() *Fetcher {
	return &Fetcher{
		ftp:  NewFTPClient(),
		http: httputil.NewClient(),
	}
}

func (f *Fetcher) ReadSource(ctx context.Context, source string) ([]byte, error) {
	switch {
	case strings.HasPrefix(source, "ftp://"):
		return f.ftp.Fetch(ctx, source)
	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		body, err := httputil.Get(ctx, f.http, source, httputil.DefaultMaxElapsedTime)
		if err != nil {
			metrics.SourceFetchesTotal.WithLabelValues("http", "error").Inc()
			return nil, err
		}
		metrics.SourceFetchesTotal.WithLabelValues("http", "ok").Inc()
		return body, nil
	}
	return os.ReadFile(source)
}
