package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/textproto"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jlaffaye/ftp"

	"github.com/lox/floodsim/internal/metrics"
)

const defaultFTPPort = "21"

// FTPClient retrieves input tables from an FTP data server, retrying transient failures.
type FTPClient struct {
	timeout        time.Duration
	maxElapsedTime time.Duration
}

func NewFTPClient() *FTPClient {
	return &FTPClient{
		timeout:        30 * time.Second,
		maxElapsedTime: 2 * time.Minute,
	}
}

type ftpTarget struct {
	addr     string
	user     string
	password string
	path     string
}

// parseFTPURL splits ftp://[user[:password]@]host[:port]/path. Missing
// credentials log in anonymously.
func parseFTPURL(rawURL string) (ftpTarget, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ftpTarget{}, err
	}
	if u.Scheme != "ftp" {
		return ftpTarget{}, fmt.Errorf("not an ftp url: %q", rawURL)
	}
	if u.Hostname() == "" || u.Path == "" || u.Path == "/" {
		return ftpTarget{}, fmt.Errorf("ftp url needs host and path: %q", rawURL)
	}

	port := u.Port()
	if port == "" {
		port = defaultFTPPort
	}
	t := ftpTarget{
		addr:     net.JoinHostPort(u.Hostname(), port),
		user:     "anonymous",
		password: "anonymous",
		path:     u.Path,
	}
	if u.User != nil {
		t.user = u.User.Username()
		if pw, ok := u.User.Password(); ok {
			t.password = pw
		}
	}
	return t, nil
}

// permanentFTPError reports replies that retrying will not fix: 5xx
// permanent negative completion codes such as 530 (login) and 550 (no file).
func permanentFTPError(err error) bool {
	var tpErr *textproto.Error
	return errors.As(err, &tpErr) && tpErr.Code >= 500
}

// Fetch downloads the file named by an ftp:// URL.
func (c *FTPClient) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	target, err := parseFTPURL(rawURL)
	if err != nil {
		return nil, err
	}

	var body []byte
	operation := func() error {
		b, err := c.retrieve(ctx, target)
		if err != nil {
			if permanentFTPError(err) {
				return backoff.Permanent(err)
			}
			log.Printf("ftp: %s: %v (retrying)", target.addr, err)
			return err
		}
		body = b
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = c.maxElapsedTime
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		metrics.SourceFetchesTotal.WithLabelValues("ftp", "error").Inc()
		return nil, err
	}
	metrics.SourceFetchesTotal.WithLabelValues("ftp", "ok").Inc()
	return body, nil
}

func (c *FTPClient) retrieve(ctx context.Context, t ftpTarget) ([]byte, error) {
	conn, err := ftp.Dial(t.addr, ftp.DialWithTimeout(c.timeout), ftp.DialWithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("ftp dial: %w", err)
	}
	defer conn.Quit()

	if err := conn.Login(t.user, t.password); err != nil {
		return nil, fmt.Errorf("ftp login: %w", err)
	}

	resp, err := conn.Retr(t.path)
	if err != nil {
		return nil, fmt.Errorf("ftp retr %s: %w", t.path, err)
	}
	defer resp.Close()

	body, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", t.path, err)
	}
	return body, nil
}
