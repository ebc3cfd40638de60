package tabular

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/mapyard/marker-ingest/internal/resilience"
)

const (
	fetchUserAgent = "mapyard-marker-ingest/1.0"
	ftpTimeout     = 30 * time.Second
)

// maxDownloadBytes caps remote source size. Var so tests can lower it.
var maxDownloadBytes int64 = 256 << 20

var defaultClient = &http.Client{
	Timeout: 60 * time.Second,
	Transport: &http.Transport{
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
	},
}

// fetchHTTP downloads the URL to a temp file preserving the extension, so
// format dispatch still works. Transient failures are retried once.
func fetchHTTP(ctx context.Context, client *http.Client, rawURL string) (string, error) {
	if client == nil {
		client = defaultClient
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", eris.Wrapf(err, "tabular: parse url %s", rawURL)
	}
	ext := path.Ext(u.Path)

	cfg := resilience.DefaultRetryConfig()
	cfg.ShouldRetry = resilience.IsTransient
	cfg.OnRetry = resilience.RetryLogger("tabular: fetch")

	return resilience.DoVal(ctx, cfg, func(ctx context.Context) (string, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return "", eris.Wrap(err, "tabular: create request")
		}
		req.Header.Set("User-Agent", fetchUserAgent)

		resp, err := client.Do(req)
		if err != nil {
			return "", eris.Wrapf(err, "tabular: fetch %s", rawURL)
		}
		defer resp.Body.Close() //nolint:errcheck

		if resp.StatusCode != http.StatusOK {
			statusErr := eris.Errorf("tabular: unexpected status %d from %s", resp.StatusCode, rawURL)
			if resilience.IsTransientHTTPStatus(resp.StatusCode) {
				return "", resilience.NewTransientError(statusErr, resp.StatusCode)
			}
			return "", statusErr
		}

		return copyToTemp(resp.Body, ext)
	})
}

// fetchFTP retrieves the URL to a temp file. Credentials come from the URL
// userinfo, anonymous otherwise.
func fetchFTP(ctx context.Context, rawURL string) (string, error) {
	host, filePath, user, pass, err := parseFTPURL(rawURL)
	if err != nil {
		return "", err
	}

	zap.L().Debug("tabular: ftp connecting", zap.String("host", host), zap.String("path", filePath))

	conn, err := ftp.Dial(host, ftp.DialWithTimeout(ftpTimeout), ftp.DialWithContext(ctx))
	if err != nil {
		return "", eris.Wrap(err, "tabular: ftp dial")
	}
	defer conn.Quit() //nolint:errcheck

	if err := conn.Login(user, pass); err != nil {
		return "", eris.Wrap(err, "tabular: ftp login")
	}

	resp, err := conn.Retr(filePath)
	if err != nil {
		return "", eris.Wrap(err, "tabular: ftp retrieve")
	}
	defer resp.Close() //nolint:errcheck

	return copyToTemp(resp, path.Ext(filePath))
}

// parseFTPURL extracts host (with port), path, and credentials from an FTP URL.
func parseFTPURL(rawURL string) (host, filePath, user, pass string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", "", "", eris.Wrap(err, "tabular: parse ftp url")
	}
	if u.Scheme != "ftp" {
		return "", "", "", "", eris.Errorf("tabular: expected ftp scheme, got %q", u.Scheme)
	}

	host = u.Host
	if _, _, splitErr := net.SplitHostPort(host); splitErr != nil {
		host = net.JoinHostPort(host, "21")
	}

	filePath = u.Path
	if filePath == "" {
		return "", "", "", "", eris.New("tabular: empty path in ftp url")
	}

	user, pass = "anonymous", "anonymous@"
	if u.User != nil && u.User.Username() != "" {
		user = u.User.Username()
		if p, ok := u.User.Password(); ok {
			pass = p
		}
	}
	return host, filePath, user, pass, nil
}

func copyToTemp(r io.Reader, ext string) (string, error) {
	tmp, err := os.CreateTemp("", "ingest-*"+ext)
	if err != nil {
		return "", eris.Wrap(err, "tabular: create temp file")
	}

	n, copyErr := io.Copy(tmp, io.LimitReader(r, maxDownloadBytes+1))
	closeErr := tmp.Close()
	if copyErr != nil {
		os.Remove(tmp.Name()) //nolint:errcheck
		return "", eris.Wrap(copyErr, "tabular: download")
	}
	if closeErr != nil {
		os.Remove(tmp.Name()) //nolint:errcheck
		return "", eris.Wrap(closeErr, "tabular: close temp file")
	}
	if n > maxDownloadBytes {
		os.Remove(tmp.Name()) //nolint:errcheck
		return "", eris.Errorf("tabular: source exceeds %d byte limit", maxDownloadBytes)
	}
	return tmp.Name(), nil
}
