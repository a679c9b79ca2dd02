package parsers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"

	"credit-exposure-reconciler/pkg/errors"
)

// IsRemote reports whether an input path is an http(s) URL
func IsRemote(p string) bool {
	lower := strings.ToLower(p)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// fetch downloads a URL into a temporary file carrying the URL's extension.
// The returned cleanup removes the file.
func (p *Parser) fetch(ctx context.Context, rawURL string) (string, func(), error) {
	log := p.logger.WithField("url", rawURL)

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", nil, errors.FileError(errors.CodeFetchFailed, rawURL, err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.config.FetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", nil, errors.FileError(errors.CodeFetchFailed, rawURL, err)
	}

	log.Debug("Downloading input")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", nil, errors.FileError(errors.CodeFetchFailed, rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", nil, errors.FileError(errors.CodeFetchFailed, rawURL,
			fmt.Errorf("unexpected status %s", resp.Status)).WithContext("status", resp.StatusCode)
	}

	tmp, err := os.CreateTemp("", "reconciler-*"+path.Ext(u.Path))
	if err != nil {
		return "", nil, errors.InternalError(errors.CodeUnexpectedError, "create_temp_file", err)
	}
	cleanup := func() { os.Remove(tmp.Name()) }

	n, err := io.Copy(tmp, resp.Body)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		cleanup()
		return "", nil, errors.FileError(errors.CodeFetchFailed, rawURL, err)
	}

	log.WithField("bytes", n).Debug("Downloaded input")
	return tmp.Name(), cleanup, nil
}
