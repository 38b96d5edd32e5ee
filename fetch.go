//go:build linux

package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/loicpoulain/kvmlat/guest"
)

// fetchImage makes the guest image at s available as a local file. Paths
// and file URLs are returned as is. HTTP(S) URLs are downloaded to a
// temporary file that keeps the URL's extension; the returned cleanup func
// removes it.
func fetchImage(ctx context.Context, s string) (p string, cleanup func(), err error) {
	nop := func() {}

	u, err := url.Parse(s)
	if err != nil {
		return "", nop, fmt.Errorf("kvmlat: image URL %s: %w", s, err)
	}

	switch u.Scheme {
	case "":
		return s, nop, nil

	case "file":
		return u.Path, nop, nil

	case "http", "https":

	default:
		return "", nop, fmt.Errorf("%w: unsupported image URL scheme %q", errConfig, u.Scheme)
	}

	defer func() {
		if err != nil {
			err = fmt.Errorf("kvmlat: fetch %s: %w", s, err)
		}
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", nop, err
	}

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", nop, err
	}

	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return "", nop, guest.ErrImageNotFound
	default:
		return "", nop, fmt.Errorf("response status %d != %d", res.StatusCode, http.StatusOK)
	}

	f, err := os.CreateTemp("", "kvmlat-*"+imageExt(u.Path))
	if err != nil {
		return "", nop, err
	}

	cleanup = func() { os.Remove(f.Name()) }

	if _, err := io.Copy(f, res.Body); err != nil {
		f.Close()
		cleanup()
		return "", nop, err
	}

	if err := f.Close(); err != nil {
		cleanup()
		return "", nop, err
	}

	return f.Name(), cleanup, nil
}

// imageExt returns the extension guest.Open dispatches on.
func imageExt(p string) string {
	base := path.Base(p)

	for _, ext := range []string{".cpio.gz", ".cpio"} {
		if strings.HasSuffix(base, ext) {
			return ext
		}
	}

	return path.Ext(base)
}
