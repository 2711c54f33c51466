package modules

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/FACorreiaa/go-portal-shell/internal/router"
)

const maxBundleBytes = 1 << 20

// RemoteLoader downloads <BaseURL>/<module>.html, the module's published
// template bundle.
type RemoteLoader struct {
	Client  *http.Client
	BaseURL string
	Module  string
}

var _ router.Loader = RemoteLoader{}

func (l RemoteLoader) Load(ctx context.Context) (router.Component, error) {
	target, err := url.JoinPath(strings.TrimSuffix(l.BaseURL, "/"), l.Module+".html")
	if err != nil {
		return nil, fmt.Errorf("bundle url for %q: %w", l.Module, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch bundle %s: %w", target, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch bundle %s: unexpected status %d", target, resp.StatusCode)
	}
	src, err := io.ReadAll(io.LimitReader(resp.Body, maxBundleBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read bundle %s: %w", target, err)
	}
	if len(src) > maxBundleBytes {
		return nil, fmt.Errorf("bundle %s exceeds %d bytes", target, maxBundleBytes)
	}
	return NewPage(l.Module, string(src))
}
