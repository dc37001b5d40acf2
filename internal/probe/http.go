package probe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"slices"
)

type httpProber struct {
	client *http.Client
	url    string
	expect []int
}

func newHTTPProber(url string, expectStatus []int) *httpProber {
	return &httpProber{
		client: &http.Client{},
		url:    url,
		expect: append([]int(nil), expectStatus...),
	}
}

func (p *httpProber) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if len(p.expect) > 0 {
		if !slices.Contains(p.expect, resp.StatusCode) {
			return fmt.Errorf("status=%d", resp.StatusCode)
		}
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return fmt.Errorf("status=%d", resp.StatusCode)
	}
	return nil
}
