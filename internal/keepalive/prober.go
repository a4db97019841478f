package keepalive

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// Prober requests a health endpoint and reports anything but 2xx as an error.
type Prober struct {
	Client *http.Client
	Url    string
}

func (p *Prober) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.Url, nil)
	if err != nil {
		return fmt.Errorf("building probe request: %w", err)
	}

	res, err := p.Client.Do(req)
	if err != nil {
		return fmt.Errorf("probing %s: %w", p.Url, err)
	}
	defer res.Body.Close()

	// drain so the connection can be reused
	_, _ = io.Copy(io.Discard, res.Body)

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return fmt.Errorf("probing %s: unexpected status %s", p.Url, res.Status)
	}

	return nil
}
