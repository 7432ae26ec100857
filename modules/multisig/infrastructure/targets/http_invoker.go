package targets

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jacksonlee411/board-multisig/modules/multisig/domain/types"
)

const defaultHTTPTimeout = 10 * time.Second

type Endpoint struct {
	URL     string
	Timeout time.Duration
}

// HTTPInvoker POSTs the payload to the endpoint configured for the target.
// Any 2xx response counts as success; the body is drained and ignored.
type HTTPInvoker struct {
	Client    *http.Client
	Endpoints map[types.Identity]Endpoint
}

func (h HTTPInvoker) Invoke(ctx context.Context, target types.Identity, payload []byte) error {
	ep, ok := h.Endpoints[target]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTarget, target)
	}
	timeout := ep.Timeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.URL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("X-Multisig-Target", string(target))

	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("target %s responded %d", target, resp.StatusCode)
	}
	return nil
}
