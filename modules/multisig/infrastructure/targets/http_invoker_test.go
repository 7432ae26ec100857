package targets

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jacksonlee411/board-multisig/modules/multisig/domain/types"
)

func TestHTTPInvoker(t *testing.T) {
	var gotBody []byte
	var gotHeader http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotHeader = r.Header.Clone()
		switch r.URL.Path {
		case "/ok":
			w.WriteHeader(http.StatusAccepted)
			_, _ = w.Write([]byte("queued"))
		case "/slow":
			time.Sleep(200 * time.Millisecond)
		default:
			w.WriteHeader(http.StatusConflict)
		}
	}))
	t.Cleanup(srv.Close)

	inv := HTTPInvoker{
		Client: srv.Client(),
		Endpoints: map[types.Identity]Endpoint{
			"0xf1": {URL: srv.URL + "/ok"},
			"0xf2": {URL: srv.URL + "/revert"},
			"0xf3": {URL: srv.URL + "/slow", Timeout: 20 * time.Millisecond},
			"0xf4": {URL: "://bad"},
		},
	}
	ctx := context.Background()

	if err := inv.Invoke(ctx, "0xf1", []byte{0xca, 0xfe}); err != nil {
		t.Fatal(err)
	}
	if string(gotBody) != "\xca\xfe" {
		t.Fatalf("body=%x", gotBody)
	}
	if gotHeader.Get("X-Multisig-Target") != "0xf1" || gotHeader.Get("Content-Type") != "application/octet-stream" {
		t.Fatalf("headers=%v", gotHeader)
	}

	if err := inv.Invoke(ctx, "0xf2", nil); err == nil {
		t.Fatal("expected non-2xx error")
	}
	if err := inv.Invoke(ctx, "0xf3", nil); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err=%v", err)
	}
	if err := inv.Invoke(ctx, "0xf4", nil); err == nil {
		t.Fatal("expected request error")
	}
	if err := inv.Invoke(ctx, "0xf9", nil); !errors.Is(err, ErrUnknownTarget) {
		t.Fatalf("err=%v", err)
	}
}

func TestHTTPInvoker_DefaultClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	inv := HTTPInvoker{Endpoints: map[types.Identity]Endpoint{"0xf1": {URL: srv.URL}}}
	if err := inv.Invoke(context.Background(), "0xf1", nil); err != nil {
		t.Fatal(err)
	}
}
