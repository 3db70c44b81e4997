package cli

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServe_IngestsAndShutsDown(t *testing.T) {
	db := filepath.Join(t.TempDir(), "pmscope.db")
	addrCh := make(chan net.Addr, 1)

	cmd := newServeCommand(&ServeOptions{
		RootOptions: &RootOptions{Format: "text"},
		Ready:       func(addr net.Addr) { addrCh <- addr },
	})
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--db", db, "--listen", "127.0.0.1:0"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	var addr net.Addr
	select {
	case addr = <-addrCh:
	case err := <-done:
		t.Fatalf("serve exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not start")
	}

	base := fmt.Sprintf("http://%s", addr)
	resp, err := http.Get(base + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := `{"id":"m-1","tabId":1,"target":{"frameId":0,"documentId":"doc-A"},"source":{"type":"self"}}`
	resp, err = http.Post(base+"/v1/events", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Less(t, resp.StatusCode, 300)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
	assert.Contains(t, out.String(), "Listening on http://127.0.0.1:")

	traceOut, err := execute(t, "--format", "json", "trace", "--db", db)
	require.NoError(t, err)
	var result TraceResult
	decodeData(t, traceOut, &result)
	require.Len(t, result.Records, 1)
	assert.Equal(t, "m-1", result.Records[0].ID)
}
