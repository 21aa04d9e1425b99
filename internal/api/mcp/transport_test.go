package mcp_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memtensor/openmem-mcp/internal/api/mcp"
)

// collectResponses splits transport output into decoded JSON-RPC frames.
func collectResponses(t *testing.T, out *bytes.Buffer) []mcp.JSONRPCResponse {
	t.Helper()
	var responses []mcp.JSONRPCResponse
	scanner := bufio.NewScanner(out)
	for scanner.Scan() {
		if len(bytes.TrimSpace(scanner.Bytes())) == 0 {
			continue
		}
		var resp mcp.JSONRPCResponse
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &resp), "every output line must be a valid frame: %s", scanner.Text())
		responses = append(responses, resp)
	}
	return responses
}

// byID indexes responses by their numeric request ID; concurrent dispatch
// means completion order is not arrival order.
func byID(responses []mcp.JSONRPCResponse) map[float64]mcp.JSONRPCResponse {
	indexed := make(map[float64]mcp.JSONRPCResponse)
	for _, resp := range responses {
		if id, ok := resp.ID.(float64); ok {
			indexed[id] = resp
		}
	}
	return indexed
}

func TestStdioTransport_Serve(t *testing.T) {
	srv := newTestServer(t, testConfig(), &fakeDispatcher{})

	input := strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05","clientInfo":{"name":"t","version":"0"}}}`,
		``, // blank lines are skipped
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`,
	}, "\n") + "\n"

	var out bytes.Buffer
	transport := mcp.NewStdioTransport(srv, strings.NewReader(input), &out)

	require.NoError(t, transport.Serve(context.Background()), "clean EOF must not be an error")

	responses := collectResponses(t, &out)
	assert.Len(t, responses, 2, "the notification must produce no output")

	indexed := byID(responses)
	require.Contains(t, indexed, float64(1))
	require.Contains(t, indexed, float64(2))
	assert.Nil(t, indexed[1].Error)
	assert.Nil(t, indexed[2].Error)
}

// TestStdioTransport_KeepsServingAfterParseError verifies a malformed line
// yields a parse-error frame and the exchange continues.
func TestStdioTransport_KeepsServingAfterParseError(t *testing.T) {
	srv := newTestServer(t, testConfig(), &fakeDispatcher{})

	input := "{this is not json\n" +
		`{"jsonrpc":"2.0","id":9,"method":"ping"}` + "\n"

	var out bytes.Buffer
	transport := mcp.NewStdioTransport(srv, strings.NewReader(input), &out)
	require.NoError(t, transport.Serve(context.Background()))

	responses := collectResponses(t, &out)
	require.Len(t, responses, 2)

	var parseErrors, pongs int
	for _, resp := range responses {
		switch {
		case resp.Error != nil && resp.Error.Code == mcp.ErrCodeParseError:
			parseErrors++
		case resp.Error == nil:
			pongs++
		}
	}
	assert.Equal(t, 1, parseErrors)
	assert.Equal(t, 1, pongs)
}

func TestStdioTransport_ContextCancellation(t *testing.T) {
	srv := newTestServer(t, testConfig(), &fakeDispatcher{})

	// A reader that never delivers data would block Scan forever, so cancel
	// before serving: the loop must notice and return ctx.Err().
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	transport := mcp.NewStdioTransport(srv, strings.NewReader(""), &out)

	done := make(chan error, 1)
	go func() { done <- transport.Serve(ctx) }()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancellation")
	}
}

// TestStdioTransport_ConcurrentRequests floods the transport and checks that
// every response frame arrives intact on its own line.
func TestStdioTransport_ConcurrentRequests(t *testing.T) {
	srv := newTestServer(t, testConfig(), &fakeDispatcher{})

	var input strings.Builder
	const n = 50
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&input, `{"jsonrpc":"2.0","id":%d,"method":"ping"}%s`, i, "\n")
	}

	var out bytes.Buffer
	transport := mcp.NewStdioTransport(srv, strings.NewReader(input.String()), &out)
	require.NoError(t, transport.Serve(context.Background()))

	indexed := byID(collectResponses(t, &out))
	assert.Len(t, indexed, n, "every request must get exactly one response")
}
