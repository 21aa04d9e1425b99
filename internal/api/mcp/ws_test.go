package mcp_test

import (
	"context"
	"encoding/json"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"github.com/memtensor/openmem-mcp/internal/api/mcp"
)

func dialWS(t *testing.T, httpURL string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(httpURL, "http")
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	return conn
}

func TestWSTransport_RoundTrip(t *testing.T) {
	srv := newTestServer(t, testConfig(), &fakeDispatcher{})
	transport := mcp.NewWSTransport(srv, "127.0.0.1:0")

	httpSrv := httptest.NewServer(transport)
	defer httpSrv.Close()

	conn := dialWS(t, httpSrv.URL)
	defer conn.Close(websocket.StatusNormalClosure, "")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := conn.Write(ctx, websocket.MessageText,
		[]byte(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05","clientInfo":{"name":"ws-test","version":"0"}}}`))
	require.NoError(t, err)

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)

	var resp mcp.JSONRPCResponse
	require.NoError(t, json.Unmarshal(data, &resp))
	require.Nil(t, resp.Error)
	result := resp.Result.(map[string]any)
	assert.Equal(t, "2024-11-05", result["protocolVersion"])
}

// TestWSTransport_NotificationsAreSilent sends a notification followed by a
// ping and expects exactly one frame back, for the ping.
func TestWSTransport_NotificationsAreSilent(t *testing.T) {
	srv := newTestServer(t, testConfig(), &fakeDispatcher{})
	transport := mcp.NewWSTransport(srv, "127.0.0.1:0")

	httpSrv := httptest.NewServer(transport)
	defer httpSrv.Close()

	conn := dialWS(t, httpSrv.URL)
	defer conn.Close(websocket.StatusNormalClosure, "")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, conn.Write(ctx, websocket.MessageText,
		[]byte(`{"jsonrpc":"2.0","method":"notifications/initialized"}`)))
	require.NoError(t, conn.Write(ctx, websocket.MessageText,
		[]byte(`{"jsonrpc":"2.0","id":42,"method":"ping"}`)))

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)

	var resp mcp.JSONRPCResponse
	require.NoError(t, json.Unmarshal(data, &resp))
	assert.Equal(t, float64(42), resp.ID, "the only frame must answer the ping, not the notification")
}

// TestWSTransport_BindFailureIsFatal verifies that a listener bind failure
// surfaces as an error from Serve instead of being swallowed.
func TestWSTransport_BindFailureIsFatal(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	srv := newTestServer(t, testConfig(), &fakeDispatcher{})
	transport := mcp.NewWSTransport(srv, ln.Addr().String())

	err = transport.Serve(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listen")
}
