package mcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"nhooyr.io/websocket"
)

// WSTransport serves the same JSON-RPC 2.0 exchange over WebSocket instead
// of stdio, for clients that connect to a long-running adapter rather than
// exec'ing the binary. Each text message carries one JSON-RPC message;
// responses are written back on the same connection. One Server instance
// backs every connection, under the same concurrency rules as stdio.
type WSTransport struct {
	server *Server
	addr   string
}

// NewWSTransport constructs a WSTransport listening on addr.
func NewWSTransport(srv *Server, addr string) *WSTransport {
	return &WSTransport{
		server: srv,
		addr:   addr,
	}
}

// Serve binds the listener and accepts WebSocket connections until ctx is
// cancelled. A bind failure is returned directly: transport establishment is
// the one startup error that is fatal to the process.
func (t *WSTransport) Serve(ctx context.Context) error {
	logger := t.server.logger.Sub("ws")

	ln, err := net.Listen("tcp", t.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", t.addr, err)
	}

	httpServer := &http.Server{Handler: t}
	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Serve(ln)
	}()

	logger.Info().Str("addr", ln.Addr().String()).Msg("websocket transport listening")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
		logger.Info().Msg("context cancelled, shutting down")
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve %s: %w", t.addr, err)
	}
}

// ServeHTTP upgrades the connection and pumps JSON-RPC messages through the
// Server. Implementing http.Handler keeps the transport testable with
// httptest without binding a real port.
func (t *WSTransport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := t.server.logger.Sub("ws")

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// Local tooling connects from arbitrary origins (editors, desktop
		// apps); the adapter carries no browser-facing state to protect.
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		logger.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "connection closed")

	// Tool results can carry full conversation histories.
	conn.SetReadLimit(4 * 1024 * 1024)

	ctx := r.Context()
	var writeMu sync.Mutex
	var wg sync.WaitGroup

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			break
		}

		wg.Add(1)
		go func(request []byte) {
			defer wg.Done()

			resp, herr := t.server.HandleRequest(ctx, request)
			if herr != nil {
				logger.Error().Err(herr).Msg("handler error")
				resp = internalErrorResponse(request, herr)
			}
			if resp == nil {
				return // notification
			}

			writeMu.Lock()
			defer writeMu.Unlock()
			writeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			if werr := conn.Write(writeCtx, websocket.MessageText, resp); werr != nil {
				logger.Error().Err(werr).Msg("write error")
			}
		}(data)
	}

	wg.Wait()
	_ = conn.Close(websocket.StatusNormalClosure, "")
}
