// Package mcp – transport.go provides the StdioTransport that wires an MCP
// Server to an MCP client via line-delimited JSON-RPC 2.0 over stdin/stdout.
//
// Protocol rules (must be followed exactly):
//   - Each JSON-RPC request arrives as a single newline-terminated line on
//     stdin.
//   - Each JSON-RPC response is written as a single newline-terminated line to
//     stdout.
//   - ALL diagnostic output (logging, errors) MUST go to stderr only. Any
//     stray bytes on stdout will corrupt the protocol framing.
package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// StdioTransport reads line-delimited JSON-RPC 2.0 requests from an io.Reader
// and writes responses to an io.Writer. It is the bridge between the raw
// stdio streams and the MCP Server.
//
// Each request runs on its own goroutine, so several invocations can be in
// flight while earlier ones wait on the remote API; responses go out in
// completion order, correlated by request ID. A mutex serializes writes so
// response lines never interleave.
type StdioTransport struct {
	server  *Server
	in      io.Reader
	out     io.Writer
	writeMu sync.Mutex
	wg      sync.WaitGroup
}

// NewStdioTransport constructs a StdioTransport that reads from in and
// writes to out.
//
// Usage with real stdio:
//
//	t := mcp.NewStdioTransport(srv, os.Stdin, os.Stdout)
//	t.Serve(ctx)
func NewStdioTransport(srv *Server, in io.Reader, out io.Writer) *StdioTransport {
	return &StdioTransport{
		server: srv,
		in:     in,
		out:    out,
	}
}

// Serve processes JSON-RPC 2.0 requests until the input is closed or ctx is
// cancelled. It waits for in-flight handlers before returning.
func (t *StdioTransport) Serve(ctx context.Context) error {
	logger := t.server.logger.Sub("stdio")

	scanner := bufio.NewScanner(t.in)

	// Large tool payloads (full conversation histories) need headroom beyond
	// the default 64 KiB line limit.
	const maxBuf = 4 * 1024 * 1024
	scanner.Buffer(make([]byte, maxBuf), maxBuf)

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("context cancelled, shutting down")
			t.wg.Wait()
			return ctx.Err()
		default:
		}

		if !scanner.Scan() {
			t.wg.Wait()
			if err := scanner.Err(); err != nil {
				logger.Error().Err(err).Msg("stdin scanner error")
				return fmt.Errorf("stdin scanner: %w", err)
			}
			logger.Info().Msg("stdin closed, shutting down")
			return nil
		}

		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		// The scanner reuses its buffer; copy before handing off.
		request := make([]byte, len(line))
		copy(request, line)

		t.wg.Add(1)
		go func() {
			defer t.wg.Done()

			resp, err := t.server.HandleRequest(ctx, request)
			if err != nil {
				// HandleRequest produces a JSON-RPC error response for every
				// protocol-level failure; an error here is unexpected, so
				// synthesise a frame to keep the exchange alive.
				logger.Error().Err(err).Msg("handler error")
				resp = internalErrorResponse(request, err)
			}
			if resp == nil {
				return // notification: silence is the response
			}
			if werr := t.writeResponse(resp); werr != nil {
				logger.Error().Err(werr).Msg("write error")
			}
		}()
	}
}

// writeResponse writes a single JSON-RPC response line. A trailing newline
// is appended so the client can frame responses by line.
func (t *StdioTransport) writeResponse(resp []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	_, err := fmt.Fprintf(t.out, "%s\n", resp)
	return err
}

// internalErrorResponse builds a best-effort JSON-RPC error response when the
// server returns an unexpected error. It attempts to extract the request ID
// from the raw request bytes so the client can correlate the response.
func internalErrorResponse(rawRequest []byte, handlerErr error) []byte {
	var partial struct {
		ID interface{} `json:"id"`
	}
	_ = json.Unmarshal(rawRequest, &partial)

	resp := JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      partial.ID,
		Error: &JSONRPCError{
			Code:    ErrCodeInternalError,
			Message: handlerErr.Error(),
		},
	}

	data, err := json.Marshal(resp)
	if err != nil {
		// Last resort: return a hard-coded error so the protocol framing
		// does not stall.
		return []byte(`{"jsonrpc":"2.0","id":null,"error":{"code":-32603,"message":"internal error"}}`)
	}
	return data
}
