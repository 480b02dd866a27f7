package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log"
	"sync"

	"zentao-mcp/server/internal/jsonrpc"
)

// RequestProcessor processes JSON-RPC requests.
// Implemented by the MCP handler.
type RequestProcessor interface {
	ProcessRequest(ctx context.Context, req *jsonrpc.Request) (interface{}, *jsonrpc.Error)
}

// StdioTransport reads newline-delimited JSON-RPC from an input stream and
// writes responses to an output stream. This is the MCP stdio transport:
// the output stream carries protocol frames only, all logging goes to stderr.
type StdioTransport struct {
	processor RequestProcessor
	out       io.Writer
	mu        sync.Mutex // serializes response writes
}

func NewStdioTransport(processor RequestProcessor, out io.Writer) *StdioTransport {
	return &StdioTransport{processor: processor, out: out}
}

// Serve reads requests from in until EOF or ctx cancellation. Each line is
// one JSON-RPC message. Notifications (no id) get no response.
func (t *StdioTransport) Serve(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	// Tool results can be large; give the scanner room.
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req jsonrpc.Request
		if err := json.Unmarshal(line, &req); err != nil {
			t.writeError(nil, &jsonrpc.Error{Code: jsonrpc.ParseError, Message: "Parse error"})
			continue
		}

		log.Printf("request method=%s id=%v", req.Method, req.ID)

		result, rpcErr := t.processor.ProcessRequest(ctx, &req)
		if rpcErr != nil {
			t.writeError(req.ID, rpcErr)
			continue
		}
		if req.ID == nil {
			// Notification, no response
			continue
		}
		t.writeResult(req.ID, result)
	}
	return scanner.Err()
}

func (t *StdioTransport) writeResult(id interface{}, result interface{}) {
	t.write(jsonrpc.Response{JSONRPC: "2.0", ID: id, Result: result})
}

func (t *StdioTransport) writeError(id interface{}, rpcErr *jsonrpc.Error) {
	t.write(jsonrpc.Response{JSONRPC: "2.0", ID: id, Error: rpcErr})
}

func (t *StdioTransport) write(resp jsonrpc.Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		log.Printf("failed to marshal response: %v", err)
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.out.Write(data)
	t.out.Write([]byte("\n"))
}
