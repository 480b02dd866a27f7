package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"zentao-mcp/server/internal/jsonrpc"
	"zentao-mcp/server/internal/modules"
)

// stubModule exposes one echo tool for handler tests.
type stubModule struct{}

func (stubModule) Name() string        { return "stub" }
func (stubModule) Description() string { return "stub module" }
func (stubModule) APIVersion() string  { return "v1" }
func (stubModule) Tools() []modules.Tool {
	return []modules.Tool{{
		ID:   "stub:echo",
		Name: "stub_echo",
		InputSchema: modules.InputSchema{
			Type: "object",
			Properties: map[string]modules.Property{
				"text": {Type: "string"},
			},
			Required: []string{"text"},
		},
	}}
}
func (stubModule) ExecuteTool(ctx context.Context, name string, params map[string]any) (string, error) {
	return params["text"].(string), nil
}

func TestHandleInitialize(t *testing.T) {
	h := NewHandler()

	result, rpcErr := h.ProcessRequest(context.Background(), &jsonrpc.Request{
		JSONRPC: "2.0", ID: 1, Method: "initialize",
	})
	if rpcErr != nil {
		t.Fatalf("initialize: %+v", rpcErr)
	}

	init, ok := result.(*InitializeResult)
	if !ok {
		t.Fatalf("result type = %T", result)
	}
	if init.ProtocolVersion != "2025-03-26" {
		t.Errorf("protocol = %q", init.ProtocolVersion)
	}
	if init.ServerInfo.Name != "zentao-mcp" {
		t.Errorf("server name = %q", init.ServerInfo.Name)
	}
	if init.Capabilities.Tools == nil {
		t.Error("tools capability not advertised")
	}
}

func TestHandleInitializedNotification(t *testing.T) {
	h := NewHandler()

	result, rpcErr := h.ProcessRequest(context.Background(), &jsonrpc.Request{
		JSONRPC: "2.0", Method: "notifications/initialized",
	})
	if rpcErr != nil || result != nil {
		t.Errorf("initialized: result=%v err=%v, want nil/nil", result, rpcErr)
	}
}

func TestHandleToolsList(t *testing.T) {
	modules.RegisterModule(stubModule{})
	h := NewHandler()

	result, rpcErr := h.ProcessRequest(context.Background(), &jsonrpc.Request{
		JSONRPC: "2.0", ID: 2, Method: "tools/list",
	})
	if rpcErr != nil {
		t.Fatalf("tools/list: %+v", rpcErr)
	}

	list, ok := result.(*ToolsListResult)
	if !ok {
		t.Fatalf("result type = %T", result)
	}
	found := false
	for _, tool := range list.Tools {
		if tool.Name == "stub_echo" {
			found = true
		}
	}
	if !found {
		t.Errorf("tools = %+v, missing stub_echo", list.Tools)
	}
}

func TestHandleToolCall(t *testing.T) {
	modules.RegisterModule(stubModule{})
	h := NewHandler()

	result, rpcErr := h.ProcessRequest(context.Background(), &jsonrpc.Request{
		JSONRPC: "2.0", ID: 3, Method: "tools/call",
		Params: map[string]any{
			"name":      "stub_echo",
			"arguments": map[string]any{"text": "ping"},
		},
	})
	if rpcErr != nil {
		t.Fatalf("tools/call: %+v", rpcErr)
	}

	call, ok := result.(*ToolCallResult)
	if !ok {
		t.Fatalf("result type = %T", result)
	}
	if call.IsError || call.Content[0].Text != "ping" {
		t.Errorf("result = %+v, want ping", call)
	}
}

func TestHandleToolCallValidation(t *testing.T) {
	modules.RegisterModule(stubModule{})
	h := NewHandler()

	// Missing required param surfaces as an isError tool result, not a
	// protocol error.
	result, rpcErr := h.ProcessRequest(context.Background(), &jsonrpc.Request{
		JSONRPC: "2.0", ID: 4, Method: "tools/call",
		Params: map[string]any{"name": "stub_echo"},
	})
	if rpcErr != nil {
		t.Fatalf("tools/call: %+v", rpcErr)
	}
	if call := result.(*ToolCallResult); !call.IsError {
		t.Errorf("result = %+v, want isError", call)
	}
}

func TestHandleToolCallMissingName(t *testing.T) {
	h := NewHandler()

	_, rpcErr := h.ProcessRequest(context.Background(), &jsonrpc.Request{
		JSONRPC: "2.0", ID: 5, Method: "tools/call",
		Params: map[string]any{"arguments": map[string]any{}},
	})
	if rpcErr == nil || rpcErr.Code != InvalidParams {
		t.Errorf("error = %+v, want InvalidParams", rpcErr)
	}
}

func TestHandleUnknownMethod(t *testing.T) {
	h := NewHandler()

	_, rpcErr := h.ProcessRequest(context.Background(), &jsonrpc.Request{
		JSONRPC: "2.0", ID: 6, Method: "resources/list",
	})
	if rpcErr == nil || rpcErr.Code != MethodNotFound {
		t.Errorf("error = %+v, want MethodNotFound", rpcErr)
	}
}

func TestToolsListSerializesEmpty(t *testing.T) {
	list := &ToolsListResult{Tools: []modules.Tool{}}
	b, err := json.Marshal(list)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"tools":[]}` {
		t.Errorf("marshal = %s, want an empty array not null", b)
	}
}
