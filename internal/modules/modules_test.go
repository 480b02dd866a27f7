package modules

import (
	"context"
	"fmt"
	"strings"
	"testing"
)

// fakeModule is a minimal Module for registry and dispatch tests.
type fakeModule struct {
	name  string
	tools []Tool
	exec  func(ctx context.Context, name string, params map[string]any) (string, error)
}

func (m *fakeModule) Name() string        { return m.name }
func (m *fakeModule) Description() string { return "test module" }
func (m *fakeModule) APIVersion() string  { return "v1" }
func (m *fakeModule) Tools() []Tool       { return m.tools }
func (m *fakeModule) ExecuteTool(ctx context.Context, name string, params map[string]any) (string, error) {
	return m.exec(ctx, name, params)
}

func registerFake(t *testing.T, m *fakeModule) {
	t.Helper()
	RegisterModule(m)
	t.Cleanup(func() { delete(registry, m.name) })
}

func echoModule() *fakeModule {
	return &fakeModule{
		name: "echo",
		tools: []Tool{{
			ID:   "echo:say",
			Name: "echo_say",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"text": {Type: "string", Description: "text to echo"},
				},
				Required: []string{"text"},
			},
		}},
		exec: func(ctx context.Context, name string, params map[string]any) (string, error) {
			return params["text"].(string), nil
		},
	}
}

func TestRun(t *testing.T) {
	registerFake(t, echoModule())

	result, err := Run(context.Background(), "echo", "echo_say", map[string]any{"text": "hello"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error result: %+v", result)
	}
	if result.Content[0].Text != "hello" {
		t.Errorf("text = %q, want hello", result.Content[0].Text)
	}
}

func TestRunValidatesParams(t *testing.T) {
	registerFake(t, echoModule())

	result, err := Run(context.Background(), "echo", "echo_say", nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected an error result for a missing required param")
	}
	if !strings.Contains(result.Content[0].Text, "text") {
		t.Errorf("error text %q does not name the missing param", result.Content[0].Text)
	}
}

func TestRunUnknownModule(t *testing.T) {
	result, err := Run(context.Background(), "nope", "whatever", nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected an error result for an unknown module")
	}
}

func TestRunUnknownTool(t *testing.T) {
	registerFake(t, echoModule())

	result, err := Run(context.Background(), "echo", "echo_shout", nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected an error result for an unknown tool")
	}
	if !strings.Contains(result.Content[0].Text, "echo_say") {
		t.Errorf("error text %q does not list available tools", result.Content[0].Text)
	}
}

func TestRunExecuteErrorBecomesErrorResult(t *testing.T) {
	m := echoModule()
	m.exec = func(ctx context.Context, name string, params map[string]any) (string, error) {
		return "", fmt.Errorf("upstream exploded")
	}
	registerFake(t, m)

	result, err := Run(context.Background(), "echo", "echo_say", map[string]any{"text": "hi"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected an error result")
	}
	if result.Content[0].Text != "upstream exploded" {
		t.Errorf("text = %q, want the execution error", result.Content[0].Text)
	}
}

func TestDispatchFindsOwningModule(t *testing.T) {
	registerFake(t, echoModule())

	result, err := Dispatch(context.Background(), "echo_say", map[string]any{"text": "via dispatch"})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error result: %+v", result)
	}
	if result.Content[0].Text != "via dispatch" {
		t.Errorf("text = %q, want via dispatch", result.Content[0].Text)
	}
}

func TestDispatchUnknownTool(t *testing.T) {
	registerFake(t, echoModule())

	result, err := Dispatch(context.Background(), "no_such_tool", nil)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected an error result for an unknown tool")
	}
}

func TestListAllTools(t *testing.T) {
	registerFake(t, echoModule())

	tools := ListAllTools()
	found := false
	for _, tool := range tools {
		if tool.Name == "echo_say" {
			found = true
		}
	}
	if !found {
		t.Errorf("ListAllTools() = %+v, missing echo_say", tools)
	}
}
