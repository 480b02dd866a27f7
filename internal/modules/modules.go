package modules

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"zentao-mcp/server/internal/observability"
)

// =============================================================================
// Registry
// =============================================================================

// registry holds all registered modules
var registry = make(map[string]Module)

// RegisterModule adds a module to the registry
func RegisterModule(m Module) {
	registry[m.Name()] = m
}

// GetModule returns a module by name
func GetModule(name string) (Module, bool) {
	m, ok := registry[name]
	return m, ok
}

// ListModules returns all registered module names
func ListModules() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}

// ListAllTools returns every tool of every registered module, for tools/list.
func ListAllTools() []Tool {
	var tools []Tool
	for _, m := range registry {
		tools = append(tools, m.Tools()...)
	}
	return tools
}

// =============================================================================
// Instrumentation
// =============================================================================

var (
	tracer = otel.Tracer("zentao-mcp/server/internal/modules")
	meter  = otel.Meter("zentao-mcp/server/internal/modules")

	toolCalls    metric.Int64Counter
	toolDuration metric.Float64Histogram
)

func init() {
	var err error
	toolCalls, err = meter.Int64Counter("mcp.tool.calls",
		metric.WithDescription("Number of tool executions"))
	if err != nil {
		panic(err)
	}
	toolDuration, err = meter.Float64Histogram("mcp.tool.duration",
		metric.WithDescription("Tool execution duration"),
		metric.WithUnit("ms"))
	if err != nil {
		panic(err)
	}
}

// =============================================================================
// Tool Execution
// =============================================================================

// toolTimeout is the maximum duration for a single tool execution. A "my
// bugs" scan can walk many bug pages, so the budget is generous.
const toolTimeout = 120 * time.Second

// Run executes a single tool in a module
func Run(ctx context.Context, moduleName, toolName string, params map[string]any) (*ToolCallResult, error) {
	start := time.Now()

	m, ok := registry[moduleName]
	if !ok {
		return ErrorResult(fmt.Sprintf("Unknown module: %s", moduleName)), nil
	}

	// Validate params against tool's InputSchema
	tool, found := findTool(m.Tools(), toolName)
	if !found {
		return ErrorResult(fmt.Sprintf("Unknown tool: %s. Available: %s", toolName, toolNames(m.Tools()))), nil
	}
	params, err := ValidateParams(tool.InputSchema, params)
	if err != nil {
		return ErrorResult(err.Error()), nil
	}

	ctx, cancel := context.WithTimeout(ctx, toolTimeout)
	defer cancel()

	ctx, span := tracer.Start(ctx, "tool "+tool.ID,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("mcp.module", moduleName),
			attribute.String("mcp.tool", toolName),
		))
	defer span.End()

	result, err := m.ExecuteTool(ctx, toolName, params)
	durationMs := time.Since(start).Milliseconds()

	status := "success"
	errMsg := ""
	if err != nil {
		status = "error"
		errMsg = err.Error()
		if ctx.Err() == context.DeadlineExceeded {
			errMsg = fmt.Sprintf("Request to %s timed out after %s. The tracker did not respond in time.", moduleName, toolTimeout)
		}
		span.SetStatus(codes.Error, errMsg)
		span.RecordError(err)
	}

	attrs := metric.WithAttributes(
		attribute.String("mcp.module", moduleName),
		attribute.String("mcp.tool", toolName),
		attribute.String("mcp.status", status),
	)
	toolCalls.Add(ctx, 1, attrs)
	toolDuration.Record(ctx, float64(durationMs), attrs)

	observability.LogToolCall(moduleName, toolName, durationMs, status, errMsg)

	if err != nil {
		return ErrorResult(errMsg), nil
	}
	return TextResult(result), nil
}

// Dispatch locates the module owning toolName and runs it. Tools are exposed
// to MCP clients as a flat list, so the dispatcher resolves the owner by
// scanning each module's tool definitions.
func Dispatch(ctx context.Context, toolName string, params map[string]any) (*ToolCallResult, error) {
	for name, m := range registry {
		if _, ok := findTool(m.Tools(), toolName); ok {
			return Run(ctx, name, toolName, params)
		}
	}
	return ErrorResult(fmt.Sprintf("Unknown tool: %s. Available: %s", toolName, toolNames(ListAllTools()))), nil
}

func toolNames(tools []Tool) string {
	names := make([]string, 0, len(tools))
	for _, t := range tools {
		names = append(names, t.Name)
	}
	return strings.Join(names, ", ")
}
