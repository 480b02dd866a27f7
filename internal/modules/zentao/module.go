package zentao

import (
	"context"
	"fmt"

	"zentao-mcp/server/internal/modules"
	"zentao-mcp/server/pkg/zentaoapi"
)

const zentaoAPIVersion = "v1"

// ZentaoModule implements the Module interface for the ZenTao REST API
type ZentaoModule struct {
	client *zentaoapi.Client
}

// New creates a new ZentaoModule bound to an upstream client
func New(client *zentaoapi.Client) *ZentaoModule {
	return &ZentaoModule{client: client}
}

// Name returns the module name
func (m *ZentaoModule) Name() string {
	return "zentao"
}

// Description returns the module description
func (m *ZentaoModule) Description() string {
	return "ZenTao bug tracker - product listing, bug listing, bug statistics, and per-account bug queries"
}

// APIVersion returns the upstream API version
func (m *ZentaoModule) APIVersion() string {
	return zentaoAPIVersion
}

// Tools returns all available tools
func (m *ZentaoModule) Tools() []modules.Tool {
	return toolDefinitions
}

// ExecuteTool executes a tool by name and returns JSON response
func (m *ZentaoModule) ExecuteTool(ctx context.Context, name string, params map[string]any) (string, error) {
	handler, ok := toolHandlers[name]
	if !ok {
		return "", fmt.Errorf("unknown tool: %s", name)
	}
	return handler(ctx, m.client, params)
}

var toJSON = modules.ToJSON

// =============================================================================
// Tool Definitions
// =============================================================================

var toolDefinitions = []modules.Tool{
	{
		ID:          "zentao:products_list",
		Name:        "zentao_products_list",
		Description: "List products in the ZenTao instance, including their per-product bug counters.",
		Annotations: modules.AnnotateReadOnly,
		InputSchema: modules.InputSchema{
			Type: "object",
			Properties: map[string]modules.Property{
				"page":  {Type: "number", Description: "Page number. Default: 1"},
				"limit": {Type: "number", Description: "Products per page. Default: 1000"},
			},
		},
	},
	{
		ID:          "zentao:bugs_list",
		Name:        "zentao_bugs_list",
		Description: "List bugs of a product, one page at a time. Returns the upstream listing as-is.",
		Annotations: modules.AnnotateReadOnly,
		InputSchema: modules.InputSchema{
			Type: "object",
			Properties: map[string]modules.Property{
				"product": {Type: "number", Description: "Product ID (required)"},
				"page":    {Type: "number", Description: "Page number. Default: 1"},
				"limit":   {Type: "number", Description: "Bugs per page. Default: 20"},
			},
			Required: []string{"product"},
		},
	},
	{
		ID:          "zentao:bugs_stats",
		Name:        "zentao_bugs_stats",
		Description: "Aggregate per-product bug counts across the whole instance from the product listing's counters.",
		Annotations: modules.AnnotateReadOnly,
		InputSchema: modules.InputSchema{
			Type: "object",
			Properties: map[string]modules.Property{
				"include_zero": {Type: "boolean", Description: "Keep products with zero bugs. Default: false"},
				"limit":        {Type: "number", Description: "Maximum products to read. Default: 1000"},
			},
		},
	},
	{
		ID:          "zentao:bugs_mine",
		Name:        "zentao_bugs_mine",
		Description: "Scan every product's bugs and report the ones belonging to an account. Matches the account against assignee, opener, or resolver fields depending on scope.",
		Annotations: modules.AnnotateReadOnly,
		InputSchema: modules.InputSchema{
			Type: "object",
			Properties: map[string]modules.Property{
				"account": {Type: "string", Description: "Target account login. Default: the configured session account"},
				"scope":   {Type: "string", Description: "Which role to match: assigned, opened, resolved, or all. Default: assigned"},
				"status":  {Type: "string", Description: "Status filter, comma or pipe separated (e.g. \"active,resolved\"). \"all\" disables filtering. Default: active"},
				"products": {
					Type:        "array",
					Description: "Restrict the scan to these product IDs. Default: all products",
					Items:       &modules.Property{Type: "number"},
				},
				"include_zero":    {Type: "boolean", Description: "Keep product rows with zero matching bugs. Default: false"},
				"include_details": {Type: "boolean", Description: "Include per-bug detail records. Default: false"},
				"max_items":       {Type: "number", Description: "Cap on detail records. Default: 200"},
				"per_page":        {Type: "number", Description: "Bug scan page size. Default: 100"},
			},
		},
	},
}

// =============================================================================
// Tool Handlers
// =============================================================================

var toolHandlers = map[string]func(ctx context.Context, c *zentaoapi.Client, params map[string]any) (string, error){
	"zentao_products_list": handleProductsList,
	"zentao_bugs_list":     handleBugsList,
	"zentao_bugs_stats":    handleBugsStats,
	"zentao_bugs_mine":     handleBugsMine,
}

func handleProductsList(ctx context.Context, c *zentaoapi.Client, params map[string]any) (string, error) {
	res, err := c.ListProducts(ctx,
		modules.ToInt(params["page"], 0),
		modules.ToInt(params["limit"], 0))
	if err != nil {
		return "", err
	}
	return toJSON(res)
}

func handleBugsList(ctx context.Context, c *zentaoapi.Client, params map[string]any) (string, error) {
	res, err := c.ListBugs(ctx,
		modules.ToInt(params["product"], 0),
		modules.ToInt(params["page"], 0),
		modules.ToInt(params["limit"], 0))
	if err != nil {
		return "", err
	}
	return toJSON(res)
}

func handleBugsStats(ctx context.Context, c *zentaoapi.Client, params map[string]any) (string, error) {
	res, err := c.BugStats(ctx,
		modules.ToBool(params["include_zero"]),
		modules.ToInt(params["limit"], 0))
	if err != nil {
		return "", err
	}
	return toJSON(res)
}

func handleBugsMine(ctx context.Context, c *zentaoapi.Client, params map[string]any) (string, error) {
	statusParam, hasStatus := params["status"]
	if !hasStatus {
		statusParam = "active"
	}

	account, _ := params["account"].(string)
	scope, _ := params["scope"].(string)

	res, err := c.MyBugs(ctx, zentaoapi.MyBugsOptions{
		Account:        account,
		Scope:          scope,
		Status:         zentaoapi.ParseStatusFilter(statusParam),
		ProductIDs:     modules.ToIntSlice(params["products"]),
		IncludeZero:    modules.ToBool(params["include_zero"]),
		PerPage:        modules.ToInt(params["per_page"], 0),
		MaxItems:       modules.ToInt(params["max_items"], 0),
		IncludeDetails: modules.ToBool(params["include_details"]),
	})
	if err != nil {
		return "", err
	}
	return toJSON(res)
}
