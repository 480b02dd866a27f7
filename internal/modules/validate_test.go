package modules

import (
	"strings"
	"testing"
)

func TestValidateParams(t *testing.T) {
	schema := InputSchema{
		Type: "object",
		Properties: map[string]Property{
			"product":      {Type: "number"},
			"account":      {Type: "string"},
			"include_zero": {Type: "boolean"},
			"products":     {Type: "array"},
			"options":      {Type: "object"},
		},
		Required: []string{"product"},
	}

	tests := []struct {
		name    string
		params  map[string]any
		wantErr string
	}{
		{
			"valid params",
			map[string]any{"product": float64(1), "account": "alice"},
			"",
		},
		{
			"missing required",
			map[string]any{"account": "alice"},
			"missing required parameter(s): product",
		},
		{
			"nil required value",
			map[string]any{"product": nil},
			"missing required parameter(s): product",
		},
		{
			"wrong number type",
			map[string]any{"product": "1"},
			`parameter "product": expected number`,
		},
		{
			"wrong string type",
			map[string]any{"product": float64(1), "account": float64(7)},
			`parameter "account": expected string`,
		},
		{
			"wrong boolean type",
			map[string]any{"product": float64(1), "include_zero": "yes"},
			`parameter "include_zero": expected boolean`,
		},
		{
			"wrong array type",
			map[string]any{"product": float64(1), "products": "2,3"},
			`parameter "products": expected array`,
		},
		{
			"wrong object type",
			map[string]any{"product": float64(1), "options": []any{}},
			`parameter "options": expected object`,
		},
		{
			"extra param passes through",
			map[string]any{"product": float64(1), "undeclared": "anything"},
			"",
		},
		{
			"nil optional value skipped",
			map[string]any{"product": float64(1), "account": nil},
			"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateParams(schema, tt.params)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("ValidateParams() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("ValidateParams() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateParamsRequiredEmptyString(t *testing.T) {
	schema := InputSchema{
		Type:       "object",
		Properties: map[string]Property{"account": {Type: "string"}},
		Required:   []string{"account"},
	}

	_, err := ValidateParams(schema, map[string]any{"account": ""})
	if err == nil {
		t.Error("expected an empty required string to count as missing")
	}
}

func TestValidateParamsNilMap(t *testing.T) {
	schema := InputSchema{Type: "object", Properties: map[string]Property{}}

	params, err := ValidateParams(schema, nil)
	if err != nil {
		t.Fatalf("ValidateParams() error = %v", err)
	}
	if params == nil {
		t.Error("expected a non-nil params map")
	}
}

func TestFindTool(t *testing.T) {
	tools := []Tool{
		{ID: "zentao:bugs_list", Name: "zentao_bugs_list"},
		{ID: "zentao:bugs_mine", Name: "zentao_bugs_mine"},
	}

	if tool, ok := findTool(tools, "zentao_bugs_mine"); !ok || tool.ID != "zentao:bugs_mine" {
		t.Errorf("findTool() = %+v, %v", tool, ok)
	}
	if _, ok := findTool(tools, "zentao_bugs_stats"); ok {
		t.Error("findTool() found a tool that does not exist")
	}
}
