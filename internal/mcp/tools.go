package mcp

import (
	"fmt"
	"strings"
)

// toolDefinitions returns the tools/list payload. categories are listed in
// the descriptions so clients can narrow searches.
func toolDefinitions(categories []string) []map[string]any {
	available := "none"
	if len(categories) > 0 {
		available = strings.Join(categories, ", ")
	}

	categoryProp := map[string]any{
		"type":        "string",
		"description": "Only return operations in this category",
	}
	if len(categories) > 0 {
		categoryProp["enum"] = categories
	}

	return []map[string]any{
		{
			"name": "search_tool",
			"description": fmt.Sprintf(`Find operations by describing what you want to do in natural language.

WHEN TO USE: Before execute_tool, when you do not know the exact operation name or its parameters.

Returns: Ranked operations with name, description, category, relevance score (0-1), parameter schema and examples.

AVAILABLE CATEGORIES: %s

Example queries: "add two numbers", "area of a circle", "standard deviation of a list"`, available),
			"inputSchema": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "Natural language description of the task",
					},
					"limit": map[string]any{
						"type":        "integer",
						"description": "Maximum number of results",
						"minimum":     1,
					},
					"category": categoryProp,
				},
				"required": []string{"query"},
			},
		},
		{
			"name": "execute_tool",
			"description": `Execute an operation by name with the given parameters.

WORKFLOW:
1. search_tool(query) → pick an operation and read its parameters
2. execute_tool(operationName, parameters) → run it

Parameters are validated against the operation's schema; every invalid field is reported at once.

Example: execute_tool(operationName="add", parameters={"a": 5, "b": 3})`,
			"inputSchema": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"operationName": map[string]any{
						"type":        "string",
						"description": "Operation name from search_tool",
					},
					"parameters": map[string]any{
						"type":        "object",
						"description": "Operation parameters (schema from search_tool)",
					},
					"timeoutSeconds": map[string]any{
						"type":        "number",
						"description": "Override the default execution timeout",
						"minimum":     0,
					},
				},
				"required": []string{"operationName"},
			},
		},
		{
			"name":        "server_info",
			"description": "Report catalog size, categories, index health, embedder and usage history.",
			"inputSchema": map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			},
		},
	}
}
