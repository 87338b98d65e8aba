package service

import (
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/responses"
)

// Tool names of the fixed catalogue exposed to the agent.
const (
	ToolCompile = "compile_snippet"
	ToolReport  = "report_issue"
)

var CompileSnippetTool = responses.ToolUnionParam{
	OfFunction: &responses.FunctionToolParam{
		Name: ToolCompile,
		Description: openai.String(
			"Compiles a provided Tact source code snippet using the Tact compiler. " +
				"You must supply the exact source code snippet you wish to test as input. " +
				"The tool returns the exact, verbatim output produced by the compiler, " +
				"including compilation success status, error messages, warnings, or internal errors."),
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"code": map[string]any{
					"type": "string",
					"description": "The complete Tact source code snippet to compile. " +
						"Ensure the snippet is concise, minimal, and specifically designed " +
						"to test or validate a documented claim or compiler behavior.",
				},
			},
			"required":             []string{"code"},
			"additionalProperties": false,
		},
		Strict: openai.Bool(true),
	},
}

// CompileArguments is the payload of a compile_snippet tool call.
type CompileArguments struct {
	Code string `json:"code"`
}

var ReportIssueTool = responses.ToolUnionParam{
	OfFunction: &responses.FunctionToolParam{
		Name: ToolReport,
		Description: openai.String(
			"Use ONLY to report a CONFIRMED compiler bug or documentation mismatch. " +
				"Include full reproduction details and set `found_issue` accordingly. " +
				"Use `found_issue: false` ONLY if the agent itself is misbehaving."),
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"reason": map[string]any{
					"type": "string",
					"description": "Full, detailed description of the confirmed issue. Must include a " +
						"reproducible Tact snippet, expected vs. actual behavior, and a citation from the documentation.",
				},
				"found_issue": map[string]any{
					"type": "boolean",
					"description": "`true` if you are reporting a confirmed compiler bug or documentation " +
						"mismatch. `false` ONLY if you are malfunctioning or unable to continue.",
				},
			},
			"required":             []string{"reason", "found_issue"},
			"additionalProperties": false,
		},
		Strict: openai.Bool(true),
	},
}

// ReportArguments is the payload of a report_issue tool call.
type ReportArguments struct {
	Reason     string `json:"reason"`
	FoundIssue bool   `json:"found_issue"`
}

// FileSearchTool exposes the documentation corpus behind the given vector
// store to the agent.
func FileSearchTool(vectorStoreID string) responses.ToolUnionParam {
	return responses.ToolUnionParam{
		OfFileSearch: &responses.FileSearchToolParam{
			VectorStoreIDs: []string{vectorStoreID},
			MaxNumResults:  openai.Int(10),
		},
	}
}
