package service

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/responses"
	"github.com/openai/openai-go/v3/shared"
)

// Client drives conversations through the OpenAI Responses API. Every turn
// is stored server-side and chained to its predecessor via the response ID,
// so the client itself holds no conversation state and is safe to share
// between sessions.
type Client struct {
	api       openai.Client
	model     string
	reasoning shared.ReasoningEffort
	tools     []responses.ToolUnionParam
}

func NewClient(api openai.Client, model, reasoningEffort, vectorStoreID string) *Client {
	return &Client{
		api:       api,
		model:     model,
		reasoning: shared.ReasoningEffort(reasoningEffort),
		tools: []responses.ToolUnionParam{
			CompileSnippetTool,
			FileSearchTool(vectorStoreID),
			ReportIssueTool,
		},
	}
}

func (c *Client) CreateTurn(ctx context.Context, req Request) (*Turn, error) {
	var input responses.ResponseInputParam
	if req.System != "" {
		input = append(input, message(responses.EasyInputMessageRoleSystem, req.System))
	}
	for _, out := range req.ToolOutputs {
		input = append(input, responses.ResponseInputItemUnionParam{
			OfFunctionCallOutput: &responses.ResponseInputItemFunctionCallOutputParam{
				CallID: out.CallID,
				Output: responses.ResponseInputItemFunctionCallOutputOutputUnionParam{
					OfString: openai.String(out.Output),
				},
			},
		})
	}
	for _, text := range req.Messages {
		input = append(input, message(responses.EasyInputMessageRoleUser, text))
	}

	params := responses.ResponseNewParams{
		Model: shared.ResponsesModel(c.model),
		Input: responses.ResponseNewParamsInputUnion{OfInputItemList: input},
		Tools: c.tools,
		ToolChoice: responses.ResponseNewParamsToolChoiceUnion{
			OfToolChoiceMode: openai.Opt(responses.ToolChoiceOptionsRequired),
		},
		Store: openai.Bool(true),
	}
	if c.reasoning != "" {
		params.Reasoning = shared.ReasoningParam{Effort: c.reasoning}
	}
	if req.PreviousID != "" {
		params.PreviousResponseID = openai.String(req.PreviousID)
	}

	resp, err := c.api.Responses.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("create turn: %w", err)
	}

	turn := &Turn{ID: resp.ID}
	for _, item := range resp.Output {
		turn.Items = append(turn.Items, convertItem(item))
	}
	return turn, nil
}

func message(role responses.EasyInputMessageRole, text string) responses.ResponseInputItemUnionParam {
	return responses.ResponseInputItemUnionParam{
		OfMessage: &responses.EasyInputMessageParam{
			Role:    role,
			Content: responses.EasyInputMessageContentUnionParam{OfString: openai.String(text)},
		},
	}
}

func convertItem(item responses.ResponseOutputItemUnion) Item {
	switch item.Type {
	case "function_call":
		call := item.AsFunctionCall()
		return Item{Kind: KindToolCall, Name: call.Name, CallID: call.CallID, Arguments: call.Arguments}
	case "message":
		msg := item.AsMessage()
		converted := Item{Kind: KindMessage}
		for _, content := range msg.Content {
			if content.Type != "output_text" {
				continue
			}
			converted.Text += content.Text
			for _, annotation := range content.Annotations {
				if annotation.Type == "file_citation" {
					converted.Citations = append(converted.Citations, annotation.Filename)
				}
			}
		}
		return converted
	case "file_search_call":
		return Item{Kind: KindSearchCall}
	case "reasoning":
		return Item{Kind: KindReasoning}
	default:
		return Item{Kind: KindOther, Raw: item.Type}
	}
}
