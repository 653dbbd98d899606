package cliapp

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/pkoukk/tiktoken-go"

	"github.com/Davincible/provider-runtime-go/internal/core/types"
	"github.com/Davincible/provider-runtime-go/internal/handoff"
	"github.com/Davincible/provider-runtime-go/internal/runtime"
	"github.com/Davincible/provider-runtime-go/internal/transport"
)

// maxToolRoundsPerTurn bounds how many provider round-trips a single user
// turn may spend resolving tool calls before the loop gives up and warns.
const maxToolRoundsPerTurn = 8

// ChatOptions configures a single interactive session.
type ChatOptions struct {
	Provider        types.ProviderID
	Model           string
	MaxOutputTokens *uint32
}

// RunChat drives the bounded per-turn tool-round loop against rt until in
// reaches EOF or the user types /exit or /quit. /clear resets history
// without ending the session. A turn that errors mid-flight rolls the
// conversation back to its state before the turn started, so a failed
// request never leaves a dangling user message for the next turn to
// build on.
func RunChat(ctx context.Context, rt *runtime.Runtime, opts ChatOptions, in io.Reader, out io.Writer) error {
	sessionID := transport.NewRequestID()
	fmt.Fprintf(out, "chat: session=%s, provider=%s, model=%s, commands=/exit /quit /clear\n", sessionID, opts.Provider, opts.Model)

	encoder, encErr := tiktoken.GetEncoding("cl100k_base")

	history := make([]types.Message, 0)
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}

		userText := strings.TrimSpace(scanner.Text())
		if userText == "" {
			continue
		}

		switch strings.ToLower(userText) {
		case "/exit", "/quit":
			return nil
		case "/clear":
			history = history[:0]
			fmt.Fprintln(out, "(history cleared)")
			continue
		}

		if encErr == nil {
			color.New(color.FgHiBlack).Fprintf(out, "[~%d prompt tokens]\n", len(encoder.Encode(userText, nil, nil)))
		}

		checkpointLen := len(history)
		history = append(history, types.Message{Role: types.RoleUser, Content: []types.ContentPart{types.TextPart(userText)}})

		if err := runTurn(ctx, rt, opts, &history, out); err != nil {
			color.Red("error: %v", err)
			history = history[:checkpointLen]
		}
	}
}

func runTurn(ctx context.Context, rt *runtime.Runtime, opts ChatOptions, history *[]types.Message, out io.Writer) error {
	for round := 0; round < maxToolRoundsPerTurn; round++ {
		request := types.ProviderRequest{
			Model: types.ModelRef{
				ProviderHint: &opts.Provider,
				ModelID:      opts.Model,
			},
			Messages:        handoff.NormalizeHandoffMessages(*history, opts.Provider),
			Tools:           builtInTools(),
			ToolChoice:      types.DefaultToolChoice(),
			ResponseFormat:  types.DefaultResponseFormat(),
			MaxOutputTokens: opts.MaxOutputTokens,
		}

		response, runErr := rt.Run(ctx, request)
		if runErr != nil {
			return runErr
		}

		// thinking parts are shown but not replayed; OpenRouter rejects
		// them on encode and no provider needs them re-sent.
		assistantContent := withoutThinking(response.Output.Content)
		if len(assistantContent) > 0 {
			*history = append(*history, types.Message{Role: types.RoleAssistant, Content: assistantContent})
		}

		toolCalls := printAssistantContent(out, response)

		if len(toolCalls) == 0 {
			return nil
		}

		for _, call := range toolCalls {
			result := executeTool(call)
			fmt.Fprintf(out, "[tool executed: name=%s, tool_call_id=%s]\n", call.Name, call.ID)
			*history = append(*history, types.Message{Role: types.RoleTool, Content: []types.ContentPart{types.ToolResultPart(result)}})
		}
	}

	color.Yellow("warning: reached tool loop safety cap (%d rounds)", maxToolRoundsPerTurn)
	return nil
}

func withoutThinking(content []types.ContentPart) []types.ContentPart {
	kept := make([]types.ContentPart, 0, len(content))
	for _, part := range content {
		if part.Kind == types.ContentThinking {
			continue
		}
		kept = append(kept, part)
	}
	return kept
}

func printAssistantContent(out io.Writer, response types.ProviderResponse) []types.ToolCall {
	var toolCalls []types.ToolCall
	printedAny := false

	for _, part := range response.Output.Content {
		switch part.Kind {
		case types.ContentText:
			if strings.TrimSpace(part.Text) != "" {
				color.New(color.FgGreen).Fprintln(out, part.Text)
				printedAny = true
			}
		case types.ContentThinking:
			color.New(color.FgHiBlack).Fprintf(out, "[thinking: %s]\n", part.ThinkingText)
			printedAny = true
		case types.ContentToolCall:
			fmt.Fprintf(out, "[tool_call emitted: id=%s, name=%s, args=%v]\n", part.ToolCall.ID, part.ToolCall.Name, part.ToolCall.ArgumentsJSON)
			toolCalls = append(toolCalls, part.ToolCall)
			printedAny = true
		case types.ContentToolResult:
			fmt.Fprintf(out, "[tool_result echoed: tool_call_id=%s]\n", part.ToolResult.ToolCallID)
			printedAny = true
		}
	}

	for _, warning := range response.Warnings {
		color.Yellow("[warning: %s] %s", warning.Code, warning.Message)
	}

	if !printedAny {
		fmt.Fprintf(out, "[empty assistant output; finish_reason=%s]\n", response.FinishReason)
	}

	return toolCalls
}
