package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/qmuntal/stateless"
	"github.com/sashabaranov/go-openai"

	"github.com/comigor/duckling-go/internal/config"
	"github.com/comigor/duckling-go/internal/history"
	"github.com/comigor/duckling-go/internal/llm"
	"github.com/comigor/duckling-go/internal/logger"
	"github.com/comigor/duckling-go/pkg/tools"
)

// FSM States
type FSMState stateless.State

var (
	StatePending        FSMState = "Pending"
	StateCallingLLM     FSMState = "CallingLLM"
	StateExecutingTools FSMState = "ExecutingTools"
	StateDone           FSMState = "Done"  // Terminal: successful completion
	StateError          FSMState = "Error" // Terminal: error state
)

// FSM Triggers
type FSMTrigger stateless.Trigger

var (
	TriggerProcessInput            FSMTrigger = "ProcessInput"
	TriggerLLMRespondedWithContent FSMTrigger = "LLMRespondedWithContent"
	TriggerLLMRequestedTools       FSMTrigger = "LLMRequestedTools"
	TriggerToolsExecutionCompleted FSMTrigger = "ToolsExecutionCompleted"
	TriggerErrorOccurred           FSMTrigger = "ErrorOccurred"
)

const defaultMaxTurns = 5

// ErrMaxTurns is returned when the model keeps requesting tools past the turn limit.
var ErrMaxTurns = errors.New("exceeded maximum interaction turns")

// Input is what the agent sees for one turn.
type Input struct {
	Input       string
	ChatHistory string
}

// Invocation records one tool call made during a turn.
type Invocation struct {
	Tool      string
	Arguments string
	Output    string
}

// Response is the outcome of one agent turn.
type Response struct {
	Output      string
	Invocations []Invocation
}

// Invoked reports whether the named tool was called, whatever its outcome.
func (r *Response) Invoked(tool string) bool {
	for _, inv := range r.Invocations {
		if inv.Tool == tool {
			return true
		}
	}
	return false
}

// Agent runs the model/tool loop.
type Agent struct {
	llmClient llm.Client
	cfg       config.LLMConfig
	tools     *tools.ToolManager
}

// New creates a new agent.
func New(llmClient llm.Client, cfg config.LLMConfig, manager *tools.ToolManager) *Agent {
	if manager == nil {
		manager = tools.NewToolManager()
	}
	return &Agent{llmClient: llmClient, cfg: cfg, tools: manager}
}

// FormatHistory flattens messages into "Human: ..." / "Assistant: ..." lines.
func FormatHistory(msgs []history.Message) string {
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		speaker := "Human"
		if m.Role == history.RoleAssistant {
			speaker = "Assistant"
		}
		lines = append(lines, speaker+": "+m.Content)
	}
	return strings.Join(lines, "\n")
}

func buildMessages(systemPrompt string, in Input) []openai.ChatCompletionMessage {
	msgs := []openai.ChatCompletionMessage{}
	if systemPrompt != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: systemPrompt})
	}
	if in.ChatHistory != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: "Previous conversation history:\n" + in.ChatHistory,
		})
	}
	return append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: in.Input})
}

// Respond answers input given the prior turns in hist. When the loop fails after
// tools have run, the partial Response is returned together with the error.
// Respond uses a Finite State Machine to manage the conversation flow with the LLM and tool calls.
func (a *Agent) Respond(ctx context.Context, systemPrompt string, hist []history.Message, input string) (*Response, error) {
	// FSM context data
	type fsmContext struct {
		messages    []openai.ChatCompletionMessage
		llmResponse *openai.ChatCompletionResponse
		result      Response
		lastError   error
		currentTurn int
		maxTurns    int
	}

	fsmCtx := &fsmContext{
		messages: buildMessages(systemPrompt, Input{Input: input, ChatHistory: FormatHistory(hist)}),
		maxTurns: a.cfg.MaxTurns,
	}
	if fsmCtx.maxTurns <= 0 {
		fsmCtx.maxTurns = defaultMaxTurns
	}
	toolDefs := a.tools.Definitions()

	// Triggers fired from entry actions are queued and run once the current transition completes.
	fsm := stateless.NewStateMachineWithMode(StatePending, stateless.FiringQueued)

	fail := func(ctx context.Context, err error) error {
		fsmCtx.lastError = err
		return fsm.FireCtx(ctx, TriggerErrorOccurred)
	}

	fsm.Configure(StatePending).
		Permit(TriggerProcessInput, StateCallingLLM)

	// State: CallingLLM
	// Action: Call LLM with current messages.
	fsm.Configure(StateCallingLLM).
		OnEntry(func(ctx context.Context, args ...any) error {
			if fsmCtx.currentTurn >= fsmCtx.maxTurns {
				logger.L.Warn("Max interaction turns reached.", "maxTurns", fsmCtx.maxTurns)
				return fail(ctx, ErrMaxTurns)
			}
			fsmCtx.currentTurn++
			logger.L.Debug("FSM: Entering StateCallingLLM", "turn", fsmCtx.currentTurn)

			req := openai.ChatCompletionRequest{
				Model:       a.cfg.Model,
				Messages:    fsmCtx.messages,
				Temperature: a.cfg.Temperature,
			}
			if len(toolDefs) > 0 {
				req.Tools = toolDefs
			}
			llmResp, err := a.llmClient.CreateChatCompletion(ctx, req)
			if err != nil {
				logger.L.Error("LLM call failed", "error", err)
				return fail(ctx, fmt.Errorf("chat completion: %w", err))
			}
			if len(llmResp.Choices) == 0 {
				return fail(ctx, errors.New("chat completion returned no choices"))
			}
			fsmCtx.llmResponse = &llmResp

			if len(llmResp.Choices[0].Message.ToolCalls) > 0 {
				return fsm.FireCtx(ctx, TriggerLLMRequestedTools)
			}
			return fsm.FireCtx(ctx, TriggerLLMRespondedWithContent)
		}).
		Permit(TriggerLLMRequestedTools, StateExecutingTools).
		Permit(TriggerLLMRespondedWithContent, StateDone).
		Permit(TriggerErrorOccurred, StateError)

	// State: ExecutingTools
	// Action: Run every requested tool and append the results for the next model call.
	fsm.Configure(StateExecutingTools).
		OnEntry(func(ctx context.Context, args ...any) error {
			llmMessage := fsmCtx.llmResponse.Choices[0].Message
			// the assistant message carrying the tool calls must precede their results
			fsmCtx.messages = append(fsmCtx.messages, llmMessage)

			for _, toolCall := range llmMessage.ToolCalls {
				output := a.runTool(ctx, toolCall)
				fsmCtx.result.Invocations = append(fsmCtx.result.Invocations, Invocation{
					Tool:      toolCall.Function.Name,
					Arguments: toolCall.Function.Arguments,
					Output:    output,
				})
				fsmCtx.messages = append(fsmCtx.messages, openai.ChatCompletionMessage{
					Role:       openai.ChatMessageRoleTool,
					Content:    output,
					ToolCallID: toolCall.ID,
					Name:       toolCall.Function.Name,
				})
			}
			return fsm.FireCtx(ctx, TriggerToolsExecutionCompleted)
		}).
		Permit(TriggerToolsExecutionCompleted, StateCallingLLM)

	fsm.Configure(StateDone).
		OnEntry(func(ctx context.Context, args ...any) error {
			fsmCtx.result.Output = fsmCtx.llmResponse.Choices[0].Message.Content
			return nil
		})

	fsm.Configure(StateError)

	if err := fsm.FireCtx(ctx, TriggerProcessInput); err != nil {
		return nil, fmt.Errorf("agent state machine: %w", err)
	}

	state, err := fsm.State(ctx)
	if err != nil {
		return nil, fmt.Errorf("agent state machine: %w", err)
	}
	switch state {
	case StateDone:
		return &fsmCtx.result, nil
	case StateError:
		// tools that already ran stay recorded so callers can act on them
		if fsmCtx.lastError == nil {
			return &fsmCtx.result, errors.New("agent ended in error state without a specific error")
		}
		return &fsmCtx.result, fsmCtx.lastError
	default:
		return nil, fmt.Errorf("agent ended in an unexpected state: %v", state)
	}
}

// runTool executes one tool call and returns the text handed back to the model.
func (a *Agent) runTool(ctx context.Context, toolCall openai.ToolCall) string {
	name := toolCall.Function.Name
	tool, err := a.tools.GetTool(name)
	if err != nil {
		logger.L.Warn("LLM requested an unknown tool", "tool", name)
		return "Error: unknown tool " + name
	}

	args := toolCall.Function.Arguments
	if strings.TrimSpace(args) == "" {
		args = "{}"
	}
	if !json.Valid([]byte(args)) {
		logger.L.Error("Failed to parse tool arguments", "function", name, "arguments", args)
		return "Error: Could not parse arguments for tool " + name
	}

	logger.L.Debug("Running tool", "tool", name, "arguments", args)
	return tool.Run(ctx, args)
}
