package tools

import (
	"fmt"
	"sort"

	"github.com/sashabaranov/go-openai"

	"github.com/comigor/duckling-go/internal/logger"
)

// ToolManager manages the available tools
type ToolManager struct {
	tools map[string]Tool
}

// NewToolManager creates a new ToolManager
func NewToolManager(tools ...Tool) *ToolManager {
	m := &ToolManager{tools: make(map[string]Tool)}
	for _, t := range tools {
		m.RegisterTool(t)
	}
	return m
}

// RegisterTool registers a new tool. A later tool with the same name replaces the earlier one.
func (m *ToolManager) RegisterTool(tool Tool) {
	m.tools[tool.Name()] = tool
}

// AddTool registers tool unless its name is already taken. It reports whether
// the tool was added.
func (m *ToolManager) AddTool(tool Tool) bool {
	if _, ok := m.tools[tool.Name()]; ok {
		logger.L.Warn("skipping tool with a name already registered", "tool", tool.Name())
		return false
	}
	m.tools[tool.Name()] = tool
	return true
}

// GetTool retrieves a tool by name
func (m *ToolManager) GetTool(name string) (Tool, error) {
	tool, ok := m.tools[name]
	if !ok {
		return nil, fmt.Errorf("tool not found: %s", name)
	}
	return tool, nil
}

// List returns all registered tools ordered by name
func (m *ToolManager) List() []Tool {
	ts := make([]Tool, 0, len(m.tools))
	for _, t := range m.tools {
		ts = append(ts, t)
	}
	sort.Slice(ts, func(i, j int) bool { return ts[i].Name() < ts[j].Name() })
	return ts
}

// Definitions describes the registered tools as OpenAI function tools.
func (m *ToolManager) Definitions() []openai.Tool {
	defs := make([]openai.Tool, 0, len(m.tools))
	for _, t := range m.List() {
		params := t.Parameters()
		if len(params) == 0 {
			params = emptySchema
		}
		defs = append(defs, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  params,
			},
		})
	}
	return defs
}
