package mcp

import (
	"context"
	"testing"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func promptText(t *testing.T, res *mcplib.GetPromptResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Messages)
	assert.Equal(t, mcplib.RoleUser, res.Messages[0].Role)
	tc, ok := res.Messages[0].Content.(mcplib.TextContent)
	require.True(t, ok, "message content should be TextContent")
	return tc.Text
}

func TestSessionBriefingPrompt(t *testing.T) {
	s := newTestServer(&fakeViews{})
	res, err := s.handleSessionBriefingPrompt(context.Background(), mcplib.GetPromptRequest{})
	require.NoError(t, err)
	text := promptText(t, res)
	assert.Contains(t, text, "kansoku_status")
	assert.Contains(t, text, "kansoku_journal")
}

func TestInvestigateAgentPrompt(t *testing.T) {
	s := newTestServer(&fakeViews{})

	res, err := s.handleInvestigateAgentPrompt(context.Background(), mcplib.GetPromptRequest{
		Params: mcplib.GetPromptParams{
			Name:      "investigate-agent",
			Arguments: map[string]string{"agent": "fact-checker"},
		},
	})
	require.NoError(t, err)
	assert.Contains(t, res.Description, "fact-checker")
	text := promptText(t, res)
	assert.Contains(t, text, `agent="fact-checker"`)
	assert.Contains(t, text, "kansoku_operations")

	_, err = s.handleInvestigateAgentPrompt(context.Background(), mcplib.GetPromptRequest{
		Params: mcplib.GetPromptParams{Name: "investigate-agent", Arguments: map[string]string{}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "agent")
}
