package mcp

import (
	"context"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerPrompts() {
	// session-briefing: summarize where the research stands.
	s.mcpServer.AddPrompt(
		mcplib.NewPrompt("session-briefing",
			mcplib.WithPromptDescription("Brief me on where the research session stands"),
		),
		s.handleSessionBriefingPrompt,
	)

	// investigate-agent: dig into one agent's work and failures.
	s.mcpServer.AddPrompt(
		mcplib.NewPrompt("investigate-agent",
			mcplib.WithPromptDescription("Review what one agent did and why its tool calls failed"),
			mcplib.WithArgument("agent",
				mcplib.ArgumentDescription("The agent id to investigate (e.g., web-researcher, fact-checker)"),
				mcplib.RequiredArgument(),
			),
		),
		s.handleInvestigateAgentPrompt,
	)
}

func (s *Server) handleSessionBriefingPrompt(ctx context.Context, request mcplib.GetPromptRequest) (*mcplib.GetPromptResult, error) {
	return &mcplib.GetPromptResult{
		Description: "Research session briefing",
		Messages: []mcplib.PromptMessage{
			{
				Role: mcplib.RoleUser,
				Content: mcplib.TextContent{
					Type: "text",
					Text: `Give me a short briefing on the research session.

1. CALL kansoku_status. Report the objective, the state and runtime, the
   iteration and confidence, and the task counts.

2. If health.status is not "healthy", list the health gaps first. They are
   the things I most need to know.

3. CALL kansoku_journal with in_progress=true to see what is running now,
   then with limit=5 for the latest finished work.

4. Summarize in at most six bullet points. Mention any agent that has been
   running much longer than the others.`,
				},
			},
		},
	}, nil
}

func (s *Server) handleInvestigateAgentPrompt(ctx context.Context, request mcplib.GetPromptRequest) (*mcplib.GetPromptResult, error) {
	agent := request.Params.Arguments["agent"]
	if agent == "" {
		return nil, fmt.Errorf("agent argument is required")
	}

	return &mcplib.GetPromptResult{
		Description: fmt.Sprintf("Investigate the %s agent", agent),
		Messages: []mcplib.PromptMessage{
			{
				Role: mcplib.RoleUser,
				Content: mcplib.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Investigate what the %s agent has done in this session.

1. CALL kansoku_journal with agent="%s" and compact=false. Note each run's
   duration and the tasks related to it.

2. CALL kansoku_operations with agent="%s" and status="failed". Group the
   failures by tool and quote the error messages.

3. CALL kansoku_operations with agent="%s" and status="pending" to see
   whether the agent is stuck in a tool call.

4. Conclude: is the agent making progress, stuck, or failing repeatedly?`, agent, agent, agent, agent),
				},
			},
		},
	}, nil
}
