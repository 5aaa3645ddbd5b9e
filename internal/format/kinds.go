package format

import (
	"fmt"
	"strings"

	"github.com/ashita-ai/kansoku/internal/model"
)

// kindRules is the base table keyed by entry kind.
var kindRules = map[model.EntryKind]Rule{
	model.KindAgentWork: {
		Icon:  "✓",
		Title: agentTitle,
		Narrative: func(s Subject) string {
			return fmt.Sprintf("%s finished%s.", AgentTitle(s.Agent), workSuffix(s.Data))
		},
	},
	model.KindAgentInProgress: {
		Icon: "⏳",
		Title: func(s Subject) string {
			return AgentTitle(s.Agent) + " (working)"
		},
		Narrative: func(s Subject) string {
			return fmt.Sprintf("%s has been working for %s.", AgentTitle(s.Agent), Elapsed(s.Data.Int("elapsed_ms")))
		},
	},
	model.KindIteration: {
		Icon: "🔄",
		Title: func(s Subject) string {
			return "Iteration " + numberOr(s.Data, "iteration", "?")
		},
		Narrative: func(s Subject) string {
			msg := fmt.Sprintf("Completed iteration %s in %s", numberOr(s.Data, "iteration", "?"), Elapsed(s.Data.Int("duration_ms")))
			if s.Data.Has("confidence") {
				msg += " at " + Percent(s.Data.Float("confidence")) + " confidence"
			}
			return msg + "."
		},
	},
	model.KindIterationRunning: {
		Icon: "🔄",
		Title: func(s Subject) string {
			return "Iteration " + numberOr(s.Data, "iteration", "?") + " (running)"
		},
		Narrative: func(s Subject) string {
			return fmt.Sprintf("Iteration %s started %s ago.", numberOr(s.Data, "iteration", "?"), Elapsed(s.Data.Int("elapsed_ms")))
		},
	},
	model.KindQualityGate: {
		Icon: "🛡️",
		Title: func(s Subject) string {
			return "Quality gate, attempt " + numberOr(s.Data, "attempt", "?")
		},
		Narrative: func(s Subject) string {
			issues := Plural(s.Data.Int("issues"), "issue")
			switch model.OperationStatus(s.Data.Str("status")) {
			case model.StatusSuccess:
				return fmt.Sprintf("Quality gate passed with %s.", issues)
			case model.StatusFailed:
				return fmt.Sprintf("Quality gate failed with %s.", issues)
			default:
				return "Quality gate finished with an unknown result."
			}
		},
	},
	model.KindQualityGateRun: {
		Icon: "🛡️",
		Title: func(s Subject) string {
			return "Quality gate, attempt " + numberOr(s.Data, "attempt", "?") + " (running)"
		},
		Narrative: func(s Subject) string {
			return fmt.Sprintf("Quality gate has been checking for %s.", Elapsed(s.Data.Int("elapsed_ms")))
		},
	},
	model.KindSessionStart: {
		Icon: "🚀",
		Title: func(Subject) string {
			return "Research started"
		},
		Narrative: func(s Subject) string {
			obj := s.Data.Str("objective")
			if obj == "" {
				return "Research session started."
			}
			return "Started researching: " + Truncate(obj, 200)
		},
	},
	model.KindSessionComplete: {
		Icon:  "🏁",
		Title: sessionCompleteTitle,
		Narrative: func(s Subject) string {
			status := model.ParseSessionStatus(s.Data.Str("status"))
			switch status {
			case model.SessionFailed:
				if msg := s.Data.Str("error"); msg != "" {
					return "Research failed: " + Truncate(msg, 200)
				}
				return "Research failed."
			case model.SessionBlockedQualityGate:
				return "Research stopped at the quality gate."
			case model.SessionCompletedWithAdvisory:
				return "Research completed with advisories."
			default:
				return "Research completed."
			}
		},
	},
}

// agentRules holds the per-agent overrides for the agent kinds.
var agentRules = map[string]Rule{
	"mission-orchestrator": {
		Icon: "🎯",
		Narrative: func(s Subject) string {
			if n := s.Data.Int("tasks_created"); n > 0 {
				return fmt.Sprintf("Mission orchestrator planned %s.", Plural(n, "task"))
			}
			return "Mission orchestrator reviewed progress."
		},
	},
	"research-planner": {
		Icon: "📋",
		Narrative: func(s Subject) string {
			return fmt.Sprintf("Research planner broke the question into %s.", Plural(s.Data.Int("tasks_created"), "task"))
		},
	},
	"academic-researcher": {
		Icon: "🎓",
		Narrative: func(s Subject) string {
			return fmt.Sprintf("Academic researcher reviewed %s and recorded %s.",
				Plural(s.Data.Int("sources"), "paper"), Plural(s.Data.Int("claims"), "claim"))
		},
	},
	"web-researcher": {
		Icon: "🌐",
		Narrative: func(s Subject) string {
			return fmt.Sprintf("Web researcher read %s and recorded %s.",
				Plural(s.Data.Int("sources"), "source"), Plural(s.Data.Int("claims"), "claim"))
		},
	},
	"code-analyzer": {
		Icon: "💻",
		Narrative: func(s Subject) string {
			return fmt.Sprintf("Code analyzer inspected %s.", Plural(s.Data.Int("files"), "file"))
		},
	},
	"market-analyzer": {
		Icon: "📈",
		Narrative: func(s Subject) string {
			return fmt.Sprintf("Market analyzer identified %s.", Plural(s.Data.Int("entities"), "entity"))
		},
	},
	"fact-checker": {
		Icon: "🔍",
		Narrative: func(s Subject) string {
			return fmt.Sprintf("Fact checker verified %s and flagged %s.",
				Plural(s.Data.Int("verified"), "claim"), Plural(s.Data.Int("disputed"), "claim"))
		},
	},
	"synthesis-agent": {
		Icon: "🧩",
		Narrative: func(s Subject) string {
			msg := fmt.Sprintf("Synthesis agent combined %s", Plural(s.Data.Int("claims"), "claim"))
			if s.Data.Has("confidence") {
				msg += " at " + Percent(s.Data.Float("confidence")) + " confidence"
			}
			return msg + "."
		},
	},
	"research-coordinator": {
		Icon: "🧭",
		Narrative: func(s Subject) string {
			return fmt.Sprintf("Research coordinator found %s and queued %s.",
				Plural(s.Data.Int("gaps"), "gap"), Plural(s.Data.Int("tasks_created"), "task"))
		},
	},
}

func agentTitle(s Subject) string {
	return AgentTitle(s.Agent)
}

func sessionCompleteTitle(s Subject) string {
	switch model.ParseSessionStatus(s.Data.Str("status")) {
	case model.SessionFailed:
		return "Research failed"
	case model.SessionBlockedQualityGate:
		return "Blocked by quality gate"
	case model.SessionCompletedWithAdvisory:
		return "Research complete (advisory)"
	default:
		return "Research complete"
	}
}

// unresolvedWork narrates agent work whose result carried no usable end
// instant, so the entry stays open.
func unresolvedWork(s Subject) string {
	return fmt.Sprintf("%s returned a result with an unusable timestamp; end unknown.", AgentTitle(s.Agent))
}

// workSuffix describes duration, tool calls and cost of finished agent work.
func workSuffix(d model.Data) string {
	var parts []string
	if ms := d.Int("duration_ms"); ms > 0 {
		parts = append(parts, "in "+Elapsed(ms))
	}
	if n := d.Int("tool_calls"); n > 0 {
		parts = append(parts, "using "+Plural(n, "tool call"))
	}
	if c := Cost(d.Float("cost_usd")); c != "" {
		parts = append(parts, "for "+c)
	}
	if len(parts) == 0 {
		return ""
	}
	return " " + strings.Join(parts, " ")
}

// numberOr renders d[key] as a whole number, or fallback when absent.
func numberOr(d model.Data, key, fallback string) string {
	if !d.Has(key) {
		return fallback
	}
	if s := d.Str(key); s != "" && d.Float(key) == 0 && s != "0" {
		return s
	}
	return fmt.Sprintf("%d", d.Int(key))
}
