package format

import (
	"fmt"

	"github.com/ashita-ai/kansoku/internal/model"
)

// observationWidth bounds observation text in the activity feed.
const observationWidth = 80

var severityIcons = map[model.Severity]string{
	model.SeverityCritical: "🔴",
	model.SeverityWarning:  "⚠️",
	model.SeverityInfo:     "ℹ️",
}

// eventLines renders one raw event per type for the activity feed.
var eventLines = map[model.EventType]func(model.Event) string{
	model.EventIterationStart: func(ev model.Event) string {
		return "🔄 Started iteration " + ev.Data.Str("iteration")
	},
	model.EventIterationComplete: func(ev model.Event) string {
		return "✅ Completed iteration " + ev.Data.Str("iteration")
	},
	model.EventTaskStarted: func(ev model.Event) string {
		return "▶️ " + ev.Data.Str("agent") + " started task"
	},
	model.EventTaskCompleted: func(ev model.Event) string {
		line := "✓ " + ev.Data.Str("agent") + " completed"
		if c := Cost(ev.Data.Float("cost_usd")); c != "" {
			line += " (" + c + ")"
		}
		return line
	},
	model.EventEntityAdded: func(ev model.Event) string {
		return "📌 Added: " + ev.Data.Str("name")
	},
	model.EventClaimAdded: func(ev model.Event) string {
		return fmt.Sprintf("💡 Claim (%s confidence)", Percent(ev.Data.Float("confidence")))
	},
	model.EventGapDetected: func(ev model.Event) string {
		return "⚠️ Gap (" + ev.Data.Str("priority") + ")"
	},
	model.EventGapResolved: func(model.Event) string {
		return "✓ Gap resolved"
	},
	model.EventAgentInvocation: func(ev model.Event) string {
		return "⚡ Invoking " + ev.Data.Str("agent")
	},
	model.EventAgentResult: func(ev model.Event) string {
		line := "✓ " + ev.Data.Str("agent")
		if ms := ev.Data.Float("duration_ms"); ms != 0 {
			line += fmt.Sprintf(" %.1fs", ms/1000)
		}
		if c := Cost(ev.Data.Float("cost_usd")); c != "" {
			line += " " + c
		}
		return line
	},
	model.EventSystemObservation: func(ev model.Event) string {
		icon, ok := severityIcons[model.Severity(ev.Data.Str("severity"))]
		if !ok {
			icon = defaultIcon
		}
		component := ev.Data.Str("component")
		if component == "" {
			component = "system"
		}
		obs := ev.Data.Str("observation")
		if obs == "" {
			obs = "System observation"
		}
		return fmt.Sprintf("%s [%s] %s", icon, component, Truncate(obs, observationWidth))
	},
}

// SeverityIcon returns the icon for an observation severity.
func SeverityIcon(s model.Severity) string {
	if icon, ok := severityIcons[s]; ok {
		return icon
	}
	return defaultIcon
}
