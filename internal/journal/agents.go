package journal

import (
	"slices"

	"github.com/ashita-ai/kansoku/internal/model"
)

// canonicalAgents is the preferred display order of the research agents.
var canonicalAgents = []string{
	"mission-orchestrator",
	"research-planner",
	"academic-researcher",
	"web-researcher",
	"code-analyzer",
	"market-analyzer",
	"fact-checker",
	"synthesis-agent",
	"research-coordinator",
}

// DefaultAgentOrder returns a copy of the canonical agent order.
func DefaultAgentOrder() []string {
	return slices.Clone(canonicalAgents)
}

// ResolveAgents returns the agents that appear in events: those in
// preferred first, in preferred order, then the rest in discovery order.
func ResolveAgents(events []model.NormalizedEvent, preferred []string) []string {
	seen := make(map[string]bool)
	var discovered []string
	for _, ev := range events {
		if ev.Type != model.EventAgentInvocation && ev.Type != model.EventAgentResult {
			continue
		}
		a := ev.Agent()
		if !seen[a] {
			seen[a] = true
			discovered = append(discovered, a)
		}
	}

	out := make([]string, 0, len(discovered))
	known := make(map[string]bool, len(preferred))
	for _, a := range preferred {
		if seen[a] && !known[a] {
			out = append(out, a)
		}
		known[a] = true
	}
	for _, a := range discovered {
		if !known[a] {
			out = append(out, a)
		}
	}
	return out
}

// agentEntries pairs the i-th invocation of each agent with its i-th result
// in log order. Invocations with an invalid instant keep their ordinal slot,
// so a bad timestamp never shifts the pairing of the agent's later work;
// their candidates are dropped by Build.
func (b *Builder) agentEntries(in Input, ops []model.PairedOperation, now model.Instant) []candidate {
	invocations := make(map[string][]model.NormalizedEvent)
	results := make(map[string][]model.NormalizedEvent)
	for _, ev := range in.Events {
		switch ev.Type {
		case model.EventAgentInvocation:
			invocations[ev.Agent()] = append(invocations[ev.Agent()], ev)
		case model.EventAgentResult:
			results[ev.Agent()] = append(results[ev.Agent()], ev)
		}
	}

	var out []candidate
	for _, agent := range ResolveAgents(in.Events, b.agentOrder) {
		res := results[agent]
		for i, inv := range invocations[agent] {
			if i < len(res) {
				out = append(out, workEntry(agent, inv, res[i], in.Tasks, ops, now))
				continue
			}
			out = append(out, runningEntry(agent, inv, in.Tasks, ops, now))
		}
	}
	return out
}

func workEntry(agent string, inv, res model.NormalizedEvent, tasks []model.Task, ops []model.PairedOperation, now model.Instant) candidate {
	c := candidate{
		kind:  model.KindAgentWork,
		agent: agent,
		seq:   inv.Seq,
		start: inv.Instant,
		end:   res.Instant,
		data:  merge(inv.Data, res.Data),
	}
	if !c.start.Valid() {
		return c
	}

	windowEnd := now
	if c.end.Valid() && c.end >= c.start {
		c.data["duration_ms"] = c.end.Sub(c.start)
		windowEnd = c.end
	} else {
		// The result is unusable as an end; keep the entry open.
		c.end = model.InvalidInstant
		c.data["end_rejected"] = true
	}
	c.tasks = relatedTasks(agent, c.start, windowEnd, tasks)
	c.ops = relatedOperations(agent, c.start, windowEnd, ops)
	c.data["tool_calls"] = int64(len(c.ops))
	c.data["tasks"] = int64(len(c.tasks))
	return c
}

func runningEntry(agent string, inv model.NormalizedEvent, tasks []model.Task, ops []model.PairedOperation, now model.Instant) candidate {
	c := candidate{
		kind:  model.KindAgentInProgress,
		agent: agent,
		seq:   inv.Seq,
		start: inv.Instant,
		end:   model.InvalidInstant,
		data:  merge(inv.Data),
	}
	if !c.start.Valid() {
		return c
	}
	c.data["elapsed_ms"] = elapsed(now, c.start)
	c.tasks = relatedTasks(agent, c.start, now, tasks)
	c.ops = relatedOperations(agent, c.start, now, ops)
	c.data["tool_calls"] = int64(len(c.ops))
	c.data["tasks"] = int64(len(c.tasks))
	return c
}

// relatedTasks returns the tasks of agent anchored inside [from, to].
func relatedTasks(agent string, from, to model.Instant, tasks []model.Task) []model.Task {
	var out []model.Task
	for _, t := range tasks {
		at := t.Anchor()
		if t.Agent == agent && at.Valid() && at >= from && at <= to {
			out = append(out, t)
		}
	}
	return out
}

// relatedOperations returns the tool pairings started by agent inside [from, to].
func relatedOperations(agent string, from, to model.Instant, ops []model.PairedOperation) []model.PairedOperation {
	var out []model.PairedOperation
	for _, op := range ops {
		at := op.Start.Instant
		if op.Start.Agent() == agent && at >= from && at <= to {
			out = append(out, op)
		}
	}
	return out
}
