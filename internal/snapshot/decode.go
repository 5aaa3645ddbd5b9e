package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ashita-ai/kansoku/internal/eventlog"
	"github.com/ashita-ai/kansoku/internal/model"
)

// ErrMalformed is returned when a document is not the JSON shape expected.
var ErrMalformed = errors.New("snapshot: malformed document")

func decodeObject(name string, b []byte) (model.Data, error) {
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, name, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: %s: null", ErrMalformed, name)
	}
	return model.Data(raw), nil
}

// DecodeMetrics decodes the metrics snapshot. Both the nested layout
// (knowledge.entities, costs.total_usd, system_health.observations) and
// flat field names are accepted.
func DecodeMetrics(b []byte) (*model.Metrics, error) {
	d, err := decodeObject("metrics", b)
	if err != nil {
		return nil, err
	}
	knowledge := d.Map("knowledge")
	costs := d.Map("costs")
	health := d.Map("system_health")

	m := &model.Metrics{
		Iteration:      d.Int("iteration"),
		Confidence:     d.Float("confidence"),
		Entities:       firstInt(knowledge, d, "entities"),
		Claims:         firstInt(knowledge, d, "claims"),
		TotalCostUSD:   costs.Float("total_usd"),
		CostPerIterUSD: costs.Float("per_iteration"),
	}
	if !costs.Has("total_usd") {
		m.TotalCostUSD = d.Float("total_cost_usd")
	}
	if !costs.Has("per_iteration") {
		m.CostPerIterUSD = d.Float("cost_per_iteration_usd")
	}

	obs := health.Slice("observations")
	if obs == nil {
		obs = d.Slice("observations")
	}
	for _, raw := range obs {
		o, ok := decodeObservation(raw)
		if ok {
			m.Observations = append(m.Observations, o)
		}
	}
	return m, nil
}

// decodeObservation accepts {data:{...}, timestamp} records as well as flat ones.
func decodeObservation(raw any) (model.Observation, bool) {
	rec, ok := raw.(map[string]any)
	if !ok {
		return model.Observation{}, false
	}
	d := model.Data(rec)
	body := d.Map("data")
	if body == nil {
		body = d
	}
	return model.Observation{
		Severity:    model.Severity(body.Str("severity")),
		Component:   body.Str("component"),
		Observation: body.Str("observation"),
		Suggestion:  body.Str("suggestion"),
		At:          eventlog.ParseInstant(d.FirstStr("timestamp", "at")),
	}, true
}

// DecodeSession decodes the session descriptor.
func DecodeSession(b []byte) (*model.Session, error) {
	d, err := decodeObject("session", b)
	if err != nil {
		return nil, err
	}
	return &model.Session{
		ID:          d.FirstStr("session_id", "id"),
		Objective:   d.FirstStr("research_question", "objective", "question"),
		Status:      model.ParseSessionStatus(d.Str("status")),
		Error:       d.Str("error"),
		CreatedAt:   eventlog.ParseInstant(d.Str("created_at")),
		CompletedAt: eventlog.ParseInstant(d.Str("completed_at")),
	}, nil
}

// DecodeTasks decodes the task queue. It accepts {"tasks": [...]} or a bare
// array. Entries that are not objects are skipped.
func DecodeTasks(b []byte) ([]model.Task, error) {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("%w: tasks: %v", ErrMalformed, err)
	}
	var list []any
	switch v := raw.(type) {
	case map[string]any:
		list = model.Data(v).Slice("tasks")
	case []any:
		list = v
	default:
		return nil, fmt.Errorf("%w: tasks: unexpected %T", ErrMalformed, raw)
	}

	tasks := make([]model.Task, 0, len(list))
	for _, item := range list {
		rec, ok := item.(map[string]any)
		if !ok {
			continue
		}
		d := model.Data(rec)
		tasks = append(tasks, model.Task{
			ID:          d.Str("id"),
			Agent:       d.Str("agent"),
			Status:      model.TaskStatus(d.Str("status")),
			Query:       d.Str("query"),
			Description: d.Str("description"),
			Type:        d.Str("type"),
			CreatedAt:   eventlog.ParseInstant(d.Str("created_at")),
			StartedAt:   eventlog.ParseInstant(d.Str("started_at")),
			CompletedAt: eventlog.ParseInstant(d.Str("completed_at")),
		})
	}
	return tasks, nil
}

func firstInt(primary, fallback model.Data, key string) int64 {
	if primary.Has(key) {
		return primary.Int(key)
	}
	return fallback.Int(key)
}
