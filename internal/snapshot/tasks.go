package snapshot

import (
	"strconv"

	"github.com/ashita-ai/kansoku/internal/format"
	"github.com/ashita-ai/kansoku/internal/model"
)

const (
	maxCompletedTasks = 5
	taskDescWidth     = 60
)

// TaskBoard is the task queue grouped for display.
type TaskBoard struct {
	Counts  TaskCounts `json:"counts"`
	Summary []string   `json:"summary"`
	Items   []TaskItem `json:"items"`
}

// TaskCounts summarizes the board. Completed counts every completed task,
// not just the ones listed.
type TaskCounts struct {
	Active    int `json:"active"`
	Pending   int `json:"pending"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	New       int `json:"new"`
}

// TaskItem is one row of the board.
type TaskItem struct {
	ID          string           `json:"id"`
	Agent       string           `json:"agent"`
	Status      model.TaskStatus `json:"status"`
	Icon        string           `json:"icon"`
	Description string           `json:"description"`
	New         bool             `json:"new"`
}

var taskIcons = map[model.TaskStatus]string{
	model.TaskInProgress: "🔄",
	model.TaskPending:    "⏳",
	model.TaskCompleted:  "✅",
	model.TaskFailed:     "❌",
}

// BuildTaskBoard groups tasks as in progress, pending, the last five
// completed, then failed. A task is new when its id is not in known;
// completed tasks never carry the badge. Tasks with an empty status count as
// pending; any other unrecognised status is left off the board. The
// returned set is known plus every id on the queue.
func BuildTaskBoard(tasks []model.Task, known map[string]struct{}) (TaskBoard, map[string]struct{}) {
	next := make(map[string]struct{}, len(known)+len(tasks))
	for id := range known {
		next[id] = struct{}{}
	}

	isNew := make(map[string]bool)
	for _, t := range tasks {
		if _, ok := known[t.ID]; !ok {
			isNew[t.ID] = true
		}
		next[t.ID] = struct{}{}
	}

	groups := map[model.TaskStatus][]model.Task{}
	for _, t := range tasks {
		status := t.Status
		if status == "" {
			status = model.TaskPending
		}
		if _, ok := taskIcons[status]; !ok {
			continue
		}
		groups[status] = append(groups[status], t)
	}

	board := TaskBoard{
		Counts: TaskCounts{
			Active:    len(groups[model.TaskInProgress]),
			Pending:   len(groups[model.TaskPending]),
			Completed: len(groups[model.TaskCompleted]),
			Failed:    len(groups[model.TaskFailed]),
			New:       len(isNew),
		},
		Items: []TaskItem{},
	}

	completed := groups[model.TaskCompleted]
	if len(completed) > maxCompletedTasks {
		completed = completed[len(completed)-maxCompletedTasks:]
	}
	ordered := [][]model.Task{
		groups[model.TaskInProgress],
		groups[model.TaskPending],
		completed,
		groups[model.TaskFailed],
	}
	for _, group := range ordered {
		for _, t := range group {
			status := t.Status
			if status == "" {
				status = model.TaskPending
			}
			board.Items = append(board.Items, TaskItem{
				ID:          t.ID,
				Agent:       orDefault(t.Agent, "unknown"),
				Status:      status,
				Icon:        taskIcons[status],
				Description: taskDescription(t),
				New:         isNew[t.ID] && status != model.TaskCompleted,
			})
		}
	}
	board.Summary = board.Counts.Summary()
	return board, next
}

func taskDescription(t model.Task) string {
	desc := t.Query
	if desc == "" {
		desc = t.Description
	}
	if desc == "" {
		desc = t.Type
	}
	if desc == "" {
		desc = "No description"
	}
	return format.Truncate(desc, taskDescWidth)
}

// Summary renders the counts as the board's one-line header.
func (c TaskCounts) Summary() []string {
	out := []string{}
	if c.Active > 0 {
		out = append(out, "🔄 "+strconv.Itoa(c.Active)+" active")
	}
	if c.Pending > 0 {
		out = append(out, "⏳ "+strconv.Itoa(c.Pending)+" pending")
	}
	if c.Completed > 0 {
		out = append(out, "✅ "+strconv.Itoa(c.Completed)+" done")
	}
	if c.Failed > 0 {
		out = append(out, "❌ "+strconv.Itoa(c.Failed)+" failed")
	}
	if c.New > 0 {
		out = append(out, "🆕 "+strconv.Itoa(c.New)+" new")
	}
	return out
}
