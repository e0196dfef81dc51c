package objective_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/warp/weekplan/objective"
)

func tasks(done ...bool) []objective.Task {
	out := make([]objective.Task, len(done))
	for i, d := range done {
		out[i] = objective.Task{Completed: d}
	}
	return out
}

func TestProgress(t *testing.T) {
	tests := []struct {
		name  string
		tasks []objective.Task
		want  int
	}{
		{"no tasks", nil, 0},
		{"none done", tasks(false, false), 0},
		{"one of two", tasks(true, false), 50},
		{"one of three rounds down", tasks(true, false, false), 33},
		{"two of three rounds up", tasks(true, true, false), 67},
		{"one of eight rounds half up", tasks(true, false, false, false, false, false, false, false), 13},
		{"all done", tasks(true, true, true), 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, objective.Progress(tt.tasks))
		})
	}
}

func TestPlanProgress(t *testing.T) {
	objectives := []objective.Objective{
		{Tasks: tasks(true, true, false)},
		{Tasks: nil},
		{Tasks: tasks(true)},
	}

	// 3 of 4 tasks across the plan
	assert.Equal(t, 75, objective.PlanProgress(objectives))
	assert.Equal(t, 0, objective.PlanProgress(nil))
}

func TestRecompute(t *testing.T) {
	o := objective.Objective{
		Progress:    99,
		IsImportant: true,
		Tasks:       tasks(true, false, false),
	}

	got := objective.Recompute(o)

	assert.Equal(t, 33, got.Progress)
	assert.Equal(t, objective.ImportantNotUrgent, got.Category)
}
