// Package router maps free-form queries onto the fixed task taxonomy, by
// nearest-neighbour search over task label embeddings when a vector store is
// available and by keyword rules otherwise.
package router

import (
	"fmt"

	"github.com/vocaresume/vocaresume"
)

// Task labels, in index order.
const (
	LabelAnalysis    = "analysis"
	LabelInterview   = "interview"
	LabelSuggestions = "suggestions"
	LabelJobFit      = "job_fit"
)

// Task is one entry of the task taxonomy.
type Task struct {
	Index       int
	Label       string
	Description string
}

// Tasks is the ordered taxonomy. It always holds exactly four entries.
var Tasks = loadTasks()

func loadTasks() []Task {
	want := []string{LabelAnalysis, LabelInterview, LabelSuggestions, LabelJobFit}
	specs := vocaresume.DefaultTasks()
	if len(specs) != len(want) {
		panic(fmt.Sprintf("router: task catalogue has %d tasks, want %d", len(specs), len(want)))
	}
	tasks := make([]Task, len(specs))
	for i, s := range specs {
		if s.Label != want[i] {
			panic(fmt.Sprintf("router: task %d is %q, want %q", i, s.Label, want[i]))
		}
		tasks[i] = Task{Index: s.Index, Label: s.Label, Description: s.Description}
	}
	return tasks
}

// TaskByLabel returns the task with the given label.
func TaskByLabel(label string) (Task, bool) {
	for _, t := range Tasks {
		if t.Label == label {
			return t, true
		}
	}
	return Task{}, false
}

// labelDocID is the fixed store id of a task label document.
func labelDocID(t Task) string {
	return fmt.Sprintf("task-%d-%s", t.Index, t.Label)
}

// labelDocText is the text embedded for a task label document.
func labelDocText(t Task) string {
	return t.Label + ": " + t.Description
}
