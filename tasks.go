package vocaresume

import (
	"fmt"

	"github.com/BurntSushi/toml"

	defaults "github.com/vocaresume/vocaresume/default"
)

// TaskSpec is one entry of the downstream task catalogue.
type TaskSpec struct {
	Index       int    `toml:"index" json:"index"`
	Label       string `toml:"label" json:"label"`
	Description string `toml:"description" json:"description"`
	Prompt      string `toml:"prompt" json:"prompt"`
}

type taskFile struct {
	Tasks []TaskSpec `toml:"task"`
}

// DefaultTasks returns the task catalogue from the embedded default_tasks.toml.
func DefaultTasks() []TaskSpec {
	tasks, err := ParseTasks(defaults.DefaultTasksTOML)
	if err != nil {
		panic("vocaresume: invalid embedded default_tasks.toml: " + err.Error())
	}
	return tasks
}

// ParseTasks decodes a task catalogue. Entries must be listed in index order
// starting at zero.
func ParseTasks(data string) ([]TaskSpec, error) {
	var f taskFile
	if _, err := toml.Decode(data, &f); err != nil {
		return nil, err
	}
	if len(f.Tasks) == 0 {
		return nil, fmt.Errorf("no tasks defined")
	}
	for i, t := range f.Tasks {
		if t.Index != i {
			return nil, fmt.Errorf("task %q has index %d, want %d", t.Label, t.Index, i)
		}
		if t.Label == "" {
			return nil, fmt.Errorf("task %d has no label", i)
		}
	}
	return f.Tasks, nil
}
