package tasks

import (
	"fmt"
	"strings"

	"agentdev/pkg/config"
)

// Registry holds the known tasks: builtins first, then custom tasks from
// the project task file in declaration order.
type Registry struct {
	tasks map[string]*Task
	order []string
}

// NewRegistry creates a registry pre-populated with the builtin tasks.
func NewRegistry() *Registry {
	r := &Registry{tasks: make(map[string]*Task)}
	for _, task := range builtinTasks() {
		r.tasks[task.Name] = task
		r.order = append(r.order, task.Name)
	}
	return r
}

// AddCustom merges user-defined tasks into the registry. Custom tasks may
// not shadow builtins, and step-style tasks may only reference tasks that
// exist once the whole file is merged.
func (r *Registry) AddCustom(custom []config.CustomTask) error {
	for i := range custom {
		ct := &custom[i]
		name := Normalize(ct.Name)

		if existing, ok := r.tasks[name]; ok {
			if existing.Builtin {
				return fmt.Errorf("custom task %q shadows a builtin command", ct.Name)
			}
			return fmt.Errorf("custom task %q already defined", ct.Name)
		}

		task := &Task{
			Name:        name,
			Description: ct.Description,
		}
		if len(ct.Command) > 0 {
			cmd := append([]string(nil), ct.Command...)
			workDir := ct.WorkDir
			env := append([]string(nil), ct.Env...)
			task.build = func(config.Config, RunOpts) []Step {
				return []Step{{Argv: cmd, WorkDir: workDir, Env: env}}
			}
		} else {
			task.chain = normalizeAll(ct.Steps)
		}

		r.tasks[name] = task
		r.order = append(r.order, name)
	}

	// Chains may reference tasks declared later in the file, so resolve
	// names only after everything is registered.
	for _, name := range r.order {
		for _, step := range r.tasks[name].chain {
			if _, ok := r.tasks[step]; !ok {
				return fmt.Errorf("task %q references unknown task %q", name, step)
			}
		}
	}
	return nil
}

// Get looks up a task by name. Hyphenated spellings are accepted.
func (r *Registry) Get(name string) (*Task, error) {
	task, ok := r.tasks[Normalize(name)]
	if !ok {
		return nil, fmt.Errorf("unknown task: %s", name)
	}
	return task, nil
}

// List returns all tasks in registration order.
func (r *Registry) List() []*Task {
	out := make([]*Task, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tasks[name])
	}
	return out
}

// Normalize maps hyphenated command spellings onto canonical task names.
func Normalize(name string) string {
	return strings.ReplaceAll(name, "-", "_")
}

func normalizeAll(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = Normalize(n)
	}
	return out
}
