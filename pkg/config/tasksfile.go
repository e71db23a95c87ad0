package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// CustomTasksFilename is the optional per-project task definitions file.
const CustomTasksFilename = "tasks.yaml"

// CustomTask is a user-defined task loaded from .agentdev/tasks.yaml.
// Each task runs a single command; longer flows chain existing task names.
type CustomTask struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Command     []string `yaml:"command"` // argv, mutually exclusive with Steps
	Steps       []string `yaml:"steps"`   // names of tasks to run in order, fail fast
	WorkDir     string   `yaml:"workdir"` // relative to the project root
	Env         []string `yaml:"env"`     // KEY=VALUE pairs
}

type customTasksFile struct {
	Tasks []CustomTask `yaml:"tasks"`
}

// LoadCustomTasks reads .agentdev/tasks.yaml from dir. A missing file is not
// an error: the builtin command surface needs no task file.
func LoadCustomTasks(dir string) ([]CustomTask, error) {
	path := filepath.Join(dir, ProjectConfigDir, CustomTasksFilename)

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var file customTasksFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	seen := make(map[string]bool, len(file.Tasks))
	for i := range file.Tasks {
		task := &file.Tasks[i]
		if task.Name == "" {
			return nil, fmt.Errorf("%s: task %d has no name", path, i)
		}
		if seen[task.Name] {
			return nil, fmt.Errorf("%s: duplicate task name %q", path, task.Name)
		}
		seen[task.Name] = true

		if len(task.Command) == 0 && len(task.Steps) == 0 {
			return nil, fmt.Errorf("%s: task %q has neither command nor steps", path, task.Name)
		}
		if len(task.Command) > 0 && len(task.Steps) > 0 {
			return nil, fmt.Errorf("%s: task %q has both command and steps", path, task.Name)
		}
		if filepath.IsAbs(task.WorkDir) {
			return nil, fmt.Errorf("%s: task %q workdir must be relative to the project root", path, task.Name)
		}
	}

	return file.Tasks, nil
}
