// Package project manages the agent project's optimization settings file,
// optigen.json: the problem title, constraints and objectives, and the
// request/response schemas of the user-facing API.
package project

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// SettingsFilename is the settings file at the project root.
const SettingsFilename = "optigen.json"

// SnapshotVersion is the current settings format version.
const SnapshotVersion = "0.0.1"

// Constraint types.
const (
	ConstraintHard = "hard"
	ConstraintSoft = "soft"
)

// Constraint is a constraint or objective of the optimization problem.
// Rank orders soft constraints; nil means unranked.
type Constraint struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Type        string `json:"type"` // "hard" or "soft"
	Rank        *int   `json:"rank"`
	Formula     string `json:"formula"`
	Where       string `json:"where"`
}

// Validate checks the constraint's type field.
func (c *Constraint) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("constraint name cannot be empty")
	}
	if c.Type != ConstraintHard && c.Type != ConstraintSoft {
		return fmt.Errorf("constraint %q has invalid type %q (want %q or %q)",
			c.Name, c.Type, ConstraintHard, ConstraintSoft)
	}
	return nil
}

// SchemaDefinition holds the request and response JSON schemas of the
// user-facing API.
type SchemaDefinition struct {
	RequestSchema  map[string]any `json:"request_schema"`
	ResponseSchema map[string]any `json:"response_schema"`
}

// Snapshot is the complete persisted project configuration.
type Snapshot struct {
	Version          string            `json:"optigen_snapshot_version"`
	SnapshotVersion  int               `json:"snapshot_version"`
	Title            string            `json:"title"`
	Description      string            `json:"description"`
	Constraints      []Constraint      `json:"constraints"`
	SchemaDefinition *SchemaDefinition `json:"schema_definition"`
}

// NewSnapshot returns an empty snapshot at the current version.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		Version:         SnapshotVersion,
		SnapshotVersion: 1,
		Constraints:     []Constraint{},
	}
}

// Settings binds a Snapshot to its settings file and persists every change.
type Settings struct {
	dir      string
	path     string
	snapshot *Snapshot
}

// Load opens the settings for the project at dir, creating the settings
// file with an empty snapshot when it does not exist.
func Load(dir string) (*Settings, error) {
	return LoadWithDefault(dir, nil)
}

// LoadWithDefault is Load with an initial snapshot used when no settings
// file exists yet.
func LoadWithDefault(dir string, initial *Snapshot) (*Settings, error) {
	s := &Settings{
		dir:  dir,
		path: filepath.Join(dir, SettingsFilename),
	}

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		if initial != nil {
			s.snapshot = initial
		} else {
			s.snapshot = NewSnapshot()
		}
		if err := s.persist(); err != nil {
			return nil, err
		}
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.path, err)
	}

	snapshot := NewSnapshot()
	if err := json.Unmarshal(data, snapshot); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", s.path, err)
	}
	for i := range snapshot.Constraints {
		if err := snapshot.Constraints[i].Validate(); err != nil {
			return nil, fmt.Errorf("invalid %s: %w", s.path, err)
		}
	}

	s.snapshot = snapshot
	return s, nil
}

// Exists reports whether dir has a settings file.
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, SettingsFilename))
	return err == nil
}

// persist writes the snapshot to the settings file.
func (s *Settings) persist() error {
	data, err := json.MarshalIndent(s.snapshot, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", s.path, err)
	}
	return nil
}

// Path returns the settings file path.
func (s *Settings) Path() string {
	return s.path
}

// Snapshot returns a copy of the current snapshot.
func (s *Settings) Snapshot() Snapshot {
	out := *s.snapshot
	out.Constraints = append([]Constraint(nil), s.snapshot.Constraints...)
	return out
}

// Title returns the project title ("" when unset).
func (s *Settings) Title() string {
	return s.snapshot.Title
}

// Description returns the project description ("" when unset).
func (s *Settings) Description() string {
	return s.snapshot.Description
}

// SetTitle updates the title and persists.
func (s *Settings) SetTitle(title string) error {
	s.snapshot.Title = title
	return s.persist()
}

// SetDescription updates the description and persists.
func (s *Settings) SetDescription(description string) error {
	s.snapshot.Description = description
	return s.persist()
}

// Constraints returns the constraints in declaration order.
func (s *Settings) Constraints() []Constraint {
	return append([]Constraint(nil), s.snapshot.Constraints...)
}

// AddConstraint appends a constraint and persists. A constraint with the
// same name must not already exist.
func (s *Settings) AddConstraint(c Constraint) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if s.GetConstraint(c.Name) != nil {
		return fmt.Errorf("constraint with name %q already exists", c.Name)
	}

	s.snapshot.Constraints = append(s.snapshot.Constraints, c)
	return s.persist()
}

// RemoveConstraint removes a constraint by name. Returns true when a
// constraint was found and removed.
func (s *Settings) RemoveConstraint(name string) (bool, error) {
	kept := s.snapshot.Constraints[:0]
	for _, c := range s.snapshot.Constraints {
		if c.Name != name {
			kept = append(kept, c)
		}
	}

	removed := len(kept) < len(s.snapshot.Constraints)
	s.snapshot.Constraints = kept
	if !removed {
		return false, nil
	}
	return true, s.persist()
}

// GetConstraint returns the constraint with the given name, or nil.
func (s *Settings) GetConstraint(name string) *Constraint {
	for i := range s.snapshot.Constraints {
		if s.snapshot.Constraints[i].Name == name {
			c := s.snapshot.Constraints[i]
			return &c
		}
	}
	return nil
}

// UpdateConstraint replaces the constraint with the given name. Returns
// true when a constraint was found and updated.
func (s *Settings) UpdateConstraint(name string, updated Constraint) (bool, error) {
	if err := updated.Validate(); err != nil {
		return false, err
	}
	if updated.Name != name && s.GetConstraint(updated.Name) != nil {
		return false, fmt.Errorf("constraint with name %q already exists", updated.Name)
	}

	for i := range s.snapshot.Constraints {
		if s.snapshot.Constraints[i].Name == name {
			s.snapshot.Constraints[i] = updated
			return true, s.persist()
		}
	}
	return false, nil
}

// SchemaDefinition returns the API schema definition, or nil when unset.
func (s *Settings) SchemaDefinition() *SchemaDefinition {
	return s.snapshot.SchemaDefinition
}

// SetSchemaDefinition updates the schema definition and persists.
func (s *Settings) SetSchemaDefinition(def *SchemaDefinition) error {
	s.snapshot.SchemaDefinition = def
	return s.persist()
}

// RequestSchema returns the request schema, or nil when undefined.
func (s *Settings) RequestSchema() map[string]any {
	if s.snapshot.SchemaDefinition == nil {
		return nil
	}
	return s.snapshot.SchemaDefinition.RequestSchema
}

// ResponseSchema returns the response schema, or nil when undefined.
func (s *Settings) ResponseSchema() map[string]any {
	if s.snapshot.SchemaDefinition == nil {
		return nil
	}
	return s.snapshot.SchemaDefinition.ResponseSchema
}
