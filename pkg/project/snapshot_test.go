package project

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSnapshot() *Snapshot {
	snapshot := NewSnapshot()
	snapshot.Title = "Test Project"
	snapshot.Description = "A test project description"
	snapshot.Constraints = []Constraint{{
		Name:        "test_constraint",
		Description: "A test constraint",
		Type:        ConstraintHard,
		Formula:     "x > 0",
		Where:       "x is a variable",
	}}
	snapshot.SchemaDefinition = &SchemaDefinition{
		RequestSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{"input": map[string]any{"type": "string"}},
		},
		ResponseSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{"output": map[string]any{"type": "string"}},
		},
	}
	return snapshot
}

func sampleSettings(t *testing.T) *Settings {
	t.Helper()
	s, err := LoadWithDefault(t.TempDir(), sampleSnapshot())
	require.NoError(t, err)
	return s
}

func TestLoad_CreatesEmptySnapshot(t *testing.T) {
	dir := t.TempDir()

	s, err := Load(dir)
	require.NoError(t, err)
	assert.Empty(t, s.Title())
	assert.Empty(t, s.Constraints())

	_, err = os.Stat(filepath.Join(dir, SettingsFilename))
	require.NoError(t, err, "settings file must be created on first load")
	assert.True(t, Exists(dir))
}

func TestLoad_ReadsExistingFile(t *testing.T) {
	dir := t.TempDir()

	s, err := Load(dir)
	require.NoError(t, err)
	require.NoError(t, s.SetTitle("Loaded Title"))

	reloaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "Loaded Title", reloaded.Title())
}

func TestLoad_RejectsMalformedFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, SettingsFilename), []byte("{not json"), 0o644))

	_, err := Load(dir)
	require.Error(t, err)
}

func TestLoad_RejectsInvalidConstraintType(t *testing.T) {
	dir := t.TempDir()
	payload := `{"optigen_snapshot_version":"0.0.1","snapshot_version":1,"constraints":[{"name":"c","type":"fuzzy"}]}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, SettingsFilename), []byte(payload), 0o644))

	_, err := Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid type")
}

func TestSetTitleAndDescription_Persist(t *testing.T) {
	s := sampleSettings(t)

	require.NoError(t, s.SetTitle("New Title"))
	require.NoError(t, s.SetDescription("New Description"))

	reloaded, err := Load(filepath.Dir(s.Path()))
	require.NoError(t, err)
	assert.Equal(t, "New Title", reloaded.Title())
	assert.Equal(t, "New Description", reloaded.Description())
}

func TestAddConstraint(t *testing.T) {
	s := sampleSettings(t)

	require.NoError(t, s.AddConstraint(Constraint{
		Name:        "new",
		Description: "new constraint",
		Type:        ConstraintSoft,
	}))
	assert.Len(t, s.Constraints(), 2)
	require.NotNil(t, s.GetConstraint("new"))

	reloaded, err := Load(filepath.Dir(s.Path()))
	require.NoError(t, err)
	assert.Len(t, reloaded.Constraints(), 2)
}

func TestAddConstraint_DuplicateName(t *testing.T) {
	s := sampleSettings(t)

	err := s.AddConstraint(Constraint{Name: "test_constraint", Type: ConstraintSoft})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
	assert.Len(t, s.Constraints(), 1)
}

func TestAddConstraint_InvalidType(t *testing.T) {
	s := sampleSettings(t)

	require.Error(t, s.AddConstraint(Constraint{Name: "bad", Type: "fuzzy"}))
	require.Error(t, s.AddConstraint(Constraint{Type: ConstraintHard}))
}

func TestRemoveConstraint(t *testing.T) {
	s := sampleSettings(t)

	removed, err := s.RemoveConstraint("test_constraint")
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Empty(t, s.Constraints())

	removed, err = s.RemoveConstraint("nonexistent")
	require.NoError(t, err)
	assert.False(t, removed)

	reloaded, err := Load(filepath.Dir(s.Path()))
	require.NoError(t, err)
	assert.Empty(t, reloaded.Constraints())
}

func TestUpdateConstraint(t *testing.T) {
	s := sampleSettings(t)

	updated, err := s.UpdateConstraint("test_constraint", Constraint{
		Name:        "test_constraint",
		Description: "Updated",
		Type:        ConstraintHard,
		Formula:     "x > 0",
		Where:       "x is a variable",
	})
	require.NoError(t, err)
	assert.True(t, updated)

	c := s.GetConstraint("test_constraint")
	require.NotNil(t, c)
	assert.Equal(t, "Updated", c.Description)
	assert.Equal(t, ConstraintHard, c.Type)

	reloaded, err := Load(filepath.Dir(s.Path()))
	require.NoError(t, err)
	c = reloaded.GetConstraint("test_constraint")
	require.NotNil(t, c)
	assert.Equal(t, "Updated", c.Description)
}

func TestUpdateConstraint_NotFound(t *testing.T) {
	s := sampleSettings(t)

	updated, err := s.UpdateConstraint("missing", Constraint{Name: "missing", Type: ConstraintSoft})
	require.NoError(t, err)
	assert.False(t, updated)
}

func TestUpdateConstraint_RenameCollision(t *testing.T) {
	s := sampleSettings(t)
	require.NoError(t, s.AddConstraint(Constraint{Name: "other", Type: ConstraintSoft}))

	_, err := s.UpdateConstraint("other", Constraint{Name: "test_constraint", Type: ConstraintSoft})
	require.Error(t, err)
}

func TestSchemaAccessors(t *testing.T) {
	s := sampleSettings(t)

	request := s.RequestSchema()
	require.NotNil(t, request)
	assert.Contains(t, request["properties"], "input")

	response := s.ResponseSchema()
	require.NotNil(t, response)
	assert.Contains(t, response["properties"], "output")
}

func TestSchemaAccessors_Unset(t *testing.T) {
	s, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Nil(t, s.SchemaDefinition())
	assert.Nil(t, s.RequestSchema())
	assert.Nil(t, s.ResponseSchema())
}

func TestSetSchemaDefinition_Persists(t *testing.T) {
	s := sampleSettings(t)

	require.NoError(t, s.SetSchemaDefinition(&SchemaDefinition{
		RequestSchema:  map[string]any{"type": "object", "properties": map[string]any{"new": map[string]any{"type": "integer"}}},
		ResponseSchema: map[string]any{"type": "object"},
	}))

	reloaded, err := Load(filepath.Dir(s.Path()))
	require.NoError(t, err)
	require.NotNil(t, reloaded.SchemaDefinition())
	assert.Contains(t, reloaded.RequestSchema()["properties"], "new")
}

func TestGetConstraint_ReturnsCopy(t *testing.T) {
	s := sampleSettings(t)

	c := s.GetConstraint("test_constraint")
	require.NotNil(t, c)
	c.Description = "mutated locally"

	assert.Equal(t, "A test constraint", s.GetConstraint("test_constraint").Description)
}
