package repository

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/projects/domain"
)

func newProject(name string) domain.Project {
	return domain.Project{
		Name:      name,
		Country:   "Italy",
		CreatedAt: time.Now().UTC(),
	}
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"My Project":           "my-project",
		"  Torino   2024  ":    "torino-2024",
		"côté/district":        "ctdistrict",
		"!!!":                  "",
		"Already-Slugged-Name": "already-slugged-name",
	}
	for in, want := range cases {
		assert.Equal(t, want, Slugify(in), "input %q", in)
	}
}

func TestRegistry_CreateAssignsCollisionFreeSlugs(t *testing.T) {
	r := NewRegistry(t.TempDir())

	p1, err := r.Create(newProject("Solar Test"))
	require.NoError(t, err)
	assert.Equal(t, "solar-test", p1.ID)

	p2, err := r.Create(newProject("Solar Test"))
	require.NoError(t, err)
	assert.Equal(t, "solar-test-2", p2.ID)

	p3, err := r.Create(newProject("Solar Test"))
	require.NoError(t, err)
	assert.Equal(t, "solar-test-3", p3.ID)

	// layers directory is part of the project skeleton
	info, err := os.Stat(filepath.Join(r.Root(), p1.ID, "layers", "buildings"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestRegistry_CreateRequiresName(t *testing.T) {
	r := NewRegistry(t.TempDir())
	_, err := r.Create(newProject("   "))
	require.Error(t, err)
}

func TestRegistry_LoadRoundTrip(t *testing.T) {
	r := NewRegistry(t.TempDir())

	created, err := r.Create(newProject("Round Trip"))
	require.NoError(t, err)

	loaded, err := r.Load(created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, loaded.ID)
	assert.Equal(t, "Round Trip", loaded.Name)
	assert.Equal(t, "Italy", loaded.Country)
}

func TestRegistry_LoadMissing(t *testing.T) {
	r := NewRegistry(t.TempDir())
	_, err := r.Load("nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRegistry_LoadCorruptDescriptor(t *testing.T) {
	root := t.TempDir()
	r := NewRegistry(root)

	t.Run("invalid json", func(t *testing.T) {
		dir := filepath.Join(root, "broken")
		require.NoError(t, os.MkdirAll(dir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, DescriptorFile), []byte("{not json"), 0o644))

		_, err := r.Load("broken")
		assert.ErrorIs(t, err, domain.ErrCorrupt)
	})

	t.Run("id mismatch", func(t *testing.T) {
		dir := filepath.Join(root, "renamed")
		require.NoError(t, os.MkdirAll(dir, 0o755))
		desc := `{"id":"original","name":"x","created_at":"2024-01-01T00:00:00Z"}`
		require.NoError(t, os.WriteFile(filepath.Join(dir, DescriptorFile), []byte(desc), 0o644))

		_, err := r.Load("renamed")
		assert.ErrorIs(t, err, domain.ErrCorrupt)
	})
}

func TestRegistry_ListSkipsMalformedWithWarning(t *testing.T) {
	root := t.TempDir()
	r := NewRegistry(root)

	_, err := r.Create(newProject("Good One"))
	require.NoError(t, err)

	// a directory without a descriptor is not a project and produces no warning
	require.NoError(t, os.MkdirAll(filepath.Join(root, "scratch"), 0o755))

	// a torn descriptor produces a warning but never fails the scan
	broken := filepath.Join(root, "torn")
	require.NoError(t, os.MkdirAll(broken, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(broken, DescriptorFile), []byte("{"), 0o644))

	sums, warns, err := r.List()
	require.NoError(t, err)
	require.Len(t, sums, 1)
	assert.Equal(t, "good-one", sums[0].ID)
	require.Len(t, warns, 1)
	assert.Equal(t, "torn", warns[0].Dir)
	assert.NotEmpty(t, warns[0].Reason)
}

func TestRegistry_ListEmptyRoot(t *testing.T) {
	r := NewRegistry(filepath.Join(t.TempDir(), "does-not-exist"))
	sums, warns, err := r.List()
	require.NoError(t, err)
	assert.Empty(t, sums)
	assert.Empty(t, warns)
}

func TestRegistry_SavePreservesUnknownFields(t *testing.T) {
	root := t.TempDir()
	r := NewRegistry(root)

	p, err := r.Create(newProject("Forward Compat"))
	require.NoError(t, err)

	// simulate a descriptor written by a newer schema
	path := filepath.Join(root, p.ID, DescriptorFile)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	raw["future_field"] = json.RawMessage(`{"nested":true}`)
	buf, err := json.Marshal(raw)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, buf, 0o644))

	p.Description = "updated"
	require.NoError(t, r.Save(p))

	data, err = os.ReadFile(path)
	require.NoError(t, err)
	var after map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &after))
	assert.JSONEq(t, `{"nested":true}`, string(after["future_field"]))

	reloaded, err := r.Load(p.ID)
	require.NoError(t, err)
	assert.Equal(t, "updated", reloaded.Description)
}
