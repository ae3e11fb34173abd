package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/fsutil"
	"github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/projects/domain"
)

const DescriptorFile = "project.json"

// Registry discovers and persists project descriptors under a root directory.
// Every project lives in <root>/<id>/project.json; descriptor writes go
// through a temp file and rename so a crash never leaves a torn file.
type Registry struct {
	root string
}

func NewRegistry(root string) *Registry {
	return &Registry{root: root}
}

func (r *Registry) Root() string {
	return r.root
}

// Dir returns the directory of a project id.
func (r *Registry) Dir(id string) string {
	return filepath.Join(r.root, id)
}

// List rescans the root directory on every call. Directories without a
// readable, schema-valid descriptor are skipped and reported as warnings,
// never as errors.
func (r *Registry) List() ([]domain.Summary, []domain.DiscoveryWarning, error) {
	entries, err := os.ReadDir(r.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("read projects dir: %w", err)
	}

	var out []domain.Summary
	var warns []domain.DiscoveryWarning
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		p, err := r.Load(e.Name())
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				// plain directory, not a project
				continue
			}
			warns = append(warns, domain.DiscoveryWarning{Dir: e.Name(), Reason: err.Error()})
			continue
		}
		out = append(out, domain.Summary{ID: p.ID, Name: p.Name, CreatedAt: p.CreatedAt})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, warns, nil
}

// Load reads and validates a project descriptor.
func (r *Registry) Load(id string) (*domain.Project, error) {
	path := filepath.Join(r.root, id, DescriptorFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("read descriptor: %w", err)
	}

	var p domain.Project
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCorrupt, err)
	}
	if err := validateDescriptor(&p, id); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCorrupt, err)
	}
	return &p, nil
}

// Save rewrites the descriptor atomically. Fields the current schema does not
// know about are read back from the existing file and preserved.
func (r *Registry) Save(p *domain.Project) error {
	if err := validateDescriptor(p, p.ID); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrCorrupt, err)
	}

	path := filepath.Join(r.root, p.ID, DescriptorFile)

	merged := map[string]json.RawMessage{}
	if existing, err := os.ReadFile(path); err == nil {
		// best effort; a corrupt existing file is simply overwritten
		_ = json.Unmarshal(existing, &merged)
	}

	known, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal descriptor: %w", err)
	}
	var knownMap map[string]json.RawMessage
	if err := json.Unmarshal(known, &knownMap); err != nil {
		return fmt.Errorf("remarshal descriptor: %w", err)
	}
	for k, v := range knownMap {
		merged[k] = v
	}

	if err := fsutil.WriteJSONAtomic(path, merged); err != nil {
		return fmt.Errorf("save descriptor: %w", err)
	}
	return nil
}

// Create allocates a collision-free slug id from the name, writes the initial
// descriptor and creates the layers directory.
func (r *Registry) Create(p domain.Project) (*domain.Project, error) {
	if strings.TrimSpace(p.Name) == "" {
		return nil, fmt.Errorf("name required")
	}

	base := Slugify(p.Name)
	if base == "" {
		base = "project"
	}

	id := base
	for i := 2; ; i++ {
		if _, err := os.Stat(filepath.Join(r.root, id)); os.IsNotExist(err) {
			break
		}
		id = fmt.Sprintf("%s-%d", base, i)
	}
	p.ID = id

	if err := os.MkdirAll(filepath.Join(r.root, id, "layers", "buildings"), 0o755); err != nil {
		return nil, fmt.Errorf("create project dirs: %w", err)
	}
	if err := r.Save(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

func validateDescriptor(p *domain.Project, id string) error {
	if p.ID == "" {
		return fmt.Errorf("missing id")
	}
	if id != "" && p.ID != id {
		return fmt.Errorf("descriptor id %q does not match directory %q", p.ID, id)
	}
	if p.Name == "" {
		return fmt.Errorf("missing name")
	}
	if p.CreatedAt.IsZero() {
		return fmt.Errorf("missing created_at")
	}
	return nil
}

var (
	reNonWord = regexp.MustCompile(`[^\w\s-]`)
	reSpaces  = regexp.MustCompile(`\s+`)
)

// Slugify turns a project name into a directory-safe slug.
func Slugify(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = reNonWord.ReplaceAllString(s, "")
	s = reSpaces.ReplaceAllString(s, "-")
	s = strings.ReplaceAll(s, "/", "-")
	s = strings.ReplaceAll(s, "\\", "-")
	return strings.Trim(s, "-")
}
