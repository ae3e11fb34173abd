package service

import (
	"strconv"
	"strings"

	"github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/mapping/domain"
	"github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/mapping/repository"
)

// Mapper handles attribute-mapping business logic for a project tree.
type Mapper struct {
	repo *repository.MappingRepository
}

func NewMapper(repo *repository.MappingRepository) *Mapper {
	return &Mapper{repo: repo}
}

// Get returns the current mapping for a project.
func (m *Mapper) Get(projectID string) (domain.Mapping, error) {
	return m.repo.Get(projectID)
}

// Set validates every mapped source column against the columns of the
// imported layer and persists the mapping atomically. On validation failure
// the previously persisted mapping is left unchanged.
func (m *Mapper) Set(projectID string, mapping domain.Mapping, availableColumns []string) (domain.Mapping, error) {
	cols := make(map[string]bool, len(availableColumns))
	for _, c := range availableColumns {
		cols[c] = true
	}

	full := domain.Empty()
	for key, col := range mapping {
		if _, ok := domain.FieldByKey(key); !ok {
			continue
		}
		if col != "" && !cols[col] {
			return nil, &domain.UnknownColumnError{Key: key, Column: col}
		}
		full[key] = col
	}

	if err := m.repo.Set(projectID, full); err != nil {
		return nil, err
	}
	return full, nil
}

// ValidateForAnalysis returns the subset of required canonical attributes
// left unmapped. An empty result means analysis may proceed.
func ValidateForAnalysis(m domain.Mapping, required []string) []string {
	var missing []string
	for _, key := range required {
		if strings.TrimSpace(m[key]) == "" {
			missing = append(missing, key)
		}
	}
	return missing
}

// Apply transforms one raw feature's attributes into a canonical record.
// Missing optional attributes get their documented defaults; missing or
// uncoercible required attributes get the unresolved marker. Apply never
// fails; unresolved markers surface later as per-building failures.
func Apply(m domain.Mapping, raw map[string]any) domain.Record {
	rec := make(domain.Record, len(domain.Fields))
	for _, f := range domain.Fields {
		col := m[f.Key]
		var v any
		var present bool
		if col != "" {
			v, present = raw[col]
		}

		if !present || v == nil {
			rec[f.Key] = missingValue(f)
			continue
		}

		coerced, ok := coerce(v, f.Type)
		if !ok {
			rec[f.Key] = missingValue(f)
			continue
		}
		rec[f.Key] = coerced
	}
	return rec
}

func missingValue(f domain.Field) any {
	if f.Required {
		return domain.Unresolved
	}
	return f.Default
}

func coerce(v any, t domain.FieldType) (any, bool) {
	switch t {
	case domain.TypeString:
		switch x := v.(type) {
		case string:
			if strings.TrimSpace(x) == "" {
				return nil, false
			}
			return x, true
		case float64:
			return strconv.FormatFloat(x, 'f', -1, 64), true
		case int:
			return strconv.Itoa(x), true
		}
	case domain.TypeFloat:
		switch x := v.(type) {
		case float64:
			return x, true
		case int:
			return float64(x), true
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
			if err != nil {
				return nil, false
			}
			return f, true
		}
	case domain.TypeInt:
		switch x := v.(type) {
		case int:
			return x, true
		case float64:
			return int(x), true
		case string:
			n, err := strconv.Atoi(strings.TrimSpace(x))
			if err != nil {
				// year columns are often "1985.0" in exported layers
				f, ferr := strconv.ParseFloat(strings.TrimSpace(x), 64)
				if ferr != nil {
					return nil, false
				}
				return int(f), true
			}
			return n, true
		}
	}
	return nil, false
}
