package lookup

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	_ "github.com/lib/pq"
)

// The official Planheat building-use catalogue. Source datasets map their
// own use labels onto these.
var StandardUses = []string{
	"Residential",
	"Office",
	"Health Care",
	"Education",
	"Sport",
	"Historical Heritage",
	"Commercial",
	"Restaurant",
	"Public Administration",
}

var (
	ErrCountryNotFound = errors.New("country not found")
	ErrPeriodNotFound  = errors.New("no period for year")
	ErrNoUValues       = errors.New("no u-values for combination")
)

// UValues are the envelope transmittance values for one country/period/use
// combination.
type UValues struct {
	Roof   float64 `json:"roof"`
	Wall   float64 `json:"wall"`
	Window float64 `json:"window"`
}

// PlanheatLookup answers catalogue queries against the Planheat reference
// database.
type PlanheatLookup struct {
	db *sql.DB
}

func NewPlanheatLookup(db *sql.DB) *PlanheatLookup {
	return &PlanheatLookup{db: db}
}

// Open connects to the reference database.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open planheat db: %w", err)
	}
	return db, nil
}

// CountryID resolves a country name, case- and accent-insensitively.
func (l *PlanheatLookup) CountryID(ctx context.Context, name string) (int, error) {
	if strings.TrimSpace(name) == "" {
		return 0, fmt.Errorf("%w: empty name", ErrCountryNotFound)
	}

	rows, err := l.db.QueryContext(ctx, `SELECT id, country FROM country WHERE active = true`)
	if err != nil {
		return 0, fmt.Errorf("query countries: %w", err)
	}
	defer rows.Close()

	want := Normalize(name)
	for rows.Next() {
		var id int
		var country string
		if err := rows.Scan(&id, &country); err != nil {
			return 0, err
		}
		if Normalize(country) == want {
			return id, nil
		}
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	return 0, fmt.Errorf("%w: %q", ErrCountryNotFound, name)
}

// PeriodID resolves the construction period covering a year.
func (l *PlanheatLookup) PeriodID(ctx context.Context, year int) (int, error) {
	if year < 1000 || year > 3000 {
		return 0, fmt.Errorf("%w: invalid year %d", ErrPeriodNotFound, year)
	}

	const q = `
SELECT id FROM period
WHERE active = true AND $1 >= start_period AND $1 <= end_period
LIMIT 1;
`
	var id int
	err := l.db.QueryRowContext(ctx, q, year).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("%w: %d", ErrPeriodNotFound, year)
		}
		return 0, err
	}
	return id, nil
}

// BuildingUseID resolves a use label; returns 0, nil when unknown, since an
// unmatched use is not an error for the workflow.
func (l *PlanheatLookup) BuildingUseID(ctx context.Context, use string) (int, error) {
	if strings.TrimSpace(use) == "" {
		return 0, nil
	}

	rows, err := l.db.QueryContext(ctx, `SELECT id, use FROM building_use WHERE active = true`)
	if err != nil {
		return 0, fmt.Errorf("query building uses: %w", err)
	}
	defer rows.Close()

	want := Normalize(use)
	for rows.Next() {
		var id int
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return 0, err
		}
		if Normalize(name) == want {
			return id, nil
		}
	}
	return 0, rows.Err()
}

// IsResidential classifies a mapped Planheat use label.
func IsResidential(use string) bool {
	return strings.Contains(Normalize(use), "residential")
}

// UValuesFor returns roof/wall/window transmittances for a combination.
func (l *PlanheatLookup) UValuesFor(ctx context.Context, countryID, periodID int, residential bool) (*UValues, error) {
	const q = `
SELECT u_roof, u_wall, u_window FROM u_values
WHERE country_id = $1 AND period_id = $2 AND residential = $3
LIMIT 1;
`
	var u UValues
	err := l.db.QueryRowContext(ctx, q, countryID, periodID, residential).Scan(&u.Roof, &u.Wall, &u.Window)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: country=%d period=%d residential=%t", ErrNoUValues, countryID, periodID, residential)
		}
		return nil, err
	}
	return &u, nil
}

var reMultiSpace = regexp.MustCompile(`\s+`)

// Normalize lowercases, strips accents and collapses whitespace, so labels
// like "Città" and "citta" compare equal.
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	for _, r := range s {
		switch {
		case r < 128:
			b.WriteRune(unicode.ToLower(r))
		default:
			if folded := foldRune(r); folded != 0 {
				b.WriteRune(folded)
			}
		}
	}
	out := strings.TrimSpace(b.String())
	return reMultiSpace.ReplaceAllString(out, " ")
}

// foldRune maps common accented latin letters to their ASCII base; anything
// else is dropped, matching the original normalization.
func foldRune(r rune) rune {
	switch r {
	case 'à', 'á', 'â', 'ã', 'ä', 'å', 'À', 'Á', 'Â', 'Ã', 'Ä', 'Å':
		return 'a'
	case 'è', 'é', 'ê', 'ë', 'È', 'É', 'Ê', 'Ë':
		return 'e'
	case 'ì', 'í', 'î', 'ï', 'Ì', 'Í', 'Î', 'Ï':
		return 'i'
	case 'ò', 'ó', 'ô', 'õ', 'ö', 'Ò', 'Ó', 'Ô', 'Õ', 'Ö':
		return 'o'
	case 'ù', 'ú', 'û', 'ü', 'Ù', 'Ú', 'Û', 'Ü':
		return 'u'
	case 'ç', 'Ç':
		return 'c'
	case 'ñ', 'Ñ':
		return 'n'
	}
	return 0
}
