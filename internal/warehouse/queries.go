// Package warehouse provides the parametrized lookups served to the web form.
// Every query is scoped to the active (periodo, plan).
package warehouse

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
)

// ErrMissingFilter indicates the caller supplied no usable search parameter.
var ErrMissingFilter = errors.New("a course key or a name text is required")

// Querier is the subset of pgxpool.Pool the repository needs. Satisfied by
// pgxmock in tests.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// ClaseDocente is one timetable entry of a teacher's weekly schedule.
type ClaseDocente struct {
	NombreCompleto string
	DiaCodigo      string
	Inicio         string
	Fin            string
	Clave          string
	Materia        string
	Edificio       string
	Salon          string
}

// Repository runs the fixed warehouse queries.
type Repository struct {
	pool    Querier
	periodo string
	plan    string
	logger  *slog.Logger
}

// New creates a repository scoped to the active (periodo, plan).
func New(pool Querier, periodo, plan string, logger *slog.Logger) *Repository {
	return &Repository{pool: pool, periodo: periodo, plan: plan, logger: logger}
}

const queryHorarioDocente = `
SELECT d.nombre_completo, t.dia_codigo, f.inicio::text, f.fin::text, a.clave, a.nombre AS materia, e.edificio, e.salon
FROM fact_clase f
JOIN dim_docente d ON f.fk_docente = d.id
JOIN dim_asignatura a ON f.fk_asignatura = a.id
JOIN dim_tiempo t ON f.fk_tiempo = t.id
JOIN dim_espacio e ON f.fk_espacio = e.id
WHERE f.periodo = $1 AND f.plan = $2 AND LOWER(d.nombre_completo) LIKE LOWER($3)
ORDER BY d.nombre_completo, t.dia_semana, f.inicio`

// HorarioDocente returns the weekly timetable for a teacher-name pattern.
func (r *Repository) HorarioDocente(ctx context.Context, pattern string) ([]ClaseDocente, error) {
	pattern = "%" + strings.TrimSpace(pattern) + "%"

	rows, err := r.pool.Query(ctx, queryHorarioDocente, r.periodo, r.plan, pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to query teacher timetable: %w", err)
	}
	defer rows.Close()

	var clases []ClaseDocente
	for rows.Next() {
		var c ClaseDocente
		if err := rows.Scan(&c.NombreCompleto, &c.DiaCodigo, &c.Inicio, &c.Fin,
			&c.Clave, &c.Materia, &c.Edificio, &c.Salon); err != nil {
			return nil, fmt.Errorf("failed to scan timetable row: %w", err)
		}
		clases = append(clases, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read timetable rows: %w", err)
	}
	return clases, nil
}

const queryDocentesPorClave = `
SELECT DISTINCT d.nombre_completo
FROM fact_clase f
JOIN dim_docente d ON f.fk_docente = d.id
JOIN dim_asignatura a ON f.fk_asignatura = a.id
WHERE f.periodo = $1 AND f.plan = $2 AND a.clave = $3
ORDER BY d.nombre_completo`

const queryDocentesPorTexto = `
SELECT DISTINCT d.nombre_completo
FROM fact_clase f
JOIN dim_docente d ON f.fk_docente = d.id
JOIN dim_asignatura a ON f.fk_asignatura = a.id
WHERE f.periodo = $1 AND f.plan = $2 AND LOWER(a.nombre) LIKE LOWER('%' || $3 || '%')
ORDER BY d.nombre_completo`

// DocentesPorMateria returns the distinct teachers of a course, selected by
// key or by name text. A non-empty clave wins over texto.
func (r *Repository) DocentesPorMateria(ctx context.Context, clave, texto string) ([]string, error) {
	clave = strings.ToUpper(strings.TrimSpace(clave))
	texto = strings.TrimSpace(texto)

	switch {
	case clave != "":
		return r.queryNames(ctx, queryDocentesPorClave, r.periodo, r.plan, clave)
	case texto != "":
		return r.queryNames(ctx, queryDocentesPorTexto, r.periodo, r.plan, texto)
	default:
		return nil, ErrMissingFilter
	}
}

const queryDocentesEnEdificio = `
SELECT DISTINCT d.nombre_completo
FROM fact_clase f
JOIN dim_docente d ON f.fk_docente = d.id
JOIN dim_espacio e ON f.fk_espacio = e.id
WHERE f.periodo = $1 AND f.plan = $2 AND e.edificio = $3
  AND f.inicio <= $4::time AND f.fin > $4::time
ORDER BY d.nombre_completo`

const queryDocentesEnEdificioSlots = `
SELECT DISTINCT d.nombre_completo
FROM fact_clase_slot s
JOIN dim_docente d ON s.fk_docente = d.id
JOIN dim_espacio e ON s.fk_espacio = e.id
WHERE s.periodo = $1 AND s.plan = $2 AND e.edificio = $3
  AND s.slot_inicio <= $4::time AND s.slot_fin > $4::time
ORDER BY d.nombre_completo`

// DocentesEnEdificio returns the teachers inside a building at a given time.
// hora accepts "HHMM" or "HH:MM"; usarSlots switches to the hour-slot fact
// table.
func (r *Repository) DocentesEnEdificio(ctx context.Context, edificio, hora string, usarSlots bool) ([]string, error) {
	edificio = strings.TrimSpace(edificio)
	if edificio == "" {
		return nil, errors.New("a building is required")
	}
	normalized, err := normalizeHora(hora)
	if err != nil {
		return nil, err
	}

	query := queryDocentesEnEdificio
	if usarSlots {
		query = queryDocentesEnEdificioSlots
	}
	return r.queryNames(ctx, query, r.periodo, r.plan, edificio, normalized)
}

// ListDocentes returns every teacher with classes in the active period.
func (r *Repository) ListDocentes(ctx context.Context) ([]string, error) {
	return r.queryNames(ctx, `
SELECT DISTINCT d.nombre_completo
FROM fact_clase f
JOIN dim_docente d ON f.fk_docente = d.id
WHERE f.periodo = $1 AND f.plan = $2
ORDER BY d.nombre_completo`, r.periodo, r.plan)
}

// Materia is a course option for the web form.
type Materia struct {
	Clave  string
	Nombre string
}

// ListMaterias returns every course taught in the active period.
func (r *Repository) ListMaterias(ctx context.Context) ([]Materia, error) {
	rows, err := r.pool.Query(ctx, `
SELECT DISTINCT a.clave, a.nombre
FROM fact_clase f
JOIN dim_asignatura a ON f.fk_asignatura = a.id
WHERE f.periodo = $1 AND f.plan = $2
ORDER BY a.clave`, r.periodo, r.plan)
	if err != nil {
		return nil, fmt.Errorf("failed to list courses: %w", err)
	}
	defer rows.Close()

	var materias []Materia
	for rows.Next() {
		var m Materia
		if err := rows.Scan(&m.Clave, &m.Nombre); err != nil {
			return nil, fmt.Errorf("failed to scan course row: %w", err)
		}
		materias = append(materias, m)
	}
	return materias, rows.Err()
}

// ListEspacios returns the distinct buildings with scheduled classes.
func (r *Repository) ListEspacios(ctx context.Context) ([]string, error) {
	return r.queryNames(ctx, `
SELECT DISTINCT e.edificio
FROM fact_clase f
JOIN dim_espacio e ON f.fk_espacio = e.id
WHERE f.periodo = $1 AND f.plan = $2
ORDER BY e.edificio`, r.periodo, r.plan)
}

// ListHoras returns the distinct class start times, for the form's dropdown.
func (r *Repository) ListHoras(ctx context.Context) ([]string, error) {
	return r.queryNames(ctx, `
SELECT DISTINCT f.inicio::text
FROM fact_clase f
WHERE f.periodo = $1 AND f.plan = $2
ORDER BY 1`, r.periodo, r.plan)
}

// previewTargets maps preview names to their backing tables. Fixed set; the
// target never reaches SQL unvalidated.
var previewTargets = map[string]struct {
	title string
	query string
}{
	"fact": {
		title: "Vista previa de fact_clase",
		query: `SELECT f.id, d.nombre_completo, a.clave, a.nombre, g.nrc, t.dia_codigo, e.edificio, e.salon, f.inicio::text, f.fin::text, f.minutos
FROM fact_clase f
JOIN dim_docente d ON f.fk_docente = d.id
JOIN dim_asignatura a ON f.fk_asignatura = a.id
JOIN dim_grupo g ON f.fk_grupo = g.id
JOIN dim_tiempo t ON f.fk_tiempo = t.id
JOIN dim_espacio e ON f.fk_espacio = e.id
WHERE f.periodo = $1 AND f.plan = $2
ORDER BY f.id LIMIT 50`,
	},
	"docente":    {title: "Vista previa de dim_docente", query: `SELECT id, nombre_completo FROM dim_docente ORDER BY id LIMIT 50`},
	"asignatura": {title: "Vista previa de dim_asignatura", query: `SELECT id, clave, nombre, programa FROM dim_asignatura ORDER BY id LIMIT 50`},
	"grupo":      {title: "Vista previa de dim_grupo", query: `SELECT id, nrc, seccion, cruzada FROM dim_grupo ORDER BY id LIMIT 50`},
	"tiempo":     {title: "Vista previa de dim_tiempo", query: `SELECT id, dia_codigo, dia_semana FROM dim_tiempo ORDER BY dia_semana LIMIT 50`},
	"espacio":    {title: "Vista previa de dim_espacio", query: `SELECT id, edificio, salon FROM dim_espacio ORDER BY id LIMIT 50`},
}

// Preview returns a bounded dump of one warehouse table for the UI.
func (r *Repository) Preview(ctx context.Context, target string) (title string, headers []string, out [][]string, err error) {
	spec, ok := previewTargets[target]
	if !ok {
		return "", nil, nil, fmt.Errorf("unknown preview target %q", target)
	}

	args := []any{}
	if strings.Contains(spec.query, "$1") {
		args = append(args, r.periodo, r.plan)
	}

	rows, err := r.pool.Query(ctx, spec.query, args...)
	if err != nil {
		return "", nil, nil, fmt.Errorf("failed to preview %s: %w", target, err)
	}
	defer rows.Close()

	for _, fd := range rows.FieldDescriptions() {
		headers = append(headers, fd.Name)
	}

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return "", nil, nil, fmt.Errorf("failed to read preview row: %w", err)
		}
		cells := make([]string, len(values))
		for i, value := range values {
			cells[i] = fmt.Sprint(value)
		}
		out = append(out, cells)
	}
	if err := rows.Err(); err != nil {
		return "", nil, nil, fmt.Errorf("failed to read preview rows: %w", err)
	}
	return spec.title, headers, out, nil
}

func (r *Repository) queryNames(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query warehouse: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// normalizeHora accepts "HHMM" or "HH:MM" and returns "HH:MM".
func normalizeHora(value string) (string, error) {
	value = strings.TrimSpace(strings.ReplaceAll(value, ":", ""))
	if len(value) != 4 {
		return "", fmt.Errorf("time must be HH:MM, got %q", value)
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("time must be HH:MM, got %q", value)
		}
	}
	return value[:2] + ":" + value[2:], nil
}
