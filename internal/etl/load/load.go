// Package load replaces a period's fact data in the star-schema warehouse.
// Dimension surrogate keys are resolved through per-run memoizing caches
// (memory, then lookup, then insert), prior fact rows for the active
// (periodo, plan) are deleted, and everything runs in a single transaction:
// a partial load is never visible.
package load

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/avaldezp/olap-horarios/internal/etl/staging"
	"github.com/avaldezp/olap-horarios/pkg/config"
)

// slotMinutes is the width of the fact_clase_slot explosion windows.
const slotMinutes = 60

// PgxPool is the subset of pgxpool.Pool the loader needs. Satisfied by
// pgxmock in tests.
type PgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Summary reports what a load run did to the warehouse.
type Summary struct {
	FactRows     int
	SlotRows     int
	DeletedFacts int64
	DeletedSlots int64
	DimsCreated  int
}

// Loader writes fact-ready records into the warehouse.
type Loader struct {
	pool    PgxPool
	periodo string
	plan    string
	dayMap  map[string]config.DayInfo
	logger  *slog.Logger
}

// New creates a loader scoped to the active (periodo, plan).
func New(pool PgxPool, periodo, plan string, dayMap map[string]config.DayInfo, logger *slog.Logger) *Loader {
	return &Loader{
		pool:    pool,
		periodo: periodo,
		plan:    plan,
		dayMap:  dayMap,
		logger:  logger,
	}
}

// Load replaces the active period's fact data with the given records.
// Any failure inside the transaction aborts the whole load.
func (l *Loader) Load(ctx context.Context, records []staging.FactReady) (*Summary, error) {
	if len(records) == 0 {
		return nil, errors.New("no fact-ready records to load")
	}

	if err := l.seedDimTiempo(ctx); err != nil {
		return nil, err
	}

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin load transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	summary := &Summary{}
	if err := l.purgePeriod(ctx, tx, summary); err != nil {
		return nil, err
	}

	docentes := newDimensionCache("dim_docente", "nombre_completo")
	asignaturas := newDimensionCache("dim_asignatura", "clave", "nombre", "programa")
	grupos := newDimensionCache("dim_grupo", "nrc", "seccion", "cruzada")
	espacios := newDimensionCache("dim_espacio", "edificio", "salon")
	tiempos := make(map[string]int)

	for _, record := range records {
		docenteID, err := docentes.getOrCreate(ctx, tx, record.Profesor)
		if err != nil {
			return nil, err
		}
		asignaturaID, err := asignaturas.getOrCreate(ctx, tx, record.Clave, record.Materia, record.Programa)
		if err != nil {
			return nil, err
		}
		grupoID, err := grupos.getOrCreate(ctx, tx, record.NRC, record.Seccion, record.Cruzada)
		if err != nil {
			return nil, err
		}
		espacioID, err := espacios.getOrCreate(ctx, tx, record.Edificio, record.Aula)
		if err != nil {
			return nil, err
		}
		tiempoID, err := l.resolveTiempo(ctx, tx, tiempos, record.DiaCodigo)
		if err != nil {
			return nil, err
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO fact_clase (fk_docente, fk_asignatura, fk_grupo, fk_tiempo, fk_espacio, periodo, plan, inicio, fin, minutos)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			docenteID, asignaturaID, grupoID, tiempoID, espacioID,
			l.periodo, l.plan, record.Inicio, record.Fin, record.Minutos,
		); err != nil {
			return nil, fmt.Errorf("failed to insert fact row (nrc %d, dia %s): %w", record.NRC, record.DiaCodigo, err)
		}
		summary.FactRows++

		slots, err := explodeSlots(record.Inicio, record.Fin)
		if err != nil {
			return nil, fmt.Errorf("failed to explode slots (nrc %d): %w", record.NRC, err)
		}
		for _, slot := range slots {
			if _, err := tx.Exec(ctx,
				`INSERT INTO fact_clase_slot (fk_docente, fk_asignatura, fk_grupo, fk_tiempo, fk_espacio, periodo, plan, slot_inicio, slot_fin)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
				docenteID, asignaturaID, grupoID, tiempoID, espacioID,
				l.periodo, l.plan, slot.inicio, slot.fin,
			); err != nil {
				return nil, fmt.Errorf("failed to insert slot row (nrc %d): %w", record.NRC, err)
			}
			summary.SlotRows++
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit load transaction: %w", err)
	}

	summary.DimsCreated = docentes.created + asignaturas.created + grupos.created + espacios.created
	l.logger.Info("load finished",
		slog.String("periodo", l.periodo),
		slog.String("plan", l.plan),
		slog.Int("fact_rows", summary.FactRows),
		slog.Int("slot_rows", summary.SlotRows),
		slog.Int("dims_created", summary.DimsCreated),
	)
	return summary, nil
}

// seedDimTiempo inserts the configured day codes missing from dim_tiempo.
// Runs outside the load transaction; re-running it is a no-op.
func (l *Loader) seedDimTiempo(ctx context.Context) error {
	codes := make([]string, 0, len(l.dayMap))
	for code := range l.dayMap {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool {
		return l.dayMap[codes[i]].Orden < l.dayMap[codes[j]].Orden
	})

	for _, code := range codes {
		var id int
		err := l.pool.QueryRow(ctx, `SELECT id FROM dim_tiempo WHERE dia_codigo = $1`, code).Scan(&id)
		if err == nil {
			continue
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("failed to look up dim_tiempo %q: %w", code, err)
		}
		if _, err := l.pool.Exec(ctx,
			`INSERT INTO dim_tiempo (dia_codigo, dia_semana) VALUES ($1, $2)`,
			code, l.dayMap[code].Orden,
		); err != nil {
			return fmt.Errorf("failed to seed dim_tiempo %q: %w", code, err)
		}
		l.logger.Info("seeded dim_tiempo", slog.String("dia_codigo", code))
	}
	return nil
}

// purgePeriod deletes every fact row of the active (periodo, plan). Replace,
// not merge: stale rows must never survive a re-import.
func (l *Loader) purgePeriod(ctx context.Context, tx pgx.Tx, summary *Summary) error {
	tag, err := tx.Exec(ctx, `DELETE FROM fact_clase WHERE periodo = $1 AND plan = $2`, l.periodo, l.plan)
	if err != nil {
		return fmt.Errorf("failed to purge fact_clase for %s/%s: %w", l.periodo, l.plan, err)
	}
	summary.DeletedFacts = tag.RowsAffected()

	tag, err = tx.Exec(ctx, `DELETE FROM fact_clase_slot WHERE periodo = $1 AND plan = $2`, l.periodo, l.plan)
	if err != nil {
		return fmt.Errorf("failed to purge fact_clase_slot for %s/%s: %w", l.periodo, l.plan, err)
	}
	summary.DeletedSlots = tag.RowsAffected()

	if summary.DeletedFacts > 0 {
		l.logger.Info("purged prior fact rows",
			slog.String("periodo", l.periodo),
			slog.String("plan", l.plan),
			slog.Int64("fact_rows", summary.DeletedFacts),
			slog.Int64("slot_rows", summary.DeletedSlots),
		)
	}
	return nil
}

// resolveTiempo looks up the day dimension key. The code must exist after
// seeding; absence is a logic error, not a data error.
func (l *Loader) resolveTiempo(ctx context.Context, tx pgx.Tx, cache map[string]int, diaCodigo string) (int, error) {
	if id, ok := cache[diaCodigo]; ok {
		return id, nil
	}
	var id int
	err := tx.QueryRow(ctx, `SELECT id FROM dim_tiempo WHERE dia_codigo = $1`, diaCodigo).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("dim_tiempo has no row for day code %q: seeding is broken", diaCodigo)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to resolve dim_tiempo %q: %w", diaCodigo, err)
	}
	cache[diaCodigo] = id
	return id, nil
}

// dimensionCache memoizes natural-key → surrogate-key lookups for one
// dimension table. Scoped to a single load run; at most one row is ever
// created per distinct natural key.
type dimensionCache struct {
	table   string
	columns []string
	keys    map[string]int
	created int

	selectSQL string
	insertSQL string
}

func newDimensionCache(table string, columns ...string) *dimensionCache {
	where := make([]string, len(columns))
	placeholders := make([]string, len(columns))
	for i, column := range columns {
		where[i] = fmt.Sprintf("%s = $%d", column, i+1)
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	return &dimensionCache{
		table:   table,
		columns: columns,
		keys:    make(map[string]int),
		selectSQL: fmt.Sprintf("SELECT id FROM %s WHERE %s",
			table, strings.Join(where, " AND ")),
		insertSQL: fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING id",
			table, strings.Join(columns, ", "), strings.Join(placeholders, ", ")),
	}
}

// getOrCreate resolves the surrogate key for a natural-key tuple: memory
// first, then a warehouse lookup, then an insert.
func (c *dimensionCache) getOrCreate(ctx context.Context, tx pgx.Tx, values ...any) (int, error) {
	key := cacheKey(values)
	if id, ok := c.keys[key]; ok {
		return id, nil
	}

	var id int
	err := tx.QueryRow(ctx, c.selectSQL, values...).Scan(&id)
	switch {
	case err == nil:
		c.keys[key] = id
		return id, nil
	case errors.Is(err, pgx.ErrNoRows):
		// fall through to insert
	default:
		return 0, fmt.Errorf("failed to look up %s: %w", c.table, err)
	}

	if err := tx.QueryRow(ctx, c.insertSQL, values...).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to insert into %s: %w", c.table, err)
	}
	c.created++
	c.keys[key] = id
	return id, nil
}

func cacheKey(values []any) string {
	parts := make([]string, len(values))
	for i, value := range values {
		parts[i] = fmt.Sprint(value)
	}
	return strings.Join(parts, "\x1f")
}

type slot struct {
	inicio string
	fin    string
}

// explodeSlots cuts [inicio, fin) into 60-minute windows for the slot fact
// table; the last window is clipped to fin.
func explodeSlots(inicio, fin string) ([]slot, error) {
	start, err := parseClock(inicio)
	if err != nil {
		return nil, err
	}
	end, err := parseClock(fin)
	if err != nil {
		return nil, err
	}

	var slots []slot
	for cursor := start; cursor < end; cursor += slotMinutes {
		slotEnd := cursor + slotMinutes
		if slotEnd > end {
			slotEnd = end
		}
		slots = append(slots, slot{inicio: formatClock(cursor), fin: formatClock(slotEnd)})
	}
	return slots, nil
}

func parseClock(value string) (int, error) {
	var hours, minutes, seconds int
	if _, err := fmt.Sscanf(value, "%d:%d:%d", &hours, &minutes, &seconds); err != nil {
		return 0, fmt.Errorf("malformed time %q: %w", value, err)
	}
	return hours*60 + minutes, nil
}

func formatClock(minutesOfDay int) string {
	return fmt.Sprintf("%02d:%02d:00", minutesOfDay/60, minutesOfDay%60)
}
