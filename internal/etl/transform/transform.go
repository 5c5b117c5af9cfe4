// Package transform normalizes staging records into fact-ready rows: combined
// day codes and time ranges are exploded into one row per atomic day
// occurrence, and duplicate (class, day, time) entries that differ only by
// academic program are merged into a single row carrying the program union.
package transform

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/avaldezp/olap-horarios/internal/etl/normalizer"
	"github.com/avaldezp/olap-horarios/internal/etl/staging"
	"github.com/avaldezp/olap-horarios/pkg/config"
)

// ErrNoRecords indicates that no staging row survived transformation.
var ErrNoRecords = errors.New("transformation produced no records")

// placeholderDay marks staging rows whose day-code field was empty. It is not
// part of the configured day map, so the row surfaces as a logged unknown-day
// skip instead of vanishing silently.
const placeholderDay = "?"

// RowError describes a staging row (or one of its day occurrences) that could
// not be transformed.
type RowError struct {
	Record  staging.Record
	Message string
}

func (e RowError) Error() string {
	return fmt.Sprintf("nrc %s: %s", e.Record.NRC, e.Message)
}

// Result is the outcome of one transformation run.
type Result struct {
	Records    []staging.FactReady
	Errors     []RowError
	TotalRows  int // staging rows consumed
	MergedRows int // pre-merge atomic entries folded into an existing record
}

// mergeKey identifies one atomic class meeting. Programa is deliberately
// excluded: rows identical up to the program are the same meeting cross-listed
// under several programs.
type mergeKey struct {
	nrc      int
	clave    string
	materia  string
	seccion  string
	profesor string
	edificio string
	aula     string
	dia      string
	orden    int
	inicio   string
	fin      string
	minutos  int
	cruzada  bool
}

type accumulated struct {
	fact      staging.FactReady
	programas map[string]struct{}
}

// Transformer explodes and deduplicates staging records.
type Transformer struct {
	dayMap map[string]config.DayInfo
	logger *slog.Logger
}

// New creates a transformer using the configured day-code table.
func New(dayMap map[string]config.DayInfo, logger *slog.Logger) *Transformer {
	return &Transformer{dayMap: dayMap, logger: logger}
}

// Transform consumes the full staging set and produces the deduplicated
// fact-ready set. Malformed rows and unknown day codes are logged and
// skipped; the run fails only when nothing at all was produced.
func (t *Transformer) Transform(records []staging.Record) (*Result, error) {
	result := &Result{}
	entries := make(map[mergeKey]*accumulated)
	var order []mergeKey

	for _, record := range records {
		result.TotalRows++

		inicio, fin, minutos, err := splitHoraRange(record.Hora)
		if err != nil {
			t.rowError(result, record, fmt.Sprintf("invalid time range %q: %v", record.Hora, err))
			continue
		}

		nrc, err := strconv.Atoi(strings.TrimSpace(record.NRC))
		if err != nil {
			t.rowError(result, record, fmt.Sprintf("invalid nrc %q", record.NRC))
			continue
		}

		dias := splitDias(record.Dias)
		edificio, aula := splitSalon(record.Salon)

		materia := normalizer.CollapseSpaces(record.Materia)
		profesor := normalizer.CollapseSpaces(record.Profesor)
		clave := normalizer.CollapseSpaces(strings.ToUpper(record.Clave))
		seccion := normalizer.CollapseSpaces(strings.ToUpper(record.Seccion))
		programa := normalizer.CollapseSpaces(strings.ToUpper(record.Programa))
		cruzada := strings.Contains(strings.ToUpper(materia), "CRUZADA")

		for _, dia := range dias {
			info, ok := t.dayMap[dia]
			if !ok {
				t.rowError(result, record, fmt.Sprintf("unknown day code %q", dia))
				continue
			}

			key := mergeKey{
				nrc:      nrc,
				clave:    clave,
				materia:  materia,
				seccion:  seccion,
				profesor: profesor,
				edificio: edificio,
				aula:     aula,
				dia:      dia,
				orden:    info.Orden,
				inicio:   inicio,
				fin:      fin,
				minutos:  minutos,
				cruzada:  cruzada,
			}

			entry, exists := entries[key]
			if !exists {
				entries[key] = &accumulated{
					fact: staging.FactReady{
						NRC:       nrc,
						Clave:     clave,
						Materia:   materia,
						Seccion:   seccion,
						Profesor:  profesor,
						Edificio:  edificio,
						Aula:      aula,
						DiaCodigo: dia,
						DiaOrden:  info.Orden,
						Inicio:    inicio,
						Fin:       fin,
						Minutos:   minutos,
						Cruzada:   cruzada,
					},
					programas: map[string]struct{}{programa: {}},
				}
				order = append(order, key)
				continue
			}
			entry.programas[programa] = struct{}{}
			result.MergedRows++
		}
	}

	if len(order) == 0 {
		return nil, ErrNoRecords
	}

	result.Records = make([]staging.FactReady, 0, len(order))
	for _, key := range order {
		entry := entries[key]
		entry.fact.Programa = joinProgramas(entry.programas)
		result.Records = append(result.Records, entry.fact)
	}

	t.logger.Info("transformation finished",
		slog.Int("staging_rows", result.TotalRows),
		slog.Int("fact_rows", len(result.Records)),
		slog.Int("merged_rows", result.MergedRows),
		slog.Int("row_errors", len(result.Errors)),
	)
	return result, nil
}

func (t *Transformer) rowError(result *Result, record staging.Record, message string) {
	result.Errors = append(result.Errors, RowError{Record: record, Message: message})
	t.logger.Warn("skipping staging row",
		slog.String("nrc", record.NRC),
		slog.String("reason", message),
	)
}

// splitHoraRange parses "HHMM-HHMM" into HH:MM:SS bounds and the duration in
// whole minutes.
func splitHoraRange(value string) (inicio, fin string, minutos int, err error) {
	cleaned := strings.ReplaceAll(value, " ", "")
	parts := strings.Split(cleaned, "-")
	if len(parts) != 2 {
		return "", "", 0, fmt.Errorf("expected HHMM-HHMM")
	}

	startMin, err := parseHHMM(parts[0])
	if err != nil {
		return "", "", 0, err
	}
	endMin, err := parseHHMM(parts[1])
	if err != nil {
		return "", "", 0, err
	}

	minutos = endMin - startMin
	if minutos <= 0 {
		return "", "", 0, fmt.Errorf("non-positive duration")
	}
	return formatTime(startMin), formatTime(endMin), minutos, nil
}

// parseHHMM converts a 4-digit clock value to minutes since midnight.
func parseHHMM(value string) (int, error) {
	if len(value) != 4 {
		return 0, fmt.Errorf("malformed clock value %q", value)
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("malformed clock value %q", value)
	}
	hours, minutes := n/100, n%100
	if hours > 23 || minutes > 59 {
		return 0, fmt.Errorf("clock value out of range %q", value)
	}
	return hours*60 + minutes, nil
}

func formatTime(minutesOfDay int) string {
	return fmt.Sprintf("%02d:%02d:00", minutesOfDay/60, minutesOfDay%60)
}

// splitDias explodes the concatenated day-code string into single-character
// codes, substituting the placeholder when the field is empty.
func splitDias(value string) []string {
	value = strings.TrimSpace(value)
	if value == "" {
		return []string{placeholderDay}
	}
	dias := make([]string, 0, len(value))
	for _, r := range value {
		dias = append(dias, string(r))
	}
	return dias
}

// splitSalon splits "building/room"; a missing room defaults to empty and
// segments beyond the second are discarded.
func splitSalon(value string) (edificio, aula string) {
	parts := strings.Split(value, "/")
	edificio = normalizer.CollapseSpaces(parts[0])
	if len(parts) > 1 {
		aula = normalizer.CollapseSpaces(parts[1])
	}
	return edificio, aula
}

func joinProgramas(set map[string]struct{}) string {
	programas := make([]string, 0, len(set))
	for programa := range set {
		programas = append(programas, programa)
	}
	sort.Strings(programas)
	return strings.Join(programas, "/")
}
