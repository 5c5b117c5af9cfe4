package transform

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avaldezp/olap-horarios/internal/etl/staging"
	"github.com/avaldezp/olap-horarios/pkg/config"
)

func testDayMap() map[string]config.DayInfo {
	return map[string]config.DayInfo{
		"L": {Nombre: "Lunes", Orden: 1},
		"A": {Nombre: "Martes", Orden: 2},
		"M": {Nombre: "Miércoles", Orden: 3},
		"J": {Nombre: "Jueves", Orden: 4},
		"V": {Nombre: "Viernes", Orden: 5},
		"S": {Nombre: "Sábado", Orden: 6},
	}
}

func newTestTransformer() *Transformer {
	return New(testDayMap(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func baseRecord() staging.Record {
	return staging.Record{
		NRC:      "12345",
		Clave:    "mat101",
		Materia:  "Cálculo Cruzada",
		Seccion:  "01",
		Dias:     "AJ",
		Hora:     "0900-1059",
		Profesor: "Juan Perez",
		Salon:    "1CCO4/307",
		Programa: "ITI",
	}
}

func TestTransformer_Transform(t *testing.T) {
	t.Run("explodes days and splits hours", func(t *testing.T) {
		result, err := newTestTransformer().Transform([]staging.Record{baseRecord()})
		require.NoError(t, err)
		require.Len(t, result.Records, 2)

		first, second := result.Records[0], result.Records[1]
		assert.Equal(t, "A", first.DiaCodigo)
		assert.Equal(t, 2, first.DiaOrden)
		assert.Equal(t, "J", second.DiaCodigo)
		assert.Equal(t, 4, second.DiaOrden)

		for _, record := range result.Records {
			assert.Equal(t, 12345, record.NRC)
			assert.Equal(t, "MAT101", record.Clave, "clave uppercased")
			assert.Equal(t, "09:00:00", record.Inicio)
			assert.Equal(t, "10:59:00", record.Fin)
			assert.Equal(t, 119, record.Minutos)
			assert.Equal(t, "1CCO4", record.Edificio)
			assert.Equal(t, "307", record.Aula)
			assert.True(t, record.Cruzada, "CRUZADA detected in materia")
			assert.Equal(t, "ITI", record.Programa)
		}
	})

	t.Run("merges rows differing only by programa", func(t *testing.T) {
		a := baseRecord()
		b := baseRecord()
		b.Programa = "ICC"

		result, err := newTestTransformer().Transform([]staging.Record{a, b})
		require.NoError(t, err)
		require.Len(t, result.Records, 2, "one record per day, not per program")
		assert.Equal(t, 2, result.MergedRows)

		for _, record := range result.Records {
			assert.Equal(t, "ICC/ITI", record.Programa, "sorted slash-joined union")
		}
	})

	t.Run("duplicate programa is not repeated", func(t *testing.T) {
		result, err := newTestTransformer().Transform([]staging.Record{baseRecord(), baseRecord()})
		require.NoError(t, err)
		require.Len(t, result.Records, 2)
		assert.Equal(t, "ITI", result.Records[0].Programa)
	})

	t.Run("different professors stay separate", func(t *testing.T) {
		a := baseRecord()
		b := baseRecord()
		b.Profesor = "Ana Ruiz"
		b.Programa = "ICC"

		result, err := newTestTransformer().Transform([]staging.Record{a, b})
		require.NoError(t, err)
		assert.Len(t, result.Records, 4)
	})

	t.Run("empty dias yields placeholder then unknown-day skip", func(t *testing.T) {
		bad := baseRecord()
		bad.Dias = ""

		result, err := newTestTransformer().Transform([]staging.Record{bad, baseRecord()})
		require.NoError(t, err)
		assert.Len(t, result.Records, 2, "placeholder day dropped, good row kept")
		require.Len(t, result.Errors, 1)
		assert.Contains(t, result.Errors[0].Message, `unknown day code "?"`)
	})

	t.Run("malformed hora is row-scoped", func(t *testing.T) {
		tests := []string{"morning", "0900", "0900-2560", "090-1059", ""}
		for _, hora := range tests {
			bad := baseRecord()
			bad.Hora = hora

			result, err := newTestTransformer().Transform([]staging.Record{bad, baseRecord()})
			require.NoError(t, err, "hora %q must not abort the batch", hora)
			assert.Len(t, result.Records, 2)
			assert.Len(t, result.Errors, 1)
		}
	})

	t.Run("non-positive duration is rejected", func(t *testing.T) {
		bad := baseRecord()
		bad.Hora = "1100-1000"

		result, err := newTestTransformer().Transform([]staging.Record{bad, baseRecord()})
		require.NoError(t, err)
		assert.Len(t, result.Records, 2)
		require.Len(t, result.Errors, 1)
		assert.Contains(t, result.Errors[0].Message, "non-positive")
	})

	t.Run("missing aula defaults to empty", func(t *testing.T) {
		record := baseRecord()
		record.Salon = "1CCO4"
		record.Dias = "L"

		result, err := newTestTransformer().Transform([]staging.Record{record})
		require.NoError(t, err)
		require.Len(t, result.Records, 1)
		assert.Equal(t, "1CCO4", result.Records[0].Edificio)
		assert.Equal(t, "", result.Records[0].Aula)
	})

	t.Run("extra salon segments are discarded", func(t *testing.T) {
		record := baseRecord()
		record.Salon = "1CCO4/307/ANEXO"
		record.Dias = "L"

		result, err := newTestTransformer().Transform([]staging.Record{record})
		require.NoError(t, err)
		require.Len(t, result.Records, 1)
		assert.Equal(t, "1CCO4", result.Records[0].Edificio)
		assert.Equal(t, "307", result.Records[0].Aula)
	})

	t.Run("zero output is terminal", func(t *testing.T) {
		bad := baseRecord()
		bad.Hora = "bogus"

		_, err := newTestTransformer().Transform([]staging.Record{bad})
		require.ErrorIs(t, err, ErrNoRecords)
	})
}
