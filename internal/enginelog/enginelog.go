// Package enginelog provides the structured sub-logger factory every
// Engine instance uses for recalculation, structural-edit, and
// load/save telemetry — each engine gets its own logger carrying its
// instance ID, never a package-level shared logger, per the
// per-instance EngineInfo requirement.
package enginelog

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// New builds the base logger for one Engine instance, tagging every
// event with its instanceID so logs from multiple engines in one
// process (or one host's concurrent workbooks) can be told apart.
func New(instanceID string, out io.Writer) zerolog.Logger {
	if out == nil {
		out = os.Stderr
	}
	return zerolog.New(out).With().
		Timestamp().
		Str("engine_id", instanceID).
		Logger()
}

// ForRecalc returns a sub-logger scoped to one Engine.Recalculate call,
// tagged with the tick's calculation mode and cell count.
func ForRecalc(base zerolog.Logger, mode string, dirtyCells int) zerolog.Logger {
	return base.With().
		Str("component", "recalc").
		Str("calc_mode", mode).
		Int("dirty_cells", dirtyCells).
		Logger()
}

// ForStructuralEdit returns a sub-logger scoped to one
// Engine.ApplyStructuralEdit call.
func ForStructuralEdit(base zerolog.Logger, sheet string, kind string) zerolog.Logger {
	return base.With().
		Str("component", "structural_edit").
		Str("sheet", sheet).
		Str("edit_kind", kind).
		Logger()
}

// ForWorkbook returns a sub-logger scoped to xlsxio load/save operations
// against one file path.
func ForWorkbook(base zerolog.Logger, path string) zerolog.Logger {
	return base.With().
		Str("component", "xlsxio").
		Str("path", path).
		Logger()
}
