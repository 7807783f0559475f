// Package config holds the engine's boundary-validated runtime settings:
// calculation mode and iterative-calculation guardrails (spec §6.2's
// set_calc_settings) plus the conservative resource defaults a host
// embedding the engine should start from.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// CalculationMode selects when Engine.Recalculate actually walks the
// dirty set.
type CalculationMode string

const (
	Automatic         CalculationMode = "automatic"
	AutomaticNoTable  CalculationMode = "automatic_no_table"
	Manual            CalculationMode = "manual"
)

// IterativeSettings governs circular-reference convergence: when Enabled,
// a cycle is iterated up to MaxIterations times or until successive
// values differ by less than MaxChange. When disabled, each cell of a
// cycle keeps its last value (0 if it has none) and is flagged as being
// in a cycle.
type IterativeSettings struct {
	Enabled       bool
	MaxIterations int     `validate:"required_if=Enabled true,omitempty,gt=0,lte=10000"`
	MaxChange     float64 `validate:"required_if=Enabled true,omitempty,gt=0"`
}

// CalcSettings is the validated payload for Engine.SetCalcSettings.
type CalcSettings struct {
	CalculationMode CalculationMode `validate:"required,oneof=automatic automatic_no_table manual"`
	Iterative       IterativeSettings
}

// DefaultCalcSettings matches Excel's own defaults: automatic recalc, no
// iterative convergence.
func DefaultCalcSettings() CalcSettings {
	return CalcSettings{CalculationMode: Automatic}
}

var validate = validator.New()

// Validate rejects a CalcSettings payload that fails the struct tags
// above, returning a message naming the offending field and the failed
// tag.
func Validate(s CalcSettings) error {
	if err := validate.Struct(s); err != nil {
		if ve, ok := err.(validator.ValidationErrors); ok && len(ve) > 0 {
			fe := ve[0]
			return fmt.Errorf("calc settings: field %q failed %q", fe.Field(), fe.Tag())
		}
		return err
	}
	return nil
}

// Conservative resource defaults a host process should apply when it
// embeds multiple Engine instances or serves concurrent requests against
// one. The engine itself does not enforce these; they are guardrails for
// the host loop (cmd/calcsh and any future server wrapping Engine).
const (
	DefaultMaxConcurrentRecalcs = 4
	DefaultMaxOpenWorkbooks     = 8
	DefaultMaxCellsPerEdit      = 1_000_000
	DefaultRecalcTimeout        = 30 * time.Second
)
