package config

import "testing"

func TestValidateRejectsUnknownMode(t *testing.T) {
	s := CalcSettings{CalculationMode: "nonsense"}
	if err := Validate(s); err == nil {
		t.Fatal("expected an error for an unknown calculation mode")
	}
}

func TestValidateRejectsIterativeWithoutBounds(t *testing.T) {
	s := CalcSettings{
		CalculationMode: Automatic,
		Iterative:       IterativeSettings{Enabled: true},
	}
	if err := Validate(s); err == nil {
		t.Fatal("expected an error when iterative calc is enabled with no bounds")
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	if err := Validate(DefaultCalcSettings()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateAcceptsIterativeWithBounds(t *testing.T) {
	s := CalcSettings{
		CalculationMode: Manual,
		Iterative:       IterativeSettings{Enabled: true, MaxIterations: 100, MaxChange: 0.001},
	}
	if err := Validate(s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
