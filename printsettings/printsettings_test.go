package printsettings

import (
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestApplyThenReadRoundTrip(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	settings := SheetPrintSettings{
		SheetName: sheet,
		PageSetup: PageSetup{
			Orientation: Landscape,
			PaperSize:   9,
			Scaling:     Scaling{FitToWidth: 1, FitToHeight: 0},
			Margins:     Margins{Left: 0.5, Right: 0.5, Top: 1, Bottom: 1, Header: 0.2, Footer: 0.2},
		},
		PrintArea: "A1:F30",
	}
	if err := Apply(f, settings); err != nil {
		t.Fatal(err)
	}

	got, err := Read(f, sheet)
	if err != nil {
		t.Fatal(err)
	}
	if got.PageSetup.Orientation != Landscape {
		t.Errorf("orientation = %v, want Landscape", got.PageSetup.Orientation)
	}
	if got.PageSetup.PaperSize != 9 {
		t.Errorf("paper size = %d, want 9", got.PageSetup.PaperSize)
	}
	if !got.PageSetup.Scaling.IsFitTo() {
		t.Errorf("expected fit-to scaling, got %+v", got.PageSetup.Scaling)
	}
	if got.PrintArea != "A1:F30" {
		t.Errorf("print area = %q, want A1:F30", got.PrintArea)
	}
}

func TestDefaultPageSetupMatchesExcelDefaults(t *testing.T) {
	setup := DefaultPageSetup()
	if setup.Orientation != Portrait {
		t.Errorf("expected Portrait default")
	}
	if setup.Scaling.IsFitTo() {
		t.Errorf("expected percent-based default scaling")
	}
	if setup.Scaling.Percent != 100 {
		t.Errorf("expected 100%% default scale, got %d", setup.Scaling.Percent)
	}
}

func TestScalingIsFitTo(t *testing.T) {
	if (Scaling{Percent: 80}).IsFitTo() {
		t.Errorf("percent-only scaling should not be fit-to")
	}
	if !(Scaling{FitToWidth: 1}).IsFitTo() {
		t.Errorf("fit-to-width scaling should be fit-to")
	}
}
