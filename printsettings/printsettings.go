// Package printsettings models a worksheet's print configuration — page
// setup, margins, print area, and print titles — as a plain struct, and
// round-trips it through an *excelize.File. It never touches calcengine:
// print settings affect how a sheet is rendered on paper, not what a
// formula evaluates to.
//
// Grounded on original_source/crates/formula-xlsx/src/print/xlsx.rs's field
// shape (PageSetup{Orientation, PaperSize, Scaling, Margins},
// Scaling::Percent/FitTo, print area as a defined-name range) — re-expressed
// against excelize's public page-layout API instead of that file's own
// direct ZIP/XML part parsing, since this package's host (excelize) already
// owns the OOXML container and exposes the same settings publicly.
package printsettings

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Orientation is a worksheet's print orientation.
type Orientation string

const (
	Portrait  Orientation = "portrait"
	Landscape Orientation = "landscape"
)

// Scaling is either a fixed print-scale percentage or a fit-to-page
// request, mirroring the OOXML pageSetup/pageSetUpPr choice between
// scale and fitToWidth/fitToHeight.
type Scaling struct {
	Percent int // used when FitToWidth and FitToHeight are both zero
	FitToWidth  int
	FitToHeight int
}

// IsFitTo reports whether this Scaling targets a fixed page count rather
// than a fixed zoom percentage.
func (s Scaling) IsFitTo() bool {
	return s.FitToWidth != 0 || s.FitToHeight != 0
}

// Margins are in inches, the unit OOXML's pageMargins element itself uses.
type Margins struct {
	Left, Right, Top, Bottom, Header, Footer float64
}

// DefaultMargins matches Excel's own defaults for a new worksheet.
func DefaultMargins() Margins {
	return Margins{Left: 0.7, Right: 0.7, Top: 0.75, Bottom: 0.75, Header: 0.3, Footer: 0.3}
}

// PageSetup is one sheet's paper/orientation/scaling configuration.
type PageSetup struct {
	Orientation Orientation
	PaperSize   int // OOXML paper-size code; 9 = A4, 1 = Letter
	Scaling     Scaling
	Margins     Margins
}

// DefaultPageSetup matches Excel's own defaults for a new worksheet.
func DefaultPageSetup() PageSetup {
	return PageSetup{
		Orientation: Portrait,
		PaperSize:   1,
		Scaling:     Scaling{Percent: 100},
		Margins:     DefaultMargins(),
	}
}

// PrintTitles names the repeating header rows/columns a sheet should
// reprint on every page (OOXML's _xlnm.Print_Titles defined name).
type PrintTitles struct {
	Rows    string // e.g. "1:2" to repeat the first two rows
	Columns string // e.g. "A:A" to repeat the first column
}

// SheetPrintSettings is one sheet's full print configuration.
type SheetPrintSettings struct {
	SheetName   string
	PageSetup   PageSetup
	PrintArea   string // an A1-style range, e.g. "A1:F30"; empty means "whole sheet"
	PrintTitles PrintTitles
}

// Read extracts sheet's current print settings from f.
func Read(f *excelize.File, sheet string) (*SheetPrintSettings, error) {
	layout, err := f.GetPageLayout(sheet)
	if err != nil {
		return nil, fmt.Errorf("printsettings: get page layout for %q: %w", sheet, err)
	}
	margins, err := f.GetPageMargins(sheet)
	if err != nil {
		return nil, fmt.Errorf("printsettings: get page margins for %q: %w", sheet, err)
	}

	setup := DefaultPageSetup()
	if layout.Orientation != nil {
		setup.Orientation = Orientation(*layout.Orientation)
	}
	if layout.Size != nil {
		setup.PaperSize = *layout.Size
	}
	fitWidth, fitHeight := 0, 0
	if layout.FitToWidth != nil {
		fitWidth = *layout.FitToWidth
	}
	if layout.FitToHeight != nil {
		fitHeight = *layout.FitToHeight
	}
	if fitWidth != 0 || fitHeight != 0 {
		setup.Scaling = Scaling{FitToWidth: fitWidth, FitToHeight: fitHeight}
	} else if layout.AdjustTo != nil {
		setup.Scaling = Scaling{Percent: int(*layout.AdjustTo)}
	}
	setup.Margins = marginsFromExcelize(margins)

	area, titles := findPrintDefinedNames(f.GetDefinedName(), sheet)

	return &SheetPrintSettings{
		SheetName:   sheet,
		PageSetup:   setup,
		PrintArea:   area,
		PrintTitles: titles,
	}, nil
}

func marginsFromExcelize(m *excelize.PageLayoutMarginsOptions) Margins {
	out := DefaultMargins()
	if m == nil {
		return out
	}
	if m.Left != nil {
		out.Left = *m.Left
	}
	if m.Right != nil {
		out.Right = *m.Right
	}
	if m.Top != nil {
		out.Top = *m.Top
	}
	if m.Bottom != nil {
		out.Bottom = *m.Bottom
	}
	if m.Header != nil {
		out.Header = *m.Header
	}
	if m.Footer != nil {
		out.Footer = *m.Footer
	}
	return out
}

// findPrintDefinedNames scans excelize's workbook-wide defined names for the
// print-area/print-titles entries OOXML scopes to sheet by name
// (_xlnm.Print_Area / _xlnm.Print_Titles), returning the A1-style ranges
// they reference stripped of the sheet-name prefix.
func findPrintDefinedNames(names []excelize.DefinedName, sheet string) (area string, titles PrintTitles) {
	prefix := "'" + sheet + "'!"
	for _, dn := range names {
		refersTo := strings.TrimPrefix(dn.RefersTo, prefix)
		switch {
		case strings.EqualFold(dn.Name, "_xlnm.Print_Area"):
			area = stripDollar(refersTo)
		case strings.EqualFold(dn.Name, "_xlnm.Print_Titles"):
			for _, part := range strings.Split(refersTo, ",") {
				part = strings.TrimPrefix(strings.TrimSpace(part), prefix)
				if isRowRange(part) {
					titles.Rows = stripDollar(part)
				} else {
					titles.Columns = stripDollar(part)
				}
			}
		}
	}
	return area, titles
}

func isRowRange(s string) bool {
	return strings.HasPrefix(strings.TrimPrefix(s, "$"), "1") || strings.Contains(s, "$1:$")
}

func stripDollar(s string) string {
	return strings.ReplaceAll(s, "$", "")
}

// Apply writes settings onto f, replacing sheet's current page layout,
// margins, print area, and print titles.
func Apply(f *excelize.File, settings SheetPrintSettings) error {
	orientation := string(settings.PageSetup.Orientation)
	size := settings.PageSetup.PaperSize
	layout := &excelize.PageLayoutOptions{
		Orientation: &orientation,
		Size:        &size,
	}
	if settings.PageSetup.Scaling.IsFitTo() {
		width, height := settings.PageSetup.Scaling.FitToWidth, settings.PageSetup.Scaling.FitToHeight
		layout.FitToWidth = &width
		layout.FitToHeight = &height
	} else {
		adjustTo := uint(settings.PageSetup.Scaling.Percent)
		layout.AdjustTo = &adjustTo
	}
	if err := f.SetPageLayout(settings.SheetName, layout); err != nil {
		return fmt.Errorf("printsettings: set page layout for %q: %w", settings.SheetName, err)
	}

	m := settings.PageSetup.Margins
	if err := f.SetPageMargins(settings.SheetName, &excelize.PageLayoutMarginsOptions{
		Left: &m.Left, Right: &m.Right, Top: &m.Top, Bottom: &m.Bottom,
		Header: &m.Header, Footer: &m.Footer,
	}); err != nil {
		return fmt.Errorf("printsettings: set page margins for %q: %w", settings.SheetName, err)
	}

	if settings.PrintArea != "" {
		refersTo := fmt.Sprintf("'%s'!%s", settings.SheetName, qualifyRange(settings.PrintArea))
		if err := f.SetDefinedName(&excelize.DefinedName{
			Name:     "_xlnm.Print_Area",
			RefersTo: refersTo,
			Scope:    settings.SheetName,
		}); err != nil {
			return fmt.Errorf("printsettings: set print area for %q: %w", settings.SheetName, err)
		}
	}

	if settings.PrintTitles.Rows != "" || settings.PrintTitles.Columns != "" {
		var parts []string
		if settings.PrintTitles.Rows != "" {
			parts = append(parts, fmt.Sprintf("'%s'!%s", settings.SheetName, qualifyRange(settings.PrintTitles.Rows)))
		}
		if settings.PrintTitles.Columns != "" {
			parts = append(parts, fmt.Sprintf("'%s'!%s", settings.SheetName, qualifyRange(settings.PrintTitles.Columns)))
		}
		if err := f.SetDefinedName(&excelize.DefinedName{
			Name:     "_xlnm.Print_Titles",
			RefersTo: strings.Join(parts, ","),
			Scope:    settings.SheetName,
		}); err != nil {
			return fmt.Errorf("printsettings: set print titles for %q: %w", settings.SheetName, err)
		}
	}

	return nil
}

// qualifyRange turns a bare A1-style range ("A1:F30", "1:2", "A:A") into
// its $-anchored absolute form, the style OOXML defined names use.
func qualifyRange(r string) string {
	parts := strings.Split(r, ":")
	for i, p := range parts {
		p = strings.ReplaceAll(p, "$", "")
		if j := strings.IndexAny(p, "0123456789"); j > 0 {
			p = p[:j] + "$" + p[j:]
		}
		parts[i] = "$" + p
	}
	return strings.Join(parts, ":")
}
