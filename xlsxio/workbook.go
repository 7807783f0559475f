// Package xlsxio is the workbook persistence layer: it loads and saves
// .xlsx/.xlsm containers via excelize and feeds their contents into a
// calcengine.Engine, but never evaluates a formula itself — Workbook is
// the container/persistence boundary, Engine stays the only formula
// evaluator (spec §6's xlsxio/Engine split).
//
// Grounded on artukn-excelize/each.go's per-cell extraction style
// (iterate every populated cell, dispatch one value at a time) and on
// this engine's own rewrite package for the one place excelize's public
// API leaves a gap: adjusting formula references when a range of cells
// is copied to a new location. excelize has no public equivalent of its
// own internal parseSharedFormula, so CopyRange reimplements that
// reference-shifting step with rewrite.RewriteForCopyDelta instead of
// reaching into excelize internals. Open defers to officecrypto to
// transparently decrypt a password-protected container before handing
// the plaintext OOXML bytes to excelize.
package xlsxio

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/sparrowsheet/calcengine"
	"github.com/sparrowsheet/calcengine/officecrypto"
	"github.com/sparrowsheet/calcengine/ref"
	"github.com/sparrowsheet/calcengine/rewrite"
	"github.com/sparrowsheet/calcengine/value"
)

// Workbook wraps an *excelize.File as the on-disk representation of a
// workbook whose formula cells are driven by a calcengine.Engine.
type Workbook struct {
	file *excelize.File
	path string
}

// New creates an empty in-memory workbook (a single default sheet, as
// excelize itself starts with).
func New() *Workbook {
	return &Workbook{file: excelize.NewFile()}
}

// Open reads an existing .xlsx/.xlsm file from disk. A password-protected
// file (an OLE2 compound-file container holding an EncryptionInfo stream
// rather than a plain ZIP) is detected and decrypted with officecrypto.Decrypt
// automatically when password is non-empty; pass "" for an unencrypted
// file.
func Open(path string, password string) (*Workbook, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("xlsxio: open %q: %w", path, err)
	}
	r := bytes.NewReader(raw)
	if password != "" && officecrypto.IsEncrypted(r) {
		plain, err := officecrypto.Decrypt(r, password)
		if err != nil {
			return nil, fmt.Errorf("xlsxio: decrypt %q: %w", path, err)
		}
		raw = plain
	}
	f, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("xlsxio: open %q: %w", path, err)
	}
	return &Workbook{file: f, path: path}, nil
}

// Close releases the underlying file's resources.
func (w *Workbook) Close() error {
	return w.file.Close()
}

// SaveAs writes the workbook to path, remembering it as the path future
// Save calls use.
func (w *Workbook) SaveAs(path string) error {
	if err := w.file.SaveAs(path); err != nil {
		return fmt.Errorf("xlsxio: save as %q: %w", path, err)
	}
	w.path = path
	return nil
}

// Save writes the workbook back to the path it was opened from (or last
// saved to).
func (w *Workbook) Save() error {
	if w.path == "" {
		return fmt.Errorf("xlsxio: save: no path set, use SaveAs")
	}
	return w.SaveAs(w.path)
}

// SheetNames returns every sheet in tab order.
func (w *Workbook) SheetNames() []string {
	return w.file.GetSheetList()
}

// LoadInto populates engine with every sheet, cell value, and cell
// formula this workbook currently holds. Sheets are added to engine in
// tab order, so sheet IDs line up with SheetNames's order.
func (w *Workbook) LoadInto(engine *calcengine.Engine) error {
	for _, sheetName := range w.SheetNames() {
		engine.AddSheet(sheetName)
	}
	for _, sheetName := range w.SheetNames() {
		rows, err := w.file.GetRows(sheetName)
		if err != nil {
			return fmt.Errorf("xlsxio: read sheet %q: %w", sheetName, err)
		}
		for rowIdx, row := range rows {
			for colIdx := range row {
				cellRef, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+1)
				if err != nil {
					continue
				}
				addr := ref.CellAddr{Row: uint32(rowIdx), Col: uint32(colIdx)}

				formula, err := w.file.GetCellFormula(sheetName, cellRef)
				if err == nil && formula != "" {
					if err := engine.SetCellFormula(sheetName, addr, "="+formula); err != nil {
						return fmt.Errorf("xlsxio: %s!%s: %w", sheetName, cellRef, err)
					}
					continue
				}

				raw, err := w.file.GetCellValue(sheetName, cellRef)
				if err != nil || raw == "" {
					continue
				}
				engine.SetCellValue(sheetName, addr, parseCellValue(raw))
			}
		}
	}
	return nil
}

// parseCellValue converts excelize's string cell representation into
// this engine's value lattice: numbers and booleans are recovered from
// their literal text, everything else is Text.
func parseCellValue(raw string) value.Value {
	if n, err := strconv.ParseFloat(raw, 64); err == nil {
		return n
	}
	switch strings.ToUpper(raw) {
	case "TRUE":
		return true
	case "FALSE":
		return false
	}
	return raw
}

// SaveValuesFrom writes engine's current computed values for the
// rows x cols block starting at A1 of sheet back into this workbook's
// in-memory file, ready for Save/SaveAs. Only values are written, never
// formula text. The sheet is not checked against the workbook's own
// sheet set: writing to a sheet the workbook lacks returns the error
// from the underlying file.
func (w *Workbook) SaveValuesFrom(engine *calcengine.Engine, sheet string, rows, cols int) error {
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			addr := ref.CellAddr{Row: uint32(r), Col: uint32(c)}
			v := engine.GetCellValue(sheet, addr)
			cellRef, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				continue
			}
			if err := w.setExcelValue(sheet, cellRef, v); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *Workbook) setExcelValue(sheet, cellRef string, v value.Value) error {
	switch x := v.(type) {
	case value.Blank:
		return w.file.SetCellValue(sheet, cellRef, nil)
	case *value.ErrorValue:
		return w.file.SetCellValue(sheet, cellRef, x.Error())
	default:
		return w.file.SetCellValue(sheet, cellRef, x)
	}
}

// CopyRange copies src (a normalized row/col rectangle on sheet) to a
// new top-left position at (destRow, destCol), shifting every relative
// reference in each copied formula by the same delta a fill-handle drag
// or cut/paste would apply (absolute $-anchored references stay put).
// This is the one piece of shared-formula-style reference adjustment
// excelize's public API doesn't do for the caller.
func (w *Workbook) CopyRange(sheet string, src rewrite.GridRange, destRow, destCol uint32) error {
	deltaRow := int32(destRow) - int32(src.StartRow)
	deltaCol := int32(destCol) - int32(src.StartCol)

	for r := src.StartRow; r <= src.EndRow; r++ {
		for c := src.StartCol; c <= src.EndCol; c++ {
			srcRef, err := excelize.CoordinatesToCellName(int(c)+1, int(r)+1)
			if err != nil {
				continue
			}
			destR := uint32(int32(r) + deltaRow)
			destC := uint32(int32(c) + deltaCol)
			destRef, err := excelize.CoordinatesToCellName(int(destC)+1, int(destR)+1)
			if err != nil {
				continue
			}

			formula, err := w.file.GetCellFormula(sheet, srcRef)
			if err == nil && formula != "" {
				origin := ref.CellAddr{Row: r, Col: c}
				rewritten, _ := rewrite.RewriteForCopyDelta("="+formula, sheet, origin, deltaRow, deltaCol, nil)
				if err := w.file.SetCellFormula(sheet, destRef, strings.TrimPrefix(rewritten, "=")); err != nil {
					return fmt.Errorf("xlsxio: copy %s!%s -> %s: %w", sheet, srcRef, destRef, err)
				}
				continue
			}

			raw, err := w.file.GetCellValue(sheet, srcRef)
			if err != nil {
				continue
			}
			if err := w.file.SetCellValue(sheet, destRef, raw); err != nil {
				return fmt.Errorf("xlsxio: copy %s!%s -> %s: %w", sheet, srcRef, destRef, err)
			}
		}
	}
	return nil
}
