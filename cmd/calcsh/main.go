// Command calcsh is a minimal line-oriented REPL host for calcengine: it
// reads "Sheet!A1 = ..." assignments, a handful of bang-prefixed commands,
// and prints recalculated values back. It is a thin demo harness, not part
// of the engine itself — spec.md's scope excludes "the thin host
// CLI/TUI/test harness" from the core budget, so calcsh calls the public
// Engine/xlsxio API exactly as any other host would, never reaching into
// calcengine's internals.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/sparrowsheet/calcengine"
	"github.com/sparrowsheet/calcengine/ref"
	"github.com/sparrowsheet/calcengine/value"
	"github.com/sparrowsheet/calcengine/xlsxio"
)

const defaultSheet = "Sheet1"

var cellRefPattern = regexp.MustCompile(`^([A-Za-z]+)([0-9]+)$`)

func main() {
	engine := calcengine.New()
	engine.AddSheet(defaultSheet)

	fmt.Println("calcsh - type `!help` for commands")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "!") {
			if !runCommand(engine, line) {
				return
			}
			continue
		}
		if err := runAssignment(engine, line); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
	}
}

func runCommand(engine *calcengine.Engine, line string) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case "!help":
		fmt.Println("  Sheet!A1 = formula or literal   set a cell")
		fmt.Println("  !recalc                         recalculate the workbook")
		fmt.Println("  !print Sheet!A1                 print a cell's current value")
		fmt.Println("  !load path.xlsx                 load a workbook from disk")
		fmt.Println("  !save path.xlsx                 write a new, empty workbook to disk")
		fmt.Println("  !quit                           exit")
	case "!recalc":
		if err := engine.Recalculate(context.Background()); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
	case "!print":
		if len(fields) != 2 {
			fmt.Fprintln(os.Stderr, "usage: !print Sheet!A1")
			return true
		}
		sheet, addr, err := parseRef(fields[1])
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			return true
		}
		fmt.Println(formatValue(engine.GetCellValue(sheet, addr)))
	case "!load":
		if len(fields) != 2 {
			fmt.Fprintln(os.Stderr, "usage: !load path.xlsx")
			return true
		}
		wb, err := xlsxio.Open(fields[1], "")
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			return true
		}
		defer wb.Close()
		if err := wb.LoadInto(engine); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			return true
		}
		if err := engine.Recalculate(context.Background()); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
	case "!save":
		if len(fields) != 2 {
			fmt.Fprintln(os.Stderr, "usage: !save path.xlsx")
			return true
		}
		wb := xlsxio.New()
		fmt.Fprintln(os.Stderr, "note: !save writes an empty workbook; cell contents are not saved")
		if err := wb.SaveAs(fields[1]); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
	case "!quit", "!exit":
		return false
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q (try !help)\n", fields[0])
	}
	return true
}

func runAssignment(engine *calcengine.Engine, line string) error {
	eqIdx := strings.Index(line, "=")
	if eqIdx < 0 {
		return fmt.Errorf("expected Sheet!A1 = value")
	}
	sheet, addr, err := parseRef(strings.TrimSpace(line[:eqIdx]))
	if err != nil {
		return err
	}
	rhs := strings.TrimSpace(line[eqIdx+1:])
	if strings.HasPrefix(rhs, "=") {
		return engine.SetCellFormula(sheet, addr, rhs)
	}
	engine.SetCellValue(sheet, addr, parseLiteral(rhs))
	return engine.Recalculate(context.Background())
}

// parseRef splits a "Sheet!A1" or bare "A1" (defaulting to defaultSheet)
// reference into its sheet name and cell address.
func parseRef(s string) (string, ref.CellAddr, error) {
	sheet := defaultSheet
	cellPart := s
	if bang := strings.Index(s, "!"); bang >= 0 {
		sheet = s[:bang]
		cellPart = s[bang+1:]
	}
	m := cellRefPattern.FindStringSubmatch(cellPart)
	if m == nil {
		return "", ref.CellAddr{}, fmt.Errorf("invalid cell reference %q", s)
	}
	col, ok := ref.ColumnIndex(strings.ToUpper(m[1]))
	if !ok {
		return "", ref.CellAddr{}, fmt.Errorf("invalid column in %q", s)
	}
	row, err := strconv.ParseUint(m[2], 10, 32)
	if err != nil {
		return "", ref.CellAddr{}, fmt.Errorf("invalid row in %q", s)
	}
	return sheet, ref.CellAddr{Row: uint32(row - 1), Col: col}, nil
}

func parseLiteral(s string) value.Value {
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return n
	}
	switch strings.ToUpper(s) {
	case "TRUE":
		return true
	case "FALSE":
		return false
	}
	return s
}

func formatValue(v value.Value) string {
	switch x := v.(type) {
	case value.Blank:
		return ""
	case *value.ErrorValue:
		return x.Error()
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case bool:
		if x {
			return "TRUE"
		}
		return "FALSE"
	case string:
		return x
	default:
		return fmt.Sprintf("%v", x)
	}
}
