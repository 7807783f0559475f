// Package pivot computes a pivot table over a rectangular dataset: a pure
// function from (headers, rows, spec) to a rendered grid, with no
// dependency on Engine or the dependency graph — a pivot table is a report
// over values, not a formula (spec.md §1).
//
// Grounded on original_source/crates/formula-engine/src/pivot/mod.rs: the
// row/column/value/filter field shape and the Welford-based Accumulator
// (count, count of numbers, sum, product, running mean/M2 for variance) are
// carried over, re-expressed against this repo's value.Value lattice
// instead of a dedicated PivotValue enum. The source file's calculated
// fields/items, ShowAs transforms (percent-of-total, running totals,
// ranking), and worksheet-range refresh/cache machinery are not — this
// package covers the aggregation core its own doc comment calls the "MVP
// pivot engine": group, aggregate, subtotal, grand total.
package pivot

import (
	"fmt"
	"math"
	"sort"

	"github.com/sparrowsheet/calcengine/value"
)

// Aggregation selects how a ValueField's column is reduced within a group.
// Mirrors formula-engine's AggregationType one-for-one.
type Aggregation int

const (
	Sum Aggregation = iota
	Count
	CountNumbers
	Average
	Min
	Max
	Product
	Var
	VarP
	StdDev
	StdDevP
)

// ValueField names a source column and how to aggregate it.
type ValueField struct {
	Field       string
	Aggregation Aggregation
	Label       string // column header; defaults to "<Aggregation> of <Field>"
}

func (vf ValueField) label() string {
	if vf.Label != "" {
		return vf.Label
	}
	return fmt.Sprintf("%s of %s", aggregationName(vf.Aggregation), vf.Field)
}

func aggregationName(a Aggregation) string {
	switch a {
	case Sum:
		return "Sum"
	case Count:
		return "Count"
	case CountNumbers:
		return "CountNumbers"
	case Average:
		return "Average"
	case Min:
		return "Min"
	case Max:
		return "Max"
	case Product:
		return "Product"
	case Var:
		return "Var"
	case VarP:
		return "VarP"
	case StdDev:
		return "StdDev"
	case StdDevP:
		return "StdDevP"
	default:
		return "Aggregation"
	}
}

// Spec configures one pivot computation over a dataset.
type Spec struct {
	RowFields    []string
	ColumnFields []string
	ValueFields  []ValueField
	// Filters restricts source rows to those whose Filters[field] equals the
	// row's value for field (display-string equality, the same check Excel
	// pivot report filters apply). A field absent from Filters passes.
	Filters map[string]value.Value
	// GrandTotals appends a trailing "Grand Total" row holding, for each
	// column and value field, the total over all row groups. No "Grand
	// Total" column is added when there are column fields.
	GrandTotals bool
}

// ErrNoValueFields is returned when Spec has no ValueFields — a pivot table
// must summarize at least one column.
var ErrNoValueFields = fmt.Errorf("pivot: spec must have at least one value field")

// ErrUnknownField is returned when Spec names a header not present in the
// source dataset.
type ErrUnknownField struct{ Field string }

func (e ErrUnknownField) Error() string { return fmt.Sprintf("pivot: unknown field %q", e.Field) }

// Result is the rendered output grid: Headers is the top row, Rows is every
// row beneath it, one value.Value per cell.
type Result struct {
	Headers []string
	Rows    [][]value.Value
}

// Compute builds a pivot table from headers/rows (a rectangular dataset,
// headers[i] naming rows[*][i]) per spec.
func Compute(headers []string, rows [][]value.Value, spec Spec) (*Result, error) {
	if len(spec.ValueFields) == 0 {
		return nil, ErrNoValueFields
	}
	index := make(map[string]int, len(headers))
	for i, h := range headers {
		index[h] = i
	}
	for _, f := range spec.RowFields {
		if _, ok := index[f]; !ok {
			return nil, ErrUnknownField{f}
		}
	}
	for _, f := range spec.ColumnFields {
		if _, ok := index[f]; !ok {
			return nil, ErrUnknownField{f}
		}
	}
	for _, vf := range spec.ValueFields {
		if _, ok := index[vf.Field]; !ok {
			return nil, ErrUnknownField{vf.Field}
		}
	}

	filtered := filterRows(headers, rows, index, spec.Filters)

	type cellKey struct{ rowKey, colKey string }
	accumulators := make(map[cellKey][]*accumulator)
	rowKeys := map[string][]value.Value{}
	colKeys := map[string][]value.Value{}

	for _, r := range filtered {
		rk := keyOf(r, spec.RowFields, index)
		ck := keyOf(r, spec.ColumnFields, index)
		rowKeys[rk] = partsOf(r, spec.RowFields, index)
		colKeys[ck] = partsOf(r, spec.ColumnFields, index)

		k := cellKey{rk, ck}
		accs, ok := accumulators[k]
		if !ok {
			accs = make([]*accumulator, len(spec.ValueFields))
			for i := range accs {
				accs[i] = newAccumulator()
			}
			accumulators[k] = accs
		}
		for i, vf := range spec.ValueFields {
			accs[i].update(r[index[vf.Field]])
		}
	}

	sortedRowKeys := sortedKeys(rowKeys)
	sortedColKeys := sortedKeys(colKeys)
	if len(sortedColKeys) == 0 {
		sortedColKeys = []string{""}
		colKeys[""] = nil
	}

	headerRow := buildHeaderRow(spec, sortedColKeys, colKeys)
	var outRows [][]value.Value

	grandAccs := make(map[string][]*accumulator, len(sortedColKeys))
	for _, ck := range sortedColKeys {
		accs := make([]*accumulator, len(spec.ValueFields))
		for i := range accs {
			accs[i] = newAccumulator()
		}
		grandAccs[ck] = accs
	}

	for _, rk := range sortedRowKeys {
		row := make([]value.Value, 0, len(spec.RowFields)+len(sortedColKeys)*len(spec.ValueFields))
		for _, part := range rowKeys[rk] {
			row = append(row, part)
		}
		for _, ck := range sortedColKeys {
			accs, ok := accumulators[cellKey{rk, ck}]
			for i, vf := range spec.ValueFields {
				if ok {
					row = append(row, accs[i].finalize(vf.Aggregation))
					grandAccs[ck][i].merge(accs[i])
				} else {
					row = append(row, value.Blank{})
				}
			}
		}
		outRows = append(outRows, row)
	}

	if spec.GrandTotals {
		row := make([]value.Value, 0, len(headerRow))
		for i := range spec.RowFields {
			if i == 0 {
				row = append(row, "Grand Total")
			} else {
				row = append(row, value.Blank{})
			}
		}
		for _, ck := range sortedColKeys {
			for i, vf := range spec.ValueFields {
				row = append(row, grandAccs[ck][i].finalize(vf.Aggregation))
			}
		}
		outRows = append(outRows, row)
	}

	return &Result{Headers: headerRow, Rows: outRows}, nil
}

func filterRows(headers []string, rows [][]value.Value, index map[string]int, filters map[string]value.Value) [][]value.Value {
	if len(filters) == 0 {
		return rows
	}
	var out [][]value.Value
	for _, r := range rows {
		keep := true
		for field, want := range filters {
			i, ok := index[field]
			if !ok || i >= len(r) {
				keep = false
				break
			}
			if displayString(r[i]) != displayString(want) {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, r)
		}
	}
	return out
}

func keyOf(r []value.Value, fields []string, index map[string]int) string {
	key := ""
	for _, f := range fields {
		i := index[f]
		var v value.Value = value.Blank{}
		if i < len(r) {
			v = r[i]
		}
		key += displayString(v) + "\x00"
	}
	return key
}

func partsOf(r []value.Value, fields []string, index map[string]int) []value.Value {
	parts := make([]value.Value, len(fields))
	for j, f := range fields {
		i := index[f]
		if i < len(r) {
			parts[j] = r[i]
		} else {
			parts[j] = value.Blank{}
		}
	}
	return parts
}

func sortedKeys(m map[string][]value.Value) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func buildHeaderRow(spec Spec, sortedColKeys []string, colKeys map[string][]value.Value) []string {
	headers := append([]string(nil), spec.RowFields...)
	for _, ck := range sortedColKeys {
		label := ""
		for i, part := range colKeys[ck] {
			if i > 0 {
				label += " / "
			}
			label += displayString(part)
		}
		for _, vf := range spec.ValueFields {
			if label == "" {
				headers = append(headers, vf.label())
			} else {
				headers = append(headers, label+" - "+vf.label())
			}
		}
	}
	return headers
}

func displayString(v value.Value) string {
	switch x := v.(type) {
	case value.Blank:
		return ""
	case string:
		return x
	case bool:
		if x {
			return "TRUE"
		}
		return "FALSE"
	case float64:
		return fmt.Sprintf("%g", x)
	case *value.ErrorValue:
		return x.Error()
	default:
		return fmt.Sprintf("%v", x)
	}
}

// accumulator is a Welford running aggregator: one pass over a group's rows
// produces every supported Aggregation without re-scanning the data.
type accumulator struct {
	count        uint64
	countNumbers uint64
	sum          float64
	product      float64
	min          float64
	max          float64
	mean         float64
	m2           float64
}

func newAccumulator() *accumulator {
	return &accumulator{
		product: 1,
		min:     math.Inf(1),
		max:     math.Inf(-1),
	}
}

func (a *accumulator) update(v value.Value) {
	if _, isBlank := v.(value.Blank); !isBlank {
		a.count++
	}
	x, ok := v.(float64)
	if !ok {
		return
	}
	a.countNumbers++
	a.sum += x
	a.product *= x
	if x < a.min {
		a.min = x
	}
	if x > a.max {
		a.max = x
	}
	n := float64(a.countNumbers)
	delta := x - a.mean
	a.mean += delta / n
	delta2 := x - a.mean
	a.m2 += delta * delta2
}

func (a *accumulator) merge(other *accumulator) {
	a.count += other.count
	if other.countNumbers == 0 {
		return
	}
	if a.countNumbers == 0 {
		*a = *other
		return
	}
	n1, n2 := float64(a.countNumbers), float64(other.countNumbers)
	n := n1 + n2
	delta := other.mean - a.mean

	a.sum += other.sum
	a.product *= other.product
	a.min = math.Min(a.min, other.min)
	a.max = math.Max(a.max, other.max)
	a.mean = (n1*a.mean + n2*other.mean) / n
	a.m2 += other.m2 + delta*delta*(n1*n2)/n
	a.countNumbers += other.countNumbers
}

func (a *accumulator) finalize(agg Aggregation) value.Value {
	switch agg {
	case Count:
		return float64(a.count)
	case CountNumbers:
		return float64(a.countNumbers)
	case Sum:
		return a.sum
	case Product:
		if a.countNumbers == 0 {
			return value.Blank{}
		}
		return a.product
	case Average:
		if a.countNumbers == 0 {
			return value.Blank{}
		}
		return a.sum / float64(a.countNumbers)
	case Min:
		if a.countNumbers == 0 {
			return value.Blank{}
		}
		return a.min
	case Max:
		if a.countNumbers == 0 {
			return value.Blank{}
		}
		return a.max
	case Var:
		if a.countNumbers < 2 {
			return value.Blank{}
		}
		return a.m2 / (float64(a.countNumbers) - 1)
	case VarP:
		if a.countNumbers == 0 {
			return value.Blank{}
		}
		return a.m2 / float64(a.countNumbers)
	case StdDev:
		if a.countNumbers < 2 {
			return value.Blank{}
		}
		return math.Sqrt(a.m2 / (float64(a.countNumbers) - 1))
	case StdDevP:
		if a.countNumbers == 0 {
			return value.Blank{}
		}
		return math.Sqrt(a.m2 / float64(a.countNumbers))
	default:
		return value.Blank{}
	}
}
