package pivot

import (
	"testing"

	"github.com/sparrowsheet/calcengine/value"
)

func sampleHeaders() []string {
	return []string{"Region", "Product", "Sales"}
}

func sampleRows() [][]value.Value {
	return [][]value.Value{
		{"East", "Widget", 10.0},
		{"East", "Gadget", 20.0},
		{"West", "Widget", 5.0},
		{"West", "Widget", 15.0},
	}
}

func TestComputeRequiresValueFields(t *testing.T) {
	_, err := Compute(sampleHeaders(), sampleRows(), Spec{RowFields: []string{"Region"}})
	if err != ErrNoValueFields {
		t.Fatalf("expected ErrNoValueFields, got %v", err)
	}
}

func TestComputeUnknownField(t *testing.T) {
	_, err := Compute(sampleHeaders(), sampleRows(), Spec{
		RowFields:   []string{"Nope"},
		ValueFields: []ValueField{{Field: "Sales", Aggregation: Sum}},
	})
	if _, ok := err.(ErrUnknownField); !ok {
		t.Fatalf("expected ErrUnknownField, got %v", err)
	}
}

func TestComputeSumByRegion(t *testing.T) {
	result, err := Compute(sampleHeaders(), sampleRows(), Spec{
		RowFields:   []string{"Region"},
		ValueFields: []ValueField{{Field: "Sales", Aggregation: Sum}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(result.Rows))
	}
	totals := map[string]float64{}
	for _, row := range result.Rows {
		totals[row[0].(string)] = row[1].(float64)
	}
	if totals["East"] != 30 {
		t.Errorf("East total = %v, want 30", totals["East"])
	}
	if totals["West"] != 20 {
		t.Errorf("West total = %v, want 20", totals["West"])
	}
}

func TestComputeGrandTotal(t *testing.T) {
	result, err := Compute(sampleHeaders(), sampleRows(), Spec{
		RowFields:   []string{"Region"},
		ValueFields: []ValueField{{Field: "Sales", Aggregation: Sum}},
		GrandTotals: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	last := result.Rows[len(result.Rows)-1]
	if last[0].(string) != "Grand Total" {
		t.Fatalf("expected last row label Grand Total, got %v", last[0])
	}
	if last[1].(float64) != 50 {
		t.Errorf("grand total = %v, want 50", last[1])
	}
}

func TestComputeFilter(t *testing.T) {
	result, err := Compute(sampleHeaders(), sampleRows(), Spec{
		RowFields:   []string{"Region"},
		ValueFields: []ValueField{{Field: "Sales", Aggregation: Count}},
		Filters:     map[string]value.Value{"Product": "Widget"},
	})
	if err != nil {
		t.Fatal(err)
	}
	for _, row := range result.Rows {
		if row[0].(string) == "East" && row[1].(float64) != 1 {
			t.Errorf("East count with Widget filter = %v, want 1", row[1])
		}
	}
}

func TestComputeColumnFieldsAndAggregations(t *testing.T) {
	result, err := Compute(sampleHeaders(), sampleRows(), Spec{
		RowFields:    []string{"Region"},
		ColumnFields: []string{"Product"},
		ValueFields:  []ValueField{{Field: "Sales", Aggregation: Average}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Headers) != 3 { // Region + 2 product columns
		t.Fatalf("expected 3 headers, got %d: %v", len(result.Headers), result.Headers)
	}
}

func TestAccumulatorBlankOnlyAggregationsAreBlank(t *testing.T) {
	result, err := Compute([]string{"K", "V"}, [][]value.Value{{"a", value.Blank{}}}, Spec{
		RowFields:   []string{"K"},
		ValueFields: []ValueField{{Field: "V", Aggregation: Average}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := result.Rows[0][1].(value.Blank); !ok {
		t.Fatalf("expected Blank average with no numeric values, got %v", result.Rows[0][1])
	}
}
