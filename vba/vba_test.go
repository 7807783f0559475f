package vba

import "testing"

func TestModuleNamesFiltersBookkeepingStreams(t *testing.T) {
	modules := []Module{
		{Name: "dir", Data: []byte{1}},
		{Name: "PROJECT", Data: []byte{1}},
		{Name: "PROJECTwm", Data: []byte{1}},
		{Name: "Module1", Data: []byte{1, 2, 3}},
		{Name: "Sheet1", Data: []byte{1, 2}},
	}
	names := ModuleNames(modules)
	if len(names) != 2 {
		t.Fatalf("expected 2 code modules, got %d: %v", len(names), names)
	}
	want := map[string]bool{"Module1": true, "Sheet1": true}
	for _, n := range names {
		if !want[n] {
			t.Errorf("unexpected module name %q", n)
		}
	}
}

func TestExtractFromXLSMNonexistentFile(t *testing.T) {
	if _, err := ExtractFromXLSM("/nonexistent/path.xlsm"); err == nil {
		t.Fatal("expected an error opening a nonexistent file")
	}
}
