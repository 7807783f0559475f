// Package vba extracts the raw module streams out of an .xlsm workbook's
// vbaProject.bin part. It reads, never runs: there is no VBA interpreter
// here, only enough of the MS-OVBA compound-file layout to list module
// names and hand back their (still MS-OVBA-compressed) byte streams, per
// spec.md's extraction-only scope for this collaborator.
//
// Grounded on the same richardlehane/mscfb compound-file reading pattern as
// officecrypto (vbaProject.bin is itself an OLE2 CFB container, same shape
// as a legacy encrypted OOXML package's EncryptionInfo/EncryptedPackage
// streams) and on the vbaProject.bin relationship wiring visible in
// excelize's own AddVBAProject (it writes vbaProject.bin as an
// application/vnd.ms-office.vbaProject part under xl/, which is how
// ExtractFromXLSM locates it in the outer ZIP).
package vba

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/richardlehane/mscfb"
)

// partName is the path AddVBAProject writes vbaProject.bin under inside an
// .xlsm package.
const partName = "xl/vbaProject.bin"

// Module is one raw stream found inside a vbaProject.bin compound file.
// Data is the stream's bytes exactly as stored — for a real code module
// this is an MS-OVBA-compressed container (a "PerformanceCache" plus a
// compressed source container), not VBA source text; decompressing it is
// out of scope here.
type Module struct {
	Name string
	Data []byte
}

// ExtractFromXLSM opens path as a ZIP (every .xlsm is one), reads its
// xl/vbaProject.bin part, and extracts that part's module streams.
func ExtractFromXLSM(path string) ([]Module, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("vba: open %q: %w", path, err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name != partName {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("vba: open %s: %w", partName, err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("vba: read %s: %w", partName, err)
		}
		return ExtractModules(data)
	}
	return nil, fmt.Errorf("vba: %q has no %s part (not a macro-enabled workbook?)", path, partName)
}

// ExtractModules reads an OLE2 compound file (the raw bytes of a
// vbaProject.bin part) and returns every non-empty stream it contains
// (entries of size 0, such as storages, are skipped). The VBA
// project's "dir" stream (module list, code page, references) is included
// like any other stream — ExtractModules does no MS-OVBA-specific parsing,
// it only walks the CFB container.
func ExtractModules(vbaProjectBin []byte) ([]Module, error) {
	doc, err := mscfb.New(bytes.NewReader(vbaProjectBin))
	if err != nil {
		return nil, fmt.Errorf("vba: open vbaProject.bin: %w", err)
	}

	var modules []Module
	for entry, err := doc.Next(); err == nil; entry, err = doc.Next() {
		if entry.Size == 0 {
			continue
		}
		buf := make([]byte, entry.Size)
		if _, err := io.ReadFull(doc, buf); err != nil {
			return nil, fmt.Errorf("vba: read stream %q: %w", entry.Name, err)
		}
		modules = append(modules, Module{Name: entry.Name, Data: buf})
	}
	return modules, nil
}

// ModuleNames is a convenience filter over ExtractModules' result, omitting
// the project's bookkeeping streams ("dir", "PROJECT", "PROJECTwm") to
// leave just the code module streams a host would want to list.
func ModuleNames(modules []Module) []string {
	var names []string
	for _, m := range modules {
		if strings.EqualFold(m.Name, "dir") || strings.EqualFold(m.Name, "PROJECT") || strings.EqualFold(m.Name, "PROJECTwm") {
			continue
		}
		names = append(names, m.Name)
	}
	return names
}
