package calcengine

import (
	"context"
	"fmt"
	"testing"
)

func BenchmarkLargeCellPopulation(b *testing.B) {
	for i := 0; i < b.N; i++ {
		e := New()
		e.AddSheet("Sheet1")
		for row := uint32(0); row < 100; row++ {
			for col := uint32(0); col < 26; col++ {
				e.SetCellValue("Sheet1", addr(row, col), float64(row*col))
			}
		}
	}
}

func BenchmarkFormulaDependencyChain(b *testing.B) {
	e := New()
	e.AddSheet("Sheet1")
	e.SetCellValue("Sheet1", addr(0, 0), 1.0)
	for row := uint32(1); row < 100; row++ {
		if err := e.SetCellFormula("Sheet1", addr(row, 0), fmt.Sprintf("=A%d+1", row)); err != nil {
			b.Fatal(err)
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := e.RecalculateSingleThreaded(context.Background()); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkWideDependencyFanOut(b *testing.B) {
	e := New()
	e.AddSheet("Sheet1")
	e.SetCellValue("Sheet1", addr(0, 0), 100.0)
	for row := uint32(1); row < 500; row++ {
		if err := e.SetCellFormula("Sheet1", addr(row, 1), "=A1*2"); err != nil {
			b.Fatal(err)
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.SetCellValue("Sheet1", addr(0, 0), float64(i))
		if err := e.RecalculateSingleThreaded(context.Background()); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkLargeRangeSUM(b *testing.B) {
	e := New()
	e.AddSheet("Sheet1")
	for row := uint32(0); row < 1000; row++ {
		e.SetCellValue("Sheet1", addr(row, 0), float64(row+1))
	}
	if err := e.SetCellFormula("Sheet1", addr(0, 1), "=SUM(A1:A1000)"); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := e.RecalculateSingleThreaded(context.Background()); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkComplexNestedFormulas(b *testing.B) {
	e := New()
	e.AddSheet("Sheet1")
	for row := uint32(0); row < 20; row++ {
		e.SetCellValue("Sheet1", addr(row, 0), float64(row+1))
		e.SetCellValue("Sheet1", addr(row, 1), float64((row+1)*2))
	}
	must := func(err error) {
		if err != nil {
			b.Fatal(err)
		}
	}
	must(e.SetCellFormula("Sheet1", addr(0, 2), "=IF(AVERAGE(A1:A20)>10, SUM(B1:B20), MAX(A1:A20))"))
	must(e.SetCellFormula("Sheet1", addr(0, 3), "=ROUND(SQRT(C1)*PI(), 2)"))
	must(e.SetCellFormula("Sheet1", addr(0, 4), "=IF(D1>100, MEDIAN(A1:A20), MIN(B1:B20))"))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := e.RecalculateSingleThreaded(context.Background()); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkVolatileFunctions(b *testing.B) {
	e := New()
	e.AddSheet("Sheet1")
	for row := uint32(0); row < 50; row++ {
		if err := e.SetCellFormula("Sheet1", addr(row, 0), "=RAND()"); err != nil {
			b.Fatal(err)
		}
		if err := e.SetCellFormula("Sheet1", addr(row, 1), fmt.Sprintf("=A%d*100", row+1)); err != nil {
			b.Fatal(err)
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := e.RecalculateSingleThreaded(context.Background()); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkCircularReferenceDetection(b *testing.B) {
	for i := 0; i < b.N; i++ {
		e := New()
		e.AddSheet("Sheet1")
		must := func(err error) {
			if err != nil {
				b.Fatal(err)
			}
		}
		must(e.SetCellFormula("Sheet1", addr(0, 0), "=B1+C1"))
		must(e.SetCellFormula("Sheet1", addr(0, 1), "=C1+D1"))
		must(e.SetCellFormula("Sheet1", addr(0, 2), "=D1+E1"))
		must(e.SetCellFormula("Sheet1", addr(0, 3), "=E1+F1"))
		must(e.SetCellFormula("Sheet1", addr(0, 4), "=F1+G1"))
		must(e.SetCellFormula("Sheet1", addr(0, 5), "=G1+H1"))
		must(e.SetCellFormula("Sheet1", addr(0, 6), "=H1+A1"))
		must(e.SetCellFormula("Sheet1", addr(0, 7), "=A1"))
		_ = e.RecalculateSingleThreaded(context.Background())
	}
}

func BenchmarkDirtyPropagation(b *testing.B) {
	e := New()
	e.AddSheet("Sheet1")
	const grid = 20
	for row := uint32(0); row < grid; row++ {
		for col := uint32(0); col < grid; col++ {
			switch {
			case row == 0 && col == 0:
				e.SetCellValue("Sheet1", addr(row, col), 1.0)
			case row == 0:
				if err := e.SetCellFormula("Sheet1", addr(row, col), fmt.Sprintf("=%s%d+1", colLetters(col-1), row+1)); err != nil {
					b.Fatal(err)
				}
			case col == 0:
				if err := e.SetCellFormula("Sheet1", addr(row, col), fmt.Sprintf("=%s%d+1", colLetters(col), row)); err != nil {
					b.Fatal(err)
				}
			default:
				left := colLetters(col - 1)
				top := colLetters(col)
				if err := e.SetCellFormula("Sheet1", addr(row, col), fmt.Sprintf("=%s%d+%s%d", left, row+1, top, row)); err != nil {
					b.Fatal(err)
				}
			}
		}
	}
	if err := e.RecalculateSingleThreaded(context.Background()); err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		e.SetCellValue("Sheet1", addr(0, 0), float64(i%100))
		if err := e.RecalculateSingleThreaded(context.Background()); err != nil {
			b.Fatal(err)
		}
	}
}

func colLetters(col uint32) string {
	result := ""
	col++
	for col > 0 {
		col--
		result = string(rune('A'+col%26)) + result
		col /= 26
	}
	return result
}
