package report

import (
	"strings"
	"testing"
	"time"
)

func sampleResult() *Result {
	return &Result{
		SummaryMetrics: &Metrics{
			UniqueClients:     42,
			TotalSales:        1234,
			TotalWithoutIGV:   1234567.891,
			TotalWithIGV:      1456790.11,
			TotalIGVCollected: 222222.22,
			AverageWithoutIGV: 1000.5,
		},
		SalesByHeadquarter: Table{{Label: "Lima", Value: 900000}, {Label: "Arequipa", Value: 334567.89}},
		TopModels: Table{
			{Label: "Modelo A", Value: 500000},
			{Label: "Modelo B", Value: 300000},
			{Label: "Modelo C", Value: 200000},
			{Label: "Modelo D", Value: 100000},
			{Label: "Modelo E", Value: 90000},
			{Label: "Modelo F", Value: 80000},
		},
		SalesByChannel: Table{{Label: "Online", Value: 700}, {Label: "Tienda", Value: 534}},
	}
}

func TestSummaryWellFormed(t *testing.T) {
	t.Parallel()
	now := time.Date(2025, 7, 14, 9, 30, 0, 0, time.UTC)
	got := Summary(sampleResult(), now)

	for _, want := range []string{
		"Clientes Únicos: 42",
		"Total de Ventas: 1,234",
		"Ventas Totales sin IGV: $1,234,567.89",
		"Modelo Más Vendido: Modelo A",
		"Sede con Más Ventas: Lima",
		"Canal con Más Ventas: Online",
		"  - Lima: $900,000.00",
		"  - Arequipa: $334,567.89",
		"  5. Modelo E: $90,000.00",
		"Fecha de generacion: 2025-07-14 09:30:00",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("summary missing %q\n---\n%s", want, got)
		}
	}
	if strings.Contains(got, "Modelo F") {
		t.Fatal("summary should truncate to the first five models")
	}

	// Headquarter lines keep input table order.
	if strings.Index(got, "Lima:") > strings.Index(got, "Arequipa:") {
		t.Fatal("headquarter breakdown must preserve input order")
	}
}

func TestSummaryMalformed(t *testing.T) {
	t.Parallel()
	now := time.Now()
	tests := []struct {
		name string
		r    *Result
	}{
		{name: "nil result", r: nil},
		{name: "missing metrics", r: &Result{
			SalesByHeadquarter: Table{{Label: "Lima", Value: 1}},
			TopModels:          Table{{Label: "A", Value: 1}},
			SalesByChannel:     Table{{Label: "Online", Value: 1}},
		}},
		{name: "empty top models", r: &Result{
			SummaryMetrics:     &Metrics{},
			SalesByHeadquarter: Table{{Label: "Lima", Value: 1}},
			SalesByChannel:     Table{{Label: "Online", Value: 1}},
		}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := Summary(tt.r, now); got != ErrSummaryLiteral {
				t.Fatalf("Summary = %q, want %q", got, ErrSummaryLiteral)
			}
		})
	}
}

func TestFormatHelpers(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   int64
		want string
	}{
		{in: 0, want: "0"},
		{in: 42, want: "42"},
		{in: 999, want: "999"},
		{in: 1000, want: "1,000"},
		{in: 1234567, want: "1,234,567"},
		{in: -1234567, want: "-1,234,567"},
	}
	for _, tt := range tests {
		if got := FormatInt(tt.in); got != tt.want {
			t.Fatalf("FormatInt(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}

	moneyTests := []struct {
		in   float64
		want string
	}{
		{in: 0, want: "0.00"},
		{in: 1234.5, want: "1,234.50"},
		{in: 1234567.891, want: "1,234,567.89"},
		{in: -99.999, want: "-100.00"},
	}
	for _, tt := range moneyTests {
		if got := FormatMoney(tt.in); got != tt.want {
			t.Fatalf("FormatMoney(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
