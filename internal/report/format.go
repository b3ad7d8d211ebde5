package report

import (
	"fmt"
	"strings"
	"time"
)

// ErrSummaryLiteral is the fixed text returned when the result bundle is
// missing or malformed. Composition never fails the send; it degrades.
const ErrSummaryLiteral = "Error formateando resumen."

const topModelsLimit = 5

// Summary renders the multi-section WhatsApp report text.
//
// Layout: header, aggregate metrics, best performers, per-headquarter
// breakdown (in table order), top-5 models (input is pre-sorted; no
// re-sorting here), generation timestamp.
func Summary(r *Result, now time.Time) string {
	if r == nil || r.SummaryMetrics == nil ||
		len(r.TopModels) == 0 || len(r.SalesByHeadquarter) == 0 || len(r.SalesByChannel) == 0 {
		return ErrSummaryLiteral
	}
	m := r.SummaryMetrics

	var b strings.Builder
	b.WriteString("Reporte de analisis de ventas:\n\n")

	b.WriteString("Metricas Principales:\n")
	fmt.Fprintf(&b, "- Clientes Únicos: %s\n", FormatInt(m.UniqueClients))
	fmt.Fprintf(&b, "- Total de Ventas: %s\n", FormatInt(m.TotalSales))
	fmt.Fprintf(&b, "- Ventas Totales sin IGV: $%s\n", FormatMoney(m.TotalWithoutIGV))
	fmt.Fprintf(&b, "- Ventas Totales con IGV: $%s\n", FormatMoney(m.TotalWithIGV))
	fmt.Fprintf(&b, "- IGV Total Recaudado: $%s\n", FormatMoney(m.TotalIGVCollected))
	fmt.Fprintf(&b, "- Venta Promedio: $%s\n", FormatMoney(m.AverageWithoutIGV))

	b.WriteString("\nMejores Desempeños:\n")
	fmt.Fprintf(&b, "- Modelo Más Vendido: %s\n", r.TopModels.First())
	fmt.Fprintf(&b, "- Sede con Más Ventas: %s\n", r.SalesByHeadquarter.First())
	fmt.Fprintf(&b, "- Canal con Más Ventas: %s\n", r.SalesByChannel.First())

	b.WriteString("\nDetalles de sedes:\n")
	for _, row := range r.SalesByHeadquarter {
		fmt.Fprintf(&b, "  - %s: $%s\n", row.Label, FormatMoney(row.Value))
	}

	b.WriteString("\nTOP 5 Modelos Más Vendidos:\n")
	top := r.TopModels
	if len(top) > topModelsLimit {
		top = top[:topModelsLimit]
	}
	for i, row := range top {
		fmt.Fprintf(&b, "  %d. %s: $%s\n", i+1, row.Label, FormatMoney(row.Value))
	}

	b.WriteString("\nGenerado por el sistema de análisis de ventas.\n")
	fmt.Fprintf(&b, "Fecha de generacion: %s", now.Format("2006-01-02 15:04:05"))

	return strings.TrimSpace(b.String())
}

// FormatInt renders n with thousands separators ("1,234,567").
func FormatInt(n int64) string {
	neg := n < 0
	if neg {
		n = -n
	}
	s := fmt.Sprintf("%d", n)
	out := groupThousands(s)
	if neg {
		return "-" + out
	}
	return out
}

// FormatMoney renders v with thousands separators and two decimals
// ("1,234,567.89").
func FormatMoney(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	whole, frac, _ := strings.Cut(s, ".")
	out := groupThousands(whole) + "." + frac
	if neg {
		return "-" + out
	}
	return out
}

func groupThousands(digits string) string {
	n := len(digits)
	if n <= 3 {
		return digits
	}
	var b strings.Builder
	head := n % 3
	if head > 0 {
		b.WriteString(digits[:head])
	}
	for i := head; i < n; i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
