// Package graphs knows the canonical chart set the renderer produces and
// resolves which of those files actually exist at send time.
package graphs

import (
	"os"
	"path/filepath"
)

// Reference pairs a human display title with a local chart file path.
type Reference struct {
	Title string
	Path  string
}

type canonicalEntry struct {
	title string
	file  string
}

// canonical is the fixed presentation order for the chart set, independent of
// filesystem listing order.
var canonical = []canonicalEntry{
	{title: "Resumen del Dashboard", file: "dashboard_summary.png"},
	{title: "Tendencia Mensual", file: "monthly_sales_trend.png"},
	{title: "Ventas por Segmento", file: "sales_by_segment.png"},
	{title: "Ventas por Canal", file: "sales_by_channel.png"},
	{title: "Top Modelos", file: "top_models.png"},
	{title: "Ventas por Sede", file: "sales_by_headquarter.png"},
}

// Dir returns the graphs directory under the outputs root.
func Dir(outputsRoot string) string {
	return filepath.Join(outputsRoot, "graphs")
}

// Collect returns references for the canonical charts present in dir,
// preserving canonical order. Missing files are omitted, never an error.
func Collect(dir string) []Reference {
	refs := make([]Reference, 0, len(canonical))
	for _, c := range canonical {
		p := filepath.Join(dir, c.file)
		if st, err := os.Stat(p); err == nil && !st.IsDir() {
			refs = append(refs, Reference{Title: c.title, Path: p})
		}
	}
	return refs
}
