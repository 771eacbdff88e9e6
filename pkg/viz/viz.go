// Package viz recommends chart specifications for a dataset. It produces
// declarative specs only; rendering is left to the caller's plotting
// frontend.
package viz

import (
	"fmt"

	"github.com/heliodata/autoanalyst/pkg/dataset"
)

// Kind identifies a chart family.
type Kind string

const (
	KindHistogram Kind = "histogram"
	KindBar       Kind = "bar"
	KindScatter   Kind = "scatter"
	KindLine      Kind = "line"
	KindBox       Kind = "box"
	KindHeatmap   Kind = "heatmap"
)

// Spec describes one chart declaratively.
type Spec struct {
	Kind  Kind   `json:"kind" yaml:"kind"`
	Title string `json:"title" yaml:"title"`
	X     string `json:"x,omitempty" yaml:"x,omitempty"`
	Y     string `json:"y,omitempty" yaml:"y,omitempty"`
	// Columns lists the inputs for multi-column charts such as the
	// correlation heatmap.
	Columns []string `json:"columns,omitempty" yaml:"columns,omitempty"`
	// Bins applies to histograms.
	Bins int `json:"bins,omitempty" yaml:"bins,omitempty"`
}

// Recommend derives chart specs from the dataset's schema, at most one
// per pattern, in a stable order: distributions first, then category
// breakdowns, relationships, and trends.
func Recommend(ds *dataset.Dataset) []Spec {
	var numeric, categorical, temporal []string
	for _, col := range ds.Columns() {
		switch col.Type {
		case dataset.TypeNumeric:
			numeric = append(numeric, col.Name)
		case dataset.TypeCategorical:
			categorical = append(categorical, col.Name)
		case dataset.TypeTime:
			temporal = append(temporal, col.Name)
		}
	}

	var specs []Spec
	if len(numeric) > 0 {
		specs = append(specs, Spec{
			Kind:  KindHistogram,
			Title: fmt.Sprintf("Distribution of %s", numeric[0]),
			X:     numeric[0],
			Bins:  20,
		})
	}
	if len(categorical) > 0 && len(numeric) > 0 {
		specs = append(specs, Spec{
			Kind:  KindBar,
			Title: fmt.Sprintf("%s by %s", numeric[0], categorical[0]),
			X:     categorical[0],
			Y:     numeric[0],
		})
		specs = append(specs, Spec{
			Kind:  KindBox,
			Title: fmt.Sprintf("Spread of %s across %s", numeric[0], categorical[0]),
			X:     categorical[0],
			Y:     numeric[0],
		})
	}
	if len(numeric) >= 2 {
		specs = append(specs, Spec{
			Kind:  KindScatter,
			Title: fmt.Sprintf("%s vs %s", numeric[0], numeric[1]),
			X:     numeric[0],
			Y:     numeric[1],
		})
	}
	if len(numeric) >= 3 {
		specs = append(specs, Spec{
			Kind:    KindHeatmap,
			Title:   "Correlation matrix",
			Columns: numeric,
		})
	}
	if len(temporal) > 0 && len(numeric) > 0 {
		specs = append(specs, Spec{
			Kind:  KindLine,
			Title: fmt.Sprintf("%s over %s", numeric[0], temporal[0]),
			X:     temporal[0],
			Y:     numeric[0],
		})
	}
	return specs
}
