package ingest

import (
	"math"
	"math/rand"
	"time"

	"github.com/heliodata/autoanalyst/pkg/dataset"
)

// SampleSalesData builds a deterministic synthetic sales table with n rows
// for demos and tests. The same n always yields the same data.
func SampleSalesData(n int) *dataset.Dataset {
	if n <= 0 {
		n = 100
	}
	rng := rand.New(rand.NewSource(42))

	regions := []string{"North", "South", "East", "West"}
	products := []string{"Widget", "Gadget", "Gizmo", "Doohickey"}
	start := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

	dates := make([]any, n)
	region := make([]any, n)
	product := make([]any, n)
	units := make([]any, n)
	price := make([]any, n)
	sales := make([]any, n)
	age := make([]any, n)
	score := make([]any, n)
	returned := make([]any, n)

	for i := 0; i < n; i++ {
		dates[i] = start.AddDate(0, 0, i%365)
		region[i] = regions[rng.Intn(len(regions))]
		product[i] = products[rng.Intn(len(products))]
		u := float64(1 + rng.Intn(20))
		p := math.Round((5+rng.Float64()*95)*100) / 100
		units[i] = u
		price[i] = p
		sales[i] = math.Round(u*p*100) / 100
		age[i] = float64(18 + rng.Intn(58))
		score[i] = float64(1 + rng.Intn(5))
		returned[i] = rng.Float64() < 0.05
		// Sparse nulls so missing-value paths have something to find.
		if i%17 == 0 {
			units[i] = nil
		}
		if i%23 == 0 {
			score[i] = nil
		}
		// A few impossible ages for validation to flag.
		if i%83 == 41 {
			age[i] = -float64(1 + rng.Intn(5))
		}
	}

	return dataset.MustNew(
		dataset.Column{Name: "date", Type: dataset.TypeTime, Values: dates},
		dataset.Column{Name: "region", Type: dataset.TypeCategorical, Values: region},
		dataset.Column{Name: "product", Type: dataset.TypeCategorical, Values: product},
		dataset.Column{Name: "units", Type: dataset.TypeNumeric, Values: units},
		dataset.Column{Name: "price", Type: dataset.TypeNumeric, Values: price},
		dataset.Column{Name: "sales", Type: dataset.TypeNumeric, Values: sales},
		dataset.Column{Name: "customer_age", Type: dataset.TypeNumeric, Values: age},
		dataset.Column{Name: "satisfaction_score", Type: dataset.TypeNumeric, Values: score},
		dataset.Column{Name: "returned", Type: dataset.TypeBool, Values: returned},
	)
}
