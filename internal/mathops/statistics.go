package mathops

import (
	"math"
	"sort"

	"github.com/khanglvm/toolgate/internal/catalog"
)

func statisticsOps() []operation {
	data := numbers("data", "the dataset", 1)
	ddof := catalog.Parameter{
		Name:        "ddof",
		Type:        catalog.TypeInteger,
		Description: "delta degrees of freedom: 0 for population, 1 for sample",
		Default:     int64(0),
		Constraints: catalog.Constraints{Minimum: catalog.Float(0)},
	}
	ddofRule := catalog.Rule{
		Expr:    "!has(params.ddof) || params.ddof < size(params.data)",
		Field:   "ddof",
		Message: "ddof must be smaller than the number of data points",
	}

	return []operation{
		{
			desc: catalog.Descriptor{
				Name:        "mean",
				Category:    CategoryStatistics,
				Description: "Arithmetic mean (average) of a list of numbers",
				Parameters:  catalog.Schema{data},
				Examples:    examples(`{"data": [1, 2, 3, 4]}`, "2.5"),
				Keywords:    []string{"average", "mean", "statistics"},
			},
			fn: func(p args) (any, error) {
				xs, err := p.vector("data")
				if err != nil {
					return nil, err
				}
				return mean(xs), nil
			},
		},
		{
			desc: catalog.Descriptor{
				Name:        "median",
				Category:    CategoryStatistics,
				Description: "Median (middle value) of a list of numbers",
				Parameters:  catalog.Schema{data},
				Examples:    examples(`{"data": [3, 1, 2]}`, "2"),
				Keywords:    []string{"median", "middle", "statistics", "central"},
			},
			fn: func(p args) (any, error) {
				xs, err := p.vector("data")
				if err != nil {
					return nil, err
				}
				sorted := append([]float64(nil), xs...)
				sort.Float64s(sorted)
				n := len(sorted)
				if n%2 == 1 {
					return sorted[n/2], nil
				}
				return (sorted[n/2-1] + sorted[n/2]) / 2, nil
			},
		},
		{
			desc: catalog.Descriptor{
				Name:        "variance",
				Category:    CategoryStatistics,
				Description: "Variance of a list of numbers",
				Parameters:  catalog.Schema{data, ddof},
				Examples:    examples(`{"data": [1, 2, 3, 4]}`, "1.25"),
				Keywords:    []string{"variance", "spread", "dispersion", "statistics"},
				Rules:       []catalog.Rule{ddofRule},
			},
			fn: func(p args) (any, error) {
				xs, err := p.vector("data")
				if err != nil {
					return nil, err
				}
				return variance(xs, p.integer("ddof")), nil
			},
		},
		{
			desc: catalog.Descriptor{
				Name:        "standard_deviation",
				Category:    CategoryStatistics,
				Description: "Standard deviation of a list of numbers",
				Parameters:  catalog.Schema{data, ddof},
				Examples:    examples(`{"data": [2, 4, 4, 4, 5, 5, 7, 9]}`, "2"),
				Keywords:    []string{"standard deviation", "stddev", "sigma", "spread", "statistics"},
				Rules:       []catalog.Rule{ddofRule},
			},
			fn: func(p args) (any, error) {
				xs, err := p.vector("data")
				if err != nil {
					return nil, err
				}
				return math.Sqrt(variance(xs, p.integer("ddof"))), nil
			},
		},
	}
}

func mean(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func variance(xs []float64, ddof int64) float64 {
	m := mean(xs)
	var ss float64
	for _, x := range xs {
		ss += (x - m) * (x - m)
	}
	return ss / float64(int64(len(xs))-ddof)
}
