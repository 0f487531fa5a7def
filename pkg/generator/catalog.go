package generator

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/appnet-org/tabbench/pkg/table"
	"github.com/brianvoe/gofakeit/v7"
)

// Source bundles the seeded randomness the column strategies draw from.
type Source struct {
	Rand  *rand.Rand
	Faker *gofakeit.Faker
}

// NewSource returns a Source whose output depends only on seed.
func NewSource(seed uint64) *Source {
	return &Source{
		Rand:  rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		Faker: gofakeit.New(seed),
	}
}

// ColumnType produces the values of one synthetic column.
type ColumnType interface {
	// Label is the column name stem, e.g. "Price".
	Label() string
	Kind() table.Kind
	Generate(src *Source, rows int) []any
}

type columnFunc struct {
	label string
	kind  table.Kind
	gen   func(src *Source, rows int) []any
}

func (c columnFunc) Label() string { return c.label }
func (c columnFunc) Kind() table.Kind { return c.kind }
func (c columnFunc) Generate(src *Source, rows int) []any { return c.gen(src, rows) }

var epoch = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

// Catalog is the fixed, ordered list of column types. Column i of a
// generated table uses Catalog[i % len(Catalog)].
var Catalog = []ColumnType{
	columnFunc{"Price", table.Float, floats(100)},
	columnFunc{"Quantity", table.Int, func(src *Source, n int) []any {
		return fill(n, func() any { return src.Rand.Int64N(1000) })
	}},
	columnFunc{"Description", table.String, func(src *Source, n int) []any {
		return fill(n, func() any { return src.Faker.LoremIpsumSentence(8) })
	}},
	columnFunc{"Notes", table.String, func(src *Source, n int) []any {
		return fill(n, func() any { return src.Faker.LoremIpsumParagraph(1, 5, 10, " ") })
	}},
	columnFunc{"Date", table.Time, func(src *Source, n int) []any {
		return fill(n, func() any { return epoch.AddDate(0, 0, src.Rand.IntN(365)) })
	}},
	columnFunc{"Time", table.String, func(src *Source, n int) []any {
		return fill(n, func() any { return clock(src.Rand.IntN(24 * 3600)) })
	}},
	columnFunc{"Available", table.Bool, func(src *Source, n int) []any {
		return fill(n, func() any { return src.Rand.IntN(2) == 0 })
	}},
	columnFunc{"Category", table.String, choice("cat1", "cat2", "cat3")},
	columnFunc{"NoData", table.Null, func(_ *Source, n int) []any {
		return make([]any, n)
	}},
	columnFunc{"Location", table.String, choice("City A", "City B", "City C")},
	columnFunc{"Percentage", table.Float, floats(100)},
}

// TypeAt returns the catalog entry used for column i.
func TypeAt(i int) ColumnType {
	return Catalog[i%len(Catalog)]
}

// ColumnName returns "<Label>_<i+1>" for column i.
func ColumnName(i int) string {
	return fmt.Sprintf("%s_%d", TypeAt(i).Label(), i+1)
}

func fill(n int, next func() any) []any {
	out := make([]any, n)
	for i := range out {
		out[i] = next()
	}
	return out
}

func floats(scale float64) func(*Source, int) []any {
	return func(src *Source, n int) []any {
		return fill(n, func() any { return src.Rand.Float64() * scale })
	}
}

func choice(options ...string) func(*Source, int) []any {
	return func(src *Source, n int) []any {
		return fill(n, func() any { return options[src.Rand.IntN(len(options))] })
	}
}

// clock formats seconds as H:MM:SS with an unpadded hour.
func clock(secs int) string {
	return fmt.Sprintf("%d:%02d:%02d", secs/3600, secs/60%60, secs%60)
}
