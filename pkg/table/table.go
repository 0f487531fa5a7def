// Package table is the in-memory tabular model shared by the generator, the
// codecs and the benchmark runner.
package table

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Kind is the logical type of a column.
type Kind uint8

const (
	Null Kind = iota
	Float
	Int
	String
	Bool
	Time
)

var kindNames = [...]string{
	Null:   "null",
	Float:  "float",
	Int:    "int",
	String: "string",
	Bool:   "bool",
	Time:   "time",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	for i, name := range kindNames {
		if name == s {
			return Kind(i), nil
		}
	}
	return Null, fmt.Errorf("unknown column kind %q", s)
}

// TimeLayout is the text form used for Time values by text codecs.
const TimeLayout = time.RFC3339

// Column holds one typed column. A nil entry in Values is a null.
// Non-nil values are float64, int64, string, bool or time.Time by Kind.
type Column struct {
	Name   string
	Kind   Kind
	Values []any
}

// Table is a named, column-oriented dataset.
type Table struct {
	Name    string
	Columns []Column
}

// New returns an empty table.
func New(name string) *Table {
	return &Table{Name: name}
}

// Rows returns the number of rows (the length of the first column).
func (t *Table) Rows() int {
	if t == nil || len(t.Columns) == 0 {
		return 0
	}
	return len(t.Columns[0].Values)
}

// Width returns the number of columns.
func (t *Table) Width() int {
	if t == nil {
		return 0
	}
	return len(t.Columns)
}

// Names returns the column names in order.
func (t *Table) Names() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// AddColumn appends a column. All columns must have the same length.
func (t *Table) AddColumn(c Column) error {
	if len(t.Columns) > 0 && len(c.Values) != t.Rows() {
		return fmt.Errorf("column %q has %d rows, table has %d", c.Name, len(c.Values), t.Rows())
	}
	t.Columns = append(t.Columns, c)
	return nil
}

// Row returns the values of row i across all columns.
func (t *Table) Row(i int) []any {
	row := make([]any, len(t.Columns))
	for j := range t.Columns {
		row[j] = t.Columns[j].Values[i]
	}
	return row
}

// Validate checks the column length and value type invariants.
func (t *Table) Validate() error {
	rows := t.Rows()
	for _, c := range t.Columns {
		if len(c.Values) != rows {
			return fmt.Errorf("column %q has %d rows, want %d", c.Name, len(c.Values), rows)
		}
		for i, v := range c.Values {
			if v == nil {
				continue
			}
			if !matches(c.Kind, v) {
				return fmt.Errorf("column %q row %d: %T does not match kind %s", c.Name, i, v, c.Kind)
			}
		}
	}
	return nil
}

func matches(k Kind, v any) bool {
	switch v.(type) {
	case float64:
		return k == Float
	case int64:
		return k == Int
	case string:
		return k == String
	case bool:
		return k == Bool
	case time.Time:
		return k == Time
	}
	return false
}

// FormatValue renders a value the way text codecs write it. Nulls are "".
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case int64:
		return strconv.FormatInt(x, 10)
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.UTC().Format(TimeLayout)
	default:
		return fmt.Sprint(x)
	}
}

// ParseValue converts text written by FormatValue back into a value of kind k.
// The empty string is a null for every kind but String.
func ParseValue(k Kind, s string) (any, error) {
	if s == "" && k != String {
		return nil, nil
	}
	switch k {
	case Null:
		return nil, nil
	case Float:
		return strconv.ParseFloat(s, 64)
	case Int:
		return strconv.ParseInt(s, 10, 64)
	case String:
		return s, nil
	case Bool:
		return strconv.ParseBool(s)
	case Time:
		return time.Parse(TimeLayout, s)
	}
	return nil, fmt.Errorf("unknown kind %d", k)
}

// InferKind picks the narrowest kind that parses every non-empty value.
// Order of preference: Bool, Int, Float, Time, String. All-empty is Null.
func InferKind(values []string) Kind {
	seen := false
	isBool, isInt, isFloat, isTime := true, true, true, true
	for _, s := range values {
		if s == "" {
			continue
		}
		seen = true
		if isBool {
			_, err := strconv.ParseBool(s)
			isBool = err == nil && !isNumeric(s)
		}
		if isInt {
			_, err := strconv.ParseInt(s, 10, 64)
			isInt = err == nil
		}
		if isFloat {
			_, err := strconv.ParseFloat(s, 64)
			isFloat = err == nil
		}
		if isTime {
			_, err := time.Parse(TimeLayout, s)
			isTime = err == nil
		}
		if !isBool && !isInt && !isFloat && !isTime {
			return String
		}
	}
	switch {
	case !seen:
		return Null
	case isBool:
		return Bool
	case isInt:
		return Int
	case isFloat:
		return Float
	case isTime:
		return Time
	}
	return String
}

func isNumeric(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool { return r < '0' || r > '9' }) < 0
}

// FromStrings builds a table from a header and string rows, inferring each
// column's kind. Short rows are padded with nulls.
func FromStrings(name string, header []string, rows [][]string) (*Table, error) {
	t := New(name)
	for j, h := range header {
		raw := make([]string, len(rows))
		for i, r := range rows {
			if j < len(r) {
				raw[i] = r[j]
			}
		}
		kind := InferKind(raw)
		col := Column{Name: h, Kind: kind, Values: make([]any, len(rows))}
		for i, s := range raw {
			v, err := ParseValue(kind, s)
			if err != nil {
				return nil, fmt.Errorf("column %q row %d: %w", h, i, err)
			}
			col.Values[i] = v
		}
		t.Columns = append(t.Columns, col)
	}
	return t, nil
}

// FromRecords builds a table from decoded JSON-like records (float64, bool,
// string, nil). Column order follows names; kinds are inferred from values.
func FromRecords(name string, names []string, records []map[string]any) *Table {
	t := New(name)
	for _, n := range names {
		col := Column{Name: n, Kind: Null, Values: make([]any, len(records))}
		for i, rec := range records {
			col.Values[i] = rec[n]
		}
		col.Kind = kindOf(col.Values)
		normalize(&col)
		t.Columns = append(t.Columns, col)
	}
	return t
}

func kindOf(values []any) Kind {
	for _, v := range values {
		switch v.(type) {
		case float64:
			return Float
		case int64:
			return Int
		case string:
			return String
		case bool:
			return Bool
		case time.Time:
			return Time
		}
	}
	return Null
}

// normalize narrows integral float columns to Int and drops values that do
// not match the column kind.
func normalize(c *Column) {
	if c.Kind == Float {
		integral := true
		for _, v := range c.Values {
			if f, ok := v.(float64); ok && (f != math.Trunc(f) || math.Abs(f) > 1<<53) {
				integral = false
				break
			}
		}
		if integral {
			c.Kind = Int
			for i, v := range c.Values {
				if f, ok := v.(float64); ok {
					c.Values[i] = int64(f)
				}
			}
		}
	}
	for i, v := range c.Values {
		if v != nil && !matches(c.Kind, v) {
			c.Values[i] = nil
		}
	}
}
