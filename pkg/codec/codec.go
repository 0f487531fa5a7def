// Package codec adapts third-party tabular encoders to a common
// write-file / read-file interface so the benchmark can time them uniformly.
package codec

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/appnet-org/tabbench/pkg/table"
)

// Codec writes a table to a file and reads it back. Implementations do all
// conversion to and from the library's native representation inside these
// calls, so the conversion cost is part of what gets measured.
type Codec interface {
	Write(ctx context.Context, t *table.Table, path string) error
	Read(ctx context.Context, path string) (*table.Table, error)
}

// Warnings collects non-fatal diagnostics emitted while a codec runs.
// Identical messages are kept once.
type Warnings struct {
	mu   sync.Mutex
	msgs []string
	seen map[string]struct{}
}

// Add records msg unless it was already recorded.
func (w *Warnings) Add(msg string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.seen == nil {
		w.seen = make(map[string]struct{})
	}
	if _, ok := w.seen[msg]; ok {
		return
	}
	w.seen[msg] = struct{}{}
	w.msgs = append(w.msgs, msg)
}

// All returns the recorded messages in order.
func (w *Warnings) All() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.msgs...)
}

// First returns the first line of the first warning, or "".
func (w *Warnings) First() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.msgs) == 0 {
		return ""
	}
	line, _, _ := strings.Cut(strings.TrimSpace(w.msgs[0]), "\n")
	return line
}

type warningsKey struct{}

// WithWarnings returns a context whose codec warnings are recorded in w.
func WithWarnings(ctx context.Context, w *Warnings) context.Context {
	return context.WithValue(ctx, warningsKey{}, w)
}

// Warnf records a warning on the context's sink, if any.
func Warnf(ctx context.Context, format string, args ...any) {
	if w, ok := ctx.Value(warningsKey{}).(*Warnings); ok && w != nil {
		w.Add(fmt.Sprintf(format, args...))
	}
}

// create opens path for writing, truncating any previous file.
func create(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return os.Create(path)
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// maxExactInt is the largest integer a float64 holds without rounding.
const maxExactInt = 1 << 53

// coerce converts a decoded value (from database/sql, CBOR or JSON) into the
// Go type table.Column requires for kind k.
func coerce(k table.Kind, v any) (any, error) {
	if v == nil || k == table.Null {
		return nil, nil
	}
	if b, ok := v.([]byte); ok {
		v = string(b)
	}
	switch k {
	case table.Float:
		switch x := v.(type) {
		case float64:
			return x, nil
		case float32:
			return float64(x), nil
		case int64:
			return float64(x), nil
		case uint64:
			return float64(x), nil
		}
	case table.Int:
		switch x := v.(type) {
		case int64:
			return x, nil
		case uint64:
			if x > math.MaxInt64 {
				return nil, fmt.Errorf("integer %d overflows int64", x)
			}
			return int64(x), nil
		case float64:
			return int64(x), nil
		}
	case table.String:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case table.Bool:
		switch x := v.(type) {
		case bool:
			return x, nil
		case int64:
			return x != 0, nil
		case uint64:
			return x != 0, nil
		}
	case table.Time:
		switch x := v.(type) {
		case time.Time:
			return x.UTC(), nil
		case string:
			return time.Parse(table.TimeLayout, x)
		}
	}
	return nil, fmt.Errorf("cannot convert %T to %s", v, k)
}
