package codec

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/appnet-org/tabbench/pkg/table"
)

// StdCSV is encoding/csv: a header row, then one record per row with
// values rendered by table.FormatValue.
type StdCSV struct{}

func (StdCSV) Write(ctx context.Context, t *table.Table, path string) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	w := csv.NewWriter(f)
	if err := w.Write(t.Names()); err != nil {
		return err
	}
	record := make([]string, t.Width())
	for i := 0; i < t.Rows(); i++ {
		for j := range t.Columns {
			record[j] = table.FormatValue(t.Columns[j].Values[i])
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func (StdCSV) Read(ctx context.Context, path string) (*table.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, err := csv.NewReader(bufio.NewReader(f)).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv: %w", err)
	}
	if len(records) == 0 {
		return table.New(stem(path)), nil
	}
	return table.FromStrings(stem(path), records[0], records[1:])
}

// StdJSON is encoding/json writing newline-delimited records.
type StdJSON struct{}

func (StdJSON) Write(ctx context.Context, t *table.Table, path string) error {
	return writeNDJSON(ctx, t, path, func(w io.Writer) recordEncoder {
		return json.NewEncoder(w)
	})
}

func (StdJSON) Read(ctx context.Context, path string) (*table.Table, error) {
	return readNDJSON(ctx, path, func(r io.Reader) recordDecoder {
		return json.NewDecoder(r)
	})
}

type recordEncoder interface {
	Encode(v any) error
}

type recordDecoder interface {
	Decode(v any) error
}

// writeNDJSON writes one JSON object per row. Times are RFC3339 strings.
func writeNDJSON(ctx context.Context, t *table.Table, path string, newEncoder func(io.Writer) recordEncoder) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	bw := bufio.NewWriter(f)
	enc := newEncoder(bw)
	names := t.Names()
	rec := make(map[string]any, len(names))
	for i := 0; i < t.Rows(); i++ {
		for j, name := range names {
			v := t.Columns[j].Values[i]
			if t.Columns[j].Kind == table.Time && v != nil {
				v = table.FormatValue(v)
			}
			rec[name] = v
		}
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
	}
	return bw.Flush()
}

// readNDJSON decodes newline-delimited records. JSON carries no column
// order, so columns come back sorted by name.
func readNDJSON(ctx context.Context, path string, newDecoder func(io.Reader) recordDecoder) (*table.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := newDecoder(bufio.NewReader(f))
	var records []map[string]any
	seen := make(map[string]struct{})
	var names []string
	for {
		var rec map[string]any
		if err := dec.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("record %d: %w", len(records), err)
		}
		for k := range rec {
			if _, ok := seen[k]; !ok {
				seen[k] = struct{}{}
				names = append(names, k)
			}
		}
		records = append(records, rec)
	}
	slices.Sort(names)
	return table.FromRecords(stem(path), names, records), nil
}
