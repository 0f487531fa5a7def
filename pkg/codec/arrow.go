package codec

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	arrowcsv "github.com/apache/arrow-go/v18/arrow/csv"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/appnet-org/tabbench/pkg/table"
	"go.uber.org/multierr"
)

// arrowChunkRows is the batch size used when reading CSV and when slicing
// tables back into records.
const arrowChunkRows = 64 * 1024

func arrowType(k table.Kind) arrow.DataType {
	switch k {
	case table.Float:
		return arrow.PrimitiveTypes.Float64
	case table.Int:
		return arrow.PrimitiveTypes.Int64
	case table.Bool:
		return arrow.FixedWidthTypes.Boolean
	case table.Time:
		return arrow.FixedWidthTypes.Timestamp_ms
	default:
		// Null columns are written as all-null strings; not every Arrow
		// writer accepts the null type.
		return arrow.BinaryTypes.String
	}
}

func arrowSchema(t *table.Table) *arrow.Schema {
	fields := make([]arrow.Field, t.Width())
	for i, c := range t.Columns {
		fields[i] = arrow.Field{Name: c.Name, Type: arrowType(c.Kind), Nullable: true}
	}
	return arrow.NewSchema(fields, nil)
}

// toRecord builds a single Arrow record holding the whole table. The caller
// releases it.
func toRecord(mem memory.Allocator, t *table.Table) arrow.Record {
	b := array.NewRecordBuilder(mem, arrowSchema(t))
	defer b.Release()

	for j, c := range t.Columns {
		switch fb := b.Field(j).(type) {
		case *array.Float64Builder:
			fb.Reserve(len(c.Values))
			for _, v := range c.Values {
				if v == nil {
					fb.AppendNull()
					continue
				}
				fb.Append(v.(float64))
			}
		case *array.Int64Builder:
			fb.Reserve(len(c.Values))
			for _, v := range c.Values {
				if v == nil {
					fb.AppendNull()
					continue
				}
				fb.Append(v.(int64))
			}
		case *array.BooleanBuilder:
			fb.Reserve(len(c.Values))
			for _, v := range c.Values {
				if v == nil {
					fb.AppendNull()
					continue
				}
				fb.Append(v.(bool))
			}
		case *array.TimestampBuilder:
			fb.Reserve(len(c.Values))
			for _, v := range c.Values {
				if v == nil {
					fb.AppendNull()
					continue
				}
				fb.Append(arrow.Timestamp(v.(time.Time).UnixMilli()))
			}
		case *array.StringBuilder:
			fb.Reserve(len(c.Values))
			for _, v := range c.Values {
				s, ok := v.(string)
				if !ok {
					fb.AppendNull()
					continue
				}
				fb.Append(s)
			}
		}
	}
	return b.NewRecord()
}

func arrowKind(dt arrow.DataType) table.Kind {
	switch dt.ID() {
	case arrow.FLOAT64, arrow.FLOAT32:
		return table.Float
	case arrow.INT64, arrow.INT32, arrow.INT16, arrow.INT8,
		arrow.UINT32, arrow.UINT16, arrow.UINT8:
		return table.Int
	case arrow.BOOL:
		return table.Bool
	case arrow.TIMESTAMP, arrow.DATE32, arrow.DATE64:
		return table.Time
	case arrow.NULL:
		return table.Null
	}
	return table.String
}

func arrowValue(arr arrow.Array, i int) any {
	if arr.IsNull(i) {
		return nil
	}
	switch a := arr.(type) {
	case *array.Float64:
		return a.Value(i)
	case *array.Float32:
		return float64(a.Value(i))
	case *array.Int64:
		return a.Value(i)
	case *array.Int32:
		return int64(a.Value(i))
	case *array.Int16:
		return int64(a.Value(i))
	case *array.Int8:
		return int64(a.Value(i))
	case *array.Uint32:
		return int64(a.Value(i))
	case *array.Uint16:
		return int64(a.Value(i))
	case *array.Uint8:
		return int64(a.Value(i))
	case *array.Boolean:
		return a.Value(i)
	case *array.String:
		return a.Value(i)
	case *array.Timestamp:
		unit := a.DataType().(*arrow.TimestampType).Unit
		return a.Value(i).ToTime(unit).UTC()
	case *array.Date32:
		return a.Value(i).ToTime().UTC()
	case *array.Date64:
		return a.Value(i).ToTime().UTC()
	case *array.Null:
		return nil
	}
	return arr.ValueStr(i)
}

// appendRecord adds rec's rows to t, creating t's columns from the record
// schema on first use.
func appendRecord(t *table.Table, rec arrow.Record) {
	if len(t.Columns) == 0 {
		for _, f := range rec.Schema().Fields() {
			t.Columns = append(t.Columns, table.Column{Name: f.Name, Kind: arrowKind(f.Type)})
		}
	}
	for j := range t.Columns {
		arr := rec.Column(j)
		col := &t.Columns[j]
		for i := 0; i < arr.Len(); i++ {
			col.Values = append(col.Values, arrowValue(arr, i))
		}
	}
}

// ArrowCSV is arrow/csv: schema-typed writer, type-inferring reader.
type ArrowCSV struct {
	Mem memory.Allocator
}

func (c ArrowCSV) allocator() memory.Allocator {
	if c.Mem == nil {
		return memory.DefaultAllocator
	}
	return c.Mem
}

func (c ArrowCSV) Write(ctx context.Context, t *table.Table, path string) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	rec := toRecord(c.allocator(), t)
	defer rec.Release()

	f, err := create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	w := arrowcsv.NewWriter(f, rec.Schema(),
		arrowcsv.WithHeader(true),
		arrowcsv.WithNullWriter(""))
	if err := w.Write(rec); err != nil {
		return err
	}
	return w.Flush()
}

func (c ArrowCSV) Read(ctx context.Context, path string) (*table.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := arrowcsv.NewInferringReader(f,
		arrowcsv.WithAllocator(c.allocator()),
		arrowcsv.WithHeader(true),
		arrowcsv.WithNullReader(true, ""),
		arrowcsv.WithChunk(arrowChunkRows))
	defer r.Release()

	t := table.New(stem(path))
	for r.Next() {
		appendRecord(t, r.Record())
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	return t, nil
}

// ArrowParquet is parquet/pqarrow with snappy compression, one row group.
type ArrowParquet struct {
	Mem memory.Allocator
}

func (c ArrowParquet) allocator() memory.Allocator {
	if c.Mem == nil {
		return memory.DefaultAllocator
	}
	return c.Mem
}

func (c ArrowParquet) Write(ctx context.Context, t *table.Table, path string) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	rec := toRecord(c.allocator(), t)
	defer rec.Release()
	tbl := array.NewTableFromRecords(rec.Schema(), []arrow.Record{rec})
	defer tbl.Release()

	f, err := create(path)
	if err != nil {
		return err
	}

	props := parquet.NewWriterProperties(
		parquet.WithCompression(compress.Codecs.Snappy),
		parquet.WithAllocator(c.allocator()))
	rowGroup := max(int64(t.Rows()), 1)
	// WriteTable closes f.
	if err := pqarrow.WriteTable(tbl, f, rowGroup, props, pqarrow.DefaultWriterProps()); err != nil {
		if cerr := f.Close(); cerr != nil && !errors.Is(cerr, os.ErrClosed) {
			err = multierr.Append(err, cerr)
		}
		return err
	}
	return nil
}

func (c ArrowParquet) Read(ctx context.Context, path string) (*table.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	mem := c.allocator()
	tbl, err := pqarrow.ReadTable(ctx, f, parquet.NewReaderProperties(mem), pqarrow.ArrowReadProperties{}, mem)
	if err != nil {
		return nil, fmt.Errorf("failed to read parquet: %w", err)
	}
	defer tbl.Release()
	return fromArrowTable(stem(path), tbl), nil
}

func fromArrowTable(name string, tbl arrow.Table) *table.Table {
	t := table.New(name)
	tr := array.NewTableReader(tbl, arrowChunkRows)
	defer tr.Release()
	for tr.Next() {
		appendRecord(t, tr.Record())
	}
	if len(t.Columns) == 0 {
		for _, f := range tbl.Schema().Fields() {
			t.Columns = append(t.Columns, table.Column{Name: f.Name, Kind: arrowKind(f.Type)})
		}
	}
	return t
}

// ArrowFeather is the Arrow IPC file format (Feather v2).
type ArrowFeather struct {
	Mem memory.Allocator
}

func (c ArrowFeather) allocator() memory.Allocator {
	if c.Mem == nil {
		return memory.DefaultAllocator
	}
	return c.Mem
}

func (c ArrowFeather) Write(ctx context.Context, t *table.Table, path string) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	mem := c.allocator()
	rec := toRecord(mem, t)
	defer rec.Release()

	f, err := create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	w, err := ipc.NewFileWriter(f, ipc.WithSchema(rec.Schema()), ipc.WithAllocator(mem))
	if err != nil {
		return err
	}
	if err := w.Write(rec); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func (c ArrowFeather) Read(ctx context.Context, path string) (*table.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r, err := ipc.NewFileReader(f, ipc.WithAllocator(c.allocator()))
	if err != nil {
		return nil, fmt.Errorf("failed to open arrow file: %w", err)
	}
	defer r.Close()

	t := table.New(stem(path))
	for i := 0; i < r.NumRecords(); i++ {
		rec, err := r.Record(i)
		if err != nil {
			return nil, fmt.Errorf("record batch %d: %w", i, err)
		}
		appendRecord(t, rec)
	}
	if len(t.Columns) == 0 {
		for _, f := range r.Schema().Fields() {
			t.Columns = append(t.Columns, table.Column{Name: f.Name, Kind: arrowKind(f.Type)})
		}
	}
	return t, nil
}
