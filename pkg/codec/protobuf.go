package codec

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/appnet-org/tabbench/pkg/table"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Protobuf encodes the table as a google.protobuf.Struct with "columns",
// "kinds" and row-major "rows" lists. Numbers travel as doubles, so
// integers beyond 2^53 lose precision; that is reported as a warning.
type Protobuf struct{}

func protoValue(ctx context.Context, col string, v any) *structpb.Value {
	switch x := v.(type) {
	case float64:
		return structpb.NewNumberValue(x)
	case int64:
		if x > maxExactInt || x < -maxExactInt {
			Warnf(ctx, "protobuf: column %s holds integers beyond 2^53, values are rounded", col)
		}
		return structpb.NewNumberValue(float64(x))
	case string:
		return structpb.NewStringValue(x)
	case bool:
		return structpb.NewBoolValue(x)
	case time.Time:
		return structpb.NewStringValue(table.FormatValue(x))
	}
	return structpb.NewNullValue()
}

func stringList(items []string) *structpb.Value {
	vals := make([]*structpb.Value, len(items))
	for i, s := range items {
		vals[i] = structpb.NewStringValue(s)
	}
	return structpb.NewListValue(&structpb.ListValue{Values: vals})
}

func (Protobuf) Write(ctx context.Context, t *table.Table, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	kinds := make([]string, t.Width())
	for i, c := range t.Columns {
		kinds[i] = c.Kind.String()
	}

	rows := make([]*structpb.Value, t.Rows())
	for i := range rows {
		cells := make([]*structpb.Value, t.Width())
		for j, c := range t.Columns {
			cells[j] = protoValue(ctx, c.Name, c.Values[i])
		}
		rows[i] = structpb.NewListValue(&structpb.ListValue{Values: cells})
	}

	doc := &structpb.Struct{Fields: map[string]*structpb.Value{
		"columns": stringList(t.Names()),
		"kinds":   stringList(kinds),
		"rows":    structpb.NewListValue(&structpb.ListValue{Values: rows}),
	}}
	data, err := proto.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal protobuf: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func (Protobuf) Read(ctx context.Context, path string) (*table.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc structpb.Struct
	if err := proto.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal protobuf: %w", err)
	}

	names := doc.GetFields()["columns"].GetListValue().GetValues()
	kinds := doc.GetFields()["kinds"].GetListValue().GetValues()
	if len(names) != len(kinds) {
		return nil, fmt.Errorf("protobuf document has %d columns but %d kinds", len(names), len(kinds))
	}
	rows := doc.GetFields()["rows"].GetListValue().GetValues()

	t := table.New(stem(path))
	for j := range names {
		k, err := table.ParseKind(kinds[j].GetStringValue())
		if err != nil {
			return nil, err
		}
		t.Columns = append(t.Columns, table.Column{
			Name:   names[j].GetStringValue(),
			Kind:   k,
			Values: make([]any, len(rows)),
		})
	}

	for i, row := range rows {
		cells := row.GetListValue().GetValues()
		if len(cells) != len(t.Columns) {
			return nil, fmt.Errorf("row %d has %d cells, want %d", i, len(cells), len(t.Columns))
		}
		for j, cell := range cells {
			v, err := fromProtoValue(t.Columns[j].Kind, cell)
			if err != nil {
				return nil, fmt.Errorf("row %d column %q: %w", i, t.Columns[j].Name, err)
			}
			t.Columns[j].Values[i] = v
		}
	}
	return t, nil
}

func fromProtoValue(k table.Kind, v *structpb.Value) (any, error) {
	switch x := v.GetKind().(type) {
	case *structpb.Value_NullValue, nil:
		return nil, nil
	case *structpb.Value_NumberValue:
		return coerce(k, x.NumberValue)
	case *structpb.Value_StringValue:
		return coerce(k, x.StringValue)
	case *structpb.Value_BoolValue:
		return coerce(k, x.BoolValue)
	}
	return nil, fmt.Errorf("unexpected protobuf value %T", v.GetKind())
}
