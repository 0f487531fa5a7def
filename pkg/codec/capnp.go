package codec

import (
	"context"
	"fmt"
	"math"
	"os"

	"capnproto.org/go/capnp/v3"

	"github.com/appnet-org/tabbench/pkg/table"
)

// Capnp stores the table as an untyped Cap'n Proto message: the root is a
// pointer list whose first two entries are the column names and kinds, then
// one text list per column. Cells use table.FormatValue, so a null string
// cell reads back as "".
type Capnp struct{}

func newTextList(seg *capnp.Segment, items []string) (capnp.TextList, error) {
	tl, err := capnp.NewTextList(seg, int32(len(items)))
	if err != nil {
		return tl, err
	}
	for i, s := range items {
		if err := tl.Set(i, s); err != nil {
			return tl, err
		}
	}
	return tl, nil
}

func (Capnp) Write(ctx context.Context, t *table.Table, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, seg, err := capnp.NewMessage(capnp.SingleSegment(nil))
	if err != nil {
		return fmt.Errorf("failed to create Cap'n Proto message: %w", err)
	}

	root, err := capnp.NewPointerList(seg, int32(2+t.Width()))
	if err != nil {
		return err
	}
	kinds := make([]string, t.Width())
	for i, c := range t.Columns {
		kinds[i] = c.Kind.String()
	}
	for i, header := range [][]string{t.Names(), kinds} {
		tl, err := newTextList(seg, header)
		if err != nil {
			return err
		}
		if err := root.Set(i, tl.ToPtr()); err != nil {
			return err
		}
	}

	cells := make([]string, t.Rows())
	for j, c := range t.Columns {
		for i, v := range c.Values {
			if v == nil && c.Kind == table.String {
				Warnf(ctx, "capnp: null cells in string column %s are stored as empty text", c.Name)
			}
			cells[i] = table.FormatValue(v)
		}
		tl, err := newTextList(seg, cells)
		if err != nil {
			return fmt.Errorf("column %q: %w", c.Name, err)
		}
		if err := root.Set(2+j, tl.ToPtr()); err != nil {
			return err
		}
	}
	if err := msg.SetRoot(root.ToPtr()); err != nil {
		return err
	}

	data, err := msg.Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal Cap'n Proto message: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func textListAt(root capnp.PointerList, i int) (capnp.TextList, error) {
	p, err := root.At(i)
	if err != nil {
		return capnp.TextList{}, err
	}
	return capnp.TextList(p.List()), nil
}

func (Capnp) Read(ctx context.Context, path string) (*table.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	msg, err := capnp.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal Cap'n Proto message: %w", err)
	}
	// Large tables exceed the default traversal limit.
	msg.ResetReadLimit(math.MaxUint64)

	rootPtr, err := msg.Root()
	if err != nil {
		return nil, err
	}
	root := capnp.PointerList(rootPtr.List())
	if root.Len() < 2 {
		return nil, fmt.Errorf("Cap'n Proto root has %d entries, want at least 2", root.Len())
	}
	names, err := textListAt(root, 0)
	if err != nil {
		return nil, err
	}
	kinds, err := textListAt(root, 1)
	if err != nil {
		return nil, err
	}
	if names.Len() != kinds.Len() || root.Len() != 2+names.Len() {
		return nil, fmt.Errorf("Cap'n Proto message has inconsistent column lists")
	}

	t := table.New(stem(path))
	for j := 0; j < names.Len(); j++ {
		name, err := names.At(j)
		if err != nil {
			return nil, err
		}
		kindName, err := kinds.At(j)
		if err != nil {
			return nil, err
		}
		k, err := table.ParseKind(kindName)
		if err != nil {
			return nil, err
		}

		cells, err := textListAt(root, 2+j)
		if err != nil {
			return nil, err
		}
		col := table.Column{Name: name, Kind: k, Values: make([]any, cells.Len())}
		for i := range col.Values {
			s, err := cells.At(i)
			if err != nil {
				return nil, err
			}
			if col.Values[i], err = table.ParseValue(k, s); err != nil {
				return nil, fmt.Errorf("column %q row %d: %w", name, i, err)
			}
		}
		if err := t.AddColumn(col); err != nil {
			return nil, err
		}
	}
	return t, nil
}
