package codec

import (
	"bufio"
	"context"
	"fmt"
	"math"
	"os"

	"github.com/appnet-org/tabbench/pkg/table"
	"github.com/fxamacker/cbor/v2"
)

// CBOR writes a column-major document through github.com/fxamacker/cbor.
type CBOR struct{}

type cborDocument struct {
	Columns []string `cbor:"columns"`
	Kinds   []string `cbor:"kinds"`
	Data    [][]any  `cbor:"data"`
}

var (
	cborEnc cbor.EncMode
	cborDec cbor.DecMode
)

func init() {
	var err error
	cborEnc, err = cbor.EncOptions{Time: cbor.TimeRFC3339}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("invalid CBOR encoding options: %v", err))
	}
	cborDec, err = cbor.DecOptions{
		MaxArrayElements: math.MaxInt32,
		MaxMapPairs:      math.MaxInt32,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("invalid CBOR decoding options: %v", err))
	}
}

func (CBOR) Write(ctx context.Context, t *table.Table, path string) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	doc := cborDocument{
		Columns: t.Names(),
		Kinds:   make([]string, t.Width()),
		Data:    make([][]any, t.Width()),
	}
	for i, c := range t.Columns {
		doc.Kinds[i] = c.Kind.String()
		doc.Data[i] = c.Values
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
	if err := cborEnc.NewEncoder(bw).Encode(doc); err != nil {
		return fmt.Errorf("failed to encode cbor: %w", err)
	}
	return bw.Flush()
}

func (CBOR) Read(ctx context.Context, path string) (*table.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var doc cborDocument
	if err := cborDec.NewDecoder(bufio.NewReader(f)).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode cbor: %w", err)
	}
	if len(doc.Columns) != len(doc.Kinds) || len(doc.Columns) != len(doc.Data) {
		return nil, fmt.Errorf("cbor document has inconsistent column lists")
	}

	t := table.New(stem(path))
	for j, name := range doc.Columns {
		k, err := table.ParseKind(doc.Kinds[j])
		if err != nil {
			return nil, err
		}
		col := table.Column{Name: name, Kind: k, Values: make([]any, len(doc.Data[j]))}
		for i, raw := range doc.Data[j] {
			if col.Values[i], err = coerce(k, raw); err != nil {
				return nil, fmt.Errorf("column %q row %d: %w", name, i, err)
			}
		}
		if err := t.AddColumn(col); err != nil {
			return nil, err
		}
	}
	return t, nil
}
