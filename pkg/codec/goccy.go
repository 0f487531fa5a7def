package codec

import (
	"context"
	"io"

	"github.com/appnet-org/tabbench/pkg/table"
	"github.com/goccy/go-json"
)

// GoccyJSON writes the same newline-delimited records as StdJSON through
// github.com/goccy/go-json.
type GoccyJSON struct{}

func (GoccyJSON) Write(ctx context.Context, t *table.Table, path string) error {
	return writeNDJSON(ctx, t, path, func(w io.Writer) recordEncoder {
		return json.NewEncoder(w)
	})
}

func (GoccyJSON) Read(ctx context.Context, path string) (*table.Table, error) {
	return readNDJSON(ctx, path, func(r io.Reader) recordDecoder {
		return json.NewDecoder(r)
	})
}
