package codec

import (
	"context"

	"github.com/appnet-org/tabbench/pkg/table"
)

// Excel is github.com/xuri/excelize: a streamed single-sheet workbook.
type Excel struct{}

func (Excel) Write(ctx context.Context, t *table.Table, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return table.SaveWorkbook(path, t)
}

func (Excel) Read(ctx context.Context, path string) (*table.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return table.LoadWorkbook(path)
}
