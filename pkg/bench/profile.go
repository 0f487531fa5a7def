package bench

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/multierr"
)

// dumpProfile writes the successful samples' timings (nanoseconds) and the
// first-write size (bytes), one value per line.
func dumpProfile(dir string, m Measurement) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	prefix := fmt.Sprintf("%s_%s_%s", m.Dataset, m.Pair.Library, m.Pair.Format)

	var writes, reads []int64
	for _, s := range m.Samples {
		if s.Failed() {
			continue
		}
		writes = append(writes, s.Write.Nanoseconds())
		reads = append(reads, s.Read.Nanoseconds())
	}
	var sizes []int64
	if m.SizeBytes >= 0 {
		sizes = append(sizes, m.SizeBytes)
	}

	return multierr.Combine(
		writeValues(filepath.Join(dir, prefix+"_write_times.txt"), writes),
		writeValues(filepath.Join(dir, prefix+"_read_times.txt"), reads),
		writeValues(filepath.Join(dir, prefix+"_sizes.txt"), sizes),
	)
}

func writeValues(path string, values []int64) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, f.Close())
	}()

	for _, v := range values {
		if _, err := fmt.Fprintf(f, "%d\n", v); err != nil {
			return err
		}
	}
	return nil
}
