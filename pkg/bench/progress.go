package bench

import "github.com/appnet-org/tabbench/pkg/registry"

// Progress receives status updates from the runner.
type Progress interface {
	// Dataset announces a dataset before its pairs run.
	Dataset(name string, sizeBytes int64)
	// Iteration is called before iteration i (1-based) of n.
	Iteration(pair registry.Pair, i, n int)
	Failed(pair registry.Pair, i int, err error)
	// Done is called once per pair; warning is empty when the codecs were quiet.
	Done(pair registry.Pair, warning string)
}

// NopProgress discards all updates.
type NopProgress struct{}

func (NopProgress) Dataset(string, int64) {}
func (NopProgress) Iteration(registry.Pair, int, int) {}
func (NopProgress) Failed(registry.Pair, int, error) {}
func (NopProgress) Done(registry.Pair, string) {}
