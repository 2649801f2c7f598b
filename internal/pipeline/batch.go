package pipeline

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// BatchItem is the outcome for one document of a batch.
type BatchItem struct {
	Index  int
	File   string
	Result *JobResult
	Err    error
}

// ProcessAll processes files with at most maxJobs documents in flight.
// A failing document never stops the others. onDone, when set, is called
// once per document; calls are serialized. Items keep the input order.
func (p *Processor) ProcessAll(ctx context.Context, files []string, maxJobs int, onDone func(BatchItem)) []BatchItem {
	if maxJobs < 1 {
		maxJobs = 1
	}
	items := make([]BatchItem, len(files))

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(maxJobs)

	for i, file := range files {
		i, file := i, file // per-iteration copies for go < 1.22
		g.Go(func() error {
			item := BatchItem{Index: i, File: file}
			if err := ctx.Err(); err != nil {
				item.Err = err
			} else {
				item.Result, item.Err = p.Process(ctx, file)
			}
			items[i] = item

			if onDone != nil {
				mu.Lock()
				onDone(item)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	return items
}
