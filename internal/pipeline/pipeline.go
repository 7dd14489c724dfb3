package pipeline

import (
	"runtime"
	"sync"
)

// Process runs fn over items on a fixed pool of workers. Results keep the
// order of items; errs collects every failure in no particular order.
func Process[T, R any](items []T, workers int, fn func(T) (R, error)) ([]R, []error) {
	if len(items) == 0 || fn == nil {
		return nil, nil
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
		if workers < 1 {
			workers = 1
		}
	}

	type job struct {
		index int
		item  T
	}
	jobs := make(chan job)
	errs := make(chan error, len(items))
	results := make([]R, len(items))
	var wg sync.WaitGroup

	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				r, err := fn(j.item)
				if err != nil {
					errs <- err
					continue
				}
				results[j.index] = r
			}
		}()
	}

	for i, item := range items {
		jobs <- job{index: i, item: item}
	}
	close(jobs)
	wg.Wait()
	close(errs)

	out := make([]error, 0, len(errs))
	for err := range errs {
		out = append(out, err)
	}
	return results, out
}
