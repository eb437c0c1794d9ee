package services

import (
	"context"
	"sync"
)

// forEach runs fn for every index 0..n-1 on a bounded worker pool. Callers write results
// into per-index slots so the outcome does not depend on scheduling.
func forEach(ctx context.Context, n, workers int, fn func(ctx context.Context, i int)) {
	if n <= 0 {
		return
	}
	if workers <= 0 {
		workers = 6
	}
	if workers > n {
		workers = n
	}
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				fn(ctx, i)
			}
		}()
	}
	for i := 0; i < n; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
}
