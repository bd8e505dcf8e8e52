// Copyright 2025, the otu16s contributors.

package pipeline

import "sync"

// runPool executes every job on a fixed pool of nworkers goroutines
// and returns one result per job, in job order.  It replaces the
// external parallel-runner tool: the pool owns all fan-out, the jobs
// themselves are synchronous.
func runPool(nworkers int, jobs []func() error) []error {

	if nworkers < 1 {
		nworkers = 1
	}

	errs := make([]error, len(jobs))
	work := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < nworkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range work {
				errs[i] = jobs[i]()
			}
		}()
	}

	for i := range jobs {
		work <- i
	}
	close(work)
	wg.Wait()

	return errs
}
