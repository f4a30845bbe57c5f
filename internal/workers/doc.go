/*
Package workers provides utilities for determining pipeline worker pool sizes
in containerized environments.

When running in containers the number of available CPUs may be limited by
cgroup constraints. Go 1.19+ sets GOMAXPROCS from container CPU limits, while
runtime.NumCPU() still reports the host machine's CPU count. The helpers here
size worker pools from GOMAXPROCS so pipeline concurrency respects container
resource limits.

Basic usage:

	// Pipeline stages mix decoding (CPU) with blob I/O
	numWorkers := workers.ForMixed(8)

	// Pure image processing such as color analysis
	numWorkers := workers.ForCPU(4)

	// Blob store promotion and verification
	numWorkers := workers.ForIO(16)

All functions respect the PIPELINE_WORKERS environment variable, allowing
operators to override the automatic calculation:

	env:
	- name: PIPELINE_WORKERS
	  value: "4"

All functions are safe for concurrent use.
*/
package workers
