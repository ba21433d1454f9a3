// Package workers provides utilities for determining worker pool sizes in
// containerized environments.
//
// Go 1.19+ sets GOMAXPROCS from container CPU limits, while
// runtime.NumCPU() still reports the host CPU count. The helpers here
// derive worker counts from GOMAXPROCS with a per-workload multiplier and
// an optional cap, and respect an ARKVIEW_WORKERS environment override.
package workers
