package telemetry

import (
	"time"

	channerics "github.com/niceyeti/channerics/channels"
)

// FanIn merges several snapshot channels into one, the way the teacher's
// root_view.fanIn merges a page's view-update channels before throttling.
func FanIn(done <-chan struct{}, sources ...<-chan MovementSnapshot) <-chan MovementSnapshot {
	return channerics.Merge(done, sources...)
}

// Throttle batches snapshots within rate, keeping only the latest snapshot
// per movement id within each window, mirroring root_view.batchify's
// overwrite-by-EleId behavior applied to movement ids instead.
func Throttle(done <-chan struct{}, source <-chan MovementSnapshot, rate time.Duration) <-chan []MovementSnapshot {
	output := make(chan []MovementSnapshot)

	go func() {
		defer close(output)

		batch := map[string]MovementSnapshot{}
		last := time.Now()
		for snapshot := range channerics.OrDone(done, source) {
			batch[snapshot.MovementID] = snapshot

			if time.Since(last) > rate && len(batch) > 0 {
				select {
				case output <- snapshotVals(batch):
					batch = map[string]MovementSnapshot{}
					last = time.Now()
				case <-done:
					return
				}
			}
		}
	}()

	return output
}

func snapshotVals(m map[string]MovementSnapshot) []MovementSnapshot {
	out := make([]MovementSnapshot, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	return out
}
