package cli

import (
	"fmt"
	"io"

	"github.com/raphaelgruber/ragchat/internal/metrics"
)

// printStats displays client-side request statistics.
func printStats(w io.Writer, snap metrics.Snapshot) {
	fmt.Fprintf(w, "Request Statistics (this run)\n")
	fmt.Fprintf(w, "═══════════════════════════════════════\n")
	fmt.Fprintf(w, "Uptime: %.1f seconds\n", snap.UptimeSeconds)

	if len(snap.Operations) == 0 {
		fmt.Fprintf(w, "\nNo requests made.\n")
		return
	}

	for _, op := range snap.Operations {
		fmt.Fprintf(w, "\n%s:\n", op.Name)
		printOpStats(w, op)
	}
}

// printOpStats displays timing statistics for an operation.
func printOpStats(w io.Writer, op metrics.OperationSnapshot) {
	fmt.Fprintf(w, "  Calls: %d, Failures: %d, Total: %dms\n", op.Count, op.Failures, op.TotalTimeMs)
	fmt.Fprintf(w, "  Time: avg %.1fms, min %dms, max %dms\n",
		op.AvgTimeMs, op.MinTimeMs, op.MaxTimeMs)
}
