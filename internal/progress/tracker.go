// Package progress renders a terminal progress bar over mapping-group
// generation.
package progress

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/schollz/progressbar/v3"
)

// Tracker counts finished mapping groups against a known total.
type Tracker struct {
	bar     *progressbar.ProgressBar
	done    atomic.Int64
	started time.Time
}

// New creates a tracker for total mapping groups.
func New(total int64) *Tracker {
	return &Tracker{
		started: time.Now(),
		bar: progressbar.NewOptions64(
			total,
			progressbar.OptionSetDescription("Generating"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(40),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("groups"),
			progressbar.OptionSpinnerType(14),
			progressbar.OptionFullWidth(),
			progressbar.OptionSetRenderBlankState(true),
		),
	}
}

// GroupDone records one finished group. Safe for concurrent use.
func (t *Tracker) GroupDone() {
	t.done.Add(1)
	t.bar.Add64(1)
}

// Finish completes the bar and prints the run summary.
func (t *Tracker) Finish() {
	t.bar.Finish()

	fmt.Println()
	fmt.Printf("Generated %d mapping groups in %s\n",
		t.done.Load(), time.Since(t.started).Round(time.Second))
}
