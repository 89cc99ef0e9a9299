package pipeline

import (
	"fmt"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/franz/playlog/internal/util"
)

// FetchProgress draws a spinner while pages are fetched. Without a
// terminal it falls back to debug log lines.
type FetchProgress struct {
	bar *progressbar.ProgressBar
}

// NewFetchProgress returns a progress reporter; enabled is usually
// util.ShowProgress()
func NewFetchProgress(enabled bool) *FetchProgress {
	if !enabled {
		return &FetchProgress{}
	}
	return &FetchProgress{
		bar: progressbar.NewOptions(-1,
			progressbar.OptionSetDescription("Fetching plays"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionSetItsString("plays"),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionClearOnFinish(),
			progressbar.OptionSetRenderBlankState(true),
		),
	}
}

// OnPage matches spotify.Options.OnPage; total is the running item count
func (p *FetchProgress) OnPage(page, total int) {
	if p == nil || p.bar == nil {
		util.DebugLog("Fetched page %d (%d plays so far)", page, total)
		return
	}
	p.bar.Describe(fmt.Sprintf("Fetching plays | page %d", page))
	_ = p.bar.Set(total)
}

// Finish clears the spinner
func (p *FetchProgress) Finish() {
	if p == nil || p.bar == nil {
		return
	}
	_ = p.bar.Finish()
}
