package slb

import (
	"fmt"
	"os"
	"time"

	"golang.org/x/crypto/ssh/terminal"
	pb "gopkg.in/cheggaaa/pb.v1"
)

// NewProgressBar initializes a wrapper for a https://github.com/cheggaaa/pb
// progressbar that implements ProgressBar, reporting bytes routed through
// the sharder. On a non-terminal stderr it returns a NullProgressBar
// instead, unless SLB_PROGRESSBAR_ENABLED is set.
func NewProgressBar(prefix string) ProgressBar {
	if !terminal.IsTerminal(int(os.Stderr.Fd())) &&
		os.Getenv("SLB_PROGRESSBAR_ENABLED") == "" &&
		os.Getenv("SLB_ENABLE_PARSABLE_PROGRESS") == "" {
		return NullProgressBar{}
	}
	bar := pb.New(0).Prefix(prefix)
	bar.ShowCounters = true
	bar.SetUnits(pb.U_BYTES)
	bar.Output = os.Stderr
	if os.Getenv("SLB_ENABLE_PARSABLE_PROGRESS") != "" {
		// Likely going to a journal or redirected to a file, lower the
		// refresh rate from the default 200ms to a more manageable 500ms.
		bar.SetRefreshRate(time.Millisecond * 500)
		bar.ShowBar = false
		// Write every progress update on its own line, instead of the
		// default carriage-return redraw.
		bar.Callback = func(s string) { fmt.Fprintln(os.Stderr, s) }
		bar.Output = nil
	}
	return DefaultProgressBar{bar}
}

// DefaultProgressBar wraps https://github.com/cheggaaa/pb and implements ProgressBar.
type DefaultProgressBar struct {
	*pb.ProgressBar
}

func (p DefaultProgressBar) SetTotal(total int) { p.ProgressBar.SetTotal(total) }
func (p DefaultProgressBar) Start()             { p.ProgressBar.Start() }
func (p DefaultProgressBar) Set(current int)    { p.ProgressBar.Set(current) }
