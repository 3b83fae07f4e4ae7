package slb

import (
	"io"

	"github.com/sirupsen/logrus"
)

// Log is the package-wide logger. It discards output by default; callers
// that want diagnostics (e.g. the CLI's --verbose flag) should point it
// at stderr and raise its level.
var Log = logrus.New()

func init() {
	Log.SetOutput(io.Discard)
}
