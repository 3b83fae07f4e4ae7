package slb

// NullProgressBar is a no-op ProgressBar, used when a run has nothing to
// display (--verbose off, or stderr isn't a terminal).
type NullProgressBar struct{}

func (p NullProgressBar) Finish() {}

func (p NullProgressBar) Add(add int) int { return 0 }

func (p NullProgressBar) SetTotal(total int) {}

func (p NullProgressBar) Start() {}

func (p NullProgressBar) Set(current int) {}
