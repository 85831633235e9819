package ocr

import (
	"sync"
	"sync/atomic"
)

// Status is a stage of one recognition call.
type Status string

const (
	StatusIdle          Status = "idle"
	StatusStarting      Status = "starting"
	StatusPreprocessing Status = "preprocessing"
	StatusProcessing    Status = "processing"
	StatusParsing       Status = "parsing"
	StatusDone          Status = "done"
	StatusError         Status = "error"
)

var statusRank = map[Status]int{
	StatusIdle:          0,
	StatusStarting:      1,
	StatusPreprocessing: 2,
	StatusProcessing:    3,
	StatusParsing:       4,
	StatusDone:          5,
}

// Progress is one progress emission. Percent never decreases within a call.
type Progress struct {
	Percent float64 `json:"percent"`
	Status  Status  `json:"status"`
}

// ProgressFunc receives progress emissions in order.
type ProgressFunc func(Progress)

// Overall progress bands.
const (
	preprocessEnd = 10.0
	engineEnd     = 90.0
)

// engineProgress maps an engine fraction in [0,1] into the engine band.
func engineProgress(p float64) float64 {
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	return preprocessEnd + (engineEnd-preprocessEnd)*p
}

// progressTracker serializes emissions for one call and clamps them so the
// caller never sees percent or stage move backwards. Once closed it drops
// everything.
type progressTracker struct {
	mu     sync.Mutex
	emit   ProgressFunc
	last   Progress
	closed atomic.Bool
}

func newProgressTracker(emit ProgressFunc) *progressTracker {
	return &progressTracker{emit: emit, last: Progress{Status: StatusIdle}}
}

func (t *progressTracker) report(percent float64, status Status) {
	if t == nil || t.closed.Load() {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed.Load() {
		return
	}
	percent = clampPercent(percent)
	if percent < t.last.Percent {
		percent = t.last.Percent
	}
	if status != StatusError && t.last.Status != StatusError && statusRank[status] < statusRank[t.last.Status] {
		status = t.last.Status
	}
	t.last = Progress{Percent: percent, Status: status}
	if t.emit != nil {
		t.emit(t.last)
	}
}

// fail emits the error status at the current percent.
func (t *progressTracker) fail() {
	if t == nil {
		return
	}
	t.report(t.snapshot().Percent, StatusError)
}

func (t *progressTracker) close() {
	if t != nil {
		t.closed.Store(true)
	}
}

// shut closes the tracker and waits for an emission in progress to return.
// It must not be called while holding the Recognizer lock.
func (t *progressTracker) shut() {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.closed.Store(true)
	t.mu.Unlock()
}

// snapshot returns the most recent emission.
func (t *progressTracker) snapshot() Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}
