package ocr

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"unicode/utf8"

	"go.uber.org/zap"

	"regscan/pkg/extract"
)

// minTextRunes is the shortest cleaned text treated as a recognition result.
const minTextRunes = 3

var errAborted = newError(KindRecognition, "aborted", nil)

// Config fixes how a Recognizer calls its engine.
type Config struct {
	Language       string
	EngineMode     EngineMode
	PageSegMode    PageSegMode
	SkipPreprocess bool
	// Preprocess replaces the default image pipeline when set.
	Preprocess func(RawImage) (RawImage, error)
	// Extractor defaults to extract.Default().
	Extractor *extract.Extractor
	Logger    *zap.Logger
}

// Outcome is the result of one ProcessImage call. Err holds any recognition
// failure; Data is nil whenever Err is set.
type Outcome struct {
	Data       *extract.Record
	RawText    string
	Confidence float64
	Quality    extract.QualityReport
	Err        error
}

// Recognizer drives one image at a time through preprocessing, the engine,
// text cleaning and field extraction.
type Recognizer struct {
	engine     Engine
	extractor  *extract.Extractor
	preprocess func(RawImage) (RawImage, error)
	cfg        Config
	log        *zap.Logger

	mu       sync.Mutex
	state    Status
	inFlight bool
	gen      uint64
	cancel   context.CancelFunc
	tracker  *progressTracker
}

// NewRecognizer returns an idle Recognizer around engine.
func NewRecognizer(engine Engine, cfg Config) *Recognizer {
	r := &Recognizer{
		engine:     engine,
		extractor:  cfg.Extractor,
		preprocess: cfg.Preprocess,
		cfg:        cfg,
		log:        cfg.Logger,
		state:      StatusIdle,
	}
	if r.extractor == nil {
		r.extractor = extract.Default()
	}
	if r.preprocess == nil {
		r.preprocess = Preprocess
	}
	if r.log == nil {
		r.log = zap.L()
	}
	return r
}

// State returns the stage of the current or last call.
func (r *Recognizer) State() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Busy reports whether a call is in flight.
func (r *Recognizer) Busy() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inFlight
}

// ProcessImage recognizes img. Only one call may be in flight: a concurrent
// call returns ErrBusy at once. Every other failure is reported through
// Outcome.Err. onProgress may be nil.
func (r *Recognizer) ProcessImage(ctx context.Context, img RawImage, onProgress ProgressFunc) (Outcome, error) {
	r.mu.Lock()
	if r.inFlight {
		r.mu.Unlock()
		return Outcome{}, ErrBusy
	}
	ctx, cancel := context.WithCancel(ctx)
	r.inFlight = true
	r.gen++
	gen := r.gen
	r.cancel = cancel
	r.tracker = newProgressTracker(onProgress)
	tracker := r.tracker
	r.mu.Unlock()

	finished := false
	defer func() {
		if !finished {
			// a panic from onProgress is propagated with the guard released
			r.finish(gen, errAborted)
			cancel()
		}
	}()

	out := r.run(ctx, gen, tracker, img)
	if out.Err != nil {
		out.Data = nil
	}
	r.finish(gen, out.Err)
	finished = true
	cancel()
	if out.Err != nil {
		tracker.fail()
	}
	tracker.shut()
	return out, nil
}

// Terminate aborts the in-flight call, if any, and returns the Recognizer to
// idle without waiting for the engine. The aborted call returns with
// ErrTerminated and its later progress is discarded.
func (r *Recognizer) Terminate() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	was := r.inFlight
	if was {
		r.gen++
		r.cancel()
		r.tracker.close()
		r.cancel, r.tracker = nil, nil
		r.inFlight = false
	}
	r.state = StatusIdle
	return was
}

// advance moves the state machine for call gen and emits progress. It fails
// with ErrTerminated once the call has been superseded.
func (r *Recognizer) advance(gen uint64, tracker *progressTracker, status Status, percent float64) error {
	r.mu.Lock()
	if r.gen != gen {
		r.mu.Unlock()
		return ErrTerminated
	}
	r.state = status
	r.mu.Unlock()
	tracker.report(percent, status)
	return nil
}

func (r *Recognizer) current(gen uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gen == gen
}

func (r *Recognizer) finish(gen uint64, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gen != gen {
		return
	}
	r.inFlight = false
	r.cancel, r.tracker = nil, nil
	if err != nil {
		r.state = StatusError
		return
	}
	r.state = StatusDone
}

func (r *Recognizer) run(ctx context.Context, gen uint64, tracker *progressTracker, img RawImage) Outcome {
	if err := r.advance(gen, tracker, StatusStarting, 0); err != nil {
		return Outcome{Err: err}
	}
	if err := r.advance(gen, tracker, StatusPreprocessing, 0); err != nil {
		return Outcome{Err: err}
	}
	work := img
	if !r.cfg.SkipPreprocess {
		pre, err := r.safePreprocess(img)
		if err != nil {
			r.log.Warn("ocr: preprocessing failed, using original image",
				zap.String("image", img.Name), zap.Error(err))
		} else {
			work = pre
		}
	}

	if err := r.advance(gen, tracker, StatusProcessing, preprocessEnd); err != nil {
		return Outcome{Err: err}
	}
	req := NewRecognitionRequest(work, r.cfg.Language, r.cfg.EngineMode, r.cfg.PageSegMode)
	res, err := r.recognize(ctx, gen, tracker, req)
	if err != nil {
		return Outcome{Err: err}
	}

	if err := r.advance(gen, tracker, StatusParsing, engineEnd); err != nil {
		return Outcome{Err: err}
	}
	text := CleanText(res.Text)
	conf := clampPercent(res.Confidence)
	if utf8.RuneCountInString(text) < minTextRunes {
		r.log.Info("ocr: empty result", zap.String("image", img.Name), zap.Float64("confidence", conf))
		return Outcome{RawText: text, Confidence: conf, Err: ErrEmptyResult}
	}
	rec, matches := r.extractor.Explain(text, conf)
	quality := extract.Assess(text, conf, rec)
	for _, m := range matches {
		r.log.Debug("ocr: field extracted",
			zap.String("field", string(m.Field)), zap.String("strategy", m.Strategy), zap.String("value", m.Value))
	}

	if err := r.advance(gen, tracker, StatusDone, 100); err != nil {
		return Outcome{Err: err}
	}
	r.log.Info("ocr: recognition done",
		zap.String("image", img.Name),
		zap.Float64("confidence", conf),
		zap.String("tier", string(quality.QualityTier)),
		zap.Int("fields", quality.ExtractedFieldCount),
		zap.String("text", snippet(text, 120)))
	return Outcome{Data: &rec, RawText: text, Confidence: conf, Quality: quality}
}

// safePreprocess turns a preprocessing panic into a PreprocessError.
func (r *Recognizer) safePreprocess(img RawImage) (out RawImage, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = newError(KindPreprocess, "panic", fmt.Errorf("%v", p))
		}
	}()
	return r.preprocess(img)
}

type engineReply struct {
	res EngineResult
	err error
}

// recognize runs the engine on its own goroutine so that termination or
// cancellation returns immediately even when the engine never does.
func (r *Recognizer) recognize(ctx context.Context, gen uint64, tracker *progressTracker, req RecognitionRequest) (EngineResult, error) {
	reply := make(chan engineReply, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				reply <- engineReply{err: fmt.Errorf("engine panic: %v", p)}
			}
		}()
		res, err := r.engine.Recognize(ctx, req, func(p float64) {
			if r.current(gen) {
				tracker.report(engineProgress(p), StatusProcessing)
			}
		})
		reply <- engineReply{res: res, err: err}
	}()

	select {
	case <-ctx.Done():
		return EngineResult{}, r.cancelled(ctx, gen)
	case rep := <-reply:
		if rep.err == nil {
			return rep.res, nil
		}
		if ctx.Err() != nil {
			return EngineResult{}, r.cancelled(ctx, gen)
		}
		var pe *Error
		if errors.As(rep.err, &pe) {
			return EngineResult{}, rep.err
		}
		return EngineResult{}, newError(KindRecognition, rep.err.Error(), rep.err)
	}
}

func (r *Recognizer) cancelled(ctx context.Context, gen uint64) error {
	if !r.current(gen) {
		return ErrTerminated
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return newError(KindRecognition, "timeout", ctx.Err())
	}
	return newError(KindRecognition, "canceled", ctx.Err())
}
