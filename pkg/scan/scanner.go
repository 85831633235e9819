package scan

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"regscan/pkg/extract"
	"regscan/pkg/history"
	"regscan/pkg/ocr"
)

// Result is what one scan hands back to its caller.
type Result struct {
	ScanID       string                `json:"scanId"`
	ParsedData   extract.Record        `json:"parsedData"`
	UsedMockData bool                  `json:"usedMockData"`
	Message      string                `json:"message"`
	RawText      string                `json:"rawText"`
	Confidence   float64               `json:"confidence"`
	Quality      extract.QualityReport `json:"quality"`
	Error        string                `json:"error,omitempty"`
}

// Options configures a Scanner.
type Options struct {
	MaxImageBytes int64
	Recognizer    ocr.Config
	// Placeholder defaults to DefaultPlaceholder().
	Placeholder *extract.Record
	Logger      *zap.Logger
}

// Scanner ties image acquisition, recognition, the fallback policy and the
// history store together.
type Scanner struct {
	acq     *ocr.Acquirer
	rec     *ocr.Recognizer
	policy  Policy
	history *history.Store
	log     *zap.Logger

	// captureMu keeps Capture and Take paired for Scan.
	captureMu sync.Mutex
}

// New builds a Scanner. A nil store keeps history in memory.
func New(engine ocr.Engine, store *history.Store, opts Options) *Scanner {
	log := opts.Logger
	if log == nil {
		log = zap.L()
	}
	if opts.Recognizer.Logger == nil {
		opts.Recognizer.Logger = log
	}
	placeholder := DefaultPlaceholder()
	if opts.Placeholder != nil {
		placeholder = *opts.Placeholder
	}
	if store == nil {
		store = history.NewStore(history.NewMemoryKV(), "")
	}
	return &Scanner{
		acq:     ocr.NewAcquirer(opts.MaxImageBytes),
		rec:     ocr.NewRecognizer(engine, opts.Recognizer),
		policy:  Policy{Placeholder: placeholder},
		history: store,
		log:     log,
	}
}

// Capture reads and validates an image and holds it for ProcessCurrent.
func (s *Scanner) Capture(src ocr.Source) (ocr.RawImage, error) {
	return s.acq.Capture(src)
}

// Reset drops any held image.
func (s *Scanner) Reset() { s.acq.Reset() }

// State returns the recognizer stage.
func (s *Scanner) State() ocr.Status { return s.rec.State() }

// Busy reports whether a recognition is in flight.
func (s *Scanner) Busy() bool { return s.rec.Busy() }

// Terminate aborts the in-flight recognition, if any.
func (s *Scanner) Terminate() bool {
	was := s.rec.Terminate()
	if was {
		s.log.Info("scan: terminated in-flight recognition")
	}
	return was
}

// Scan captures src and processes it.
func (s *Scanner) Scan(ctx context.Context, src ocr.Source, onProgress ocr.ProgressFunc) (Result, error) {
	s.captureMu.Lock()
	if _, err := s.acq.Capture(src); err != nil {
		s.captureMu.Unlock()
		return Result{}, err
	}
	img, _ := s.acq.Take()
	s.captureMu.Unlock()
	return s.Process(ctx, img, onProgress)
}

// ProcessCurrent processes the held image. The image is released once
// recognition starts; a busy recognizer leaves it held.
func (s *Scanner) ProcessCurrent(ctx context.Context, onProgress ocr.ProgressFunc) (Result, error) {
	img, ok := s.acq.Take()
	if !ok {
		return Result{}, ocr.ErrNoImage
	}
	res, err := s.Process(ctx, img, onProgress)
	if errors.Is(err, ocr.ErrBusy) {
		s.acq.Restore(img)
	}
	return res, err
}

// Process recognizes img and applies the fallback policy. The only error
// returned is ocr.ErrBusy; every other failure becomes a placeholder result.
func (s *Scanner) Process(ctx context.Context, img ocr.RawImage, onProgress ocr.ProgressFunc) (res Result, err error) {
	id := uuid.NewString()
	log := s.log.With(zap.String("scan_id", id))

	defer func() {
		if p := recover(); p != nil {
			log.Error("scan: recovered from panic", zap.Any("panic", p), zap.Stack("stack"))
			reason := fmt.Sprint(p)
			res = s.result(id, s.policy.Recovered(reason), ocr.Outcome{})
			res.Error = reason
			err = nil
		}
	}()

	log.Info("scan: started", zap.String("image", img.Name), zap.Int64("size", img.Size))
	out, err := s.rec.ProcessImage(ctx, img, onProgress)
	if err != nil {
		log.Warn("scan: rejected", zap.Error(err))
		return Result{ScanID: id}, err
	}

	var d Decision
	var oe *ocr.Error
	switch {
	case out.Err == nil:
		d = s.policy.Decide(out.Data, out.Confidence, nil)
	case errors.As(out.Err, &oe) && oe.Kind == ocr.KindRecognition:
		d = s.policy.Decide(nil, out.Confidence, out.Err)
	default:
		d = s.policy.Recovered(ocr.Reason(out.Err))
	}
	res = s.result(id, d, out)
	if out.Err != nil {
		res.Error = ocr.Reason(out.Err)
	}
	log.Info("scan: finished",
		zap.Bool("used_mock_data", res.UsedMockData),
		zap.String("message", res.Message),
		zap.Float64("confidence", res.Confidence))
	return res, nil
}

func (s *Scanner) result(id string, d Decision, out ocr.Outcome) Result {
	quality := out.Quality
	if out.Data == nil {
		quality = extract.Assess(out.RawText, out.Confidence, extract.Record{})
	}
	return Result{
		ScanID:       id,
		ParsedData:   d.Record,
		UsedMockData: d.UsedMockData,
		Message:      d.Message,
		RawText:      out.RawText,
		Confidence:   out.Confidence,
		Quality:      quality,
	}
}

// SaveRecord appends rec to the history. The returned flag is false when the
// store could not be written; the failure is logged and not returned.
func (s *Scanner) SaveRecord(ctx context.Context, rec extract.Record, confidence float64) (history.Record, bool) {
	saved, err := s.history.Save(ctx, rec, confidence)
	if err != nil {
		s.log.Warn("scan: history save failed", zap.String("backend", s.history.Backend()), zap.Error(err))
		return saved, false
	}
	return saved, true
}

// ListHistory returns the saved records, or an empty list when the store is
// unreadable.
func (s *Scanner) ListHistory(ctx context.Context) []history.Record {
	recs, err := s.history.List(ctx)
	if err != nil {
		s.log.Warn("scan: history read failed", zap.String("backend", s.history.Backend()), zap.Error(err))
		return []history.Record{}
	}
	return recs
}

// DeleteRecord removes one record from the history.
func (s *Scanner) DeleteRecord(ctx context.Context, id int64) {
	if err := s.history.Delete(ctx, id); err != nil {
		s.log.Warn("scan: history delete failed", zap.Int64("id", id), zap.Error(err))
	}
}

// ClearHistory removes every record.
func (s *Scanner) ClearHistory(ctx context.Context) {
	if err := s.history.Clear(ctx); err != nil {
		s.log.Warn("scan: history clear failed", zap.Error(err))
	}
}

// Close releases the history store.
func (s *Scanner) Close() error { return s.history.Close() }
