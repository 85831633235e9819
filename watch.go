package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"regscan/pkg/history"
	"regscan/pkg/ocr"
	"regscan/pkg/scan"
)

// newScanners builds n independent scanners over one engine and store.
func newScanners(n int, engine ocr.Engine, store *history.Store, opts scan.Options) []*scan.Scanner {
	out := make([]*scan.Scanner, n)
	for i := range out {
		out[i] = scan.New(engine, store, opts)
	}
	return out
}

// processFiles runs one goroutine per scanner over the paths received on
// files until it is closed or ctx is done. done is called concurrently.
func processFiles(ctx context.Context, scanners []*scan.Scanner, files <-chan string, save bool, done func(path string, res scan.Result, err error)) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, sc := range scanners {
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return nil
				case path, ok := <-files:
					if !ok {
						return nil
					}
					res, err := sc.Scan(gctx, ocr.FileSource(path), nil)
					if err == nil && save && !res.UsedMockData {
						if saved, ok := sc.SaveRecord(gctx, res.ParsedData, res.Confidence); ok {
							zap.L().Info("scan: saved to history", zap.String("file", path), zap.Int64("id", saved.ID))
						}
					}
					if err != nil {
						zap.L().Warn("scan: file rejected", zap.String("file", path), zap.Error(err))
					}
					if done != nil {
						done(path, res, err)
					}
				}
			}
		})
	}
	return g.Wait()
}

func isSupportedExt(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png", ".jpg", ".jpeg", ".gif", ".webp", ".bmp", ".tif", ".tiff":
		return true
	}
	return false
}

func listImageFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !isSupportedExt(e.Name()) {
			continue
		}
		out = append(out, e.Name())
	}
	sort.Strings(out)
	return out
}

// dirWatcher scans the images already in dir and then every image created
// or rewritten there, once the file has been quiet for debounce.
type dirWatcher struct {
	dir      string
	doneDir  string
	debounce time.Duration
	log      *zap.Logger
}

func (w *dirWatcher) run(ctx context.Context, scanners []*scan.Scanner, save bool, done func(string, scan.Result, error)) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return eris.Wrap(err, "watch: create watcher")
	}
	defer fw.Close()
	if err := fw.Add(w.dir); err != nil {
		return eris.Wrapf(err, "watch: add %s", w.dir)
	}
	if w.doneDir != "" {
		if err := os.MkdirAll(w.doneDir, 0o755); err != nil {
			return eris.Wrapf(err, "watch: create %s", w.doneDir)
		}
	}
	w.log.Info("watch: started", zap.String("dir", w.dir), zap.Duration("debounce", w.debounce), zap.Int("workers", len(scanners)))

	files := make(chan string, 256)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(files)
		return w.feed(gctx, fw, files)
	})
	g.Go(func() error {
		return processFiles(gctx, scanners, files, save, func(path string, res scan.Result, err error) {
			if err == nil {
				w.moveDone(path)
			}
			if done != nil {
				done(path, res, err)
			}
		})
	})
	return g.Wait()
}

func (w *dirWatcher) feed(ctx context.Context, fw *fsnotify.Watcher, out chan<- string) error {
	send := func(name string) bool {
		select {
		case out <- filepath.Join(w.dir, name):
			return true
		case <-ctx.Done():
			return false
		}
	}
	for _, name := range listImageFiles(w.dir) {
		if !send(name) {
			return nil
		}
	}

	pending := map[string]time.Time{}
	ticker := time.NewTicker(max(w.debounce/4, 10*time.Millisecond))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			name := filepath.Base(ev.Name)
			if isSupportedExt(name) {
				pending[name] = time.Now()
			}
		case <-ticker.C:
			now := time.Now()
			for name, t := range pending {
				if now.Sub(t) < w.debounce {
					continue
				}
				delete(pending, name)
				if !send(name) {
					return nil
				}
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch: error", zap.Error(err))
		}
	}
}

// moveDone moves a scanned file into doneDir so it is processed once.
func (w *dirWatcher) moveDone(path string) {
	if w.doneDir == "" {
		return
	}
	dst := filepath.Join(w.doneDir, filepath.Base(path))
	if err := os.Rename(path, dst); err != nil {
		w.log.Warn("watch: failed to move scanned file", zap.String("file", path), zap.Error(err))
	}
}

var (
	watchDoneDir string
	watchWorkers int
)

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Scan every image dropped into a directory",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := cfg.Watch.Dir
		if len(args) == 1 {
			dir = args[0]
		}
		if dir == "" {
			return eris.New("watch: no directory given and watch.dir is not set")
		}
		workers := cfg.Watch.Workers
		if watchWorkers > 0 {
			workers = watchWorkers
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		store, err := openHistory(ctx, cfg.History)
		if err != nil {
			return err
		}
		defer store.Close()
		engine, err := newEngine(cfg.Scan)
		if err != nil {
			return err
		}
		defer engine.Close()

		w := &dirWatcher{dir: dir, doneDir: watchDoneDir, debounce: cfg.Watch.Debounce, log: zap.L()}
		return w.run(ctx, newScanners(workers, engine, store, scannerOptions(cfg)), cfg.Watch.Save,
			func(path string, res scan.Result, err error) {
				if err != nil {
					return
				}
				zap.L().Info("watch: scanned",
					zap.String("file", path),
					zap.String("scan_id", res.ScanID),
					zap.Bool("used_mock_data", res.UsedMockData),
					zap.String("registration_no", res.ParsedData.RegistrationNo))
			})
	},
}

func init() {
	watchCmd.Flags().StringVar(&watchDoneDir, "done-dir", "", "move scanned files here (default: leave in place)")
	watchCmd.Flags().IntVar(&watchWorkers, "workers", 0, "number of independent scanners (default watch.workers)")
	rootCmd.AddCommand(watchCmd)
}
