package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"regscan/pkg/config"
	"regscan/pkg/history"
	"regscan/pkg/ocr"
	"regscan/pkg/scan"
)

const redisKeyPrefix = "regscan:"

// openKV opens the configured history backend. migrate forces schema
// migration for the SQL backends regardless of history.migrate.
func openKV(ctx context.Context, hc config.HistoryConfig, migrate bool) (history.KV, error) {
	switch hc.Driver {
	case "memory":
		return history.NewMemoryKV(), nil
	case "sqlite":
		kv, err := history.OpenSQLite(ctx, hc.DSN)
		if err != nil {
			return nil, eris.Wrapf(err, "open sqlite history %s", hc.DSN)
		}
		return kv, nil
	case "postgres":
		if hc.DSN == "" {
			return nil, eris.New("history.dsn is not set. The postgres backend requires a DSN.")
		}
		kv, err := history.OpenPostgres(hc.DSN, migrate || hc.Migrate)
		if err != nil {
			return nil, eris.Wrap(err, "open postgres history")
		}
		return kv, nil
	case "redis":
		kv, err := history.OpenRedis(ctx, hc.DSN, redisKeyPrefix)
		if err != nil {
			return nil, eris.Wrap(err, "open redis history")
		}
		return kv, nil
	default:
		return nil, eris.Errorf("unknown history driver %q", hc.Driver)
	}
}

func openHistory(ctx context.Context, hc config.HistoryConfig) (*history.Store, error) {
	kv, err := openKV(ctx, hc, false)
	if err != nil {
		return nil, err
	}
	zap.L().Info("history: opened", zap.String("backend", kv.Backend()), zap.String("key", hc.Key))
	return history.NewStore(kv, hc.Key), nil
}

// newEngine builds the Tesseract engine. The caller closes it.
func newEngine(sc config.ScanConfig) (*ocr.Tesseract, error) {
	t, err := ocr.NewTesseract(sc.TessdataPrefix, ocr.EngineMode(sc.EngineMode))
	if err != nil {
		return nil, eris.Wrap(err, "init tesseract")
	}
	return t, nil
}

func scannerOptions(c *config.Config) scan.Options {
	placeholder := c.Scan.Placeholder
	return scan.Options{
		MaxImageBytes: c.Scan.MaxImageBytes,
		Recognizer: ocr.Config{
			Language:       c.Scan.Language,
			EngineMode:     ocr.EngineMode(c.Scan.EngineMode),
			PageSegMode:    ocr.PageSegMode(c.Scan.PageSegMode),
			SkipPreprocess: !c.Scan.Preprocess,
		},
		Placeholder: &placeholder,
		Logger:      zap.L(),
	}
}
