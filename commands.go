package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"sync"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"regscan/pkg/ocr"
	"regscan/pkg/scan"
)

var (
	scanWorkers int
	scanSave    bool
)

// fileResult is one line of `scan` output.
type fileResult struct {
	File   string       `json:"file"`
	Result *scan.Result `json:"result,omitempty"`
	Error  string       `json:"error,omitempty"`
}

var scanCmd = &cobra.Command{
	Use:   "scan <image>...",
	Short: "Scan registration card images and print the results as JSON",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
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

		files := make(chan string, len(args))
		order := make(map[string]int, len(args))
		for i, path := range args {
			files <- path
			if _, ok := order[path]; !ok {
				order[path] = i
			}
		}
		close(files)

		var mu sync.Mutex
		out := make([]fileResult, 0, len(args))
		workers := max(1, min(scanWorkers, len(args)))
		err = processFiles(ctx, newScanners(workers, engine, store, scannerOptions(cfg)), files, scanSave,
			func(path string, res scan.Result, err error) {
				fr := fileResult{File: path}
				if err != nil {
					fr.Error = err.Error()
				} else {
					fr.Result = &res
				}
				mu.Lock()
				out = append(out, fr)
				mu.Unlock()
			})
		if err != nil {
			return err
		}
		sort.SliceStable(out, func(i, j int) bool { return order[out[i].File] < order[out[j].File] })

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

var preprocessCmd = &cobra.Command{
	Use:   "preprocess <in> <out>",
	Short: "Write the preprocessed image that would be handed to the engine",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		img, err := ocr.NewAcquirer(cfg.Scan.MaxImageBytes).Capture(ocr.FileSource(args[0]))
		if err != nil {
			return eris.Wrapf(err, "read %s", args[0])
		}
		pre, err := ocr.Preprocess(img)
		if err != nil {
			return eris.Wrap(err, "preprocess")
		}
		if err := os.WriteFile(args[1], pre.Data, 0o644); err != nil {
			return eris.Wrapf(err, "write %s", args[1])
		}
		zap.L().Info("preprocess: written", zap.String("in", args[0]), zap.String("out", args[1]),
			zap.Int64("in_bytes", img.Size), zap.Int64("out_bytes", pre.Size))
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect or edit the scan history",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the saved records as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openHistory(cmd.Context(), cfg.History)
		if err != nil {
			return err
		}
		defer store.Close()
		recs, err := store.List(cmd.Context())
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(recs)
	},
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete one saved record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return eris.Wrapf(err, "invalid id %q", args[0])
		}
		store, err := openHistory(cmd.Context(), cfg.History)
		if err != nil {
			return err
		}
		defer store.Close()
		return store.Delete(cmd.Context(), id)
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every saved record",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openHistory(cmd.Context(), cfg.History)
		if err != nil {
			return err
		}
		defer store.Close()
		return store.Clear(cmd.Context())
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the history schema and exit",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		kv, err := openKV(cmd.Context(), cfg.History, true)
		if err != nil {
			return err
		}
		defer kv.Close()
		switch kv.Backend() {
		case "sqlite", "postgres":
			fmt.Fprintf(cmd.OutOrStdout(), "migration completed (%s)\n", kv.Backend())
		default:
			fmt.Fprintf(cmd.OutOrStdout(), "nothing to migrate for %s\n", kv.Backend())
		}
		return nil
	},
}

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password <password>",
	Short: "Print the bcrypt hash for auth.operator_password_hash",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := hashPassword(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), h)
		return nil
	},
}

func init() {
	scanCmd.Flags().IntVar(&scanWorkers, "workers", 2, "number of independent scanners")
	scanCmd.Flags().BoolVar(&scanSave, "save", false, "append successful scans to the history")

	historyCmd.AddCommand(historyListCmd, historyDeleteCmd, historyClearCmd)
	rootCmd.AddCommand(scanCmd, preprocessCmd, historyCmd, migrateCmd, hashPasswordCmd)
}
