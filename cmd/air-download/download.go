package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/rauschecker-sugrue-labs/air-download/internal/config"
	"github.com/rauschecker-sugrue-labs/air-download/internal/download"
	"github.com/rauschecker-sugrue-labs/air-download/internal/model"
	"github.com/schollz/progressbar/v3"
)

func runDownload(ctx context.Context, settings *config.Settings, accession, mrn string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	manager := download.NewManager(settings, printEvent(settings.Verbose))

	// One progress bar per exam, fed by the manager's cumulative byte
	// callback. Skipped when stdout is not a terminal so piped output
	// stays clean.
	if isatty.IsTerminal(os.Stdout.Fd()) {
		var mu sync.Mutex
		bars := make(map[string]*progressbar.ProgressBar)
		manager.SetTransferFunc(func(label string, written, total int64) {
			mu.Lock()
			bar, ok := bars[label]
			if !ok {
				bar = progressbar.DefaultBytes(total, "Downloading "+label)
				if total == 0 {
					bar = progressbar.DefaultBytes(-1, "Downloading "+label)
				}
				bars[label] = bar
			}
			mu.Unlock()
			bar.Set64(written)
		})
	}

	if err := manager.Login(ctx); err != nil {
		return err
	}

	criteria := model.SearchCriteria{
		AccessionNumber: accession,
		PatientID:       mrn,
	}

	results, err := manager.Run(ctx, criteria)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("download cancelled")
		}
		return err
	}

	var downloaded, skipped, failed int
	var bytes int64
	for _, res := range results {
		switch {
		case res.Err != nil:
			failed++
		case res.Skipped:
			skipped++
		default:
			downloaded++
			bytes += res.Bytes
		}
	}

	if len(results) > 0 {
		fmt.Printf("\nDone: %d downloaded (%.2f MB), %d skipped, %d failed\n",
			downloaded, float64(bytes)/1024/1024, skipped, failed)
	}
	return nil
}

// printEvent renders manager progress events to the console.
func printEvent(verbose bool) func(download.ProgressEvent) {
	return func(event download.ProgressEvent) {
		if event.Level == download.LevelVerbose && !verbose {
			return
		}

		switch event.Level {
		case download.LevelError:
			fmt.Fprintln(os.Stderr, "✗ "+event.Message)
		case download.LevelWarning:
			fmt.Fprintln(os.Stderr, "⚠ "+event.Message)
		case download.LevelSuccess:
			fmt.Println("✓ " + event.Message)
		default:
			fmt.Println(event.Message)
		}
	}
}
