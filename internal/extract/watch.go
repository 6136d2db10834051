// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// defaultDebounce is the quiet period after a file event before the
// extraction re-runs. Editors emit bursts of writes for a single save.
const defaultDebounce = 200 * time.Millisecond

// Watch extracts inputPath once, then re-runs the extraction whenever
// the file changes, until ctx is cancelled. Extraction failures during
// the watch are logged and do not end the watch; only a failed initial
// run or a watcher setup failure is returned as an error.
func Watch(ctx context.Context, inputPath, outputPath string, debounce time.Duration, w io.Writer) error {
	if err := ExtractFile(inputPath, outputPath, w); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory rather than the file: editors that replace
	// the file on save would otherwise drop the watch.
	dir := filepath.Dir(inputPath)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	if debounce <= 0 {
		debounce = defaultDebounce
	}
	base := filepath.Base(inputPath)

	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	log.Info().Str("input", inputPath).Msg("watching for changes")

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			log.Debug().Str("event", event.Op.String()).Str("file", event.Name).Msg("input changed")
			timer.Reset(debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("watcher error")

		case <-timer.C:
			if err := ExtractFile(inputPath, outputPath, w); err != nil {
				log.Warn().Err(err).Msg("re-extraction failed")
			}
		}
	}
}
