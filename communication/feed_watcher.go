package communication

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/NethermindEth/masp/logger"
)

// WatchFeedLog calls fn for every event appended to path after the call.
// It returns when ctx is done or the watcher fails.
func WatchFeedLog(ctx context.Context, path string, log *logger.Logger, fn func(Event)) error {
	if log == nil {
		log = logger.Nop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create feed log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDONLY, 0644)
	if err != nil {
		return fmt.Errorf("open feed log: %w", err)
	}
	defer f.Close()

	offset, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return fmt.Errorf("seek feed log: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(path); err != nil {
		return fmt.Errorf("watch feed log: %w", err)
	}

	var partial []byte
	readNew := func() {
		info, err := f.Stat()
		if err != nil {
			log.Error("feed watcher", "stat: %v", err)
			return
		}
		if info.Size() < offset {
			// truncated
			offset = 0
			partial = nil
		}
		if info.Size() == offset {
			return
		}
		buf := make([]byte, info.Size()-offset)
		n, err := f.ReadAt(buf, offset)
		if err != nil && err != io.EOF {
			log.Error("feed watcher", "read: %v", err)
			return
		}
		offset += int64(n)

		data := append(partial, buf[:n]...)
		lines := bytes.Split(data, []byte("\n"))
		partial = append([]byte(nil), lines[len(lines)-1]...)
		for _, line := range lines[:len(lines)-1] {
			if len(bytes.TrimSpace(line)) == 0 {
				continue
			}
			var ev Event
			if err := json.Unmarshal(line, &ev); err != nil {
				log.Debug(logger.SYSTEM, "skipping malformed feed line: %v", err)
				continue
			}
			fn(ev)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				readNew()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Error("feed watcher", "%v", err)
		}
	}
}
