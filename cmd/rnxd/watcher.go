package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"example.com/rnxgate/internal/common"
	"example.com/rnxgate/internal/rinex"
)

// watcher converts files arriving in the watched directories. A file is
// picked up once it has been quiet for the settle period, so partially
// written uploads are not parsed mid-copy.
type watcher struct {
	fs      *fsnotify.Watcher
	outDir  string
	settle  time.Duration
	journal *common.Journal

	mu      sync.Mutex
	pending map[string]*time.Timer
	wg      sync.WaitGroup
}

func newWatcher(cfg config) (*watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &watcher{
		fs:      fs,
		outDir:  cfg.OutputDir,
		settle:  cfg.settle(),
		journal: common.NewJournal(cfg.Journal),
		pending: make(map[string]*time.Timer),
	}
	for _, dir := range cfg.WatchDirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			fs.Close()
			return nil, fmt.Errorf("watch dir %s: %w", dir, err)
		}
		if err := fs.Add(dir); err != nil {
			fs.Close()
			return nil, fmt.Errorf("watch %s: %w", dir, err)
		}
		log.Printf("watching %s", dir)
	}
	return w, nil
}

// run consumes watcher events until the channel closes.
func (w *watcher) run() {
	for {
		select {
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			w.schedule(event.Name)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			log.Printf("watch error: %v", err)
		}
	}
}

// schedule arms (or re-arms) the settle timer for one file.
func (w *watcher) schedule(path string) {
	class, gzipped := common.Classify(path)
	if class != common.ClassCRINEX && !(class == common.ClassRINEX && gzipped) {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Reset(w.settle)
		return
	}
	w.pending[path] = time.AfterFunc(w.settle, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.convert(path, class)
		}()
	})
}

func (w *watcher) convert(path string, class common.FileClass) {
	entry := common.JournalEntry{Input: path, Class: class.String()}
	if digest, size, err := common.Sha256OfFile(path); err == nil {
		entry.Sha256 = digest
		entry.Bytes = size
	}

	h, s, err := rinex.ParseFile(path)
	if err != nil {
		entry.Error = err.Error()
		log.Printf("convert %s: %v", path, err)
		w.record(entry)
		return
	}
	out := filepath.Join(w.outDir, common.OutputName(path))
	if err := rinex.WriteFile(out, h, s); err != nil {
		entry.Error = err.Error()
		log.Printf("write %s: %v", out, err)
		w.record(entry)
		return
	}
	entry.Output = out
	entry.Epochs = s.Len()
	log.Printf("converted %s -> %s (%d epochs)", path, out, s.Len())
	w.record(entry)
}

func (w *watcher) record(entry common.JournalEntry) {
	if err := w.journal.Append(entry); err != nil {
		log.Printf("journal: %v", err)
	}
}

// close stops watching and waits for in-flight conversions.
func (w *watcher) close() {
	w.fs.Close()
	w.mu.Lock()
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
	w.mu.Unlock()
	w.wg.Wait()
}
