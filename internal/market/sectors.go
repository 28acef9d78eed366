package market

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"alphadesk/internal/logger"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// SectorMap classifies tickers from a YAML document of the form
//
//	AAPL: Technology
//	SPY: Index/ETF
//
// and optionally hot-reloads when the file changes on disk.
type SectorMap struct {
	path string

	mu      sync.RWMutex
	entries map[string]string

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewSectorMap loads the sector file. A missing or malformed file is an
// error here; classification of unknown tickers is not.
func NewSectorMap(path string) (*SectorMap, error) {
	m := &SectorMap{path: path, entries: make(map[string]string)}
	if err := m.reload(); err != nil {
		return nil, err
	}
	return m, nil
}

// NewEmptySectorMap returns a map that classifies everything as
// SectorUnknown. Used when no sector file is available.
func NewEmptySectorMap() *SectorMap {
	return &SectorMap{entries: make(map[string]string)}
}

func (m *SectorMap) reload() error {
	raw, err := os.ReadFile(m.path)
	if err != nil {
		return fmt.Errorf("reading sector map: %w", err)
	}
	var doc map[string]string
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("parsing sector map: %w", err)
	}
	entries := make(map[string]string, len(doc))
	for ticker, sector := range doc {
		ticker = normalizeTicker(ticker)
		if ticker == "" || sector == "" {
			continue
		}
		entries[ticker] = sector
	}
	m.mu.Lock()
	m.entries = entries
	m.mu.Unlock()
	logger.Infof("sector map: loaded %d tickers from %s", len(entries), m.path)
	return nil
}

// SectorOf returns the sector label for ticker, or SectorUnknown.
func (m *SectorMap) SectorOf(ticker string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if sector, ok := m.entries[normalizeTicker(ticker)]; ok {
		return sector
	}
	return SectorUnknown
}

// Watch reloads the map whenever the backing file is rewritten. Close stops
// the watcher.
func (m *SectorMap) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(m.path)); err != nil {
		watcher.Close()
		return err
	}
	m.watcher = watcher
	m.done = make(chan struct{})
	go func() {
		for {
			select {
			case evt, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(evt.Name) != filepath.Clean(m.path) {
					continue
				}
				if evt.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if err := m.reload(); err != nil {
					logger.Warnf("sector map: reload failed: %v", err)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warnf("sector map: watcher error: %v", err)
			case <-m.done:
				return
			}
		}
	}()
	return nil
}

// Close stops the file watcher, if one is running.
func (m *SectorMap) Close() error {
	if m.done != nil {
		close(m.done)
		m.done = nil
	}
	if m.watcher != nil {
		err := m.watcher.Close()
		m.watcher = nil
		return err
	}
	return nil
}
