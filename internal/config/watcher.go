package config

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/rcourtman/coachkit/pkg/entitlements"
)

// Change describes one runtime setting applied from the .env file.
type Change struct {
	Key string
	Old string
	New string
}

// ConfigWatcher monitors the .env file and applies reloadable settings
// (source priority and log level) to the runtime config.
type ConfigWatcher struct {
	config      *Config
	envPath     string
	watcher     *fsnotify.Watcher
	stopChan    chan struct{}
	stopOnce    sync.Once
	lastModTime time.Time
	lastEnvHash string
	mu          sync.Mutex
	onReload    func([]Change)
	debounce    time.Duration
}

// NewConfigWatcher creates a watcher for config.EnvPath().
func NewConfigWatcher(config *Config) (*ConfigWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	cw := &ConfigWatcher{
		config:   config,
		envPath:  config.EnvPath(),
		watcher:  watcher,
		stopChan: make(chan struct{}),
		debounce: 100 * time.Millisecond,
	}
	if stat, err := os.Stat(cw.envPath); err == nil {
		cw.lastModTime = stat.ModTime()
	}
	cw.lastEnvHash = hashFile(cw.envPath)
	return cw, nil
}

// SetReloadCallback registers fn to run after changes are applied.
func (cw *ConfigWatcher) SetReloadCallback(fn func([]Change)) {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	cw.onReload = fn
}

// Start begins watching the data directory, falling back to polling when
// fsnotify cannot watch it.
func (cw *ConfigWatcher) Start() error {
	dir := filepath.Dir(cw.envPath)
	if err := cw.watcher.Add(dir); err != nil {
		log.Warn().Err(err).Str("path", dir).Msg("Failed to watch config directory, falling back to polling")
		go cw.pollForChanges()
		return nil
	}

	go cw.handleEvents(cw.watcher.Events, cw.watcher.Errors)
	log.Info().Str("env_path", cw.envPath).Msg("Started watching config file for changes")
	return nil
}

// Stop stops the watcher. It is safe to call more than once.
func (cw *ConfigWatcher) Stop() {
	cw.stopOnce.Do(func() {
		close(cw.stopChan)
		cw.watcher.Close()
	})
}

// ReloadConfig re-reads the .env file immediately (e.g. on SIGHUP).
func (cw *ConfigWatcher) ReloadConfig() []Change {
	return cw.reloadConfig()
}

func (cw *ConfigWatcher) handleEvents(events <-chan fsnotify.Event, errs <-chan error) {
	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != ".env" && event.Name != cw.envPath {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			// Wait for the writer to finish.
			time.Sleep(cw.debounce)

			hash := hashFile(cw.envPath)
			cw.mu.Lock()
			unchanged := hash == cw.lastEnvHash
			cw.lastEnvHash = hash
			cw.mu.Unlock()
			if unchanged {
				continue
			}
			log.Info().Str("event", event.Op.String()).Msg("Detected .env file change")
			cw.reloadConfig()

		case err, ok := <-errs:
			if !ok {
				return
			}
			log.Error().Err(err).Msg("Config watcher error")

		case <-cw.stopChan:
			return
		}
	}
}

func (cw *ConfigWatcher) pollForChanges() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if stat, err := os.Stat(cw.envPath); err == nil && stat.ModTime().After(cw.lastModTime) {
				log.Info().Msg("Detected .env file change via polling")
				cw.lastModTime = stat.ModTime()
				cw.reloadConfig()
			}
		case <-cw.stopChan:
			return
		}
	}
}

func (cw *ConfigWatcher) reloadConfig() []Change {
	envMap, err := godotenv.Read(cw.envPath)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Error().Err(err).Msg("Failed to read .env file")
			return nil
		}
		envMap = make(map[string]string)
	}

	var changes []Change
	Mu.Lock()
	if raw := strings.Trim(envMap[EnvSourcePriority], "'\" "); raw != "" {
		p, err := entitlements.ParsePriority(raw)
		if err != nil {
			log.Warn().Err(err).Str("value", raw).Msg("Ignoring invalid source priority in .env")
		} else if p.String() != cw.config.SourcePriority.String() {
			changes = append(changes, Change{Key: EnvSourcePriority, Old: cw.config.SourcePriority.String(), New: p.String()})
			cw.config.SourcePriority = p
		}
	}
	if level := strings.Trim(envMap[EnvLogLevel], "'\" "); level != "" && level != cw.config.LogLevel {
		changes = append(changes, Change{Key: EnvLogLevel, Old: cw.config.LogLevel, New: level})
		cw.config.LogLevel = level
	}
	Mu.Unlock()

	if len(changes) == 0 {
		log.Debug().Msg("No relevant changes detected in .env file")
		return nil
	}

	keys := make([]string, len(changes))
	for i, c := range changes {
		keys[i] = c.Key
	}
	log.Info().Strs("changes", keys).Msg("Applied .env file changes to runtime config")

	cw.mu.Lock()
	callback := cw.onReload
	cw.mu.Unlock()
	if callback != nil {
		callback(changes)
	}
	return changes
}

func hashFile(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
