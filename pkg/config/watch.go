package config

import (
	"fmt"
	"path/filepath"
	"sync"

	"gopkg.in/fsnotify.v1"
)

// Watcher reloads a config file whenever it changes on disk and hands the
// new configuration to a callback. Invalid edits are reported through the
// error callback and the previous configuration stays in effect.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	onChange func(Config)
	onError  func(error)
	stopChan chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// Watch starts watching path. The parent directory is watched so editors that
// replace the file by rename are still seen. onError may be nil.
func Watch(path string, onChange func(Config), onError func(error)) (*Watcher, error) {
	if path == "" {
		return nil, fmt.Errorf("no config file to watch")
	}
	if onChange == nil {
		return nil, fmt.Errorf("onChange callback is required")
	}
	if onError == nil {
		onError = func(error) {}
	}

	absolutePath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving config path %s: %w", path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(absolutePath)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watching directory %s: %w", filepath.Dir(absolutePath), err)
	}

	configWatcher := &Watcher{
		path:     absolutePath,
		watcher:  watcher,
		onChange: onChange,
		onError:  onError,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
	go configWatcher.watchLoop()
	return configWatcher, nil
}

// Stop ends the watch and waits for the event loop to exit.
func (configWatcher *Watcher) Stop() {
	configWatcher.stopOnce.Do(func() {
		close(configWatcher.stopChan)
		configWatcher.watcher.Close()
	})
	<-configWatcher.done
}

func (configWatcher *Watcher) watchLoop() {
	defer close(configWatcher.done)
	for {
		select {
		case <-configWatcher.stopChan:
			return

		case event, ok := <-configWatcher.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != configWatcher.path {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			configWatcher.reload()

		case err, ok := <-configWatcher.watcher.Errors:
			if !ok {
				return
			}
			configWatcher.onError(fmt.Errorf("watching %s: %w", configWatcher.path, err))
		}
	}
}

func (configWatcher *Watcher) reload() {
	cfg, err := Load(configWatcher.path)
	if err != nil {
		configWatcher.onError(err)
		return
	}
	configWatcher.onChange(cfg)
}
