package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/hdsoft/unisearch/pkg/config"
)

// reloadConfiguration loads and validates configPath, handing the result to
// apply only when it is usable.
func reloadConfiguration(configPath string, apply func(*config.Config)) error {
	newCfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading new config: %w", err)
	}
	if err := newCfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	apply(newCfg)
	webLog.Infof("Configuration reload complete: backend %s", newCfg.Backend.URL)
	return nil
}

// watchConfig reloads the configuration on SIGHUP and whenever the config
// file changes, until ctx is done.
func watchConfig(ctx context.Context, configPath string, apply func(*config.Config)) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	var events <-chan fsnotify.Event
	var errs <-chan error

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		webLog.Warnf("failed to create config file watcher: %v", err)
	} else {
		defer func() {
			if err := watcher.Close(); err != nil {
				webLog.Warnf("failed to close config file watcher: %v", err)
			}
		}()

		if err := watcher.Add(configPath); err != nil {
			webLog.Warnf("failed to watch config file %s: %v", configPath, err)
		} else {
			webLog.Infof("Watching config file for changes: %s", configPath)
		}
		events = watcher.Events
		errs = watcher.Errors
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-sigCh:
			webLog.Infof("Received SIGHUP, reloading configuration...")
			if err := reloadConfiguration(configPath, apply); err != nil {
				webLog.Errorf("Failed to reload configuration: %v", err)
			}
		case event, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			// Editors often replace the file with an atomic rename
			if !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove)) {
				continue
			}
			webLog.Infof("Config file changed: %s (event: %s), reloading configuration...", event.Name, event.Op.String())

			if event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
				time.Sleep(200 * time.Millisecond)

				if _, err := os.Stat(configPath); os.IsNotExist(err) {
					webLog.Warnf("Config file was removed and not replaced, skipping reload")
					continue
				}
				if err := watcher.Add(configPath); err != nil {
					webLog.Warnf("failed to re-add config file to watcher after rename/remove: %v", err)
				}
			} else {
				time.Sleep(100 * time.Millisecond)
			}

			if err := reloadConfiguration(configPath, apply); err != nil {
				webLog.Errorf("Failed to reload configuration after file change: %v", err)
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			webLog.Errorf("Config file watcher error: %v", err)
		}
	}
}
