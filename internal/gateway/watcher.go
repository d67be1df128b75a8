package gateway

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/dmitrijs2005/citygate/internal/gateway/config"
	"github.com/fsnotify/fsnotify"
)

const reloadDebounce = 200 * time.Millisecond

// watchConfig reloads the config file whenever it changes until ctx is
// done. The directory is watched rather than the file because editors
// often save through a rename.
func (app *App) watchConfig(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(app.cfgPath)); err != nil {
		_ = watcher.Close()
		return err
	}
	name := filepath.Base(app.cfgPath)

	var (
		mu    sync.Mutex
		timer *time.Timer
	)
	trigger := func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(reloadDebounce, func() { app.reloadFromFile(ctx) })
	}

	go func() {
		app.log.Info(ctx, "config watcher started", "path", app.cfgPath)
		defer func() {
			_ = watcher.Close()
			mu.Lock()
			if timer != nil {
				timer.Stop()
			}
			mu.Unlock()
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(ev.Name) != name {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					trigger()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				app.log.Warn(ctx, "config watcher error", "error", err)
			}
		}
	}()
	return nil
}

func (app *App) reloadFromFile(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	cfg, err := config.Load(app.cfgPath)
	if err == nil {
		err = app.Reload(ctx, cfg)
	} else {
		app.metrics.ObserveReload(false)
	}
	if err != nil {
		app.log.Error(ctx, "config reload rejected; keeping previous config", "error", err)
	}
}
