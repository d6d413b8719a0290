package cmd

import (
	"errors"
	"fmt"

	"github.com/hdsoft/unisearch/pkg/client"
	"github.com/hdsoft/unisearch/pkg/config"
	"github.com/hdsoft/unisearch/pkg/log"
	"github.com/hdsoft/unisearch/pkg/realtime"
	"github.com/hdsoft/unisearch/pkg/session"
	"github.com/hdsoft/unisearch/pkg/storage"
)

// runtime bundles the objects most commands need.
type runtime struct {
	cfg     *config.Config
	client  *client.Client
	cache   *storage.Cache
	session *session.Session
}

type runtimeOptions struct {
	publisher realtime.Publisher
	noCache   bool
}

// openRuntime loads the configuration and wires the backend client, the
// local cache and a session around them.
func openRuntime(configPath string, opts runtimeOptions) (*runtime, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	rt := &runtime{cfg: cfg, client: client.New(cfg.Backend)}

	sessOpts := []session.Option{}
	if !opts.noCache {
		cache, err := storage.Open(cfg.DBPath())
		if err != nil {
			return nil, fmt.Errorf("opening cache: %w", err)
		}
		rt.cache = cache
		sessOpts = append(sessOpts, session.WithStore(cache))
	}
	if opts.publisher != nil {
		sessOpts = append(sessOpts, session.WithPublisher(opts.publisher))
	}
	rt.session = session.New(rt.client, sessOpts...)
	return rt, nil
}

func (rt *runtime) Close() {
	if rt.cache == nil {
		return
	}
	if err := rt.cache.Close(); err != nil {
		log.ForService("cmd").Warnf("failed to close cache: %v", err)
	}
}

// openCache opens the local cache without touching the backend.
func openCache(configPath string) (*storage.Cache, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	cache, err := storage.Open(cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}
	return cache, nil
}

// explainError appends the bug report link to backend errors when a support
// address is configured.
func explainError(cfg *config.Config, query string, err error) error {
	if !client.IsProtocol(err) && !client.IsTransport(err) {
		return err
	}
	msg := client.UserMessage(err)
	if cfg != nil && cfg.Support.Email != "" {
		report := client.NewBugReport(cfg.Support.Email, query, err, timeNow())
		return fmt.Errorf("%s\nReport this problem: %s", msg, report.MailtoURL())
	}
	return errors.New(msg)
}
