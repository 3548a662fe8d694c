package cli

import (
	"context"
	"fmt"

	"github.com/matzehuels/classpath/pkg/buildinfo"
	"github.com/matzehuels/classpath/pkg/cache"
	"github.com/matzehuels/classpath/pkg/config"
	"github.com/matzehuels/classpath/pkg/localrepo"
	"github.com/matzehuels/classpath/pkg/pom"
	"github.com/matzehuels/classpath/pkg/proxy"
	"github.com/matzehuels/classpath/pkg/repository"
	"github.com/matzehuels/classpath/pkg/resolve"
	"github.com/matzehuels/classpath/pkg/transport"
)

// session is a resolver together with the resources it owns.
type session struct {
	*resolve.Resolver
	cache cache.Cache
	local *localrepo.Repo
}

// Close releases the metadata cache.
func (s *session) Close() error { return s.cache.Close() }

// newSession wires a resolver from the loaded settings. pomRepos are the
// repositories declared by a project descriptor, searched after the
// configured ones. overlays supply artifacts ahead of the repositories.
func (c *CLI) newSession(ctx context.Context, pomRepos []string, overlays ...resolve.Overlay) (*session, error) {
	s := c.settings
	logger := loggerFromContext(ctx)

	selector, err := proxy.NewSelector(proxy.Environ(), s.Properties, logger)
	if err != nil {
		return nil, err
	}
	registry := repository.NewRegistry(s.RepositoryOptions(), selector, logger)
	repos, err := registry.ResolveAll(s.RepositoryTokens(pomRepos))
	if err != nil {
		return nil, err
	}

	topts := s.TransportOptions()
	topts.Selector = selector
	topts.UserAgent = buildinfo.UserAgent(appName)

	mc, err := openCache(ctx, s)
	if err != nil {
		return nil, err
	}
	local := localrepo.New(s.LocalRepoOptions(), logger)

	r, err := resolve.New(resolve.Options{
		Repositories:   repos,
		Local:          local,
		Transport:      transport.New(topts, logger),
		Cache:          mc,
		CacheNamespace: s.Cache.Namespace,
		Overlays:       resolve.Chain(overlays),
		Concurrency:    s.Concurrency,
		Logger:         logger,
	})
	if err != nil {
		mc.Close()
		return nil, err
	}
	logger.Debug("session ready", "session", r.SessionID(), "repositories", len(repos), "local", local.Root())
	return &session{Resolver: r, cache: mc, local: local}, nil
}

// openProject reads a project descriptor and opens a session that also
// searches the repositories it declares.
func (c *CLI) openProject(ctx context.Context, path string) (*session, *pom.Model, error) {
	probe, err := pom.ReadFile(path, pom.Options{Logger: loggerFromContext(ctx)})
	if err != nil {
		return nil, nil, err
	}
	sess, err := c.newSession(ctx, probe.Repositories())
	if err != nil {
		return nil, nil, err
	}
	m, err := sess.LoadProject(path)
	if err != nil {
		sess.Close()
		return nil, nil, err
	}
	return sess, m, nil
}

// openCache creates the metadata cache selected by the settings. A file
// cache that cannot be created degrades to no caching.
func openCache(ctx context.Context, s *config.Settings) (cache.Cache, error) {
	switch s.Cache.Backend {
	case config.CacheNone:
		return cache.NewNullCache(), nil
	case config.CacheMemory:
		return cache.NewMemoryCache(nil, s.Cache.MemorySize, 0), nil
	case config.CacheRedis:
		rc, err := cache.NewRedisCache(ctx, s.Cache.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("connect metadata cache: %w", err)
		}
		return cache.NewMemoryCache(rc, s.Cache.MemorySize, 0), nil
	default:
		fc, err := cache.NewFileCache(s.MetadataCacheDir())
		if err != nil {
			loggerFromContext(ctx).Warn("metadata cache disabled", "dir", s.MetadataCacheDir(), "err", err)
			return cache.NewNullCache(), nil
		}
		return cache.NewMemoryCache(fc, s.Cache.MemorySize, 0), nil
	}
}
