package collectors

import (
	"fmt"
	"time"

	"applister/internal/applister"
	"applister/internal/config"
)

// Env carries the host facts collectors depend on.
type Env struct {
	GOOS   string
	Getenv func(string) string
}

// NewCollectorsFromConfig builds the enabled collectors in configured order.
func NewCollectorsFromConfig(cfg config.CollectorsConfig, runner applister.CommandRunner, env Env, logger applister.Logger) ([]applister.Collector, error) {
	if logger == nil {
		logger = applister.NewNopLogger()
	}
	timeout := seconds(cfg.DefaultTimeoutSeconds, config.DefaultCommandTimeoutSeconds)
	aptTimeout := seconds(cfg.AptTimeoutSeconds, config.DefaultAptTimeoutSeconds)

	seen := make(map[applister.Source]bool)
	var out []applister.Collector
	for _, name := range cfg.Enabled {
		src, ok := applister.ParseSource(name)
		if !ok {
			return nil, fmt.Errorf("unknown collector: %s", name)
		}
		if seen[src] {
			continue
		}
		seen[src] = true

		switch src {
		case applister.SourceSnap:
			out = append(out, NewSnapCollector(runner, timeout))
		case applister.SourceFlatpak:
			out = append(out, NewFlatpakCollector(runner, env.GOOS, timeout))
		case applister.SourceApt:
			out = append(out, NewAptCollector(runner, aptTimeout, timeout, logger))
		case applister.SourceDesktop:
			dirs := DesktopSearchDirs(env.Getenv, cfg.Desktop.ExtraDirs)
			out = append(out, NewDesktopEntryCollector(env.GOOS, dirs, NewGlobMatcher(cfg.Desktop.Exclude)))
		case applister.SourceRegistry:
			filter, err := NewNameFilter(cfg.Registry.ExcludePatterns)
			if err != nil {
				return nil, fmt.Errorf("registry exclude patterns: %w", err)
			}
			out = append(out, NewRegistryCollector(runner, env.GOOS, timeout, filter, logger))
		}
	}
	return out, nil
}

func seconds(n, fallback int) time.Duration {
	if n <= 0 {
		n = fallback
	}
	return time.Duration(n) * time.Second
}
