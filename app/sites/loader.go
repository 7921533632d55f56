package sites

import (
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/lysyi3m/rss-nest/app/provider"
)

// Loader reads YAML site declarations from a directory.
type Loader struct {
	sitesDir string
	cache    map[string]*SiteConfig
	mu       sync.RWMutex
}

func NewLoader(sitesDir string) *Loader {
	return &Loader{
		sitesDir: sitesDir,
		cache:    make(map[string]*SiteConfig),
	}
}

// Run loads every *.yml and *.yaml file of the sites directory. A missing
// directory is not an error.
func (l *Loader) Run() error {
	if l.sitesDir == "" {
		return nil
	}
	if _, err := os.Stat(l.sitesDir); os.IsNotExist(err) {
		return nil
	}

	var files []string
	for _, pattern := range []string{"*.yml", "*.yaml"} {
		matches, err := filepath.Glob(filepath.Join(l.sitesDir, pattern))
		if err != nil {
			return fmt.Errorf("failed to find site files: %w", err)
		}
		files = append(files, matches...)
	}
	slices.Sort(files)

	for _, file := range files {
		config, err := l.LoadConfig(file)
		if err != nil {
			return fmt.Errorf("error loading %s: %w", file, err)
		}

		slog.Debug("Site configuration loaded", "site", config.ID, "source", config.Source, "disabled", config.Disabled)
	}

	return nil
}

// LoadConfig parses and validates one site file. The file name without its
// extension is the site id unless the file sets one.
func (l *Loader) LoadConfig(file string) (*SiteConfig, error) {
	config, err := l.parseConfig(file)
	if err != nil {
		return nil, err
	}

	if config.ID == "" {
		base := filepath.Base(file)
		config.ID = strings.TrimSuffix(base, filepath.Ext(base))
	}
	config.setDefaults()

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", file, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.cache[config.ID]; ok {
		return nil, fmt.Errorf("site '%s' is declared more than once", config.ID)
	}
	l.cache[config.ID] = config

	return config, nil
}

// GetConfigs returns every loaded configuration keyed by site id, disabled
// ones included.
func (l *Loader) GetConfigs() map[string]*SiteConfig {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return maps.Clone(l.cache)
}

// GetEnabledConfigs returns the enabled configurations ordered by site id.
func (l *Loader) GetEnabledConfigs() []*SiteConfig {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ids := slices.Sorted(maps.Keys(l.cache))
	enabled := make([]*SiteConfig, 0, len(ids))
	for _, id := range ids {
		if config := l.cache[id]; !config.Disabled {
			enabled = append(enabled, config)
		}
	}
	return enabled
}

func (l *Loader) GetConfigCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.cache)
}

// Sources returns a provider source for every enabled site.
func (l *Loader) Sources() []provider.Source {
	configs := l.GetEnabledConfigs()
	sources := make([]provider.Source, 0, len(configs))
	for _, config := range configs {
		sources = append(sources, config.NewSource())
	}
	return sources
}

// WarmTargets collects the warm targets of every enabled site.
func (l *Loader) WarmTargets() []WarmTarget {
	var targets []WarmTarget
	for _, config := range l.GetEnabledConfigs() {
		targets = append(targets, config.WarmTargets()...)
	}
	return targets
}

func (l *Loader) parseConfig(file string) (*SiteConfig, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var config SiteConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	return &config, nil
}
