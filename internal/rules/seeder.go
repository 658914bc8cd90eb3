package rules

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"trustcore/internal/constants"
	"trustcore/internal/logger"
)

// SeedFile is the YAML document read by the Seeder:
//
//	rules:
//	  - name: large-transfer
//	    priority: 10
//	    condition: {field: amount, operator: gt, value: 1000}
//	    action: {type: anchor, eventHash: precomputed}
type SeedFile struct {
	Rules []CreateRuleRequest `yaml:"rules"`
}

func LoadSeedFile(path string) ([]CreateRuleRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	var doc SeedFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}
	return doc.Rules, nil
}

type Seeder struct {
	service  *Service
	path     string
	debounce time.Duration
	logger   logger.Logger
}

func NewSeeder(service *Service, path string, log logger.Logger) *Seeder {
	return &Seeder{
		service:  service,
		path:     path,
		debounce: constants.DefaultSeedDebounce,
		logger:   log,
	}
}

func (s *Seeder) Seed(ctx context.Context) (SeedResult, error) {
	defs, err := LoadSeedFile(s.path)
	if err != nil {
		return SeedResult{}, err
	}

	res, err := s.service.Seed(ctx, defs)
	if err != nil {
		return res, err
	}

	s.logger.InfowCtx(ctx, "Rules seeded",
		"file", s.path,
		"created", res.Created,
		"reconciled", res.Reconciled,
		"unchanged", res.Unchanged,
	)
	return res, nil
}

// Watch re-seeds whenever the seed file changes until ctx is done. Editors that replace the
// file on save are handled by watching the parent directory.
func (s *Seeder) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create seed file watcher: %w", err)
	}
	defer watcher.Close()

	target := filepath.Clean(s.path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(target), err)
	}

	s.logger.InfowCtx(ctx, "Watching rule seed file", "file", target)

	timer := time.NewTimer(s.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				timer.Reset(s.debounce)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.WarnwCtx(ctx, "Seed file watcher error", "error", err)

		case <-timer.C:
			if _, err := s.Seed(ctx); err != nil {
				s.logger.ErrorwCtx(ctx, "Failed to re-seed rules", "file", target, "error", err)
			}
		}
	}
}
