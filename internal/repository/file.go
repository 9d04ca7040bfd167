package repository

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"urgency_detector/internal/apperr"
	"urgency_detector/internal/logging"
	"urgency_detector/internal/rules"
)

type fileDocument struct {
	Rules []rules.Rule `yaml:"rules"`
}

// File reads rules from a YAML document of the form
//
//	rules:
//	  - id: 1
//	    title: fever
//	    include: [fever]
//	    exclude: []
type File struct {
	path string
}

func NewFile(path string) *File {
	return &File{path: path}
}

func (f *File) Path() string { return f.path }

func (f *File) ListRules(ctx context.Context) ([]rules.Rule, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	return parseRules(data)
}

// Ping checks the file is readable.
func (f *File) Ping(ctx context.Context) error {
	_, err := os.Stat(f.path)
	return err
}

func parseRules(data []byte) ([]rules.Rule, error) {
	var doc fileDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, apperr.Wrap(err, apperr.KindValidation, "parse rules file")
	}
	seen := make(map[int64]struct{}, len(doc.Rules))
	for i := range doc.Rules {
		r := &doc.Rules[i]
		if _, dup := seen[r.ID]; dup {
			return nil, apperr.New(apperr.KindValidation, fmt.Sprintf("duplicate rule id %d", r.ID))
		}
		seen[r.ID] = struct{}{}
		r.Include = rules.LowerPhrases(r.Include)
		r.Exclude = rules.LowerPhrases(r.Exclude)
	}
	sort.Slice(doc.Rules, func(i, j int) bool { return doc.Rules[i].ID < doc.Rules[j].ID })
	if doc.Rules == nil {
		doc.Rules = []rules.Rule{}
	}
	return doc.Rules, nil
}

// Watch calls onChange whenever the rules file is written, created or
// renamed into place, until ctx is done. The directory is watched rather
// than the file so editors that replace the file are seen.
func (f *File) Watch(ctx context.Context, logger *slog.Logger, onChange func()) error {
	logger = logging.OrDefault(logger)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	dir := filepath.Dir(f.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch rules directory: %w", err)
	}

	target := filepath.Clean(f.path)
	logger.Info("rules file watcher started", slog.String("path", target))

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				// Small delay so the write is complete before reloading.
				time.Sleep(100 * time.Millisecond)
				logger.Info("rules file changed", slog.String("path", event.Name), slog.String("op", event.Op.String()))
				onChange()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Error("file watcher error", slog.String("error", err.Error()))
			}
		}
	}()
	return nil
}
