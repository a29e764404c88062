// Package targets reads the target configuration: the legacy monitors.json
// array or a YAML targets file.
package targets

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"

	"github.com/MrSnakeDoc/uptimer/internal/domain"
	"github.com/MrSnakeDoc/uptimer/internal/logger"
)

// Loader reads targets from a file. The format is picked by extension:
// .yaml and .yml are YAML, anything else is JSON.
type Loader struct {
	filePath string
	log      logger.Logger
}

// NewLoader creates a loader for filePath.
func NewLoader(filePath string, log logger.Logger) *Loader {
	return &Loader{filePath: filePath, log: log}
}

// Path returns the configured file.
func (l *Loader) Path() string { return l.filePath }

// Load reads and parses the whole file. A missing, unreadable or malformed
// file is an error; an empty list is not.
func (l *Loader) Load(ctx context.Context) ([]domain.Target, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(l.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read targets file: %w", err)
	}

	var (
		targets []domain.Target
		skipped int
	)
	switch strings.ToLower(filepath.Ext(l.filePath)) {
	case ".yaml", ".yml":
		targets, skipped, err = parseYAML(data)
	default:
		targets, skipped, err = parseJSON(data)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse targets file %s: %w", l.filePath, err)
	}

	if skipped > 0 {
		l.log.Warn("skipped target entries without url",
			logger.String("file", l.filePath),
			logger.Int("skipped", skipped))
	}
	return targets, nil
}

// URLs lists every configured URL, active or not.
func (l *Loader) URLs(ctx context.Context) ([]string, error) {
	targets, err := l.Load(ctx)
	if err != nil {
		return nil, err
	}
	urls := make([]string, 0, len(targets))
	for _, t := range targets {
		urls = append(urls, t.URL)
	}
	return urls, nil
}

func parseJSON(data []byte) ([]domain.Target, int, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, 0, nil
	}
	if !gjson.ValidBytes(data) {
		return nil, 0, fmt.Errorf("invalid json")
	}

	root := gjson.ParseBytes(data)
	if root.IsObject() {
		for _, key := range []string{"targets", "monitors"} {
			if v := root.Get(key); v.IsArray() {
				root = v
				break
			}
		}
	}
	if !root.IsArray() {
		return nil, 0, fmt.Errorf("expected a list of targets")
	}

	targets, skipped := MapJSON(root)
	return targets, skipped, nil
}

func parseYAML(data []byte) ([]domain.Target, int, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, 0, err
	}
	if len(node.Content) == 0 {
		return nil, 0, nil
	}

	var entries []Entry
	switch node.Content[0].Kind {
	case yaml.SequenceNode:
		if err := node.Content[0].Decode(&entries); err != nil {
			return nil, 0, err
		}
	case yaml.MappingNode:
		var cfg Config
		if err := node.Content[0].Decode(&cfg); err != nil {
			return nil, 0, err
		}
		entries = cfg.Targets
	default:
		return nil, 0, fmt.Errorf("expected a mapping with a targets list")
	}

	targets, skipped := MapEntries(entries)
	return targets, skipped, nil
}
