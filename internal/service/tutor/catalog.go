package tutor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/nukhba-ai/tutor/backend/internal/model/chat"
)

// promptFile is the YAML layout of a prompt override file:
//
//	prompts:
//	  english: |
//	    You are ...
type promptFile struct {
	Prompts map[string]string `yaml:"prompts"`
}

// PromptCatalog serves the system instruction per language. Overrides loaded
// from a YAML file take precedence over the built-in prompts.
type PromptCatalog struct {
	logger *zap.Logger

	mu        sync.RWMutex
	overrides map[chat.Language]string
}

// NewPromptCatalog returns a catalog with only the built-in prompts.
func NewPromptCatalog(logger *zap.Logger) *PromptCatalog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PromptCatalog{logger: logger, overrides: map[chat.Language]string{}}
}

// SystemPrompt returns the instruction for lang.
func (c *PromptCatalog) SystemPrompt(lang chat.Language) string {
	if c != nil {
		c.mu.RLock()
		p, ok := c.overrides[lang]
		c.mu.RUnlock()
		if ok {
			return p
		}
	}
	return DefaultPrompt(lang)
}

// Load replaces the overrides with the contents of path. On error the
// previous overrides stay in place.
func (c *PromptCatalog) Load(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read prompt file: %w", err)
	}

	var file promptFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("parse prompt file: %w", err)
	}
	if len(file.Prompts) == 0 {
		return errors.New("prompt file has no prompts")
	}

	overrides := make(map[chat.Language]string, len(file.Prompts))
	for name, text := range file.Prompts {
		lang, err := chat.ParseLanguage(name)
		if err != nil {
			return fmt.Errorf("prompt file: %w", err)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return fmt.Errorf("prompt file: empty prompt for %s", lang)
		}
		overrides[lang] = text
	}

	c.mu.Lock()
	c.overrides = overrides
	c.mu.Unlock()
	return nil
}

// Watch loads path and reloads it whenever it changes until ctx is done. The
// parent directory is watched so editors that replace the file are seen.
func (c *PromptCatalog) Watch(ctx context.Context, path string) error {
	path = filepath.Clean(path)
	if err := c.Load(path); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	go c.watchLoop(ctx, watcher, path)
	return nil
}

func (c *PromptCatalog) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, path string) {
	defer watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if err := c.Load(path); err != nil {
				c.logger.Warn("prompt reload failed, keeping previous prompts", zap.String("path", path), zap.Error(err))
				continue
			}
			c.logger.Info("prompts reloaded", zap.String("path", path))

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			c.logger.Error("prompt watcher error", zap.Error(err))
		}
	}
}
