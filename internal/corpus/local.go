package corpus

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/kbchat/internal/model"
)

type localConfig struct {
	Dir string `json:"dir"`
}

type localSource struct {
	dir string
}

func init() {
	Register("local", createLocalSource)
}

func createLocalSource(args interface{}) (Source, error) {
	cfg := &localConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	if cfg.Dir == "" {
		return nil, fmt.Errorf("local corpus dir is required")
	}
	return &localSource{dir: cfg.Dir}, nil
}

func NewLocalSource(dir string) Source {
	return &localSource{dir: dir}
}

func (s *localSource) Load(ctx context.Context) ([]model.Document, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("dir", s.dir))
	info, err := os.Stat(s.dir)
	if err != nil {
		return nil, fmt.Errorf("content directory not found: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("content path is not a directory: %s", s.dir)
	}
	logger.Info("loading markdown files")

	var docs []model.Document
	err = filepath.WalkDir(s.dir, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			logger.Warn("walk failed", zap.String("path", p), zap.Error(walkErr))
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !isMarkdown(d.Name()) {
			return nil
		}
		rel, err := filepath.Rel(s.dir, p)
		if err != nil {
			rel = p
		}
		rel = filepath.ToSlash(rel)
		data, err := os.ReadFile(p)
		if err != nil {
			logger.Warn("read document failed, skipped", zap.String("path", rel), zap.Error(err))
			return nil
		}
		content := string(data)
		if strings.TrimSpace(content) == "" {
			return nil
		}
		docs = append(docs, model.Document{Path: rel, Content: content})
		logger.Debug("document loaded", zap.String("path", rel), zap.Int("bytes", len(data)))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk content directory: %w", err)
	}
	sortDocuments(docs)
	logger.Info("documents loaded", zap.Int("count", len(docs)))
	return docs, nil
}
