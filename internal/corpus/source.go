package corpus

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/xxxsen/kbchat/internal/config"
	"github.com/xxxsen/kbchat/internal/model"
)

// ExcludePrefix marks files that are kept in the corpus tree but never indexed.
const ExcludePrefix = "_"

type Source interface {
	Load(ctx context.Context) ([]model.Document, error)
}

type Factory func(args interface{}) (Source, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

func Register(name string, factory Factory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registryMu.Lock()
	registry[key] = factory
	registryMu.Unlock()
}

func New(cfg config.CorpusConfig, aws config.AWSConfig) (Source, error) {
	key := strings.ToLower(strings.TrimSpace(cfg.Type))
	if key == "" {
		return nil, fmt.Errorf("corpus.type is required")
	}
	registryMu.RLock()
	factory := registry[key]
	registryMu.RUnlock()
	if factory == nil {
		return nil, fmt.Errorf("unsupported corpus type: %s", cfg.Type)
	}
	return factory(map[string]interface{}{
		"dir":               cfg.Dir,
		"bucket":            cfg.Bucket,
		"prefix":            cfg.Prefix,
		"region":            aws.Region,
		"access_key_id":     aws.AccessKeyID,
		"secret_access_key": aws.SecretAccessKey,
		"session_token":     aws.SessionToken,
	})
}

func isMarkdown(name string) bool {
	base := path.Base(name)
	return strings.HasSuffix(strings.ToLower(base), ".md") && !strings.HasPrefix(base, ExcludePrefix)
}

func sortDocuments(docs []model.Document) {
	sort.Slice(docs, func(i, j int) bool {
		return docs[i].Path < docs[j].Path
	})
}

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return fmt.Errorf("corpus config is required")
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode corpus config: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode corpus config: %w", err)
	}
	return nil
}
