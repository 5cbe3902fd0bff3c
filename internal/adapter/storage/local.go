package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/semmidev/arxivsync/internal/domain"
)

var _ domain.ObjectStore = (*LocalStorage)(nil)

const metaSuffix = ".meta.json"

// LocalStorage keeps objects as files under basePath, keyed by their slash path.
// Metadata and content type live in a JSON sidecar next to each object.
type LocalStorage struct {
	basePath string
}

type sidecar struct {
	ContentType string            `json:"content_type"`
	Metadata    map[string]string `json:"metadata"`
}

func NewLocal(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &LocalStorage{basePath: basePath}, nil
}

func (l *LocalStorage) GetPath(key string) string {
	return filepath.Join(l.basePath, filepath.FromSlash(key))
}

func (l *LocalStorage) Exists(ctx context.Context, key string) (bool, error) {
	info, err := os.Stat(l.GetPath(key))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: stat %s: %v", domain.ErrStoreOperation, key, err)
	}
	return !info.IsDir(), nil
}

func (l *LocalStorage) Put(ctx context.Context, obj domain.PutObject) error {
	if strings.HasSuffix(obj.Key, metaSuffix) {
		return fmt.Errorf("%w: key %s uses reserved suffix", domain.ErrStoreOperation, obj.Key)
	}

	destPath := l.GetPath(obj.Key)
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("%w: create dir for %s: %v", domain.ErrStoreOperation, obj.Key, err)
	}

	meta, err := json.Marshal(sidecar{ContentType: obj.ContentType, Metadata: obj.Metadata})
	if err != nil {
		return fmt.Errorf("%w: encode metadata for %s: %v", domain.ErrStoreOperation, obj.Key, err)
	}

	// The object becomes visible only once its body and sidecar are both on disk.
	tmp := destPath + ".tmp"
	if err := os.WriteFile(tmp, obj.Body, 0644); err != nil {
		return fmt.Errorf("%w: write %s: %v", domain.ErrStoreOperation, obj.Key, err)
	}
	if err := os.WriteFile(destPath+metaSuffix, meta, 0644); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: write metadata for %s: %v", domain.ErrStoreOperation, obj.Key, err)
	}
	if err := os.Rename(tmp, destPath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: commit %s: %v", domain.ErrStoreOperation, obj.Key, err)
	}
	return nil
}

// Metadata returns the content type and metadata stored with key.
func (l *LocalStorage) Metadata(key string) (string, map[string]string, error) {
	data, err := os.ReadFile(l.GetPath(key) + metaSuffix)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read metadata: %w", err)
	}
	var sc sidecar
	if err := json.Unmarshal(data, &sc); err != nil {
		return "", nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	return sc.ContentType, sc.Metadata, nil
}

// WalkPages lists objects in byte-wise key order, as S3 does, pageSize at a time.
func (l *LocalStorage) WalkPages(ctx context.Context, prefix string, pageSize int, fn func(page []domain.StoredObject) error) error {
	var objects []domain.StoredObject

	err := filepath.WalkDir(l.basePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasSuffix(path, metaSuffix) || strings.HasSuffix(path, ".tmp") {
			return nil
		}

		rel, err := filepath.Rel(l.basePath, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("failed to get file info for %s: %w", key, err)
		}
		objects = append(objects, domain.StoredObject{
			Key:          key,
			LastModified: info.ModTime(),
			Size:         info.Size(),
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: list %q: %v", domain.ErrStoreOperation, prefix, err)
	}

	if len(objects) == 0 {
		return fn(nil)
	}
	// WalkDir orders per directory, which puts "a/1" before "a-b/x".
	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })

	for start := 0; start < len(objects); start += pageSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+pageSize, len(objects))
		if err := fn(objects[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (l *LocalStorage) DeleteBatch(ctx context.Context, keys []string) ([]string, []domain.KeyError, error) {
	var deleted []string
	var failed []domain.KeyError

	for _, key := range keys {
		path := l.GetPath(key)
		if err := os.Remove(path); err != nil {
			failed = append(failed, domain.KeyError{Key: key, Reason: err.Error()})
			continue
		}
		_ = os.Remove(path + metaSuffix)
		deleted = append(deleted, key)
	}

	return deleted, failed, nil
}
