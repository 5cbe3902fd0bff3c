package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/semmidev/arxivsync/internal/domain"
)

type recordingLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *recordingLogger) add(level, template string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, level+" "+fmt.Sprintf(template, args...))
}

func (l *recordingLogger) Debugf(t string, a ...interface{}) { l.add("DEBUG", t, a...) }
func (l *recordingLogger) Infof(t string, a ...interface{})  { l.add("INFO", t, a...) }
func (l *recordingLogger) Warnf(t string, a ...interface{})  { l.add("WARN", t, a...) }
func (l *recordingLogger) Errorf(t string, a ...interface{}) { l.add("ERROR", t, a...) }

func (l *recordingLogger) contains(level, substr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, line := range l.lines {
		if strings.HasPrefix(line, level+" ") && strings.Contains(line, substr) {
			return true
		}
	}
	return false
}

type memObject struct {
	domain.PutObject
	modified time.Time
}

// memStore is an in-memory ObjectStore that counts every call.
type memStore struct {
	mu         sync.Mutex
	objects    map[string]memObject
	existsErr  error
	putErr     map[string]error
	listErr    error
	deleteErr  error
	deleteFail map[string]string

	existsCalls int
	puts        []string
	listPages   int
	deleteCalls [][]string
}

func newMemStore() *memStore {
	return &memStore{objects: map[string]memObject{}}
}

func (m *memStore) seed(key string, modified time.Time) {
	m.objects[key] = memObject{PutObject: domain.PutObject{Key: key}, modified: modified}
}

func (m *memStore) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.existsCalls++
	if m.existsErr != nil {
		return false, m.existsErr
	}
	_, ok := m.objects[key]
	return ok, nil
}

func (m *memStore) Put(ctx context.Context, obj domain.PutObject) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.putErr[obj.Key]; err != nil {
		return err
	}
	m.puts = append(m.puts, obj.Key)
	m.objects[obj.Key] = memObject{PutObject: obj, modified: time.Now()}
	return nil
}

func (m *memStore) WalkPages(ctx context.Context, prefix string, pageSize int, fn func(page []domain.StoredObject) error) error {
	m.mu.Lock()
	var keys []string
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	listing := make([]domain.StoredObject, 0, len(keys))
	for _, k := range keys {
		listing = append(listing, domain.StoredObject{Key: k, LastModified: m.objects[k].modified})
	}
	m.mu.Unlock()

	for start := 0; ; start += pageSize {
		m.listPages++
		if m.listErr != nil && m.listPages > 1 {
			return m.listErr
		}
		end := min(start+pageSize, len(listing))
		if err := fn(listing[start:end]); err != nil {
			return err
		}
		if end >= len(listing) {
			return nil
		}
	}
}

func (m *memStore) DeleteBatch(ctx context.Context, keys []string) ([]string, []domain.KeyError, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteCalls = append(m.deleteCalls, append([]string(nil), keys...))
	if m.deleteErr != nil {
		return nil, nil, m.deleteErr
	}

	var deleted []string
	var failed []domain.KeyError
	for _, k := range keys {
		if reason, ok := m.deleteFail[k]; ok {
			failed = append(failed, domain.KeyError{Key: k, Reason: reason})
			continue
		}
		delete(m.objects, k)
		deleted = append(deleted, k)
	}
	return deleted, failed, nil
}

func (m *memStore) keys() []string {
	var keys []string
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type fakeFetcher struct {
	mu       sync.Mutex
	payloads map[string][]byte
	errs     map[string]error
	calls    []string
}

func (f *fakeFetcher) Download(ctx context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, url)
	if err := f.errs[url]; err != nil {
		return nil, err
	}
	if data, ok := f.payloads[url]; ok {
		return data, nil
	}
	return []byte("%PDF-" + url), nil
}

type fakeSource struct {
	records []domain.FeedRecord
	err     error
	queries []domain.FeedQuery
}

func (f *fakeSource) Fetch(ctx context.Context, query domain.FeedQuery) ([]domain.FeedRecord, error) {
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	return f.records, nil
}

var errBoom = errors.New("boom")
