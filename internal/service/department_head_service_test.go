package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/thesis-workflow-api/pkg/errors"
)

type memoryCache struct {
	mu    sync.Mutex
	items map[string][]byte
}

func (m *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.items[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.items == nil {
		m.items = make(map[string][]byte)
	}
	m.items[key] = raw
	return nil
}

func (m *memoryCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

type stubDirectory struct {
	heads map[string][]string
	err   error
	calls int
}

func (s *stubDirectory) IsDepartmentHead(ctx context.Context, email string) (bool, error) {
	s.calls++
	if s.err != nil {
		return false, s.err
	}
	return len(s.heads[email]) > 0, nil
}

func (s *stubDirectory) HeadsDepartment(ctx context.Context, email, department string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	for _, code := range s.heads[email] {
		if code == department {
			return true, nil
		}
	}
	return false, nil
}

func (s *stubDirectory) DepartmentsHeadedBy(ctx context.Context, email string) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.heads[email], nil
}

func TestDepartmentHeadServiceCachesAnswers(t *testing.T) {
	directory := &stubDirectory{heads: map[string][]string{"b@teach.example.lt": {"ELE"}}}
	cache := NewCacheService(&memoryCache{}, NewMetricsService(), time.Minute, nil, true)
	svc := NewDepartmentHeadService(directory, cache, time.Minute, nil)

	isHead, err := svc.IsDepartmentHead(context.Background(), "B@teach.example.lt")
	require.NoError(t, err)
	assert.True(t, isHead)

	isHead, err = svc.IsDepartmentHead(context.Background(), "b@teach.example.lt")
	require.NoError(t, err)
	assert.True(t, isHead)
	assert.Equal(t, 1, directory.calls)

	// A stale cached "no" is corrected by the live lookup.
	require.NoError(t, cache.Set(context.Background(), departmentHeadCachePrefix+"c@teach.example.lt", false, time.Minute))
	directory.heads["c@teach.example.lt"] = []string{"INF"}

	isHead, err = svc.IsDepartmentHead(context.Background(), "c@teach.example.lt")
	require.NoError(t, err)
	assert.False(t, isHead)

	isHead, err = svc.IsDepartmentHeadLive(context.Background(), "c@teach.example.lt")
	require.NoError(t, err)
	assert.True(t, isHead)

	isHead, err = svc.IsDepartmentHead(context.Background(), "c@teach.example.lt")
	require.NoError(t, err)
	assert.True(t, isHead)
}

func TestDepartmentHeadServiceWithoutCache(t *testing.T) {
	directory := &stubDirectory{heads: map[string][]string{"b@teach.example.lt": {"ELE", "AUT"}}}
	svc := NewDepartmentHeadService(directory, nil, 0, nil)

	for i := 0; i < 2; i++ {
		isHead, err := svc.IsDepartmentHead(context.Background(), "b@teach.example.lt")
		require.NoError(t, err)
		assert.True(t, isHead)
	}
	assert.Equal(t, 2, directory.calls)

	ok, err := svc.HeadsDepartment(context.Background(), "b@teach.example.lt", "AUT")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.HeadsDepartment(context.Background(), "b@teach.example.lt", "INF")
	require.NoError(t, err)
	assert.False(t, ok)

	codes, err := svc.DepartmentsHeadedBy(context.Background(), "b@teach.example.lt")
	require.NoError(t, err)
	assert.Equal(t, []string{"ELE", "AUT"}, codes)

	isHead, err := svc.IsDepartmentHead(context.Background(), "")
	require.NoError(t, err)
	assert.False(t, isHead)
}

func TestDepartmentHeadServiceDirectoryFailure(t *testing.T) {
	svc := NewDepartmentHeadService(&stubDirectory{err: errors.New("db down")}, nil, 0, nil)

	_, err := svc.IsDepartmentHeadLive(context.Background(), "b@teach.example.lt")
	assert.True(t, appErrors.Is(err, appErrors.ErrUpstreamUnavailable))

	_, err = svc.HeadsDepartment(context.Background(), "b@teach.example.lt", "ELE")
	assert.True(t, appErrors.Is(err, appErrors.ErrUpstreamUnavailable))

	_, err = svc.DepartmentsHeadedBy(context.Background(), "b@teach.example.lt")
	assert.True(t, appErrors.Is(err, appErrors.ErrUpstreamUnavailable))
}
