package privilege

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFetcher struct {
	mu    sync.Mutex
	sets  map[string]Set
	errs  map[string]error
	calls int
}

func (f *stubFetcher) RolePrivileges(_ context.Context, _ string, roleCode string) (Set, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err, ok := f.errs[roleCode]; ok {
		return nil, err
	}
	return f.sets[roleCode], nil
}

func (f *stubFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSetForSuperAdminEmailBypassesUpstream(t *testing.T) {
	fetcher := &stubFetcher{}
	svc := NewService(ServiceConfig{
		Logger:           discardLogger(),
		Fetcher:          fetcher,
		SuperAdminEmails: []string{"Head@School.edu"},
	})

	set, err := svc.SetFor(context.Background(), "tok", "head@school.edu", []string{"store keeper"})
	require.NoError(t, err)
	assert.True(t, set.HasWildcard())
	assert.Equal(t, 0, fetcher.callCount())
}

func TestSetForSuperAdminRoleBypassesUpstream(t *testing.T) {
	fetcher := &stubFetcher{}
	svc := NewService(ServiceConfig{Logger: discardLogger(), Fetcher: fetcher})

	set, err := svc.SetFor(context.Background(), "tok", "someone@school.edu", []string{"store keeper", "admin"})
	require.NoError(t, err)
	assert.True(t, set.HasWildcard())
	assert.Equal(t, 0, fetcher.callCount())
}

func TestSetForNoRolesYieldsEmptySet(t *testing.T) {
	fetcher := &stubFetcher{}
	svc := NewService(ServiceConfig{Logger: discardLogger(), Fetcher: fetcher})

	set, err := svc.SetFor(context.Background(), "tok", "someone@school.edu", nil)
	require.NoError(t, err)
	assert.Empty(t, set)
	assert.Equal(t, 0, fetcher.callCount())
}

func TestSetForMergesRolesAndCaches(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	fetcher := &stubFetcher{sets: map[string]Set{
		"STORE_KEEPER": {"items": {{Description: "Create a new Item", Status: StatusActive}}},
		"CLASS_TEACHER": {
			"items":    {{Description: "Create a new Item", Status: StatusInactive}},
			"students": {{Description: "View all Students", Status: StatusActive}},
		},
	}}
	svc := NewService(ServiceConfig{
		Logger:   discardLogger(),
		Fetcher:  fetcher,
		Cache:    client,
		CacheTTL: time.Minute,
	})

	roles := []string{"store keeper", "class teacher", "store-keeper"}
	set, err := svc.SetFor(context.Background(), "tok", "someone@school.edu", roles)
	require.NoError(t, err)

	// Duplicate role names collapse to one fetch per code.
	assert.Equal(t, 2, fetcher.callCount())
	require.Len(t, set["items"], 1)
	assert.Equal(t, StatusActive, set["items"][0].Status)
	assert.Len(t, set["students"], 1)

	again, err := svc.SetFor(context.Background(), "tok", "someone@school.edu", roles)
	require.NoError(t, err)
	assert.Equal(t, set, again)
	assert.Equal(t, 2, fetcher.callCount(), "second call should be served from cache")
}

func TestSetForSwallowsPerRoleFailures(t *testing.T) {
	fetcher := &stubFetcher{
		sets: map[string]Set{"STORE_KEEPER": {"items": {{Description: "View all Items", Status: StatusActive}}}},
		errs: map[string]error{"CLASS_TEACHER": errors.New("upstream asleep")},
	}
	svc := NewService(ServiceConfig{Logger: discardLogger(), Fetcher: fetcher})

	set, err := svc.SetFor(context.Background(), "tok", "someone@school.edu", []string{"store keeper", "class teacher"})
	require.NoError(t, err)
	assert.Len(t, set["items"], 1)
}

func TestCanPermissiveFallback(t *testing.T) {
	set := Set{"items": {{Description: "View all Items", Status: StatusActive}}}

	strict := NewService(ServiceConfig{Logger: discardLogger()})
	assert.False(t, strict.Can(set, "Brands", "create"))

	permissive := NewService(ServiceConfig{Logger: discardLogger(), Permissive: true})
	// No data for the module at all: fail open.
	assert.True(t, permissive.Can(set, "Brands", "create"))
	// Data exists but does not grant the action: still denied.
	assert.False(t, permissive.Can(set, "Items", "create"))
	assert.True(t, permissive.Can(set, "Items", "read"))
}
