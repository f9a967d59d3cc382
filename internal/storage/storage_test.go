package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoadClear(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	creds, err := Load(ctx, s)
	require.NoError(t, err)
	assert.Nil(t, creds)

	user := []byte(`{"id":"1","username":"admin"}`)
	require.NoError(t, Save(ctx, s, Credentials{Token: "t1", RefreshToken: "r1", User: user}))

	creds, err = Load(ctx, s)
	require.NoError(t, err)
	require.NotNil(t, creds)
	assert.Equal(t, "t1", creds.Token)
	assert.Equal(t, "r1", creds.RefreshToken)
	assert.JSONEq(t, string(user), string(creds.User))

	require.NoError(t, Clear(ctx, s))
	for _, key := range []string{KeyToken, KeyRefreshToken, KeyUser} {
		_, ok, err := s.Get(ctx, key)
		require.NoError(t, err)
		assert.False(t, ok, key)
	}
}

func TestSave_EmptyRefreshTokenRemovesStale(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Set(ctx, KeyRefreshToken, "stale"))

	require.NoError(t, Save(ctx, s, Credentials{Token: "t1", User: []byte(`{}`)}))

	_, ok, err := s.Get(ctx, KeyRefreshToken)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLoad_PartialCredentials(t *testing.T) {
	ctx := context.Background()

	t.Run("token without user", func(t *testing.T) {
		s := NewMemoryStore()
		require.NoError(t, s.Set(ctx, KeyToken, "t1"))
		creds, err := Load(ctx, s)
		require.NoError(t, err)
		assert.Nil(t, creds)
	})

	t.Run("user without token", func(t *testing.T) {
		s := NewMemoryStore()
		require.NoError(t, s.Set(ctx, KeyUser, `{"id":"1"}`))
		creds, err := Load(ctx, s)
		require.NoError(t, err)
		assert.Nil(t, creds)
	})
}

func TestOpen(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		want    any
		wantErr bool
	}{
		{"memory", Config{Backend: BackendMemory}, &MemoryStore{}, false},
		{"file default", Config{File: FileConfig{Path: t.TempDir() + "/c.json"}}, &FileStore{}, false},
		{"redis", Config{Backend: BackendRedis, Redis: RedisConfig{Addr: "localhost:6379"}}, &RedisStore{}, false},
		{"redis without address", Config{Backend: BackendRedis}, nil, true},
		{"vault without address", Config{Backend: BackendVault}, nil, true},
		{"unknown", Config{Backend: "etcd"}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Open(tt.cfg)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, s)
		})
	}
}
