package checkpoint

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew_DefaultsToMemory(t *testing.T) {
	store, err := New(Config{}, zap.NewNop())
	require.NoError(t, err)
	defer store.Close()

	assert.IsType(t, &MemoryStore{}, store)
}

func TestNew_File(t *testing.T) {
	dir := t.TempDir()
	store, err := New(Config{Type: StoreTypeFile, Dir: dir}, zap.NewNop())
	require.NoError(t, err)
	defer store.Close()

	require.IsType(t, &FileStore{}, store)

	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "p", "s", testState{SessionID: "s"}))

	var loaded testState
	require.NoError(t, store.Load(ctx, "p", "s", &loaded))
	assert.Equal(t, "s", loaded.SessionID)
}

func TestNew_FileDefaultDir(t *testing.T) {
	t.Chdir(t.TempDir())

	store, err := New(Config{Type: StoreTypeFile}, zap.NewNop())
	require.NoError(t, err)
	defer store.Close()

	info, err := os.Stat("checkpoints")
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestNew_Redis(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	store, err := New(Config{Type: StoreTypeRedis, Redis: RedisConfig{Addr: mr.Addr()}}, zap.NewNop())
	require.NoError(t, err)
	defer store.Close()

	assert.IsType(t, &RedisStore{}, store)
}

func TestNew_DatabaseSqlite(t *testing.T) {
	cfg := Config{
		Type: StoreTypeDatabase,
		Database: DatabaseConfig{
			Driver: "sqlite",
			Name:   filepath.Join(t.TempDir(), "ckpt.db"),
		},
	}

	store, err := New(cfg, zap.NewNop())
	require.NoError(t, err)
	defer store.Close()

	require.IsType(t, &GormStore{}, store)

	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "p", "s", testState{SessionID: "s", Phase: "done"}))

	var loaded testState
	require.NoError(t, store.Load(ctx, "p", "s", &loaded))
	assert.Equal(t, "done", loaded.Phase)
}

func TestNew_UnsupportedType(t *testing.T) {
	_, err := New(Config{Type: "etcd"}, zap.NewNop())
	assert.Error(t, err)
}

func TestOpenDatabase_UnsupportedDriver(t *testing.T) {
	_, err := OpenDatabase(DatabaseConfig{Driver: "oracle"}, zap.NewNop())
	assert.Error(t, err)
}

func TestOpenDatabase_SqliteRequiresPath(t *testing.T) {
	_, err := OpenDatabase(DatabaseConfig{Driver: "sqlite"}, zap.NewNop())
	assert.Error(t, err)
}

func TestDatabaseConfig_DSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  DatabaseConfig
		want string
	}{
		{
			name: "postgres",
			cfg: DatabaseConfig{
				Driver: "postgres", Host: "db.local", Port: 5432,
				User: "sigflow", Password: "secret", Name: "sigflow", SSLMode: "disable",
			},
			want: "host=db.local port=5432 user=sigflow password=secret dbname=sigflow sslmode=disable",
		},
		{
			name: "sqlite",
			cfg:  DatabaseConfig{Driver: "sqlite", Name: "/tmp/ckpt.db"},
			want: "/tmp/ckpt.db",
		},
		{
			name: "unknown",
			cfg:  DatabaseConfig{Driver: "oracle"},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.DSN())
		})
	}
}
