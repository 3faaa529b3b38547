package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("HOME", "/home/tester")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "/home/tester/Music", cfg.LibraryDir)
	assert.Equal(t, "/home/tester/.local/share/medialib/library.db", cfg.DatabasePath)
	assert.Equal(t, BackendSQLite, cfg.Backend)
	assert.Equal(t, AuthorizerPolkit, cfg.Authorizer)
	assert.Equal(t, "org.genricoloni.MediaLib", cfg.BusName)
	assert.Equal(t, "/org/genricoloni/MediaLib", cfg.ObjectPath)
	assert.Empty(t, cfg.HTTPAddr)
	assert.False(t, cfg.RequireAuthorization)
	assert.True(t, cfg.RecordHistory)

	lvl, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, zapcore.InfoLevel, lvl)
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "medialib.yaml")
	yaml := `
library_dir: $MUSIC_ROOT/albums
database_path: /var/lib/medialib/index
backend: bleve
http_addr: 127.0.0.1:8089
authorizer: grant
require_authorization: true
history_players: [vlc, mpv]
log_level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	t.Setenv("MUSIC_ROOT", "/srv/music")
	t.Setenv("MEDIALIB_AUTHORIZER", "deny")
	t.Setenv("MEDIALIB_SCAN_ON_START", "true")
	t.Setenv("MEDIALIB_RECORD_HISTORY", "false")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/music/albums", cfg.LibraryDir)
	assert.Equal(t, "/var/lib/medialib/index", cfg.DatabasePath)
	assert.Equal(t, BackendFulltext, cfg.Backend)
	assert.Equal(t, "127.0.0.1:8089", cfg.HTTPAddr)
	assert.Equal(t, AuthorizerDeny, cfg.Authorizer, "environment overrides the file")
	assert.True(t, cfg.RequireAuthorization)
	assert.True(t, cfg.ScanOnStart)
	assert.False(t, cfg.RecordHistory)
	assert.Equal(t, []string{"vlc", "mpv"}, cfg.HistoryPlayers)

	lvl, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, zapcore.DebugLevel, lvl)
}

func TestLoad_HistoryPlayersFromEnv(t *testing.T) {
	t.Setenv("MEDIALIB_HISTORY_PLAYERS", " vlc, ,org.mpris.MediaPlayer2.mpv ")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, []string{"vlc", "org.mpris.MediaPlayer2.mpv"}, cfg.HistoryPlayers)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		file string
	}{
		{name: "Unknown Backend", env: map[string]string{"MEDIALIB_BACKEND": "postgres"}},
		{name: "Unknown Authorizer", env: map[string]string{"MEDIALIB_AUTHORIZER": "maybe"}},
		{name: "Bad Bool", env: map[string]string{"MEDIALIB_SCAN_ON_START": "sometimes"}},
		{name: "Bad Log Level", env: map[string]string{"MEDIALIB_LOG_LEVEL": "chatty"}},
		{name: "Missing Database Path", env: map[string]string{"MEDIALIB_DATABASE_PATH": ""}},
		{name: "Invalid YAML", file: "backend: [sqlite"},
		{name: "Missing File", file: "-"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			path := ""
			switch tt.file {
			case "":
			case "-":
				path = filepath.Join(t.TempDir(), "missing.yaml")
			default:
				path = filepath.Join(t.TempDir(), "bad.yaml")
				require.NoError(t, os.WriteFile(path, []byte(tt.file), 0644))
			}

			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoad_MemoryBackendNeedsNoDatabase(t *testing.T) {
	t.Setenv("MEDIALIB_BACKEND", "memory")
	t.Setenv("MEDIALIB_DATABASE_PATH", "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, cfg.Backend)
}

func TestNewAppConfig_ReadsConfigFileFromEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "medialib.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backend: memory\n"), 0644))
	t.Setenv("MEDIALIB_CONFIG", path)

	cfg, err := NewAppConfig()
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, cfg.Backend)

	cfg.Log(zap.NewNop())
}
