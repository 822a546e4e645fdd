package version

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/xalq/internal/httpclient"
)

func TestInfo(t *testing.T) {
	info := Get()
	assert.NotEmpty(t, info.GoVersion)
	assert.Contains(t, info.Platform, "/")
	assert.True(t, strings.HasPrefix(info.String(), "xalq "))

	assert.Equal(t, "abcdef1", Info{CommitHash: "abcdef1234"}.Short())
	assert.Equal(t, "dev", Info{CommitHash: "dev"}.Short())
	assert.Equal(t, "xalq/1.4.0 (abcdef1)", Info{Version: "1.4.0", CommitHash: "abcdef1234"}.UserAgent())
}

func TestCompare(t *testing.T) {
	tests := []struct {
		name     string
		local    string
		remote   string
		critical bool
		update   bool
		want     bool
	}{
		{"newer patch", "1.2.3", "1.2.4", false, true, false},
		{"newer critical", "1.2.3", "2.0.0", true, true, true},
		{"same", "1.2.3", "1.2.3", true, false, false},
		{"older remote", "1.3.0", "1.2.9", true, false, false},
		{"v prefix", "v1.0.0", "1.0.1", false, true, false},
		{"numeric not lexical", "1.9.0", "1.10.0", false, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Compare(Manifest{Version: tt.local}, Manifest{Version: tt.remote, CriticalUpdate: tt.critical})
			require.NoError(t, err)
			assert.Equal(t, tt.update, res.UpdateAvailable)
			assert.Equal(t, tt.want, res.Critical)
		})
	}
}

func TestCompare_Invalid(t *testing.T) {
	_, err := Compare(Manifest{Version: "1.0.0"}, Manifest{Version: "latest"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid published version")
}

func TestLocalManifest(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "version.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version":"1.4.0","critical_update":true}`), 0o644))
	m, err := LocalManifest(path)
	require.NoError(t, err)
	assert.Equal(t, "1.4.0", m.Version)
	assert.True(t, m.CriticalUpdate)

	m, err = LocalManifest(filepath.Join(dir, "missing.json"))
	require.NoError(t, err)
	assert.Equal(t, "0.0.0", m.Version, "dev builds fall back to 0.0.0")

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{`), 0o644))
	_, err = LocalManifest(bad)
	assert.Error(t, err)
}

func TestChecker_Check(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasPrefix(r.UserAgent(), "xalq/"))
		if r.URL.Path != "/version.json" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"version":"1.5.0","critical_update":true,"notes":"prompt fixes"}`))
	}))
	defer srv.Close()

	local := filepath.Join(t.TempDir(), "version.json")
	require.NoError(t, os.WriteFile(local, []byte(`{"version":"1.4.0"}`), 0o644))

	ch := NewChecker(srv.URL+"/version.json", WithHTTPClient(httpclient.WrapClient(srv.Client())))
	res, err := ch.Check(context.Background(), local)
	require.NoError(t, err)
	assert.Equal(t, "1.4.0", res.Local)
	assert.Equal(t, "1.5.0", res.Remote)
	assert.True(t, res.UpdateAvailable)
	assert.True(t, res.Critical)
	assert.Equal(t, "prompt fixes", res.Notes)

	_, err = NewChecker(srv.URL+"/nope", WithHTTPClient(httpclient.WrapClient(srv.Client()))).Check(context.Background(), local)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 404")
}

func TestChecker_BlocksLoopbackByDefault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"version":"9.9.9"}`))
	}))
	defer srv.Close()

	_, err := NewChecker(srv.URL).Remote(context.Background())
	assert.Error(t, err)
}
