package versioncheck

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entireio/relay/cmd/relay/cli/paths"
)

func releaseServer(t *testing.T, body string, status int) *atomic.Int32 {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	old := releaseURL
	releaseURL = srv.URL
	t.Cleanup(func() { releaseURL = old })
	t.Setenv(paths.HomeEnvVar, t.TempDir())
	return &hits
}

func TestIsOutdated(t *testing.T) {
	t.Parallel()
	tests := []struct {
		current, latest string
		want            bool
	}{
		{"1.0.0", "v1.1.0", true},
		{"v1.2.0", "v1.1.0", false},
		{"v1.1.0", "1.1.0", false},
		{"v1.1.0-rc.1", "v1.1.0", true},
		{"not-a-version", "v1.0.0", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsOutdated(tt.current, tt.latest), "%s vs %s", tt.current, tt.latest)
	}
}

func TestParseRelease(t *testing.T) {
	t.Parallel()

	v, err := parseRelease([]byte(`{"tag_name":"v0.3.1","prerelease":false}`))
	require.NoError(t, err)
	assert.Equal(t, "v0.3.1", v)

	_, err = parseRelease([]byte(`{"tag_name":"v0.4.0-beta","prerelease":true}`))
	require.Error(t, err)

	_, err = parseRelease([]byte(`{"tag_name":""}`))
	require.Error(t, err)

	_, err = parseRelease([]byte(`{`))
	require.Error(t, err)
}

func TestLatest_CachesForADay(t *testing.T) {
	hits := releaseServer(t, `{"tag_name":"v0.5.0"}`, http.StatusOK)
	now := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)

	v, err := Latest(t.Context(), now)
	require.NoError(t, err)
	assert.Equal(t, "v0.5.0", v)

	v, err = Latest(t.Context(), now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "v0.5.0", v)
	assert.Equal(t, int32(1), hits.Load())

	_, err = Latest(t.Context(), now.Add(25*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
}

func TestLatest_FailureIsCached(t *testing.T) {
	hits := releaseServer(t, `oops`, http.StatusInternalServerError)
	now := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)

	_, err := Latest(t.Context(), now)
	require.Error(t, err)
	_, err = Latest(t.Context(), now.Add(time.Minute))
	require.Error(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestCheckAndNotify(t *testing.T) {
	releaseServer(t, `{"tag_name":"v9.0.0"}`, http.StatusOK)

	var errOut bytes.Buffer
	cmd := &cobra.Command{Use: "stats"}
	cmd.SetErr(&errOut)
	cmd.SetContext(t.Context())

	CheckAndNotify(cmd, "dev")
	assert.Empty(t, errOut.String())

	CheckAndNotify(cmd, "v1.0.0")
	assert.Contains(t, errOut.String(), "A newer version of relay is available: v9.0.0")

	errOut.Reset()
	cmd.Hidden = true
	CheckAndNotify(cmd, "v1.0.0")
	assert.Empty(t, errOut.String())
}
