package version

import (
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInfo(t *testing.T) {
	dev := Info{CommitHash: "abc1234def", BuildTime: "2026-01-02", Version: "dev"}
	assert.Equal(t, "reportcopilot dev (commit abc1234def, built 2026-01-02)", dev.String())
	assert.Equal(t, "abc1234", dev.Short())

	tagged := Info{CommitHash: "abc", BuildTime: "unknown", Version: "v0.3.0"}
	assert.Equal(t, "reportcopilot v0.3.0 (commit abc, built unknown)", tagged.String())
	assert.Equal(t, "abc", tagged.Short())

	dirty := Info{CommitHash: "abc1234", BuildTime: "unknown", Version: "dev", Modified: true}
	assert.Equal(t, "reportcopilot dev (commit abc1234+dirty, built unknown)", dirty.String())

	assert.NotEmpty(t, Get().GoVersion)
}

func TestWithBuildSettings(t *testing.T) {
	settings := []debug.BuildSetting{
		{Key: "vcs.revision", Value: "0123456789abcdef"},
		{Key: "vcs.time", Value: "2026-10-01T12:00:00Z"},
		{Key: "vcs.modified", Value: "true"},
	}

	t.Run("fills unstamped fields", func(t *testing.T) {
		got := Info{CommitHash: "dev", BuildTime: "unknown", Version: "dev"}.withBuildSettings("v0.4.1", settings)
		assert.Equal(t, "0123456", got.Short())
		assert.Equal(t, "2026-10-01T12:00:00Z", got.BuildTime)
		assert.Equal(t, "v0.4.1", got.Version)
		assert.True(t, got.Modified)
	})

	t.Run("ldflags win", func(t *testing.T) {
		got := Info{CommitHash: "feedbee", BuildTime: "2026-09-30", Version: "v1.0.0"}.withBuildSettings("v0.4.1", settings)
		assert.Equal(t, "feedbee", got.CommitHash)
		assert.Equal(t, "2026-09-30", got.BuildTime)
		assert.Equal(t, "v1.0.0", got.Version)
	})

	t.Run("devel module version ignored", func(t *testing.T) {
		got := Info{CommitHash: "dev", BuildTime: "unknown", Version: "dev"}.withBuildSettings("(devel)", nil)
		assert.Equal(t, "dev", got.Version)
		assert.Equal(t, "dev", got.CommitHash)
	})
}
