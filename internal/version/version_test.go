package version

import (
	"runtime"
	"runtime/debug"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyBuildInfo(t *testing.T) {
	oldVersion, oldCommit, oldDate := Version, Commit, Date
	t.Cleanup(func() { Version, Commit, Date = oldVersion, oldCommit, oldDate })

	applyBuildInfo(&debug.BuildInfo{
		Main: debug.Module{Version: "v0.4.1"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "0123456789abcdef"},
			{Key: "vcs.time", Value: "2026-03-01T10:00:00Z"},
		},
	})

	assert.Equal(t, "v0.4.1", Short())
	assert.Equal(t, "0123456", Commit)
	assert.Equal(t, "2026-03-01T10:00:00Z", Date)
	assert.True(t, strings.HasPrefix(Info(), "dbupdate v0.4.1 (commit: 0123456, built: 2026-03-01T10:00:00Z)"))
	assert.True(t, strings.HasSuffix(Info(), runtime.Version()))
}

func TestApplyBuildInfo_DevelKeepsVersion(t *testing.T) {
	oldVersion, oldCommit, oldDate := Version, Commit, Date
	t.Cleanup(func() { Version, Commit, Date = oldVersion, oldCommit, oldDate })

	Version = "dev"
	applyBuildInfo(&debug.BuildInfo{
		Main:     debug.Module{Version: "(devel)"},
		Settings: []debug.BuildSetting{{Key: "vcs.revision", Value: "abc"}},
	})

	assert.Equal(t, "dev", Version)
	assert.Equal(t, "abc", Commit)
}
