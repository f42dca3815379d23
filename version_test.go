package swarmkit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetVersion_FillsPlatformAndGoVersion(t *testing.T) {
	info := GetVersion()
	assert.NotEmpty(t, info.GoVersion)
	assert.NotEmpty(t, info.Platform)
	assert.NotEmpty(t, info.Version)
}

func TestInfo_StringIncludesVersion(t *testing.T) {
	info := Info{Version: "1.2.3", GoVersion: "go1.24", Platform: "linux/amd64"}
	assert.Contains(t, info.String(), "1.2.3")
}
