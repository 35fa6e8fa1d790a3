package remote

import (
	"testing"
	"time"

	"github.com/chesszero/chesszero/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "skipped", OutcomeSkipped.String())
	assert.Equal(t, "ok", OutcomeOK.String())
	assert.Equal(t, "remote_unavailable", OutcomeUnavailable.String())
	assert.Equal(t, "invalid_outcome", Outcome(17).String())
}

func TestNewFTPMirror(t *testing.T) {
	mirror := NewFTPMirror(config.ResourceConfig{
		FTPServer:     "models.example.com:2121",
		FTPUser:       "trainer",
		FTPPassword:   "secret",
		FTPRemotePath: "chess/best",
	})
	assert.Equal(t, "models.example.com:2121", mirror.Server)
	assert.Equal(t, "trainer", mirror.User)
	assert.Equal(t, "secret", mirror.Password)
	assert.Equal(t, "chess/best", mirror.RemotePath)
}

// Fetch and Push against an unreachable server must return an error quickly
// instead of hanging or panicking.
func TestFTPMirrorUnreachable(t *testing.T) {
	mirror := &FTPMirror{
		Server:      "127.0.0.1:1",
		User:        "anonymous",
		DialTimeout: 200 * time.Millisecond,
	}

	start := time.Now()
	_, _, err := mirror.Fetch()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to model store")

	err = mirror.Push([]byte("{}"), []byte("weights"))
	require.Error(t, err)
	assert.Less(t, time.Since(start), 10*time.Second)
}
