package transfer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lftpcmd/lftpcmd/internal/profile"
)

func TestBackendRegistry(t *testing.T) {
	RegisterBackend("test-recording", func() Backend { return &recordingBackend{} })

	assert.Contains(t, Backends(), "test-recording")

	b, err := NewBackend("test-recording")
	require.NoError(t, err)
	assert.Equal(t, "recording", b.String())

	assert.Panics(t, func() {
		RegisterBackend("test-recording", func() Backend { return &recordingBackend{} })
	})
}

func TestNewUnknownBackend(t *testing.T) {
	p := profile.Assemble(profile.Raw{Backend: "carrier-pigeon"}, nil)

	_, err := New(p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "carrier-pigeon")
}
