package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSocketURLFrom(t *testing.T) {
	require.Equal(t, "ws://localhost:5000/socket", socketURLFrom("http://localhost:5000"))
	require.Equal(t, "wss://chat.clinic.example/socket", socketURLFrom("https://chat.clinic.example"))
	require.Equal(t, "ws://localhost:5000/api/socket", socketURLFrom("http://localhost:5000/api/"))
}
