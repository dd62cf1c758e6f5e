package main

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestParseSignalEmptyDefaultsToSIGTERM(t *testing.T) {
	sig, err := parseSignal("")
	require.NoError(t, err)
	require.Equal(t, unix.SIGTERM, sig)
}

func TestParseSignalNumeric(t *testing.T) {
	sig, err := parseSignal("9")
	require.NoError(t, err)
	require.Equal(t, unix.Signal(9), sig)
}

func TestParseSignalByName(t *testing.T) {
	sig, err := parseSignal("KILL")
	require.NoError(t, err)
	require.Equal(t, unix.SIGKILL, sig)

	sig, err = parseSignal("SIGHUP")
	require.NoError(t, err)
	require.Equal(t, unix.SIGHUP, sig)
}

func TestParseSignalUnknownErrors(t *testing.T) {
	_, err := parseSignal("BOGUS")
	require.Error(t, err)
}
