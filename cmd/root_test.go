package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRootCommandRegistration(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, want := range []string{"render", "serve", "stations", "export"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
	assert.Equal(t, "stationmap", rootCmd.Use)
}
