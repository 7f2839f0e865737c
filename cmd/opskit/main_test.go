package main

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGlobalFlagsBoundToViper(t *testing.T) {
	flags := rootCmd.PersistentFlags()

	require.NoError(t, flags.Set("config", "/tmp/opskit-alt.yml"))
	require.NoError(t, flags.Set("api", "https://ops.example.com"))
	require.NoError(t, flags.Set("output", "json"))

	assert.Equal(t, "/tmp/opskit-alt.yml", viper.GetString("config"))
	assert.Equal(t, "https://ops.example.com", viper.GetString("api"))
	assert.Equal(t, "json", viper.GetString("output"))
}
