package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandsRegisterFlags(t *testing.T) {
	t.Parallel()

	serve := NewServeCommand()
	require.NotNil(t, serve.Flags().Lookup("config"))
	require.NotNil(t, serve.Flags().Lookup("port"))

	workerCmd := NewWorkerCommand()
	require.NotNil(t, workerCmd.Flags().Lookup("basket"))
	require.NotNil(t, workerCmd.Flags().Lookup("http"))

	stressCmd := NewStressCommand()
	require.NotNil(t, stressCmd.Flags().Lookup("batch-size"))
	require.NotNil(t, stressCmd.Flags().Lookup("strategy"))
	require.NotNil(t, stressCmd.Flags().Lookup("output"))
}

func TestUnknownBasketError(t *testing.T) {
	t.Parallel()

	err := unknownBasket("options-basket")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "options-basket")
	assert.Contains(t, err.Error(), "fundamentals-basket")
}

func TestLogLevelNames(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "DEBUG", logLevel("debug").String())
	assert.Equal(t, "INFO", logLevel("unknown").String())
	assert.Equal(t, "ERROR", logLevel("error").String())
}
