package logging

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewDevelopmentLogger(t *testing.T) {
	t.Parallel()

	logger, err := New(true, "debug")
	require.NoError(t, err)
	require.NotNil(t, logger)
	logger.Debug("dev logger works")
}

func TestNewProductionLogger(t *testing.T) {
	t.Parallel()

	logger, err := New(false, "")
	require.NoError(t, err)
	require.NotNil(t, logger)
}

func TestNewRejectsBadLevel(t *testing.T) {
	t.Parallel()

	_, err := New(false, "shouting")
	require.Error(t, err)
}
