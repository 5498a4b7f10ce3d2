package errs

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigurationErrorMessage(t *testing.T) {
	err := Configf("task_type", "must be %q or %q, got %q", "classification", "regression", "ranking")
	assert.Equal(t, `configuration error: task_type: must be "classification" or "regression", got "ranking"`, err.Error())

	bare := &ConfigurationError{Reason: "output_dir must be specified"}
	assert.Equal(t, "configuration error: output_dir must be specified", bare.Error())
}

func TestErrorKindsSurviveWrapping(t *testing.T) {
	wrapped := fmt.Errorf("load stage: %w", Configf("target_col", "out of range"))

	var cfgErr *ConfigurationError
	require.True(t, errors.As(wrapped, &cfgErr))
	assert.Equal(t, "target_col", cfgErr.Setting)

	var depErr *DependencyUnavailable
	assert.False(t, errors.As(wrapped, &depErr))
}

func TestExternalUnwraps(t *testing.T) {
	assert.NoError(t, External("fit", nil))

	err := External("write model", io.ErrShortWrite)
	assert.ErrorIs(t, err, io.ErrShortWrite)

	var libErr *ExternalLibraryError
	require.ErrorAs(t, err, &libErr)
	assert.Equal(t, "write model", libErr.Op)
	assert.Equal(t, "write model: short write", err.Error())
}

func TestDependencyUnavailableMessage(t *testing.T) {
	err := &DependencyUnavailable{Dependency: "backbone library", Reason: "not installed"}
	assert.Equal(t, "dependency backbone library unavailable: not installed", err.Error())
}
