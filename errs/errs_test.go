package errs_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/axiomproject/axiom/errs"
)

func TestConfigurationIsAlwaysFatal(t *testing.T) {
	err := errs.Configuration("bad port", errors.New("out of range"))
	require.True(t, errs.IsFatal(err))
	require.Equal(t, errs.KindConfiguration, err.Kind)
}

func TestStorageFatalFlagIsRespected(t *testing.T) {
	fatal := errs.Storage("broken chain tail", nil, true)
	transient := errs.Storage("disk busy", nil, false)

	require.True(t, errs.IsFatal(fatal))
	require.False(t, errs.IsFatal(transient))
}

func TestNonFatalKindsAreNeverFatal(t *testing.T) {
	require.False(t, errs.IsFatal(errs.Crypto("bad signature", nil)))
	require.False(t, errs.IsFatal(errs.Protocol("oversize frame", nil)))
	require.False(t, errs.IsFatal(errs.Timeout("no reply", nil)))
	require.False(t, errs.IsFatal(errs.Consensus("wrong leader", nil)))
	require.False(t, errs.IsFatal(errs.NotFound("fact missing")))
}

func TestIsFatalSeesThroughWrapping(t *testing.T) {
	inner := errs.Configuration("bad data-dir", nil)
	wrapped := fmt.Errorf("startup failed: %w", inner)

	require.True(t, errs.IsFatal(wrapped))
}

func TestIsFatalFalseForUnrelatedError(t *testing.T) {
	require.False(t, errs.IsFatal(errors.New("plain error")))
}

func TestErrorMessageIncludesCause(t *testing.T) {
	err := errs.Storage("write failed", errors.New("disk full"), true)
	require.Contains(t, err.Error(), "disk full")
	require.Contains(t, err.Error(), "write failed")
}

func TestUnwrapReturnsCause(t *testing.T) {
	cause := errors.New("root cause")
	err := errs.Crypto("verify failed", cause)
	require.Equal(t, cause, errors.Unwrap(err))
}
