package policy

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewGuard_DefaultReadWrite(t *testing.T) {
	guard, err := NewGuard("")
	require.NoError(t, err)
	require.Equal(t, ModeReadWrite, guard.Mode())
}

func TestNewGuard_NormalizesCase(t *testing.T) {
	guard, err := NewGuard(" Read-Only ")
	require.NoError(t, err)
	require.Equal(t, ModeReadOnly, guard.Mode())
}

func TestNewGuard_InvalidMode(t *testing.T) {
	_, err := NewGuard("admin")
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid mode")
}

func TestAuthorizeTool_ReadOnlyDeniesWrite(t *testing.T) {
	guard, err := NewGuard(ModeReadOnly)
	require.NoError(t, err)

	require.NoError(t, guard.AuthorizeTool("cosmos_get_item", "read"))
	err = guard.AuthorizeTool("cosmos_delete_item", "write")
	require.Error(t, err)
	require.Contains(t, err.Error(), "requires read-write mode")
}

func TestAuthorizeTool_ReadWriteAllowsWrite(t *testing.T) {
	guard, err := NewGuard(ModeReadWrite)
	require.NoError(t, err)
	require.NoError(t, guard.AuthorizeTool("cosmos_upsert_item", "write"))
}

func TestAuthorizeTool_UnknownCapability(t *testing.T) {
	guard, err := NewGuard(ModeReadWrite)
	require.NoError(t, err)

	err = guard.AuthorizeTool("cosmos_get_item", "admin")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown capability")
}

func TestNilGuardIsReadOnly(t *testing.T) {
	var guard *Guard
	require.Equal(t, ModeReadOnly, guard.Mode())
	require.Error(t, guard.AuthorizeTool("", "write"))
}
