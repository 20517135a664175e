package validators

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	pkgerrors "github.com/openbillingstore/billing-core/pkg/errors"
)

func TestServiceIDAcceptsTenantIDs(t *testing.T) {
	id, err := ServiceID("  svc_A-9 ")
	require.NoError(t, err)
	require.Equal(t, "svc_A-9", id)

	id, err = ServiceID(strings.Repeat("a", MaxServiceIDLen))
	require.NoError(t, err)
	require.Len(t, id, MaxServiceIDLen)

	id, err = ServiceID("   ")
	require.NoError(t, err)
	require.Empty(t, id)
}

func TestServiceIDRejectsInsteadOfTruncating(t *testing.T) {
	for _, raw := range []string{
		strings.Repeat("a", MaxServiceIDLen+1),
		"svc.a",
		"svc\x00a",
		"sérvice",
	} {
		_, err := ServiceID(raw)
		require.Error(t, err, raw)
		typed := pkgerrors.As(err)
		require.NotNil(t, typed)
		require.Equal(t, pkgerrors.CodeValidation, typed.Code())
	}
}

func TestSanitizeStringDropsControlCharacters(t *testing.T) {
	require.Equal(t, "req-42", SanitizeString(" req-\n4\x072 ", 0))
	require.Equal(t, "abc", SanitizeString("abcdef", 3))
}
