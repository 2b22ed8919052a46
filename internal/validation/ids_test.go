package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidTenantID(t *testing.T) {
	for _, ok := range []string{"acme", "Acme-01", "t_1.eu", "a"} {
		assert.True(t, ValidTenantID(ok), ok)
	}
	for _, bad := range []string{"", ".", "..", "../etc", "a/b", `a\b`, "-x", "sp ace", strings.Repeat("a", 65)} {
		assert.False(t, ValidTenantID(bad), bad)
	}
}

func TestValidCredentialID(t *testing.T) {
	assert.True(t, ValidCredentialID("c1"))
	assert.True(t, ValidCredentialID("AbC-_09=="))
	assert.True(t, ValidCredentialID("6f1c2a7e-2b1d-4f7a-9d2b-0c1e5a3b4d6f"))
	assert.False(t, ValidCredentialID(""))
	assert.False(t, ValidCredentialID("a/b"))
	assert.False(t, ValidCredentialID("a b"))
}
