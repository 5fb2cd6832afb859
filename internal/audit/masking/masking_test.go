package masking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "", MaskSecret("  "))
	assert.Equal(t, "sk_live_****9xYz", MaskSecret("sk_live_abcdef9xYz"))
	assert.Equal(t, "****", MaskSecret("abc"))
	assert.Equal(t, "whsec_****", MaskSecret("whsec_12"))
}

func TestMaskValues(t *testing.T) {
	masked := MaskValues(map[string]any{
		"secret_key": "sk_test_1234567890",
		"mode":       "live",
		"nested":     map[string]any{"client_secret": "abcdefgh"},
		"retries":    3,
	}, "mode")

	assert.Equal(t, "sk_test_****7890", masked["secret_key"])
	assert.Equal(t, "live", masked["mode"])
	assert.Equal(t, map[string]any{"client_secret": "****efgh"}, masked["nested"])
	assert.Equal(t, 3, masked["retries"])
	assert.Nil(t, MaskValues(nil))
}
