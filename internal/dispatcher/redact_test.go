package dispatcher

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"zsbroker/pkg/secrets"
)

func TestSecretShaped(t *testing.T) {
	for _, k := range []string{"clientSecret", "client_secret", "CLIENT-SECRET", "api key", "Password", "refresh_token", "Authorization"} {
		assert.True(t, secretShaped(k), k)
	}
	for _, k := range []string{"name", "description", "tokenCount", "secretive", "id"} {
		assert.False(t, secretShaped(k), k)
	}
}

func TestRedactWalksNestedStructures(t *testing.T) {
	in := map[string]any{
		"name":     "rule",
		"password": "p",
		"items": []any{
			map[string]any{"apiKey": "k", "kept": 7},
			"plain string",
		},
	}

	out := Redact(in).(map[string]any)

	assert.Equal(t, "rule", out["name"])
	assert.Equal(t, secrets.Redacted, out["password"])
	items := out["items"].([]any)
	first := items[0].(map[string]any)
	assert.Equal(t, secrets.Redacted, first["apiKey"])
	assert.Equal(t, 7, first["kept"])
	assert.Equal(t, "plain string", items[1])
}

func TestRedactLeavesScalarsAlone(t *testing.T) {
	assert.Nil(t, Redact(nil))
	assert.Equal(t, 42, Redact(42))
	assert.Equal(t, "x", Redact("x"))
}
