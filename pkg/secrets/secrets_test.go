package secrets

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecretNeverPrintsPlaintext(t *testing.T) {
	s := Secret("hunter2-super-secret")

	assert.Equal(t, Redacted, s.String())
	assert.Equal(t, Redacted, fmt.Sprintf("%v", s))
	assert.Equal(t, Redacted, fmt.Sprintf("%s", s))

	b, err := json.Marshal(struct {
		ClientSecret Secret `json:"client_secret"`
	}{ClientSecret: s})
	require.NoError(t, err)
	assert.NotContains(t, string(b), "hunter2")
	assert.Contains(t, string(b), Redacted)

	assert.Equal(t, "hunter2-super-secret", s.Reveal())
}

func TestSecretUnmarshal(t *testing.T) {
	var out struct {
		ClientSecret Secret `json:"client_secret"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"client_secret":"abc"}`), &out))
	assert.Equal(t, "abc", out.ClientSecret.Reveal())
}

func TestFingerprintSensitivity(t *testing.T) {
	base := Fingerprint("id", "sec", "vanity", "cust", 1)

	assert.Equal(t, base, Fingerprint("id", "sec", "vanity", "cust", 1))
	assert.NotEqual(t, base, Fingerprint("id2", "sec", "vanity", "cust", 1))
	assert.NotEqual(t, base, Fingerprint("id", "sec2", "vanity", "cust", 1))
	assert.NotEqual(t, base, Fingerprint("id", "sec", "vanity2", "cust", 1))
	assert.NotEqual(t, base, Fingerprint("id", "sec", "vanity", "cust2", 1))
	assert.NotEqual(t, base, Fingerprint("id", "sec", "vanity", "cust", 2))
	// field boundaries matter: ("ab","c") != ("a","bc")
	assert.NotEqual(t, Fingerprint("ab", "c", "d", "e", 1), Fingerprint("a", "bc", "d", "e", 1))
}

func TestEncryptDecryptJSON(t *testing.T) {
	key := []byte("test-encryption-key")
	in := map[string]string{"client_secret": "s3cr3t"}

	blob, err := EncryptJSON(in, key)
	require.NoError(t, err)
	assert.Equal(t, byte(0x01), blob[0])
	assert.NotContains(t, string(blob), "s3cr3t")

	var out map[string]string
	require.NoError(t, DecryptJSON(blob, key, &out))
	assert.Equal(t, in, out)

	assert.Error(t, DecryptJSON(blob, []byte("wrong-key"), &out))
}

func TestEncryptJSONWithoutKeyIsPlain(t *testing.T) {
	blob, err := EncryptJSON(map[string]string{"a": "b"}, nil)
	require.NoError(t, err)

	var out map[string]string
	require.NoError(t, DecryptJSON(blob, nil, &out))
	assert.Equal(t, "b", out["a"])
}
