// pkg/secrets/secrets.go
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
)

// Secret is a credential value that refuses to serialize or print in
// plaintext. Code that genuinely needs the raw value calls Reveal; everything
// else (logs, JSON responses, %v formatting) sees the redaction marker.
type Secret string

const Redacted = "[REDACTED]"

func (s Secret) String() string { return Redacted }

func (s Secret) GoString() string { return Redacted }

func (s Secret) MarshalJSON() ([]byte, error) { return json.Marshal(Redacted) }

func (s *Secret) UnmarshalJSON(b []byte) error {
	var v string
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*s = Secret(v)
	return nil
}

// Reveal returns the raw value. Call sites are the audit surface for secret
// use; keep them few.
func (s Secret) Reveal() string { return string(s) }

func (s Secret) Empty() bool { return s == "" }

// Equal compares in constant time.
func (s Secret) Equal(other string) bool {
	return hmac.Equal([]byte(s), []byte(other))
}

// Fingerprint derives a stable identifier from the credential coordinates and
// the store revision. Changing any field (or bumping the revision) yields a
// new fingerprint, which is what invalidates cached client handles.
func Fingerprint(clientID string, clientSecret Secret, vanityDomain, customerID string, revision int64) string {
	h := sha256.New()
	for _, f := range []string{clientID, clientSecret.Reveal(), vanityDomain, customerID, strconv.FormatInt(revision, 10)} {
		h.Write([]byte(f))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))[:32]
}

// EncryptJSON seals v with AES-GCM when key is non-empty; else plain JSON.
// Format: 0x01 | nonce | ciphertext.
func EncryptJSON(v any, key []byte) ([]byte, error) {
	plain, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if len(key) == 0 {
		return plain, nil
	}
	h := sha256.Sum256(key)
	block, err := aes.NewCipher(h[:])
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	ct := gcm.Seal(nil, nonce, plain, nil)
	out := make([]byte, 1+len(nonce)+len(ct))
	out[0] = 0x01
	copy(out[1:1+len(nonce)], nonce)
	copy(out[1+len(nonce):], ct)
	return out, nil
}

// DecryptJSON reverses EncryptJSON into dst. A blob without the version byte
// is treated as plain JSON (key was empty at write time).
func DecryptJSON(blob, key []byte, dst any) error {
	if len(blob) == 0 {
		return fmt.Errorf("empty blob")
	}
	if blob[0] != 0x01 {
		return json.Unmarshal(blob, dst)
	}
	if len(key) == 0 {
		return fmt.Errorf("encrypted blob but no key configured")
	}
	h := sha256.Sum256(key)
	block, err := aes.NewCipher(h[:])
	if err != nil {
		return err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return err
	}
	if len(blob) < 1+gcm.NonceSize() {
		return fmt.Errorf("short nonce")
	}
	nonce := blob[1 : 1+gcm.NonceSize()]
	ct := blob[1+gcm.NonceSize():]
	plain, err := gcm.Open(nil, nonce, ct, nil)
	if err != nil {
		return err
	}
	return json.Unmarshal(plain, dst)
}
