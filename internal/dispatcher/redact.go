// internal/dispatcher/redact.go
package dispatcher

import (
	"strings"

	"zsbroker/pkg/secrets"
)

// secretShapedKeys match after lowercasing and stripping separators, so
// "clientSecret", "client_secret" and "CLIENT-SECRET" all hit.
var secretShapedKeys = map[string]struct{}{
	"secret":        {},
	"clientsecret":  {},
	"password":      {},
	"passphrase":    {},
	"token":         {},
	"accesstoken":   {},
	"refreshtoken":  {},
	"apikey":        {},
	"authorization": {},
	"privatekey":    {},
	"credential":    {},
	"credentials":   {},
}

func secretShaped(key string) bool {
	k := strings.ToLower(key)
	k = strings.NewReplacer("_", "", "-", "", " ", "").Replace(k)
	_, ok := secretShapedKeys[k]
	return ok
}

// Redact walks a decoded JSON structure and replaces any value held under a
// secret-shaped key. Adapters should never echo credentials; this is
// defense-in-depth for upstreams that do.
func Redact(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			if secretShaped(k) {
				out[k] = secrets.Redacted
				continue
			}
			out[k] = Redact(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = Redact(val)
		}
		return out
	default:
		return v
	}
}
