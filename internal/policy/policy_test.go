package policy

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const freezeWritesModule = `package zsbroker

default decide := {"allow": true, "reasons": []}

decide := {"allow": false, "reasons": ["writes are frozen"]} {
	input.write
}
`

func writeModule(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "policy.rego")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o600))
	return path
}

func TestPassThroughWithoutModule(t *testing.T) {
	e, err := NewEngine("", zap.NewNop().Sugar())
	require.NoError(t, err)

	dec := e.Evaluate(context.Background(), "CorpProd", "zia", "addAtpMaliciousUrls", true)
	assert.True(t, dec.Allow)
}

func TestModuleGatesWrites(t *testing.T) {
	e, err := NewEngine(writeModule(t, freezeWritesModule), zap.NewNop().Sugar())
	require.NoError(t, err)

	read := e.Evaluate(context.Background(), "CorpProd", "zia", "listFirewallRules", false)
	assert.True(t, read.Allow)

	write := e.Evaluate(context.Background(), "CorpProd", "zia", "addAtpMaliciousUrls", true)
	assert.False(t, write.Allow)
	assert.Contains(t, write.Reasons, "writes are frozen")
}

func TestBrokenModuleDenies(t *testing.T) {
	e, err := NewEngine(writeModule(t, "package zsbroker\n\ndecide := {"), zap.NewNop().Sugar())
	require.NoError(t, err)

	dec := e.Evaluate(context.Background(), "CorpProd", "zia", "listFirewallRules", false)
	assert.False(t, dec.Allow, "an unevaluable policy must not open access")
	assert.Contains(t, dec.Reasons, "policy_error")
}

func TestMissingModuleFile(t *testing.T) {
	_, err := NewEngine(filepath.Join(t.TempDir(), "nope.rego"), zap.NewNop().Sugar())
	assert.Error(t, err)
}
