// pkg/catalog/catalog.go
package catalog

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Catalog controls which service surfaces are dispatchable and whether write
// operations are permitted. Mirrors the server's launch flags in the admin
// workflow: reads are on by default, writes are opt-in.
type Catalog struct {
	EnabledServices []string `yaml:"enabled_services"`
	EnableWriteOps  bool     `yaml:"enable_write_ops"`
	// WriteOps is an explicit allowlist ("service.operation"); empty with
	// EnableWriteOps=true permits every write operation.
	WriteOps []string `yaml:"write_ops"`
}

// Default enables all services and no write operations.
func Default() Catalog {
	return Catalog{EnabledServices: []string{"zia", "zpa", "zdx", "zcc"}}
}

// Load reads a YAML catalog; an empty path yields Default.
func Load(path string) (Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, err
	}
	var c Catalog
	if err := yaml.Unmarshal(b, &c); err != nil {
		return Catalog{}, err
	}
	if len(c.EnabledServices) == 0 {
		c.EnabledServices = Default().EnabledServices
	}
	return c, nil
}

func (c Catalog) ServiceEnabled(service string) bool {
	for _, s := range c.EnabledServices {
		if strings.EqualFold(s, service) {
			return true
		}
	}
	return false
}

// WriteAllowed reports whether a write operation may be dispatched.
func (c Catalog) WriteAllowed(service, operation string) bool {
	if !c.EnableWriteOps {
		return false
	}
	if len(c.WriteOps) == 0 {
		return true
	}
	full := service + "." + operation
	for _, w := range c.WriteOps {
		if strings.EqualFold(w, full) || strings.EqualFold(w, operation) {
			return true
		}
	}
	return false
}
