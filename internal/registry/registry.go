// Package registry loads and resolves the set of configured n8n instances.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"n8n-mcp-bridge/internal/logging"
	"n8n-mcp-bridge/pkg/models"
)

// maxNumberedInstances bounds the N8N_INSTANCE_<i>_* scan.
const maxNumberedInstances = 10

// ErrInstanceNotFound matches any NotFoundError via errors.Is.
var ErrInstanceNotFound = errors.New("instance not found")

// NotFoundError reports a lookup miss, carrying the requested name and the
// names that are configured so callers can surface both.
type NotFoundError struct {
	Name      string
	Available []string
}

func (e *NotFoundError) Error() string {
	available := "none"
	if len(e.Available) > 0 {
		available = strings.Join(e.Available, ", ")
	}
	return fmt.Sprintf("Instance %q not found. Available instances: %s", e.Name, available)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrInstanceNotFound
}

// Registry holds the configured instances in registration order.
type Registry struct {
	instances []models.Instance
	logger    *logging.Logger
}

// Load gathers instance definitions from the environment. Three sources are
// tried in order of precedence, and the first one that yields any instances
// wins:
//
//  1. N8N_INSTANCES, a JSON array of {name,url,apiKey} objects
//  2. N8N_INSTANCE_<i>_NAME/_URL/_API_KEY for i in 1..10
//  3. legacy N8N_API_URL + N8N_API_KEY, registered under the name "default"
//
// Malformed input is reported as a warning and never fails the load; the
// server may come up with zero instances.
func Load(v *viper.Viper, logger *logging.Logger) []models.Instance {
	if instances := loadJSON(v, logger); len(instances) > 0 {
		return instances
	}
	if instances := loadNumbered(v); len(instances) > 0 {
		return instances
	}
	return loadLegacy(v)
}

func loadJSON(v *viper.Viper, logger *logging.Logger) []models.Instance {
	raw := v.GetString("N8N_INSTANCES")
	if raw == "" {
		return nil
	}

	var defs []models.Instance
	if err := json.Unmarshal([]byte(raw), &defs); err != nil {
		logger.Warn("N8N_INSTANCES is not valid JSON, ignoring it: %v", err)
		return nil
	}

	instances := make([]models.Instance, 0, len(defs))
	for i, def := range defs {
		if def.Name == "" || def.URL == "" {
			logger.Warn("N8N_INSTANCES entry %d is missing a name or url, skipping it", i)
			continue
		}
		def.URL = normalizeURL(def.URL)
		instances = append(instances, def)
	}
	return instances
}

func loadNumbered(v *viper.Viper) []models.Instance {
	var instances []models.Instance
	for i := 1; i <= maxNumberedInstances; i++ {
		name := v.GetString(fmt.Sprintf("N8N_INSTANCE_%d_NAME", i))
		url := v.GetString(fmt.Sprintf("N8N_INSTANCE_%d_URL", i))
		if name == "" || url == "" {
			continue
		}
		instances = append(instances, models.Instance{
			Name:   name,
			URL:    normalizeURL(url),
			APIKey: v.GetString(fmt.Sprintf("N8N_INSTANCE_%d_API_KEY", i)),
		})
	}
	return instances
}

func loadLegacy(v *viper.Viper) []models.Instance {
	url := v.GetString("N8N_API_URL")
	if url == "" {
		return nil
	}
	return []models.Instance{{
		Name:   "default",
		URL:    normalizeURL(url),
		APIKey: v.GetString("N8N_API_KEY"),
	}}
}

// normalizeURL strips trailing slashes so downstream path concatenation is
// consistent no matter how the URL was pasted.
func normalizeURL(input string) string {
	u := strings.TrimSpace(input)
	if strings.HasSuffix(u, "/") {
		u = strings.TrimRight(u, "/")
	}
	return u
}

// New builds a Registry over the loaded instances, emitting non-fatal
// warnings for an empty set and for duplicate names. Duplicates stay in the
// table; Resolve returns the first registered match.
func New(instances []models.Instance, logger *logging.Logger) *Registry {
	if len(instances) == 0 {
		logger.Warn("no n8n instances configured; every tool call will fail to resolve an instance")
	}

	seen := make(map[string]string, len(instances))
	for _, inst := range instances {
		key := strings.ToLower(inst.Name)
		if first, ok := seen[key]; ok {
			logger.Warn("duplicate instance name %q (first registered as %q); lookups return the first match", inst.Name, first)
			continue
		}
		seen[key] = inst.Name
	}

	return &Registry{instances: instances, logger: logger}
}

// Resolve returns the instance whose name matches (case-insensitively) the
// requested one. The error lists every configured name so the caller can
// correct the request.
func (r *Registry) Resolve(name string) (models.Instance, error) {
	for _, inst := range r.instances {
		if strings.EqualFold(inst.Name, name) {
			return inst, nil
		}
	}

	return models.Instance{}, &NotFoundError{Name: name, Available: r.Names()}
}

// Names returns the configured instance names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.instances))
	for _, inst := range r.instances {
		names = append(names, inst.Name)
	}
	return names
}

// Instances returns the configured instances in registration order.
func (r *Registry) Instances() []models.Instance {
	return r.instances
}

// Count returns the number of configured instances.
func (r *Registry) Count() int {
	return len(r.instances)
}
