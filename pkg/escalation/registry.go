package escalation

import (
	"fmt"
	"sort"
	"sync"

	"github.com/mitchellh/mapstructure"
)

// Built-in policy types.
const (
	TypeKeyword    = "keyword"
	TypeTimeout    = "timeout"
	TypeSentiment  = "sentiment"
	TypeLLMIntent  = "llm_intent"
	TypeCompletion = "completion"
)

// Factory builds a policy from its free-form configuration.
type Factory func(cfg map[string]any, deps Deps) (Policy, error)

type entry struct {
	priority int
	factory  Factory
}

var (
	registryMu sync.RWMutex
	registry   = map[string]entry{}
)

func init() {
	Register(TypeKeyword, 10, newKeyword)
	Register(TypeTimeout, 20, newTimeout)
	Register(TypeSentiment, 30, newSentiment)
	Register(TypeLLMIntent, 40, newIntent)
	Register(TypeCompletion, 50, newCompletion)
}

// Register makes a policy type available. Lower priorities are evaluated first.
// Registering an existing type replaces it.
func Register(policyType string, priority int, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[policyType] = entry{priority: priority, factory: factory}
}

// Types lists the registered policy types in evaluation order.
func Types() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	types := make([]string, 0, len(registry))
	for t := range registry {
		types = append(types, t)
	}
	sort.Slice(types, func(a, b int) bool {
		pa, pb := registry[types[a]].priority, registry[types[b]].priority
		if pa != pb {
			return pa < pb
		}
		return types[a] < types[b]
	})
	return types
}

// Known reports whether a policy type is registered.
func Known(policyType string) bool {
	_, ok := lookup(policyType)
	return ok
}

// Check decodes a policy configuration without building it, for load-time validation.
func Check(policyType string, cfg map[string]any) error {
	e, ok := lookup(policyType)
	if !ok {
		return fmt.Errorf("unknown policy type %q", policyType)
	}
	_, err := e.factory(cfg, Deps{Sentiment: nopScorer{}, Intents: nopClassifier{}})
	return err
}

func lookup(policyType string) (entry, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	e, ok := registry[policyType]
	return e, ok
}

// decode maps a free-form config onto out, accepting strings for numbers and booleans.
func decode(cfg map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return err
	}
	if cfg == nil {
		return nil
	}
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
