package graph

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// PositionKey is the reserved config sub-key carrying the canvas position.
// The normalizer strips it from the semantic config and re-attaches a fresh
// one built from the validated position; the execution runtime ignores it.
const PositionKey = "uiPosition"

// ConstPrefix marks a tool input_mapping value as a literal constant instead
// of a state-bag reference.
const ConstPrefix = "_const:"

// NodeConfig is the per-type configuration of a node. Exactly one variant
// exists per node type, carrying only that type's legal fields.
type NodeConfig interface {
	// Map renders the semantic config as a plain map, without PositionKey.
	Map() map[string]any

	nodeConfig()
}

// WorkerConfig configures a worker node.
type WorkerConfig struct {
	SystemMessage string
	// MaxIterations bounds the worker's tool-call loop, 1 to 100.
	MaxIterations int
}

func (WorkerConfig) nodeConfig() {}

func (c WorkerConfig) Map() map[string]any {
	return map[string]any{
		"system_message": c.SystemMessage,
		"max_iterations": c.MaxIterations,
	}
}

// SupervisorConfig configures a supervisor node. Members is the routing
// truth: the duplicate-free list of worker keys the supervisor may hand off
// to. Supervisor fan-out is not edge-modeled.
type SupervisorConfig struct {
	Members []string
}

func (SupervisorConfig) nodeConfig() {}

func (c SupervisorConfig) Map() map[string]any {
	return map[string]any{"members": append([]string(nil), c.Members...)}
}

// ToolConfig configures a tool node. Mapping values are state-bag field
// names; input mapping values may also be ConstPrefix-encoded literals.
type ToolConfig struct {
	InputMapping  map[string]string
	OutputMapping map[string]string
}

func (ToolConfig) nodeConfig() {}

func (c ToolConfig) Map() map[string]any {
	m := map[string]any{}
	if c.InputMapping != nil {
		m["input_mapping"] = copyStringMap(c.InputMapping)
	}
	if c.OutputMapping != nil {
		m["output_mapping"] = copyStringMap(c.OutputMapping)
	}
	return m
}

// StoredConfig is the persisted shape: the semantic config plus the reserved
// position sub-key.
func StoredConfig(c NodeConfig, pos Position) map[string]any {
	m := c.Map()
	m[PositionKey] = map[string]any{"x": pos.X, "y": pos.Y}
	return m
}

// ParsePosition extracts the canvas position from a stored config value.
// The config may be a map or a serialized blob. Anything malformed falls
// back to a deterministic grid slot derived from the node's index.
func ParsePosition(raw any, fallbackIndex int) Position {
	fallback := Position{
		X: 80 + (fallbackIndex%4)*220,
		Y: 80 + (fallbackIndex/4)*140,
	}

	bag, ok := asConfigMap(raw)
	if !ok {
		return fallback
	}
	pos, ok := bag[PositionKey].(map[string]any)
	if !ok {
		return fallback
	}
	x, okX := asInt(pos["x"])
	y, okY := asInt(pos["y"])
	if !okX || !okY {
		return fallback
	}
	return Position{X: x, Y: y}
}

// normalizeConfigBag deserializes a blob config if needed and strips the
// reserved position sub-key. Unparseable blobs degrade to an empty bag.
func normalizeConfigBag(raw any) map[string]any {
	bag, ok := asConfigMap(raw)
	if !ok {
		return map[string]any{}
	}
	out := make(map[string]any, len(bag))
	for k, v := range bag {
		if k == PositionKey {
			continue
		}
		out[k] = v
	}
	return out
}

func asConfigMap(raw any) (map[string]any, bool) {
	switch v := raw.(type) {
	case nil:
		return nil, false
	case string:
		var parsed map[string]any
		if err := json.Unmarshal([]byte(v), &parsed); err != nil {
			return nil, false
		}
		return parsed, true
	case map[string]any:
		return v, true
	default:
		return nil, false
	}
}

func parseWorkerConfig(bag map[string]any, nodeKey string) (WorkerConfig, error) {
	cfg := WorkerConfig{MaxIterations: 3}

	if raw, ok := bag["system_message"]; ok && raw != nil {
		s, isString := raw.(string)
		if !isString {
			return cfg, violation(nodeKey, fmt.Sprintf("Worker node %q must set system_message as a string.", nodeKey))
		}
		cfg.SystemMessage = s
	}

	if raw, ok := bag["max_iterations"]; ok && raw != nil {
		n, isInt := asInt(raw)
		if !isInt || n < 1 || n > 100 {
			return cfg, violation(nodeKey, fmt.Sprintf("Worker node %q max_iterations must be an integer between 1 and 100.", nodeKey))
		}
		cfg.MaxIterations = n
	}

	return cfg, nil
}

func parseSupervisorConfig(bag map[string]any, nodeKey string) (SupervisorConfig, error) {
	members, ok := asAnySlice(bag["members"])
	if !ok || len(members) == 0 {
		return SupervisorConfig{}, violation(nodeKey, fmt.Sprintf("Supervisor node %q must define at least one member in config.members.", nodeKey))
	}

	normalized := make([]string, 0, len(members))
	seen := make(map[string]bool, len(members))
	for _, member := range members {
		s, isString := member.(string)
		if !isString {
			return SupervisorConfig{}, violation(nodeKey, fmt.Sprintf("Supervisor node %q has invalid member value.", nodeKey))
		}
		key := strings.TrimSpace(s)
		if !nodeKeyPattern.MatchString(key) {
			return SupervisorConfig{}, violation(nodeKey, fmt.Sprintf("Supervisor node %q has invalid member value.", nodeKey))
		}
		if seen[key] {
			return SupervisorConfig{}, violation(nodeKey, fmt.Sprintf("Supervisor node %q has duplicate member %q.", nodeKey, key))
		}
		seen[key] = true
		normalized = append(normalized, key)
	}

	return SupervisorConfig{Members: normalized}, nil
}

func parseToolConfig(bag map[string]any, nodeKey string) (ToolConfig, error) {
	input, err := parseToolMapping(bag["input_mapping"], "input_mapping", nodeKey)
	if err != nil {
		return ToolConfig{}, err
	}
	output, err := parseToolMapping(bag["output_mapping"], "output_mapping", nodeKey)
	if err != nil {
		return ToolConfig{}, err
	}
	return ToolConfig{InputMapping: input, OutputMapping: output}, nil
}

func parseToolMapping(raw any, mappingName, nodeKey string) (map[string]string, error) {
	if raw == nil {
		return nil, nil
	}
	record, ok := raw.(map[string]any)
	if !ok {
		if typed, isTyped := raw.(map[string]string); isTyped {
			record = make(map[string]any, len(typed))
			for k, v := range typed {
				record[k] = v
			}
		} else {
			return nil, violation(nodeKey, fmt.Sprintf("Tool node %q must provide %s as an object when set.", nodeKey, mappingName))
		}
	}

	fields := make([]string, 0, len(record))
	for field := range record {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	mapping := make(map[string]string, len(record))
	for _, field := range fields {
		value, isString := record[field].(string)
		if !isString {
			return nil, violation(nodeKey, fmt.Sprintf("Tool node %q mapping for %q must be a string.", nodeKey, field))
		}
		normalized := strings.TrimSpace(value)
		if normalized == "" {
			return nil, violation(nodeKey, fmt.Sprintf("Tool node %q mapping for %q cannot be empty.", nodeKey, field))
		}
		if mappingName == "input_mapping" && strings.HasPrefix(normalized, ConstPrefix) {
			mapping[field] = normalized
			continue
		}
		if !stateKeyPattern.MatchString(normalized) {
			return nil, violation(nodeKey, fmt.Sprintf("Tool node %q mapping %q must use letters, numbers, dots, colons, dashes, and underscores only.", nodeKey, field))
		}
		mapping[field] = normalized
	}
	return mapping, nil
}

// asInt accepts native ints and whole floats, which is what JSON decoding
// hands us for numbers.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		if n == float64(int64(n)) {
			return int(n), true
		}
		return 0, false
	case float32:
		if float64(n) == float64(int64(n)) {
			return int(n), true
		}
		return 0, false
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	default:
		return 0, false
	}
}

func asAnySlice(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	case []string:
		out := make([]any, len(s))
		for i, item := range s {
			out[i] = item
		}
		return out, true
	default:
		return nil, false
	}
}

func copyStringMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
