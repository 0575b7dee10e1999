package spec

import (
	"encoding/json"
	"strconv"
)

// Invocation is the JSON event driving one transformation step. The whole
// chain configuration rides along on every invocation; the index selects
// the step to run.
type Invocation struct {
	Bucket               string                `json:"bucket"`
	Key                  string                `json:"key"`
	TransformationIndex  int                   `json:"transformation_index"`
	TransformationConfig map[string]StepConfig `json:"transformation_config"`
	ExecutionID          string                `json:"execution_id"`
}

// StepConfig holds one step's operation, optional target paths, and free-form
// parameters. Events carry parameters either inline next to "operation" or
// nested under "parameters"; both are accepted and merged, nested keys
// winning on conflict.
type StepConfig struct {
	Operation    string
	TargetFields []string
	Params       map[string]any
}

func (c *StepConfig) UnmarshalJSON(b []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	c.Operation, _ = raw["operation"].(string)
	c.TargetFields = nil
	if tf, ok := raw["target_fields"].([]any); ok {
		for _, v := range tf {
			if s, ok := v.(string); ok {
				c.TargetFields = append(c.TargetFields, s)
			}
		}
	}
	c.Params = map[string]any{}
	for k, v := range raw {
		switch k {
		case "operation", "target_fields", "parameters":
			continue
		}
		c.Params[k] = v
	}
	if nested, ok := raw["parameters"].(map[string]any); ok {
		for k, v := range nested {
			c.Params[k] = v
		}
	}
	return nil
}

// String returns a string parameter and whether it was present.
func (c StepConfig) String(key string) (string, bool) {
	s, ok := c.Params[key].(string)
	return s, ok
}

func (c StepConfig) StringOr(key, def string) string {
	if s, ok := c.Params[key].(string); ok {
		return s
	}
	return def
}

// Int reads a numeric parameter; decoded JSON numbers arrive as float64.
func (c StepConfig) Int(key string, def int) int {
	switch n := c.Params[key].(type) {
	case float64:
		return int(n)
	case int:
		return n
	}
	return def
}

func (c StepConfig) Bool(key string, def bool) bool {
	if b, ok := c.Params[key].(bool); ok {
		return b
	}
	return def
}

func (c StepConfig) Value(key string) any { return c.Params[key] }

func (c StepConfig) Map(key string) map[string]any {
	m, _ := c.Params[key].(map[string]any)
	return m
}

func (c StepConfig) StringSlice(key string) []string {
	raw, ok := c.Params[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func (c StepConfig) StringMap(key string) map[string]string {
	raw, ok := c.Params[key].(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}

// ValidateChain checks that step keys form a contiguous "1".."N" chain.
func ValidateChain(cfg map[string]StepConfig) error {
	if len(cfg) == 0 {
		return Errorf(KindConfiguration, "transformation_config is empty")
	}
	for i := 1; i <= len(cfg); i++ {
		if _, ok := cfg[strconv.Itoa(i)]; !ok {
			return Errorf(KindConfiguration, "transformation_config missing step %d of %d", i, len(cfg))
		}
	}
	return nil
}

// Response is the invocation envelope. statusCode 200 covers success and
// dedup skips, 202 a not-yet-ready predecessor, 500 a failed step.
type Response struct {
	StatusCode          int    `json:"statusCode"`
	ExecutionID         string `json:"execution_id,omitempty"`
	TransformationIndex int    `json:"transformation_index,omitempty"`
	Operation           string `json:"operation,omitempty"`
	OutputKey           string `json:"output_key,omitempty"`
	SuccessMarker       string `json:"success_marker,omitempty"`
	Skipped             bool   `json:"skipped,omitempty"`
	Reason              string `json:"reason,omitempty"`
	Message             string `json:"message,omitempty"`
	Error               string `json:"error,omitempty"`
	ErrorType           string `json:"error_type,omitempty"`
}

// FinalizeRequest asks for the outputs of a completed chain to be bundled
// and folded into the transfer register.
type FinalizeRequest struct {
	Bucket      string `json:"bucket"`
	ExecutionID string `json:"execution_id"`
	FinalStep   int    `json:"final_step"`
	TreeName    string `json:"tree_name"`
	LevelPath   string `json:"level_path,omitempty"` // field path grouping records into levels
	MaxItems    int    `json:"max_items,omitempty"`  // per-bundle cap, default 10000
}

type BundleInfo struct {
	Key       string `json:"key"`
	Level     string `json:"level"`
	FileCount int    `json:"file_count"`
	SizeBytes int    `json:"size_bytes"`
}

type FinalizeResult struct {
	StatusCode  int          `json:"statusCode"`
	ExecutionID string       `json:"execution_id,omitempty"`
	Bundles     []BundleInfo `json:"bundles,omitempty"`
	Message     string       `json:"message,omitempty"`
	Error       string       `json:"error,omitempty"`
	ErrorType   string       `json:"error_type,omitempty"`
}
