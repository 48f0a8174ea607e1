package harness

import "encoding/json"

// TraceEvent records one executed flow step.
// Args and Result are normalized through JSON so that values read from YAML
// and values produced by the service compare and serialize identically.
type TraceEvent struct {
	Seq     int            `json:"seq"`
	Op      string         `json:"op"`
	Args    map[string]any `json:"args,omitempty"`
	Outcome string         `json:"outcome"`
	Result  map[string]any `json:"result,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every step matched its expectation and every assertion held.
	Pass bool `json:"pass"`

	// Trace contains every executed step in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a step to the trace and returns it.
func (r *Result) AddTrace(op string, args map[string]any, outcome string, result map[string]any) TraceEvent {
	event := TraceEvent{
		Seq:     len(r.Trace) + 1,
		Op:      op,
		Args:    normalizeMap(args),
		Outcome: outcome,
		Result:  normalizeMap(result),
	}
	r.Trace = append(r.Trace, event)
	return event
}

// normalize round-trips v through JSON: integers become float64, structs
// become maps and typed slices become []any.
func normalize(v any) any {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return v
	}
	return out
}

func normalizeMap(m map[string]any) map[string]any {
	if len(m) == 0 {
		return nil
	}
	out, ok := normalize(m).(map[string]any)
	if !ok {
		return m
	}
	return out
}
