package aggregate

import "strings"

// Transform is a pure function mapping an entire event to a partial update
// of the task record. Transforms are used to rename fields or synthesize
// derived ones (e.g. deriving `state`/`states` from `type`).
type Transform func(e Event) map[string]any

// FieldPolicy declares how a single field name participates in
// normalization and change detection.
//
//   - Copy: the field is copied verbatim from the event into the proposed
//     update when present.
//   - Merge: updates to the field are deep-merged with the stored value
//     instead of overwritten.
//   - KeepInitial: once the field has a stored value, later updates to it
//     are dropped.
//   - Transform: executed against the whole event when the field name is
//     present on it; its output is merged into the proposed update,
//     applied AFTER any Copy for the same field name (so a Transform may
//     overwrite what Copy wrote).
type FieldPolicy struct {
	Copy        bool
	Merge       bool
	KeepInitial bool
	Transform   Transform
}

// FieldEntry pairs a field name with its policy. FieldTable is a slice
// rather than a map so that transform application order is deterministic
// and matches the declared table order (relevant when two fields on the
// same event produce transforms that write overlapping keys, e.g. `name`
// and `long_name`).
type FieldEntry struct {
	Field  string
	Policy FieldPolicy
}

// FieldTable is the declarative, ordered field-name -> FieldPolicy table.
// Any field name may appear with any subset of {Copy, Merge, KeepInitial},
// optionally with a Transform. Fields absent from the table default to a
// no-op policy: they are neither copied, merged, kept-initial, nor
// transformed, and are therefore ignored by the normalizer (though they may
// still reach the store directly via an explicit insert).
type FieldTable []FieldEntry

// Config is the immutable, precomputed aggregator configuration derived
// from a FieldTable: the sets/ordered-transforms every other component
// consumes.
type Config struct {
	CopyFields        map[string]struct{}
	MergeFields       map[string]struct{}
	KeepInitialFields map[string]struct{}
	Transforms        []FieldEntry
}

// NewConfig derives the effective aggregator Config from a FieldTable.
// Computation happens once at construction time; callers should treat the
// result as immutable.
func NewConfig(table FieldTable) Config {
	cfg := Config{
		CopyFields:        make(map[string]struct{}),
		MergeFields:       make(map[string]struct{}),
		KeepInitialFields: make(map[string]struct{}),
	}
	for _, entry := range table {
		if entry.Policy.Copy {
			cfg.CopyFields[entry.Field] = struct{}{}
		}
		if entry.Policy.Merge {
			cfg.MergeFields[entry.Field] = struct{}{}
		}
		if entry.Policy.KeepInitial {
			cfg.KeepInitialFields[entry.Field] = struct{}{}
		}
		if entry.Policy.Transform != nil {
			cfg.Transforms = append(cfg.Transforms, entry)
		}
	}
	return cfg
}

// DefaultFieldTable is the canonical field policy table (spec §6). Field
// names here are the wire names as sent by the worker bus; copy_celery/
// aggregate_merge/aggregate_keep_initial from the originating framework map
// 1:1 onto Copy/Merge/KeepInitial.
func DefaultFieldTable(states RunStates) FieldTable {
	runStateEventTypes := states.RunStateEventTypes()

	return FieldTable{
		{"uuid", FieldPolicy{Copy: true}},
		{"hostname", FieldPolicy{Copy: true}},
		{"parent_id", FieldPolicy{Copy: true}},
		{"retries", FieldPolicy{Copy: true}},
		{"bound_args", FieldPolicy{Copy: true}},
		{"default_bound_args", FieldPolicy{Copy: true}},
		{"actual_runtime", FieldPolicy{Copy: true}},
		{"utcoffset", FieldPolicy{Copy: true}},
		{"from_plugin", FieldPolicy{Copy: true}},
		{"results", FieldPolicy{Copy: true}},
		{"traceback", FieldPolicy{Copy: true}},
		{"exception", FieldPolicy{Copy: true}},
		{"chain_depth", FieldPolicy{Copy: true}},
		{"exception_cause_uuid", FieldPolicy{Copy: true}},

		{"type", FieldPolicy{
			Copy: true,
			Transform: func(e Event) map[string]any {
				eventType := e.Type()
				if _, ok := runStateEventTypes[eventType]; !ok {
					return map[string]any{}
				}
				state := CanonicalizeEventType(eventType)
				entry := map[string]any{"state": state}
				if ts, ok := e["timestamp"]; ok {
					entry["timestamp"] = ts
				} else {
					entry["timestamp"] = nil
				}
				return map[string]any{
					"state":  state,
					"states": []any{entry},
				}
			},
		}},

		{"long_name", FieldPolicy{
			Copy: true,
			Transform: func(e Event) map[string]any {
				longName, _ := e["long_name"].(string)
				return map[string]any{"name": lastSegment(longName, ".")}
			},
		}},

		// TODO: producers should send long_name, since it overwrites `name`
		// copied from the bus. Kept for producers that only send `name`.
		{"name", FieldPolicy{
			Transform: func(e Event) map[string]any {
				name, _ := e["name"].(string)
				return map[string]any{
					"name":      lastSegment(name, "."),
					"long_name": name,
				}
			},
		}},

		{"first_started", FieldPolicy{KeepInitial: true}},

		{"states", FieldPolicy{Merge: true}},

		// Kept for backwards compat; log_filepath is preferred.
		{"url", FieldPolicy{
			Transform: func(e Event) map[string]any {
				return map[string]any{"logs_url": e["url"]}
			},
		}},

		{"log_filepath", FieldPolicy{
			Transform: func(e Event) map[string]any {
				return map[string]any{"logs_url": e["log_filepath"]}
			},
		}},

		{"local_received", FieldPolicy{
			Transform: func(e Event) map[string]any {
				return map[string]any{"first_started": e["local_received"]}
			},
		}},
	}
}

// lastSegment returns the final separator-delimited component of s, or s
// itself when sep does not occur.
func lastSegment(s, sep string) string {
	idx := strings.LastIndex(s, sep)
	if idx == -1 {
		return s
	}
	return s[idx+len(sep):]
}
