package aggregate

// Normalize computes the proposed task-record update for a single event,
// applying copy and transform policies from cfg (spec §4.C). It is a pure
// function of (event, cfg) — no store access, no side effects.
//
// Per spec: when a field is both a copy field and carries a transform, the
// transform is applied after the copy and may overwrite the copied value.
func Normalize(e Event, cfg Config) map[string]any {
	proposed := make(map[string]any)

	for field := range cfg.CopyFields {
		if v, ok := e[field]; ok {
			proposed[field] = v
		}
	}

	for _, entry := range cfg.Transforms {
		if _, ok := e[entry.Field]; !ok {
			continue
		}
		for k, v := range entry.Policy.Transform(e) {
			proposed[k] = v
		}
	}

	return proposed
}
