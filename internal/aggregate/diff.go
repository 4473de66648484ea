package aggregate

// Diff computes the delta between an existing task record and a proposed
// update, honoring merge and keep-initial fields (spec §4.D).
//
// Overwrite fields (anything not in keepInitial or merge) land in the delta
// only when they actually change the stored value. Keep-initial fields only
// land in the delta the first time they're set. Merge fields are deep-merged
// with whatever the task already holds and land in the delta only when the
// merged result differs from the stored value.
func Diff(task TaskRecord, proposed map[string]any, keepInitialFields, mergeFields map[string]struct{}) ChangeSet {
	delta := make(ChangeSet)

	for k, v := range proposed {
		if _, keep := keepInitialFields[k]; keep {
			continue
		}
		if _, merge := mergeFields[k]; merge {
			continue
		}
		if existing, ok := task[k]; !ok || !valuesEqual(existing, v) {
			delta[k] = v
		}
	}

	for k := range keepInitialFields {
		v, present := proposed[k]
		if !present {
			continue
		}
		if _, already := task[k]; already {
			continue
		}
		delta[k] = v
	}

	restrictedTask := restrict(task, mergeFields)
	restrictedProposed := restrict(proposed, mergeFields)
	merged := deepMerge(restrictedTask, restrictedProposed)
	for k, v := range merged {
		if existing, ok := task[k]; !ok || !valuesEqual(existing, v) {
			delta[k] = v
		}
	}

	return delta
}

// restrict returns the subset of m whose keys are present in keys.
func restrict[M ~map[string]any](m M, keys map[string]struct{}) map[string]any {
	out := make(map[string]any, len(keys))
	for k := range keys {
		if v, ok := m[k]; ok {
			out[k] = v
		}
	}
	return out
}
