package aggregate

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDiff_OverwriteFieldLandsWhenChanged(t *testing.T) {
	task := TaskRecord{"hostname": "worker-1"}
	proposed := map[string]any{"hostname": "worker-2"}

	delta := Diff(task, proposed, nil, nil)

	require.Equal(t, ChangeSet{"hostname": "worker-2"}, delta)
}

func TestDiff_OverwriteFieldOmittedWhenUnchanged(t *testing.T) {
	task := TaskRecord{"hostname": "worker-1"}
	proposed := map[string]any{"hostname": "worker-1"}

	delta := Diff(task, proposed, nil, nil)

	require.Empty(t, delta)
}

func TestDiff_KeepInitialFieldOnlyLandsOnce(t *testing.T) {
	keepInitial := map[string]struct{}{"first_started": {}}

	freshTask := TaskRecord{}
	delta := Diff(freshTask, map[string]any{"first_started": 100.0}, keepInitial, nil)
	require.Equal(t, ChangeSet{"first_started": 100.0}, delta)

	alreadySetTask := TaskRecord{"first_started": 100.0}
	delta = Diff(alreadySetTask, map[string]any{"first_started": 200.0}, keepInitial, nil)
	require.Empty(t, delta)
}

func TestDiff_MergeFieldDeepMergesAndLandsOnChange(t *testing.T) {
	mergeFields := map[string]struct{}{"states": {}}

	task := TaskRecord{"states": []any{"task-received"}}
	proposed := map[string]any{"states": []any{"task-started"}}

	delta := Diff(task, proposed, nil, mergeFields)

	require.Equal(t, []any{"task-received", "task-started"}, delta["states"])
}

func TestDiff_MergeFieldOmittedWhenProposedAbsent(t *testing.T) {
	mergeFields := map[string]struct{}{"states": {}}

	task := TaskRecord{"states": []any{"task-received"}}
	proposed := map[string]any{"hostname": "worker-1"}

	delta := Diff(task, proposed, nil, mergeFields)

	_, present := delta["states"]
	require.False(t, present)
}

func TestDiff_NewFieldAlwaysLands(t *testing.T) {
	task := TaskRecord{}
	proposed := map[string]any{"name": "my_task"}

	delta := Diff(task, proposed, nil, nil)

	require.Equal(t, ChangeSet{"name": "my_task"}, delta)
}
