package aggregate

import "context"

// TaskStore is the abstract capability set the aggregator core needs from
// persistence (spec §4.E). Implementations must uphold:
//
//   - Get only ever returns a record previously handed to Insert, possibly
//     since mutated by Update.
//   - Insert's precondition is Exists(uuid) == false; violating it is a
//     programmer error (the bundled stores return
//     internal/pkg/errors.ErrTaskAlreadyExistsf).
//   - Update's precondition is Exists(uuid) == true; violating it is a
//     programmer error (the bundled stores return
//     internal/pkg/errors.ErrTaskNotFoundf).
//   - ListIncomplete returns records where actual_runtime is unset OR
//     state is a member of the incomplete runstate set.
type TaskStore interface {
	Exists(ctx context.Context, uuid string) (bool, error)
	Get(ctx context.Context, uuid string) (TaskRecord, bool, error)
	Insert(ctx context.Context, task TaskRecord) (TaskRecord, error)
	Update(ctx context.Context, uuid string, delta ChangeSet) error
	ListIncomplete(ctx context.Context, states RunStates) ([]TaskRecord, error)
}
