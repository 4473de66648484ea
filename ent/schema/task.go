package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Task holds the schema definition for the Task entity.
//
// This schema documents the shape of the task store's aggregate table; the
// store itself is hand-written over pgx rather than generated from this
// file, since the dynamic, policy-driven field set an aggregated task
// record carries (spec field policy table) does not map onto a fixed Ent
// field list. Fields records the well-known columns every task has
// regardless of policy; Attributes holds the remainder as JSONB.
type Task struct {
	ent.Schema
}

// Mixin of the Task.
func (Task) Mixin() []ent.Mixin {
	return []ent.Mixin{
		TimeMixin{},
	}
}

// Fields of the Task.
func (Task) Fields() []ent.Field {
	return []ent.Field{
		field.String("uuid").
			Unique().
			Immutable(),
		field.Int("task_num").
			Immutable(),
		field.String("state").
			Optional(),
		field.Float("actual_runtime").
			Optional(),
		field.Float("first_started").
			Optional(),
		field.JSON("attributes", map[string]any{}).
			Optional(),
	}
}

// Indexes of the Task.
func (Task) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("uuid").Unique(),
		index.Fields("state"),
		index.Fields("task_num"),
	}
}
