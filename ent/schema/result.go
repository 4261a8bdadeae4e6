package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Result holds the schema definition for the Result entity.
//
// Write-once: a PlannedRun has at most one Result row, inserted when the
// agent reports a terminal outcome. Later reports for the same run_id are
// rejected by the ledger rather than overwriting.
type Result struct {
	ent.Schema
}

// Fields of the Result.
func (Result) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("result_id").
			Unique().
			Immutable(),
		field.String("run_id").
			Unique().
			Immutable(),
		field.Bool("passed").
			Immutable(),
		field.JSON("metrics", map[string]interface{}{}).
			Optional().
			Immutable().
			Comment("Benchmark-reported metric name/value pairs"),
		field.String("raw_output_location").
			Optional().
			Immutable().
			Comment("Agent-local path or object store key; server does not fetch it"),
		field.JSON("hardware_snapshot", map[string]interface{}{}).
			Optional().
			Immutable(),
		field.Time("reported_at").
			Immutable(),
	}
}

// Indexes of the Result.
func (Result) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("run_id").
			Unique(),
	}
}
