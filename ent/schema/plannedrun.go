package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// PlannedRun holds the schema definition for the PlannedRun entity.
//
// One row per (model, engine, quant, benchmark) combination expanded by the
// campaign planner from a Campaign's config. The composite index below is
// the uniqueness invariant the planner's idempotent insert relies on.
type PlannedRun struct {
	ent.Schema
}

// Fields of the PlannedRun.
func (PlannedRun) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("run_id").
			Unique().
			Immutable(),
		field.String("campaign_id").
			Immutable(),
		field.String("model_ref").
			Immutable(),
		field.String("engine_name").
			Immutable(),
		field.Enum("engine_mode").
			Values("docker", "native").
			Immutable(),
		field.String("benchmark_name").
			Immutable(),
		field.String("suite_name").
			Optional().
			Immutable(),
		field.String("quant").
			Optional().
			Immutable().
			Comment("Empty string means unquantized / engine default"),
		field.Float("estimated_size_gb").
			Optional(),
		field.Enum("status").
			Values("pending", "queued", "dispatched", "running", "completed", "failed", "skipped", "cancelled").
			Default("pending"),
		field.String("command_id").
			Optional().
			Nillable(),
		field.Time("watchdog_deadline").
			Optional().
			Nillable().
			Comment("Set when the executor enqueues the run (enqueue time plus the per-run timeout); not cleared afterwards"),
		field.Time("queued_at").
			Optional().
			Nillable(),
		field.Time("dispatched_at").
			Optional().
			Nillable(),
		field.Time("started_at").
			Optional().
			Nillable(),
		field.Time("completed_at").
			Optional().
			Nillable(),
		field.String("error_message").
			Optional(),
		field.String("error_kind").
			Optional().
			Comment("One of the typed error_kind constants, empty when not failed"),
	}
}

// Indexes of the PlannedRun.
func (PlannedRun) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("campaign_id", "model_ref", "engine_name", "quant", "benchmark_name").
			Unique(),
		index.Fields("campaign_id", "status"),
		index.Fields("status"),
	}
}
