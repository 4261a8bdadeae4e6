package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Campaign holds the schema definition for the Campaign entity.
type Campaign struct {
	ent.Schema
}

// Fields of the Campaign.
func (Campaign) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("campaign_id").
			Unique().
			Immutable(),
		field.String("name"),
		field.JSON("config", map[string]interface{}{}).
			Immutable().
			Comment("Immutable blob: models, engines, benchmarks, filters, limits"),
		field.Enum("status").
			Values("draft", "queued", "running", "completed", "failed", "cancelled").
			Default("draft"),
		field.String("agent_id").
			Optional().
			Nillable().
			Comment("Target agent; resolved at start time"),
		field.Int("total_runs").
			Default(0),
		field.Int("succeeded").
			Default(0),
		field.Int("failed").
			Default(0),
		field.Int("skipped").
			Default(0),
		field.Int("cancelled").
			Default(0),
		field.String("created_by").
			Optional().
			Nillable().
			Comment("Derived from request headers, same convention as an oauth2-proxy-fronted API"),
		field.Time("created_at"),
		field.Time("started_at").
			Optional().
			Nillable(),
		field.Time("completed_at").
			Optional().
			Nillable(),
	}
}

// Indexes of the Campaign.
func (Campaign) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("status"),
		index.Fields("status", "created_at"),
	}
}
