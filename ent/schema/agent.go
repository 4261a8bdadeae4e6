package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Agent holds the schema definition for the Agent entity.
//
// Schema is documented here (and mirrored by the migration SQL in
// pkg/database/migrations) rather than consumed through a generated ent
// client: this repository persists through database/sql + pgx directly
// (see pkg/ledger). The Fields/Edges/Indexes below remain the single
// source of truth for column shape and constraints.
type Agent struct {
	ent.Schema
}

// Fields of the Agent.
func (Agent) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("agent_id").
			Unique().
			Immutable(),
		field.String("name").
			Unique().
			Comment("Human-chosen, unique display name"),
		field.String("hostname").
			Optional(),
		field.Int("port").
			Optional(),
		field.String("cpu_arch").
			Optional().
			Comment("Normalized: amd64|arm64|..."),
		field.JSON("gpu_summary", map[string]interface{}{}).
			Optional().
			Comment("GPU model, count, VRAM as reported at heartbeat"),
		field.Enum("status").
			Values("online", "offline").
			Default("offline"),
		field.Time("last_heartbeat").
			Optional().
			Nillable(),
		field.String("token_hash").
			Comment("SHA-256 of the provisioned raw token; raw token is never stored"),
		field.String("token_prefix").
			Comment("First 8 chars of the raw token, for display only"),
		field.String("kitt_version").
			Optional().
			Comment("Agent build version, reported at heartbeat"),
		field.Time("registered_at").
			Immutable(),
		field.Time("unregistered_at").
			Optional().
			Nillable().
			Comment("Set on explicit unregister; agent row is retained for audit"),
	}
}

// Indexes of the Agent.
func (Agent) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("status"),
		index.Fields("token_hash").
			Unique(),
	}
}
