package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// StreamEvent holds the schema definition for the StreamEvent entity.
//
// Backs both LogLine and StatusEvent from the append-only per-stream log:
// "kind" distinguishes the two, "payload" carries the kind-specific body.
// The (stream_id, sequence) unique index is what append_log's monotonic
// counter relies on to reject out-of-order or duplicate writes.
type StreamEvent struct {
	ent.Schema
}

// Fields of the StreamEvent.
func (StreamEvent) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("event_id").
			Unique().
			Immutable(),
		field.String("stream_id").
			Immutable().
			Comment("Usually a run_id or campaign_id, see event bus stream addressing"),
		field.Int64("sequence").
			Immutable(),
		field.Enum("kind").
			Values("log", "status").
			Immutable(),
		field.JSON("payload", map[string]interface{}{}).
			Immutable(),
		field.Time("created_at").
			Immutable(),
	}
}

// Indexes of the StreamEvent.
func (StreamEvent) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("stream_id", "sequence").
			Unique(),
	}
}
