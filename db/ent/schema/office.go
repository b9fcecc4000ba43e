package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"github.com/google/uuid"
)

// Office maps to the existing public.offices reference table.
type Office struct {
	ent.Schema
}

func (Office) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "offices"},
	}
}

func (Office) Fields() []ent.Field {
	return []ent.Field{
		field.UUID("id", uuid.UUID{}).
			Default(uuid.New).
			Immutable().
			StorageKey("id"),
		field.String("sheriff_office").
			NotEmpty().
			Unique().
			SchemaType(map[string]string{dialect.Postgres: "text"}),
		field.String("province").
			Optional().
			SchemaType(map[string]string{dialect.Postgres: "text"}),
	}
}

func (Office) Edges() []ent.Edge {
	return []ent.Edge{
		edge.To("auctions", Auction.Type),
	}
}
