package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"

	"github.com/google/uuid"
)

type Auction struct{ ent.Schema }

func (Auction) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "auctions"},
	}
}

func (Auction) Fields() []ent.Field {
	return []ent.Field{
		field.UUID("id", uuid.UUID{}).
			Default(uuid.New).
			Immutable().
			StorageKey("id"),
		// Natural key; the unique constraint is the pipeline's dedupe line.
		field.String("case_number").NotEmpty().Unique(),
		field.String("court_name").Optional(),
		field.String("plaintiff").Optional(),
		field.String("defendant").Optional(),
		field.Time("auction_date").
			Optional().Nillable().
			SchemaType(map[string]string{dialect.Postgres: "date"}),
		field.String("auction_time").Optional().
			SchemaType(map[string]string{dialect.Postgres: "time"}),
		field.String("sheriff_office").Optional(),
		field.String("sheriff_address").Optional(),
		field.String("erf_number").Optional(),
		field.String("township").Optional(),
		field.String("extension").Optional(),
		field.String("registration_division").Optional(),
		field.String("province").Optional(),
		field.Int64("stand_size").Optional(),
		field.String("deed_of_transfer_number").Optional(),
		field.String("street_address").Optional(),
		field.String("zoning").Optional(),
		field.Int64("reserve_price").Optional(),
		field.Int64("bedrooms").Optional(),
		field.Int64("bathrooms").Optional(),
		field.String("kitchen").Optional(),
		field.String("scullery").Optional(),
		field.String("laundry").Optional(),
		field.Int64("living_areas").Optional(),
		field.String("garage").Optional(),
		field.String("carport").Optional(),
		field.String("other_structures").Optional(),
		field.String("registration_fee_required").Optional(),
		field.String("fica_requirements").Optional(),
		field.String("attorney").Optional(),
		field.String("attorney_contact").Optional(),
		field.String("attorney_reference").Optional(),
		field.Time("notice_date").
			Optional().Nillable().
			SchemaType(map[string]string{dialect.Postgres: "date"}),
		field.String("additional_fees").Optional(),
		field.Int64("total_estimated_cost").Optional(),
		field.String("currency").Optional().MaxLen(3).
			SchemaType(map[string]string{dialect.Postgres: "char(3)"}),
		field.String("conditions_of_sale").Optional(),
		field.Float32("model_confidence").Optional(),
		field.UUID("office_id", uuid.UUID{}).Optional(),
		field.Bool("office_associated").Default(false),
		field.String("source_doc").Optional(),
		field.Text("auction_description").Optional(),
		field.Time("data_extraction_date").Default(time.Now),
		field.Time("created_at").Default(time.Now),
		field.Time("updated_at").Default(time.Now).UpdateDefault(time.Now),
	}
}

func (Auction) Edges() []ent.Edge {
	return []ent.Edge{
		// MANY auctions -> ONE office (FK: auctions.office_id)
		edge.From("office", Office.Type).
			Ref("auctions").
			Field("office_id").
			Unique(),
	}
}
