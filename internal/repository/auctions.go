package repository

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/joseph-ayodele/auctions-etl/internal/common"
	"github.com/joseph-ayodele/auctions-etl/internal/extract"
	"github.com/joseph-ayodele/auctions-etl/internal/office"
)

// AuctionRecord is the persisted form of an extracted listing. The case
// number carries the table's uniqueness constraint; OfficeID and
// OfficeAssociated record the outcome of the reference-table resolution.
type AuctionRecord struct {
	Fields           extract.AuctionFields
	OfficeID         string
	OfficeAssociated bool
	DocID            string
	RawText          string
	ExtractedAt      time.Time
}

// AuctionsRepository is the persistence capability the pipeline needs: a
// batched existence check for deduplication and an insert whose unique-key
// violation is surfaced as ErrDuplicateKey, never as a failure.
type AuctionsRepository interface {
	ExistsAny(ctx context.Context, keys []string) (map[string]struct{}, error)
	Insert(ctx context.Context, rec *AuctionRecord) error
	ListAuctions(ctx context.Context, fromDate, toDate *time.Time) ([]*AuctionRecord, error)
	LoadOffices(ctx context.Context) ([]office.Entry, error)
}

type auctionsRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewAuctionsRepository(pool *pgxpool.Pool, logger *slog.Logger) AuctionsRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &auctionsRepository{pool: pool, logger: logger}
}

func (r *auctionsRepository) ExistsAny(ctx context.Context, keys []string) (map[string]struct{}, error) {
	out := make(map[string]struct{}, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	rows, err := r.pool.Query(ctx,
		`SELECT case_number FROM auctions WHERE case_number = ANY($1)`, keys)
	if err != nil {
		r.logger.Error("auctions.exists_any_failed", "keys", len(keys), "error", err)
		return nil, common.NewAppError("DB_QUERY", "existence check failed", common.ErrDependency)
	}
	defer rows.Close()
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, common.WrapError(err, "scan case_number")
		}
		out[k] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, common.NewAppError("DB_QUERY", "existence check failed", common.ErrDependency)
	}
	return out, nil
}

func (r *auctionsRepository) Insert(ctx context.Context, rec *AuctionRecord) error {
	f := rec.Fields
	_, err := r.pool.Exec(ctx, `
		INSERT INTO auctions (
			case_number, court_name, plaintiff, defendant,
			auction_date, auction_time, sheriff_office, sheriff_address,
			erf_number, township, extension, registration_division, province,
			stand_size, deed_of_transfer_number, street_address, zoning,
			reserve_price, bedrooms, bathrooms, kitchen, scullery, laundry,
			living_areas, garage, carport, other_structures,
			registration_fee_required, fica_requirements,
			attorney, attorney_contact, attorney_reference,
			notice_date, additional_fees, total_estimated_cost, currency,
			conditions_of_sale, model_confidence,
			office_id, office_associated,
			source_doc, auction_description, data_extraction_date
		) VALUES (
			$1,$2,$3,$4,
			NULLIF($5,'')::date,NULLIF($6,'')::time,$7,$8,
			$9,$10,$11,$12,$13,
			$14,$15,$16,$17,
			$18,$19,$20,$21,$22,$23,
			$24,$25,$26,$27,
			$28,$29,
			$30,$31,$32,
			NULLIF($33,'')::date,$34,$35,$36,
			$37,$38,
			$39,$40,
			$41,$42,$43
		)`,
		f.CaseNumber, f.CourtName, f.Plaintiff, f.Defendant,
		f.AuctionDate, f.AuctionTime, f.SheriffOffice, f.SheriffAddress,
		f.ErfNumber, f.Township, f.Extension, f.RegistrationDivision, f.Province,
		f.StandSize, f.DeedOfTransferNumber, f.StreetAddress, f.Zoning,
		f.ReservePrice, f.Bedrooms, f.Bathrooms, f.Kitchen, f.Scullery, f.Laundry,
		f.LivingAreas, f.Garage, f.Carport, f.OtherStructures,
		f.RegistrationFee, f.FicaRequirements,
		f.Attorney, f.AttorneyContact, f.AttorneyReference,
		f.NoticeDate, f.AdditionalFees, f.TotalEstimatedCost, f.Currency,
		f.ConditionsOfSale, f.ModelConfidence,
		rec.OfficeID, rec.OfficeAssociated,
		rec.DocID, rec.RawText, rec.ExtractedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			// A concurrent batch or external writer got there first. The
			// uniqueness constraint is the pipeline's concurrency control,
			// so this is a skip, not a failure.
			r.logger.Info("auctions.duplicate_key", "case_number", f.CaseNumber)
			return common.NewAppError("DB_DUPLICATE", "case number already persisted", common.ErrDuplicateKey)
		}
		r.logger.Error("auctions.insert_failed", "case_number", f.CaseNumber, "error", err)
		return common.NewAppError("DB_INSERT", "insert auction", common.ErrDependency)
	}
	return nil
}

func (r *auctionsRepository) ListAuctions(ctx context.Context, fromDate, toDate *time.Time) ([]*AuctionRecord, error) {
	q := `SELECT case_number, court_name, plaintiff, defendant,
		COALESCE(auction_date::text,''), COALESCE(auction_time::text,''),
		sheriff_office, street_address, reserve_price, currency,
		office_id, office_associated, source_doc, data_extraction_date
		FROM auctions`
	args := []any{}
	switch {
	case fromDate != nil && toDate != nil:
		q += ` WHERE auction_date >= $1 AND auction_date <= $2`
		args = append(args, *fromDate, *toDate)
	case fromDate != nil:
		q += ` WHERE auction_date >= $1`
		args = append(args, *fromDate)
	case toDate != nil:
		q += ` WHERE auction_date <= $1`
		args = append(args, *toDate)
	}
	q += ` ORDER BY auction_date NULLS LAST, case_number`

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		r.logger.Error("auctions.list_failed", "error", err)
		return nil, common.NewAppError("DB_QUERY", "list auctions", common.ErrDependency)
	}
	defer rows.Close()

	var out []*AuctionRecord
	for rows.Next() {
		rec := &AuctionRecord{}
		f := &rec.Fields
		if err := rows.Scan(
			&f.CaseNumber, &f.CourtName, &f.Plaintiff, &f.Defendant,
			&f.AuctionDate, &f.AuctionTime,
			&f.SheriffOffice, &f.StreetAddress, &f.ReservePrice, &f.Currency,
			&rec.OfficeID, &rec.OfficeAssociated, &rec.DocID, &rec.ExtractedAt,
		); err != nil {
			return nil, common.WrapError(err, "scan auction")
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *auctionsRepository) LoadOffices(ctx context.Context) ([]office.Entry, error) {
	rows, err := r.pool.Query(ctx, `SELECT sheriff_office, id FROM offices ORDER BY sheriff_office`)
	if err != nil {
		r.logger.Error("offices.load_failed", "error", err)
		return nil, common.NewAppError("DB_QUERY", "load offices", common.ErrDependency)
	}
	defer rows.Close()

	var entries []office.Entry
	for rows.Next() {
		var e office.Entry
		if err := rows.Scan(&e.Name, &e.ID); err != nil {
			return nil, common.WrapError(err, "scan office")
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
