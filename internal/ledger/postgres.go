package ledger

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	"sjsage522/hotelpricesync/logger"
	"sjsage522/hotelpricesync/pkg/errors"

	"github.com/lib/pq"
)

const dateLayout = "2006-01-02"

var schema = []string{
	`CREATE TABLE IF NOT EXISTS listings (
		id                BIGSERIAL PRIMARY KEY,
		name              TEXT NOT NULL,
		booking_url       TEXT NOT NULL UNIQUE,
		address           TEXT,
		city              TEXT,
		country           TEXT,
		star_rating       DOUBLE PRECISION,
		user_rating       DOUBLE PRECISION,
		user_rating_count INTEGER,
		amenities         TEXT[] NOT NULL DEFAULT '{}',
		latitude          DOUBLE PRECISION,
		longitude         DOUBLE PRECISION,
		is_active         BOOLEAN NOT NULL DEFAULT TRUE,
		created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS price_records (
		id             BIGSERIAL PRIMARY KEY,
		listing_id     BIGINT NOT NULL REFERENCES listings(id) ON DELETE CASCADE,
		check_in_date  DATE NOT NULL,
		check_out_date DATE NOT NULL,
		price          DOUBLE PRECISION NOT NULL,
		currency       VARCHAR(3) NOT NULL DEFAULT 'EUR',
		room_type      TEXT NOT NULL,
		board_type     TEXT,
		source         TEXT NOT NULL DEFAULT 'booking.com',
		scraped_at     TIMESTAMPTZ NOT NULL,
		UNIQUE (listing_id, check_in_date, check_out_date, room_type)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_price_records_listing_stay ON price_records (listing_id, check_in_date)`,
}

const listingColumns = `id, name, booking_url, address, city, country, star_rating, user_rating,
	user_rating_count, amenities, latitude, longitude, is_active`

// Postgres is a Store backed by PostgreSQL
type Postgres struct {
	db  *sql.DB
	log *logger.Logger
}

var _ Store = (*Postgres)(nil)

// OpenPostgres connects to dsn and checks the connection
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, errors.NewStorage("postgres", "failed to open database", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.NewStorage("postgres", "failed to ping database", err)
	}
	return NewPostgres(db), nil
}

// NewPostgres wraps an open database handle
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db, log: logger.ForLedger()}
}

// Migrate creates the tables when they do not exist
func (p *Postgres) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return errors.NewStorage("postgres", "migration failed", err)
		}
	}
	p.log.Info().Msg("Ledger schema is ready")
	return nil
}

// Upsert inserts r or updates the record with the same natural key.
// xmax is zero only for a freshly inserted row.
func (p *Postgres) Upsert(ctx context.Context, r Record) (Outcome, error) {
	r = normalize(r)

	var inserted bool
	err := p.db.QueryRowContext(ctx, `
		INSERT INTO price_records
			(listing_id, check_in_date, check_out_date, price, currency, room_type, board_type, source, scraped_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (listing_id, check_in_date, check_out_date, room_type) DO UPDATE SET
			price      = EXCLUDED.price,
			currency   = EXCLUDED.currency,
			board_type = EXCLUDED.board_type,
			source     = EXCLUDED.source,
			scraped_at = EXCLUDED.scraped_at
		RETURNING (xmax = 0)`,
		r.ListingID, r.CheckIn, r.CheckOut, r.Price, r.Currency, r.RoomType, r.BoardType, r.Source, r.ScrapedAt,
	).Scan(&inserted)
	if err != nil {
		return 0, errors.NewStorage("postgres", "upsert failed", err)
	}
	if inserted {
		return Added, nil
	}
	return Updated, nil
}

func (p *Postgres) ListByListing(ctx context.Context, listingID int64) ([]Record, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT listing_id, check_in_date, check_out_date, price, currency, room_type, board_type, source, scraped_at
		FROM price_records
		WHERE listing_id = $1
		ORDER BY check_in_date, check_out_date, room_type`, listingID)
	if err != nil {
		return nil, errors.NewStorage("postgres", "list prices failed", err)
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		var r Record
		var in, outDate time.Time
		if err := rows.Scan(&r.ListingID, &in, &outDate, &r.Price, &r.Currency, &r.RoomType, &r.BoardType, &r.Source, &r.ScrapedAt); err != nil {
			return nil, errors.NewStorage("postgres", "scan price failed", err)
		}
		r.CheckIn = in.Format(dateLayout)
		r.CheckOut = outDate.Format(dateLayout)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStorage("postgres", "list prices failed", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanListing(s scanner) (*Listing, error) {
	var l Listing
	err := s.Scan(&l.ID, &l.Name, &l.BookingURL, &l.Address, &l.City, &l.Country, &l.StarRating, &l.UserRating,
		&l.RatingCount, pq.Array(&l.Amenities), &l.Latitude, &l.Longitude, &l.IsActive)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (p *Postgres) Get(ctx context.Context, id int64) (*Listing, error) {
	l, err := scanListing(p.db.QueryRowContext(ctx, `SELECT `+listingColumns+` FROM listings WHERE id = $1`, id))
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.NewStorage("postgres", "get listing failed", err)
	}
	return l, nil
}

func (p *Postgres) Active(ctx context.Context) ([]Listing, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT `+listingColumns+` FROM listings WHERE is_active ORDER BY id`)
	if err != nil {
		return nil, errors.NewStorage("postgres", "list listings failed", err)
	}
	defer rows.Close()

	out := []Listing{}
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, errors.NewStorage("postgres", "scan listing failed", err)
		}
		out = append(out, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStorage("postgres", "list listings failed", err)
	}
	return out, nil
}

const uniqueViolation = "23505"

func (p *Postgres) Create(ctx context.Context, l Listing) (*Listing, error) {
	amenities := l.Amenities
	if amenities == nil {
		amenities = []string{}
	}
	created, err := scanListing(p.db.QueryRowContext(ctx, `
		INSERT INTO listings
			(name, booking_url, address, city, country, star_rating, user_rating, user_rating_count, amenities, latitude, longitude, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING `+listingColumns,
		l.Name, l.BookingURL, l.Address, l.City, l.Country, l.StarRating, l.UserRating, l.RatingCount,
		pq.Array(amenities), l.Latitude, l.Longitude, l.IsActive,
	))
	var pqErr *pq.Error
	if stderrors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return nil, ErrDuplicate
	}
	if err != nil {
		return nil, errors.NewStorage("postgres", "create listing failed", err)
	}
	return created, nil
}

// ApplyProfile updates only the columns for which u carries a value
func (p *Postgres) ApplyProfile(ctx context.Context, id int64, u ProfileUpdate) error {
	var amenities interface{}
	if len(u.Amenities) > 0 {
		amenities = pq.Array(u.Amenities)
	}
	res, err := p.db.ExecContext(ctx, `
		UPDATE listings SET
			name              = COALESCE($2, name),
			address           = COALESCE($3, address),
			city              = COALESCE($4, city),
			country           = COALESCE($5, country),
			star_rating       = COALESCE($6, star_rating),
			user_rating       = COALESCE($7, user_rating),
			user_rating_count = COALESCE($8, user_rating_count),
			amenities         = COALESCE($9::text[], amenities),
			latitude          = COALESCE($10, latitude),
			longitude         = COALESCE($11, longitude),
			updated_at        = NOW()
		WHERE id = $1`,
		id, u.Name, u.Address, u.City, u.Country, u.StarRating, u.UserRating, u.RatingCount, amenities, u.Latitude, u.Longitude,
	)
	if err != nil {
		return errors.NewStorage("postgres", "update listing failed", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// Close closes the database handle
func (p *Postgres) Close() error {
	return p.db.Close()
}
