// Package postgres implements the storage interfaces on PostgreSQL. The
// raffle aggregate is stored as one row with JSONB children, except the
// ticket ledger which lives in its own append-only table.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/openraffle/raffle_layer/internal/app/domain/custody"
	"github.com/openraffle/raffle_layer/internal/app/domain/raffle"
	"github.com/openraffle/raffle_layer/internal/app/domain/randomness"
	"github.com/openraffle/raffle_layer/internal/app/storage"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store is a PostgreSQL-backed implementation of the storage interfaces.
type Store struct {
	db *sqlx.DB
}

var _ storage.RaffleStore = (*Store)(nil)
var _ storage.CustodyStore = (*Store)(nil)
var _ storage.RandomnessStore = (*Store)(nil)

// Open connects to the database and configures the pool.
func Open(dsn string, maxOpenConns int) (*Store, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
		db.SetMaxIdleConns(maxOpenConns/2 + 1)
	}
	db.SetConnMaxLifetime(30 * time.Minute)
	return New(db), nil
}

// New wraps an existing connection pool.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate applies the embedded schema migrations.
func (s *Store) Migrate() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}
	driver, err := migratepg.WithInstance(s.db.DB, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("prepare migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("prepare migrations: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

type raffleRow struct {
	ID           string    `db:"id"`
	Creator      string    `db:"creator"`
	PaymentAsset string    `db:"payment_asset"`
	TicketPrice  int64     `db:"ticket_price"`
	MinTickets   int64     `db:"min_tickets"`
	StartTime    time.Time `db:"start_time"`
	EndTime      time.Time `db:"end_time"`
	TotalWeight  int64     `db:"total_weight"`
	Seed         int64     `db:"seed"`
	RoyaltyPaid  bool      `db:"royalty_paid"`
	Prizes       []byte    `db:"prizes"`
	Pool         []byte    `db:"pool"`
	Weights      []byte    `db:"weights"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func newRaffleRow(r raffle.Raffle) (raffleRow, error) {
	prizes, err := json.Marshal(r.Prizes)
	if err != nil {
		return raffleRow{}, fmt.Errorf("encode prizes: %w", err)
	}
	pool, err := json.Marshal(r.Pool)
	if err != nil {
		return raffleRow{}, fmt.Errorf("encode pool: %w", err)
	}
	weights, err := json.Marshal(r.Weights)
	if err != nil {
		return raffleRow{}, fmt.Errorf("encode weights: %w", err)
	}
	return raffleRow{
		ID:           r.ID,
		Creator:      r.Creator,
		PaymentAsset: r.PaymentAsset,
		TicketPrice:  int64(r.TicketPrice),
		MinTickets:   int64(r.MinTickets),
		StartTime:    r.StartTime,
		EndTime:      r.EndTime,
		TotalWeight:  int64(r.TotalWeight),
		Seed:         int64(r.Seed),
		RoyaltyPaid:  r.RoyaltyPaid,
		Prizes:       prizes,
		Pool:         pool,
		Weights:      weights,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}, nil
}

func (row raffleRow) toDomain(batches []raffle.TicketBatch) (raffle.Raffle, error) {
	r := raffle.Raffle{
		ID:           row.ID,
		Creator:      row.Creator,
		PaymentAsset: row.PaymentAsset,
		TicketPrice:  uint64(row.TicketPrice),
		MinTickets:   uint64(row.MinTickets),
		StartTime:    row.StartTime,
		EndTime:      row.EndTime,
		TotalWeight:  uint64(row.TotalWeight),
		Seed:         uint64(row.Seed),
		RoyaltyPaid:  row.RoyaltyPaid,
		Batches:      batches,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}
	if err := json.Unmarshal(row.Prizes, &r.Prizes); err != nil {
		return raffle.Raffle{}, fmt.Errorf("decode prizes: %w", err)
	}
	if err := json.Unmarshal(row.Pool, &r.Pool); err != nil {
		return raffle.Raffle{}, fmt.Errorf("decode pool: %w", err)
	}
	if err := json.Unmarshal(row.Weights, &r.Weights); err != nil {
		return raffle.Raffle{}, fmt.Errorf("decode weights: %w", err)
	}
	return r, nil
}

const raffleColumns = `id, creator, payment_asset, ticket_price, min_tickets, start_time, end_time,
	total_weight, seed, royalty_paid, prizes, pool, weights, created_at, updated_at`

func (s *Store) CreateRaffle(ctx context.Context, r raffle.Raffle) (raffle.Raffle, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	r.CreatedAt = now
	r.UpdatedAt = now

	row, err := newRaffleRow(r)
	if err != nil {
		return raffle.Raffle{}, err
	}
	_, err = s.db.NamedExecContext(ctx, `
		INSERT INTO raffles (`+raffleColumns+`)
		VALUES (:id, :creator, :payment_asset, :ticket_price, :min_tickets, :start_time, :end_time,
			:total_weight, :seed, :royalty_paid, :prizes, :pool, :weights, :created_at, :updated_at)`, row)
	if err != nil {
		return raffle.Raffle{}, fmt.Errorf("insert raffle: %w", err)
	}
	return r, nil
}

func (s *Store) GetRaffle(ctx context.Context, id string) (raffle.Raffle, error) {
	var row raffleRow
	err := s.db.GetContext(ctx, &row, `SELECT `+raffleColumns+` FROM raffles WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return raffle.Raffle{}, fmt.Errorf("%w: %s", raffle.ErrNotFound, id)
	}
	if err != nil {
		return raffle.Raffle{}, fmt.Errorf("select raffle: %w", err)
	}
	batches, err := s.loadBatches(ctx, id)
	if err != nil {
		return raffle.Raffle{}, err
	}
	return row.toDomain(batches)
}

func (s *Store) UpdateRaffle(ctx context.Context, r raffle.Raffle) (raffle.Raffle, error) {
	r.UpdatedAt = time.Now().UTC()
	row, err := newRaffleRow(r)
	if err != nil {
		return raffle.Raffle{}, err
	}
	res, err := s.db.NamedExecContext(ctx, `
		UPDATE raffles SET
			creator = :creator,
			payment_asset = :payment_asset,
			ticket_price = :ticket_price,
			min_tickets = :min_tickets,
			start_time = :start_time,
			end_time = :end_time,
			total_weight = :total_weight,
			seed = :seed,
			royalty_paid = :royalty_paid,
			prizes = :prizes,
			pool = :pool,
			weights = :weights,
			updated_at = :updated_at
		WHERE id = :id`, row)
	if err != nil {
		return raffle.Raffle{}, fmt.Errorf("update raffle: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return raffle.Raffle{}, fmt.Errorf("update raffle: %w", err)
	}
	if affected == 0 {
		return raffle.Raffle{}, fmt.Errorf("%w: %s", raffle.ErrNotFound, r.ID)
	}
	return s.GetRaffle(ctx, r.ID)
}

func (s *Store) DeleteRaffle(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM raffles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete raffle: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete raffle: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", raffle.ErrNotFound, id)
	}
	return nil
}

func (s *Store) ListRaffles(ctx context.Context) ([]raffle.Raffle, error) {
	var rows []raffleRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT `+raffleColumns+` FROM raffles ORDER BY created_at`); err != nil {
		return nil, fmt.Errorf("select raffles: %w", err)
	}
	grouped, err := s.loadAllBatches(ctx)
	if err != nil {
		return nil, err
	}
	result := make([]raffle.Raffle, 0, len(rows))
	for _, row := range rows {
		r, err := row.toDomain(grouped[row.ID])
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, nil
}

func (s *Store) AppendTicketBatch(ctx context.Context, raffleID string, batch raffle.TicketBatch) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var exists bool
	if err := tx.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM raffles WHERE id = $1)`, raffleID); err != nil {
		return fmt.Errorf("check raffle: %w", err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", raffle.ErrNotFound, raffleID)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO ticket_batches (raffle_id, position, buyer, cumulative_end)
		SELECT $1, COUNT(*), $2, $3 FROM ticket_batches WHERE raffle_id = $1`,
		raffleID, batch.Buyer, int64(batch.End))
	if err != nil {
		return fmt.Errorf("insert ticket batch: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE raffles SET updated_at = $2 WHERE id = $1`, raffleID, time.Now().UTC()); err != nil {
		return fmt.Errorf("touch raffle: %w", err)
	}
	return tx.Commit()
}

func (s *Store) ListAwaitingSeed(ctx context.Context, before time.Time) ([]raffle.Raffle, error) {
	var rows []raffleRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+raffleColumns+` FROM raffles
		WHERE seed = 0 AND end_time < $1
		ORDER BY end_time`, before)
	if err != nil {
		return nil, fmt.Errorf("select raffles awaiting seed: %w", err)
	}
	result := make([]raffle.Raffle, 0, len(rows))
	for _, row := range rows {
		batches, err := s.loadBatches(ctx, row.ID)
		if err != nil {
			return nil, err
		}
		r, err := row.toDomain(batches)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, nil
}

type batchRow struct {
	RaffleID      string `db:"raffle_id"`
	Buyer         string `db:"buyer"`
	CumulativeEnd int64  `db:"cumulative_end"`
}

func (s *Store) loadBatches(ctx context.Context, raffleID string) ([]raffle.TicketBatch, error) {
	var rows []batchRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT raffle_id, buyer, cumulative_end FROM ticket_batches
		WHERE raffle_id = $1 ORDER BY position`, raffleID)
	if err != nil {
		return nil, fmt.Errorf("select ticket batches: %w", err)
	}
	batches := make([]raffle.TicketBatch, 0, len(rows))
	for _, row := range rows {
		batches = append(batches, raffle.TicketBatch{Buyer: row.Buyer, End: uint64(row.CumulativeEnd)})
	}
	return batches, nil
}

func (s *Store) loadAllBatches(ctx context.Context) (map[string][]raffle.TicketBatch, error) {
	var rows []batchRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT raffle_id, buyer, cumulative_end FROM ticket_batches
		ORDER BY raffle_id, position`)
	if err != nil {
		return nil, fmt.Errorf("select ticket batches: %w", err)
	}
	grouped := make(map[string][]raffle.TicketBatch)
	for _, row := range rows {
		grouped[row.RaffleID] = append(grouped[row.RaffleID], raffle.TicketBatch{Buyer: row.Buyer, End: uint64(row.CumulativeEnd)})
	}
	return grouped, nil
}

// CustodyStore implementation -------------------------------------------------

func (s *Store) GetBalance(ctx context.Context, account, asset string) (custody.Balance, error) {
	var row struct {
		Amount    int64     `db:"amount"`
		UpdatedAt time.Time `db:"updated_at"`
	}
	err := s.db.GetContext(ctx, &row, `SELECT amount, updated_at FROM balances WHERE account = $1 AND asset = $2`, account, asset)
	if errors.Is(err, sql.ErrNoRows) {
		return custody.Balance{Account: account, Asset: asset}, nil
	}
	if err != nil {
		return custody.Balance{}, fmt.Errorf("select balance: %w", err)
	}
	return custody.Balance{Account: account, Asset: asset, Amount: uint64(row.Amount), Updated: row.UpdatedAt}, nil
}

func (s *Store) PutBalance(ctx context.Context, bal custody.Balance) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO balances (account, asset, amount, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (account, asset) DO UPDATE SET amount = $3, updated_at = $4`,
		bal.Account, bal.Asset, int64(bal.Amount), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upsert balance: %w", err)
	}
	return nil
}

func (s *Store) GetNonFungible(ctx context.Context, collection, instance string) (custody.NonFungible, error) {
	var row struct {
		Owner     string    `db:"owner"`
		UpdatedAt time.Time `db:"updated_at"`
	}
	err := s.db.GetContext(ctx, &row, `SELECT owner, updated_at FROM non_fungibles WHERE collection = $1 AND instance = $2`, collection, instance)
	if errors.Is(err, sql.ErrNoRows) {
		return custody.NonFungible{}, fmt.Errorf("%w: non-fungible %s/%s", raffle.ErrNotFound, collection, instance)
	}
	if err != nil {
		return custody.NonFungible{}, fmt.Errorf("select non-fungible: %w", err)
	}
	return custody.NonFungible{Collection: collection, Instance: instance, Owner: row.Owner, Updated: row.UpdatedAt}, nil
}

func (s *Store) PutNonFungible(ctx context.Context, nft custody.NonFungible) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO non_fungibles (collection, instance, owner, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (collection, instance) DO UPDATE SET owner = $3, updated_at = $4`,
		nft.Collection, nft.Instance, nft.Owner, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upsert non-fungible: %w", err)
	}
	return nil
}

// RandomnessStore implementation ----------------------------------------------

func (s *Store) CreateRequest(ctx context.Context, req randomness.Request) (randomness.Request, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Status == "" {
		req.Status = randomness.StatusPending
	}
	req.CreatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO randomness_requests (id, consumer_id, status, value, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		req.ID, req.ConsumerID, string(req.Status), int64(req.Value), req.CreatedAt)
	if err != nil {
		return randomness.Request{}, fmt.Errorf("insert randomness request: %w", err)
	}
	return req, nil
}

func (s *Store) UpdateRequest(ctx context.Context, req randomness.Request) (randomness.Request, error) {
	var fulfilled sql.NullTime
	if !req.FulfilledAt.IsZero() {
		fulfilled = sql.NullTime{Time: req.FulfilledAt, Valid: true}
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE randomness_requests SET status = $2, value = $3, fulfilled_at = $4 WHERE id = $1`,
		req.ID, string(req.Status), int64(req.Value), fulfilled)
	if err != nil {
		return randomness.Request{}, fmt.Errorf("update randomness request: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return randomness.Request{}, fmt.Errorf("update randomness request: %w", err)
	}
	if affected == 0 {
		return randomness.Request{}, fmt.Errorf("%w: randomness request %s", raffle.ErrNotFound, req.ID)
	}
	return req, nil
}

func (s *Store) GetRequest(ctx context.Context, id string) (randomness.Request, error) {
	var row struct {
		ConsumerID  string       `db:"consumer_id"`
		Status      string       `db:"status"`
		Value       int64        `db:"value"`
		CreatedAt   time.Time    `db:"created_at"`
		FulfilledAt sql.NullTime `db:"fulfilled_at"`
	}
	err := s.db.GetContext(ctx, &row, `
		SELECT consumer_id, status, value, created_at, fulfilled_at
		FROM randomness_requests WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return randomness.Request{}, fmt.Errorf("%w: randomness request %s", raffle.ErrNotFound, id)
	}
	if err != nil {
		return randomness.Request{}, fmt.Errorf("select randomness request: %w", err)
	}
	req := randomness.Request{
		ID:         id,
		ConsumerID: row.ConsumerID,
		Status:     randomness.Status(row.Status),
		Value:      uint64(row.Value),
		CreatedAt:  row.CreatedAt,
	}
	if row.FulfilledAt.Valid {
		req.FulfilledAt = row.FulfilledAt.Time
	}
	return req, nil
}
