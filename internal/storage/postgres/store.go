// Package postgres implements the storage interfaces backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/twinpot/lottery-engine/internal/domain/lottery"
	"github.com/twinpot/lottery-engine/internal/storage"
)

// Store implements storage.Store on a *sql.DB handle.
type Store struct {
	db *sql.DB
}

var _ storage.Store = (*Store)(nil)

// New wraps an open database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open connects to the DSN, applies migrations and seeds the schema marker.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	if err := Apply(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying migrations: %w", err)
	}
	s := &Store{db: db}
	if _, err := s.GetSchemaVersion(ctx); errors.Is(err, storage.ErrNotFound) {
		if err := s.SetSchemaVersion(ctx, storage.SchemaVersion); err != nil {
			db.Close()
			return nil, fmt.Errorf("seeding schema version: %w", err)
		}
	} else if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// --- RoundStore -------------------------------------------------------------

const roundColumns = `id, kind, status, start_time, end_time, ticket_price, final_number,
		shares, breakdown, ticket_count, routed_self, routed_counterpart, routed_team,
		routed_burn, distributed_rewards, closed_at, drawn_at, created_at, updated_at`

func (s *Store) CreateRound(ctx context.Context, round *lottery.Round) error {
	now := time.Now().UTC()
	round.CreatedAt = now
	round.UpdatedAt = now

	sharesJSON, err := json.Marshal(round.Shares)
	if err != nil {
		return err
	}
	breakdownJSON, err := json.Marshal(round.Breakdown)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Per-kind monotonic ids; the pair insert below is what the kind+id
	// primary key guards against racing writers.
	if err := tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(id), 0) + 1 FROM lottery_rounds WHERE kind = $1
	`, round.Kind).Scan(&round.ID); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO lottery_rounds (`+roundColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`, round.ID, round.Kind, round.Status, round.StartTime, round.EndTime,
		round.TicketPrice, int64(round.FinalNumber), sharesJSON, breakdownJSON,
		round.TicketCount, round.RoutedSelf, round.RoutedCounterpart, round.RoutedTeam,
		round.RoutedBurn, round.DistributedRewards, nullTime(round.ClosedAt),
		nullTime(round.DrawnAt), round.CreatedAt, round.UpdatedAt)
	if err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) GetRound(ctx context.Context, kind lottery.Kind, id int64) (*lottery.Round, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+roundColumns+`
		FROM lottery_rounds
		WHERE kind = $1 AND id = $2
	`, kind, id)
	round, err := scanRound(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s round %d", storage.ErrNotFound, kind, id)
	}
	return round, err
}

func (s *Store) UpdateRound(ctx context.Context, round *lottery.Round) error {
	round.UpdatedAt = time.Now().UTC()

	sharesJSON, err := json.Marshal(round.Shares)
	if err != nil {
		return err
	}
	breakdownJSON, err := json.Marshal(round.Breakdown)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE lottery_rounds
		SET status = $3, start_time = $4, end_time = $5, ticket_price = $6,
			final_number = $7, shares = $8, breakdown = $9, ticket_count = $10,
			routed_self = $11, routed_counterpart = $12, routed_team = $13,
			routed_burn = $14, distributed_rewards = $15, closed_at = $16,
			drawn_at = $17, updated_at = $18
		WHERE kind = $1 AND id = $2
	`, round.Kind, round.ID, round.Status, round.StartTime, round.EndTime,
		round.TicketPrice, int64(round.FinalNumber), sharesJSON, breakdownJSON,
		round.TicketCount, round.RoutedSelf, round.RoutedCounterpart, round.RoutedTeam,
		round.RoutedBurn, round.DistributedRewards, nullTime(round.ClosedAt),
		nullTime(round.DrawnAt), round.UpdatedAt)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("%w: %s round %d", storage.ErrNotFound, round.Kind, round.ID)
	}
	return nil
}

func (s *Store) LatestRound(ctx context.Context, kind lottery.Kind) (*lottery.Round, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+roundColumns+`
		FROM lottery_rounds
		WHERE kind = $1
		ORDER BY id DESC
		LIMIT 1
	`, kind)
	round, err := scanRound(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no %s rounds", storage.ErrNotFound, kind)
	}
	return round, err
}

func (s *Store) ListRounds(ctx context.Context, kind lottery.Kind, offset, limit int) ([]*lottery.Round, error) {
	if limit <= 0 {
		limit = -1 // postgres LIMIT ALL
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+roundColumns+`
		FROM lottery_rounds
		WHERE kind = $1
		ORDER BY id
		OFFSET $2 LIMIT NULLIF($3, -1)
	`, kind, offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*lottery.Round
	for rows.Next() {
		round, err := scanRound(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, round)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRound(row rowScanner) (*lottery.Round, error) {
	var (
		round        lottery.Round
		finalNumber  int64
		sharesRaw    []byte
		breakdownRaw []byte
		closedAt     sql.NullTime
		drawnAt      sql.NullTime
	)
	err := row.Scan(&round.ID, &round.Kind, &round.Status, &round.StartTime, &round.EndTime,
		&round.TicketPrice, &finalNumber, &sharesRaw, &breakdownRaw, &round.TicketCount,
		&round.RoutedSelf, &round.RoutedCounterpart, &round.RoutedTeam, &round.RoutedBurn,
		&round.DistributedRewards, &closedAt, &drawnAt, &round.CreatedAt, &round.UpdatedAt)
	if err != nil {
		return nil, err
	}
	round.FinalNumber = uint32(finalNumber)
	if len(sharesRaw) > 0 {
		if err := json.Unmarshal(sharesRaw, &round.Shares); err != nil {
			return nil, err
		}
	}
	if len(breakdownRaw) > 0 {
		if err := json.Unmarshal(breakdownRaw, &round.Breakdown); err != nil {
			return nil, err
		}
	}
	round.ClosedAt = closedAt.Time
	round.DrawnAt = drawnAt.Time
	return &round, nil
}

// --- TicketStore ------------------------------------------------------------

const ticketColumns = `id, round_id, owner, number, bonus, claimed, claimed_bracket,
		paid_amount, purchased_at, claimed_at, created_at, updated_at`

func (s *Store) CreateTickets(ctx context.Context, tickets []*lottery.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, t := range tickets {
		t.CreatedAt = now
		t.UpdatedAt = now
		err := tx.QueryRowContext(ctx, `
			INSERT INTO lottery_tickets (round_id, owner, number, bonus, claimed,
				claimed_bracket, paid_amount, purchased_at, claimed_at, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			RETURNING id
		`, t.RoundID, t.Owner, int64(t.Number), t.Bonus, t.Claimed, t.ClaimedBracket,
			t.PaidAmount, nullTime(t.PurchasedAt), nullTime(t.ClaimedAt),
			t.CreatedAt, t.UpdatedAt).Scan(&t.ID)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) GetTicket(ctx context.Context, id int64) (*lottery.Ticket, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+ticketColumns+`
		FROM lottery_tickets
		WHERE id = $1
	`, id)
	t, err := scanTicket(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: ticket %d", storage.ErrNotFound, id)
	}
	return t, err
}

func (s *Store) UpdateTicket(ctx context.Context, t *lottery.Ticket) error {
	t.UpdatedAt = time.Now().UTC()
	result, err := s.db.ExecContext(ctx, `
		UPDATE lottery_tickets
		SET claimed = $2, claimed_bracket = $3, paid_amount = $4, claimed_at = $5, updated_at = $6
		WHERE id = $1
	`, t.ID, t.Claimed, t.ClaimedBracket, t.PaidAmount, nullTime(t.ClaimedAt), t.UpdatedAt)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("%w: ticket %d", storage.ErrNotFound, t.ID)
	}
	return nil
}

func (s *Store) ListTickets(ctx context.Context, roundID int64, filter storage.TicketFilter) ([]*lottery.Ticket, int, error) {
	where := `round_id = $1
		AND ($2 = '' OR owner = $2)
		AND (NOT $3 OR NOT bonus)`

	var total int
	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM lottery_tickets WHERE `+where, roundID, filter.Owner, filter.ExcludeBonus).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+ticketColumns+`
		FROM lottery_tickets
		WHERE `+where+`
		ORDER BY id
		OFFSET $4 LIMIT NULLIF($5, -1)
	`, roundID, filter.Owner, filter.ExcludeBonus, filter.Offset, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*lottery.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, t)
	}
	return out, total, rows.Err()
}

func scanTicket(row rowScanner) (*lottery.Ticket, error) {
	var (
		t           lottery.Ticket
		number      int64
		purchasedAt sql.NullTime
		claimedAt   sql.NullTime
	)
	err := row.Scan(&t.ID, &t.RoundID, &t.Owner, &number, &t.Bonus, &t.Claimed,
		&t.ClaimedBracket, &t.PaidAmount, &purchasedAt, &claimedAt, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.Number = uint32(number)
	t.PurchasedAt = purchasedAt.Time
	t.ClaimedAt = claimedAt.Time
	return &t, nil
}

// --- ConfigStore ------------------------------------------------------------

func (s *Store) GetConfig(ctx context.Context, kind lottery.Kind) (*lottery.Config, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT payload FROM lottery_configs WHERE kind = $1
	`, kind).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s config", storage.ErrNotFound, kind)
	}
	if err != nil {
		return nil, err
	}
	var cfg lottery.Config
	if err := json.Unmarshal(payload, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (s *Store) SaveConfig(ctx context.Context, kind lottery.Kind, cfg *lottery.Config) error {
	cfg.UpdatedAt = time.Now().UTC()
	payload, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO lottery_configs (kind, payload, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (kind) DO UPDATE SET payload = $2, updated_at = $3
	`, kind, payload, cfg.UpdatedAt)
	return err
}

// --- AwardStore -------------------------------------------------------------

func (s *Store) SaveDeGrandPrize(ctx context.Context, prize *lottery.DeGrandPrize) error {
	now := time.Now().UTC()
	if prize.CreatedAt.IsZero() {
		prize.CreatedAt = now
	}
	prize.UpdatedAt = now
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO lottery_degrand_prizes (round_id, draw_time, title, subtitle,
			description, cta_url, image_url, max_winner_count, picked, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (round_id) DO UPDATE SET draw_time = $2, title = $3,
			subtitle = $4, description = $5, cta_url = $6, image_url = $7,
			max_winner_count = $8, picked = $9, updated_at = $11
	`, prize.RoundID, nullTime(prize.DrawTime), prize.Title, prize.Subtitle,
		prize.Description, prize.CtaURL, prize.ImageURL, prize.MaxWinnerCount,
		prize.Picked, prize.CreatedAt, prize.UpdatedAt)
	return err
}

func (s *Store) GetDeGrandPrize(ctx context.Context, roundID int64) (*lottery.DeGrandPrize, error) {
	var (
		prize    lottery.DeGrandPrize
		drawTime sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT round_id, draw_time, title, subtitle, description, cta_url, image_url,
			max_winner_count, picked, created_at, updated_at
		FROM lottery_degrand_prizes
		WHERE round_id = $1
	`, roundID).Scan(&prize.RoundID, &drawTime, &prize.Title, &prize.Subtitle,
		&prize.Description, &prize.CtaURL, &prize.ImageURL, &prize.MaxWinnerCount,
		&prize.Picked, &prize.CreatedAt, &prize.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: grand prize for round %d", storage.ErrNotFound, roundID)
	}
	if err != nil {
		return nil, err
	}
	prize.DrawTime = drawTime.Time
	return &prize, nil
}

func (s *Store) SaveAwardSet(ctx context.Context, set *lottery.AwardSet) error {
	ids, err := json.Marshal(set.TicketIDs)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO lottery_award_sets (round_id, stage, ticket_ids, pot_snapshot, per_ticket_prize, picked_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (round_id, stage) DO UPDATE SET ticket_ids = $3,
			pot_snapshot = $4, per_ticket_prize = $5, picked_at = $6
	`, set.RoundID, set.Stage, ids, set.PotSnapshot, set.PerTicketPrize, set.PickedAt)
	return err
}

func (s *Store) GetAwardSet(ctx context.Context, roundID int64, stage lottery.AwardStage) (*lottery.AwardSet, error) {
	var (
		set    lottery.AwardSet
		idsRaw []byte
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT round_id, stage, ticket_ids, pot_snapshot, per_ticket_prize, picked_at
		FROM lottery_award_sets
		WHERE round_id = $1 AND stage = $2
	`, roundID, stage).Scan(&set.RoundID, &set.Stage, &idsRaw, &set.PotSnapshot,
		&set.PerTicketPrize, &set.PickedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s award set for round %d", storage.ErrNotFound, stage, roundID)
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(idsRaw, &set.TicketIDs); err != nil {
		return nil, err
	}
	return &set, nil
}

// --- SchemaStore ------------------------------------------------------------

func (s *Store) GetSchemaVersion(ctx context.Context) (int, error) {
	var version int
	err := s.db.QueryRowContext(ctx, `SELECT version FROM lottery_schema LIMIT 1`).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: schema version", storage.ErrNotFound)
	}
	if err != nil {
		return 0, err
	}
	return version, nil
}

func (s *Store) SetSchemaVersion(ctx context.Context, version int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM lottery_schema`); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO lottery_schema (version) VALUES ($1)`, version); err != nil {
		return err
	}
	return tx.Commit()
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
