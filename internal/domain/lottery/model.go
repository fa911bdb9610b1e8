// Package lottery defines the domain records shared by the standard and
// special lottery services.
package lottery

import (
	"fmt"
	"time"
)

// Kind distinguishes the two linked lottery flavours.
type Kind string

const (
	KindStandard Kind = "standard"
	KindSpecial  Kind = "special"
)

// RoundStatus represents the lifecycle state of a lottery round.
type RoundStatus string

const (
	RoundStatusPending   RoundStatus = "pending"
	RoundStatusOpen      RoundStatus = "open"
	RoundStatusClosed    RoundStatus = "closed"
	RoundStatusClaimable RoundStatus = "claimable"
)

// PotShares is a basis-point split of every purchase across the four
// routing destinations. The four fields must sum to 10000.
type PotShares struct {
	SelfPot        int `json:"self_pot" yaml:"self_pot"`
	CounterpartPot int `json:"counterpart_pot" yaml:"counterpart_pot"`
	TeamWallet     int `json:"team_wallet" yaml:"team_wallet"`
	Burn           int `json:"burn" yaml:"burn"`
}

// Total returns the basis-point sum of the four shares.
func (p PotShares) Total() int {
	return p.SelfPot + p.CounterpartPot + p.TeamWallet + p.Burn
}

// Validate checks the shares sum to exactly 10000 basis points.
func (p PotShares) Validate() error {
	if p.SelfPot < 0 || p.CounterpartPot < 0 || p.TeamWallet < 0 || p.Burn < 0 {
		return ErrInvalidShares
	}
	if p.Total() != BasisPointTotal {
		return ErrInvalidShares
	}
	return nil
}

// BasisPointTotal is the denominator for all basis-point arithmetic.
const BasisPointTotal = 10000

// Breakdown holds the per-bracket basis-point weights for a standard round,
// indexed from the lowest bracket to the full match. The first entry pays a
// single-group match and is conventionally zero.
type Breakdown []int

// Validate checks the breakdown is well formed: one weight per bracket,
// non-decreasing, each within [0, 10000].
func (b Breakdown) Validate() error {
	if len(b) != BracketCount {
		return ErrInvalidBreakdown
	}
	prev := 0
	for _, w := range b {
		if w < 0 || w > BasisPointTotal || w < prev {
			return ErrInvalidBreakdown
		}
		prev = w
	}
	return nil
}

// BracketCount is the number of prize brackets in a standard round; one per
// matched suffix length of the four-group ticket number.
const BracketCount = 4

// Round is one lottery instance with its own ticket pool, pot and draw.
// Rounds are append-only: ids increase monotonically and records written by
// older code versions are never reshaped.
type Round struct {
	ID          int64       `json:"id"`
	Kind        Kind        `json:"kind"`
	Status      RoundStatus `json:"status"`
	StartTime   time.Time   `json:"start_time"`
	EndTime     time.Time   `json:"end_time"`
	TicketPrice int64       `json:"ticket_price"` // per-round snapshot

	// FinalNumber is zero until the draw is fulfilled; encoded numbers carry
	// a leading sentinel so a set value is never zero.
	FinalNumber uint32 `json:"final_number"`

	Shares    PotShares `json:"shares"` // snapshot taken at startLottery
	Breakdown Breakdown `json:"breakdown,omitempty"`

	TicketCount int64 `json:"ticket_count"`

	// Audit trail of routed funds, one counter per destination.
	RoutedSelf        int64 `json:"routed_self"`
	RoutedCounterpart int64 `json:"routed_counterpart"`
	RoutedTeam        int64 `json:"routed_team"`
	RoutedBurn        int64 `json:"routed_burn"`

	// DistributedRewards accumulates every reward paid out of the self pot.
	DistributedRewards int64 `json:"distributed_rewards"`

	ClosedAt  time.Time `json:"closed_at,omitempty"`
	DrawnAt   time.Time `json:"drawn_at,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Ticket is a single lottery entry. Immutable after purchase except for the
// claim fields.
type Ticket struct {
	ID      int64  `json:"id"`
	RoundID int64  `json:"round_id"`
	Owner   string `json:"owner"`

	// Number is the fixed-width encoded pick for standard tickets; special
	// tickets carry no number and leave it zero.
	Number uint32 `json:"number,omitempty"`

	// Bonus marks free bundle tickets, which are excluded from the special
	// lottery's eligibility pools.
	Bonus bool `json:"bonus,omitempty"`

	Claimed        bool  `json:"claimed"`
	ClaimedBracket int   `json:"claimed_bracket,omitempty"` // cached at claim time
	PaidAmount     int64 `json:"paid_amount,omitempty"`

	PurchasedAt time.Time `json:"purchased_at"`
	ClaimedAt   time.Time `json:"claimed_at,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// DeGrandPrize is the optional fixed-winner-count bonus draw attached to a
// special round. Display metadata is opaque to the engine.
type DeGrandPrize struct {
	RoundID        int64     `json:"round_id"`
	DrawTime       time.Time `json:"draw_time"`
	Title          string    `json:"title"`
	Subtitle       string    `json:"subtitle"`
	Description    string    `json:"description"`
	CtaURL         string    `json:"cta_url"`
	ImageURL       string    `json:"image_url"`
	MaxWinnerCount int       `json:"max_winner_count"`
	Picked         bool      `json:"picked"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// AwardSet is a persisted winner selection for a special round, recorded so
// views and claims reproduce identical answers without re-drawing.
type AwardSet struct {
	RoundID int64 `json:"round_id"`

	// Stage separates the pooled second-stage draw from the grand-prize draw.
	Stage AwardStage `json:"stage"`

	TicketIDs []int64 `json:"ticket_ids"`

	// PotSnapshot and PerTicketPrize are set for the pooled stage only.
	PotSnapshot    int64 `json:"pot_snapshot,omitempty"`
	PerTicketPrize int64 `json:"per_ticket_prize,omitempty"`

	PickedAt time.Time `json:"picked_at"`
}

// AwardStage names the two independent special-lottery draws.
type AwardStage string

const (
	AwardStageDeLotto AwardStage = "delotto"
	AwardStageDeGrand AwardStage = "degrand"
)

// Config is the mutable operator configuration owned by each lottery
// service. It is mutated only through validated setters and snapshotted
// into rounds at start time.
type Config struct {
	OperatorAddress    string    `json:"operator_address"`
	TeamWallet         string    `json:"team_wallet"`
	CounterpartAddress string    `json:"counterpart_address"`
	TransfererAddress  string    `json:"transferer_address,omitempty"`
	BurnAddress        string    `json:"burn_address"`
	TicketPrice        int64     `json:"ticket_price"`
	Shares             PotShares `json:"shares"`
	Breakdown          Breakdown `json:"breakdown,omitempty"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// ValidateAddresses checks the operator and every routing destination that
// can receive a non-zero share are set. Purchases route funds to these
// addresses directly; an unset destination would strand the share.
func (c Config) ValidateAddresses() error {
	if c.OperatorAddress == "" {
		return fmt.Errorf("%w: operator unset", ErrInvalidAddress)
	}
	if c.Shares.CounterpartPot > 0 && c.CounterpartAddress == "" {
		return fmt.Errorf("%w: counterpart unset", ErrInvalidAddress)
	}
	if c.Shares.TeamWallet > 0 && c.TeamWallet == "" {
		return fmt.Errorf("%w: team wallet unset", ErrInvalidAddress)
	}
	if c.Shares.Burn > 0 && c.BurnAddress == "" {
		return fmt.Errorf("%w: burn unset", ErrInvalidAddress)
	}
	return nil
}

// UserInfo is one page of a holder's tickets in a round.
type UserInfo struct {
	TicketIDs []int64  `json:"ticket_ids"`
	Numbers   []uint32 `json:"numbers"`
	Claimed   []bool   `json:"claimed"`
	Total     int      `json:"total"`
}
