// Package storage defines the persistence interfaces for the lottery
// engine and provides memory and postgres backends.
package storage

import (
	"context"
	"errors"

	"github.com/twinpot/lottery-engine/internal/domain/lottery"
)

// SchemaVersion is the current on-disk schema generation. Version 2 adds
// the stored grand-prize winner cap consulted by later draws.
const SchemaVersion = 2

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// TicketFilter narrows ticket listings. Zero values match everything.
type TicketFilter struct {
	Owner        string
	ExcludeBonus bool
	Offset       int
	Limit        int // 0 means no limit
}

// RoundStore persists lottery rounds. Round ids are assigned by the store
// and increase monotonically per kind.
type RoundStore interface {
	CreateRound(ctx context.Context, round *lottery.Round) error
	GetRound(ctx context.Context, kind lottery.Kind, id int64) (*lottery.Round, error)
	UpdateRound(ctx context.Context, round *lottery.Round) error
	LatestRound(ctx context.Context, kind lottery.Kind) (*lottery.Round, error)
	ListRounds(ctx context.Context, kind lottery.Kind, offset, limit int) ([]*lottery.Round, error)
}

// TicketStore persists tickets. Ticket ids are assigned by the store.
type TicketStore interface {
	CreateTickets(ctx context.Context, tickets []*lottery.Ticket) error
	GetTicket(ctx context.Context, id int64) (*lottery.Ticket, error)
	UpdateTicket(ctx context.Context, t *lottery.Ticket) error

	// ListTickets returns the round's tickets matching the filter in id
	// order, plus the total match count before pagination.
	ListTickets(ctx context.Context, roundID int64, filter TicketFilter) ([]*lottery.Ticket, int, error)
}

// ConfigStore persists the per-kind operator configuration.
type ConfigStore interface {
	GetConfig(ctx context.Context, kind lottery.Kind) (*lottery.Config, error)
	SaveConfig(ctx context.Context, kind lottery.Kind, cfg *lottery.Config) error
}

// AwardStore persists special-lottery draw results.
type AwardStore interface {
	SaveDeGrandPrize(ctx context.Context, prize *lottery.DeGrandPrize) error
	GetDeGrandPrize(ctx context.Context, roundID int64) (*lottery.DeGrandPrize, error)
	SaveAwardSet(ctx context.Context, set *lottery.AwardSet) error
	GetAwardSet(ctx context.Context, roundID int64, stage lottery.AwardStage) (*lottery.AwardSet, error)
}

// SchemaStore tracks the store's schema generation for upgrades.
type SchemaStore interface {
	GetSchemaVersion(ctx context.Context) (int, error)
	SetSchemaVersion(ctx context.Context, version int) error
}

// Store is the full persistence surface used by the services.
type Store interface {
	RoundStore
	TicketStore
	ConfigStore
	AwardStore
	SchemaStore
	Close() error
}
