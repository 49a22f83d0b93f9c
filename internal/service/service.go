package service

import (
	"context"
	"time"

	"dolmen/pos/internal/domain"
	"dolmen/pos/internal/sequence"
	"dolmen/pos/internal/store"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type ReceiptWriter interface {
	Write(r domain.Receipt) (string, error)
}

type Options struct {
	// LowStockThreshold is the stock level at or below which an item counts
	// as low on the dashboard.
	LowStockThreshold int
	// Location defines day and month boundaries for reports.
	Location *time.Location
}

type Service struct {
	repo              store.Repository
	receipts          ReceiptWriter
	seq               sequence.Sequencer
	lowStockThreshold int
	loc               *time.Location
	now               func() time.Time
}

func New(repo store.Repository, receipts ReceiptWriter, seq sequence.Sequencer, opts Options) *Service {
	if seq == nil {
		seq = sequence.NewLocal()
	}
	if opts.LowStockThreshold < 0 {
		opts.LowStockThreshold = 0
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}

	return &Service{
		repo:              repo,
		receipts:          receipts,
		seq:               seq,
		lowStockThreshold: opts.LowStockThreshold,
		loc:               opts.Location,
		now:               time.Now,
	}
}
