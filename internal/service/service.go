package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"mailmart/internal/model"
)

type Clock func() time.Time

type Config struct {
	VerificationWindow time.Duration
	DisputeWindow      time.Duration
	MaxQuantity        int
	SweepBatchSize     int
}

func DefaultConfig() Config {
	return Config{
		VerificationWindow: 24 * time.Hour,
		DisputeWindow:      3 * time.Hour,
		MaxQuantity:        50,
		SweepBatchSize:     500,
	}
}

type Option func(*base)

func WithClock(c Clock) Option {
	return func(b *base) { b.now = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(b *base) { b.logger = l }
}

// base carries the collaborators every service shares.
type base struct {
	store    Store
	notifier Notifier
	cfg      Config
	now      Clock
	logger   *slog.Logger
}

func newBase(store Store, notifier Notifier, cfg Config, opts []Option) *base {
	def := DefaultConfig()
	if cfg.VerificationWindow <= 0 {
		cfg.VerificationWindow = def.VerificationWindow
	}
	if cfg.DisputeWindow <= 0 {
		cfg.DisputeWindow = def.DisputeWindow
	}
	if cfg.MaxQuantity <= 0 {
		cfg.MaxQuantity = def.MaxQuantity
	}
	if cfg.SweepBatchSize <= 0 {
		cfg.SweepBatchSize = def.SweepBatchSize
	}
	b := &base{
		store:    store,
		notifier: notifier,
		cfg:      cfg,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.notifier == nil {
		b.notifier = DiscardNotifier{}
	}
	return b
}

// Services bundles the core for transports.
type Services struct {
	Market   *Market
	Disputes *Disputes
	Ledger   *Ledger
	Catalog  *Catalog
	Inbox    *Inbox
	Sweeper  *Sweeper
}

func New(store Store, notifier Notifier, cfg Config, opts ...Option) *Services {
	b := newBase(store, notifier, cfg, opts)
	return &Services{
		Market:   &Market{b},
		Disputes: &Disputes{b},
		Ledger:   &Ledger{b},
		Catalog:  &Catalog{b},
		Inbox:    &Inbox{b},
		Sweeper:  &Sweeper{b},
	}
}

// notify runs after the state change has committed. Delivery errors are
// logged and dropped.
func (b *base) notify(ctx context.Context, userID string, typ model.NotificationType, title, message, relatedID string) {
	n := model.Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Type:      typ,
		Title:     title,
		Message:   message,
		RelatedID: relatedID,
		CreatedAt: b.now().UTC(),
	}
	if err := b.notifier.Notify(ctx, n); err != nil {
		b.logger.Warn("notification delivery failed",
			"user_id", userID,
			"type", typ,
			"related_id", relatedID,
			"error", err,
		)
	}
}
