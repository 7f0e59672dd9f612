package nats

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/nats-io/nats.go"

	"mailmart/internal/service"
	"mailmart/internal/worker"
)

const SweepCommandSubject = "commands.sweep"

// SweepTrigger is satisfied by *worker.SweepScheduler.
type SweepTrigger interface {
	RunNow(ctx context.Context) (service.SweepResult, error)
}

type sweepReply struct {
	Result *service.SweepResult `json:"result,omitempty"`
	Error  string               `json:"error,omitempty"`
	Busy   bool                 `json:"busy,omitempty"`
}

// Handler subscribes to NATS command topics. Requests carrying a reply
// subject get the sweep result back.
type Handler struct {
	sweeper SweepTrigger
	nc      *nats.Conn
	subs    []*nats.Subscription
}

func NewHandler(sweeper SweepTrigger, nc *nats.Conn) *Handler {
	return &Handler{sweeper: sweeper, nc: nc}
}

// Start subscribes to command topics and blocks until ctx is cancelled (graceful shutdown).
func (h *Handler) Start(ctx context.Context) error {
	sub, err := h.nc.QueueSubscribe(SweepCommandSubject, "sweep_group", func(m *nats.Msg) {
		reply := h.sweep(ctx)
		if m.Reply == "" {
			return
		}
		data, _ := json.Marshal(reply)
		if err := m.Respond(data); err != nil {
			slog.Error("nats: failed to respond to sweep command", "error", err)
		}
	})
	if err != nil {
		return err
	}
	h.subs = append(h.subs, sub)

	slog.Info("NATS command handler is running")

	<-ctx.Done()
	slog.Info("NATS command handler shutting down, draining subscriptions...")

	for _, s := range h.subs {
		_ = s.Drain()
	}
	return nil
}

func (h *Handler) Stop(ctx context.Context) error {
	for _, s := range h.subs {
		_ = s.Unsubscribe()
	}
	return nil
}

func (h *Handler) sweep(ctx context.Context) sweepReply {
	res, err := h.sweeper.RunNow(ctx)
	switch {
	case errors.Is(err, worker.ErrSweepInProgress):
		return sweepReply{Busy: true, Error: err.Error()}
	case err != nil:
		slog.Error("nats: sweep command failed", "error", err)
		return sweepReply{Result: &res, Error: err.Error()}
	}
	slog.Info("nats: sweep command completed",
		"transactions_verified", res.TransactionsVerified,
		"disputes_accepted", res.DisputesAccepted,
	)
	return sweepReply{Result: &res}
}
