package settlement

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"solana-marketplace/internal/domain"
	"solana-marketplace/internal/observability"
	"solana-marketplace/internal/reconcile"
	"solana-marketplace/internal/solana"
	"solana-marketplace/internal/storage"
)

// Reconciler defaults.
const (
	DefaultSweepInterval = 5 * time.Second
	DefaultSubmitGrace   = 30 * time.Second
	DefaultExpireAfter   = 3 * time.Minute
	DefaultBatchLimit    = 64
)

// ReconcilerConfig tunes the follow-up sweep.
type ReconcilerConfig struct {
	// SweepInterval is the delay between sweeps.
	SweepInterval time.Duration
	// SubmitGrace is how long a submitted claim is left to the in-flight
	// Settle call before the sweep picks it up.
	SubmitGrace time.Duration
	// ExpireAfter is how long an unconfirmed submission is kept alive. Past
	// it the blockhash has long expired and the transfer can no longer land.
	ExpireAfter time.Duration
	// BatchLimit bounds claims handled per sweep and status.
	BatchLimit int
	Commitment string
}

// DefaultReconcilerConfig returns the default sweep configuration.
func DefaultReconcilerConfig() ReconcilerConfig {
	return ReconcilerConfig{
		SweepInterval: DefaultSweepInterval,
		SubmitGrace:   DefaultSubmitGrace,
		ExpireAfter:   DefaultExpireAfter,
		BatchLimit:    DefaultBatchLimit,
		Commitment:    DefaultCommitment,
	}
}

// Reconciler is the follow-up worker that resolves settlement claims a Settle
// call left behind: submitted claims with an ambiguous confirmation outcome,
// and confirmed claims whose off-chain writes failed.
type Reconciler struct {
	settlements storage.SettlementStore
	rpc         solana.RPCClient
	service     *reconcile.Service
	metrics     *observability.Metrics
	logger      *slog.Logger
	cfg         ReconcilerConfig
}

// NewReconciler creates the follow-up reconciler worker.
func NewReconciler(
	settlements storage.SettlementStore,
	rpc solana.RPCClient,
	service *reconcile.Service,
	metrics *observability.Metrics,
	logger *slog.Logger,
	cfg ReconcilerConfig,
) *Reconciler {
	if cfg.SweepInterval <= 0 {
		cfg = DefaultReconcilerConfig()
	}
	return &Reconciler{
		settlements: settlements,
		rpc:         rpc,
		service:     service,
		metrics:     metrics,
		logger:      logger.With("worker", "reconciler"),
		cfg:         cfg,
	}
}

// Run sweeps until the context is cancelled.
func (w *Reconciler) Run(ctx context.Context) error {
	w.logger.Info("reconciler start")

	for {
		if err := w.sweep(ctx); err != nil && !errors.Is(err, context.Canceled) {
			w.logger.Error("sweep", "err", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(w.cfg.SweepInterval):
		}
	}
}

// sweep resolves one batch of pending, submitted and confirmed claims.
func (w *Reconciler) sweep(ctx context.Context) error {
	if w.metrics != nil {
		w.metrics.ReconcilerRuns.Inc()
	}

	pending, err := w.settlements.ListStatus(ctx, domain.SettlementPending, w.cfg.BatchLimit)
	if err != nil {
		return err
	}
	submitted, err := w.settlements.ListStatus(ctx, domain.SettlementSubmitted, w.cfg.BatchLimit)
	if err != nil {
		return err
	}
	confirmed, err := w.settlements.ListStatus(ctx, domain.SettlementConfirmed, w.cfg.BatchLimit)
	if err != nil {
		return err
	}

	var g errgroup.Group
	g.SetLimit(8)

	// A pending claim this old was abandoned mid-settlement (crash or lost
	// store write); nothing was ever submitted, so failing it just releases
	// the listing.
	for idx := range pending {
		claim := pending[idx]
		if time.Since(claim.CreatedAt) < w.cfg.ExpireAfter {
			continue
		}
		g.Go(func() error {
			return w.expirePending(ctx, claim)
		})
	}

	for idx := range submitted {
		claim := submitted[idx]
		if time.Since(claim.UpdatedAt) < w.cfg.SubmitGrace {
			continue
		}
		g.Go(func() error {
			return w.resolveSubmitted(ctx, claim)
		})
	}

	for idx := range confirmed {
		claim := confirmed[idx]
		if time.Since(claim.UpdatedAt) < w.cfg.SubmitGrace {
			continue
		}
		g.Go(func() error {
			return w.retryReconcile(ctx, claim)
		})
	}

	return g.Wait()
}

// expirePending fails a claim that never reached submission.
func (w *Reconciler) expirePending(ctx context.Context, claim *domain.Settlement) error {
	claim.Status = domain.SettlementFailed
	claim.FailReason = "claim abandoned before submission"
	w.logger.Info("pending claim expired", "settlement", claim.ID, "listing", claim.ListingID)
	return w.update(ctx, claim)
}

// resolveSubmitted checks the ledger once for a claim whose Settle call timed
// out waiting for confirmation.
func (w *Reconciler) resolveSubmitted(ctx context.Context, claim *domain.Settlement) error {
	logger := w.logger.With("settlement", claim.ID, "signature", claim.Signature)

	statuses, err := w.rpc.GetSignatureStatuses(ctx, claim.Signature)
	if err != nil {
		logger.Warn("signature status query failed", "err", err)
		return err
	}

	var status *solana.SignatureStatus
	if len(statuses) == 1 {
		status = statuses[0]
	}

	switch {
	case status.Failed():
		claim.Status = domain.SettlementFailed
		claim.FailReason = "on-chain failure"
		logger.Info("submitted claim failed on-chain")
		return w.update(ctx, claim)

	case status.Reached(w.cfg.Commitment):
		claim.Status = domain.SettlementConfirmed
		if err := w.update(ctx, claim); err != nil {
			return err
		}
		logger.Info("submitted claim confirmed late")
		return w.retryReconcile(ctx, claim)

	default:
		// Still unknown. Past the expiry window the blockhash is long dead
		// and the transfer cannot land anymore.
		if time.Since(claim.CreatedAt) > w.cfg.ExpireAfter {
			claim.Status = domain.SettlementFailed
			claim.FailReason = "confirmation expired"
			logger.Info("submitted claim expired unconfirmed")
			return w.update(ctx, claim)
		}
		return nil
	}
}

// retryReconcile re-runs the off-chain writes for a confirmed claim.
func (w *Reconciler) retryReconcile(ctx context.Context, claim *domain.Settlement) error {
	logger := w.logger.With("settlement", claim.ID)

	_, err := w.service.Reconcile(ctx, claim.ListingID, claim.Signature, claim.Buyer, claim.Seller, claim.Amount)
	if err != nil && !errors.Is(err, reconcile.ErrListingAlreadySold) {
		if w.metrics != nil {
			w.metrics.ReconcileErrors.Inc()
		}
		logger.Error("reconcile retry failed", "err", err)
		return err
	}

	claim.Status = domain.SettlementReconciled
	if errors.Is(err, reconcile.ErrListingAlreadySold) {
		// The transaction record landed but the listing was sold under a
		// different signature; the annotation keeps the two cases apart.
		claim.FailReason = "listing sold under a different signature"
		logger.Warn("claim reconciled against an already-sold listing")
	} else {
		if w.metrics != nil {
			w.metrics.ReconcileSuccess.Inc()
		}
		logger.Info("claim reconciled by follow-up")
	}
	return w.update(ctx, claim)
}

func (w *Reconciler) update(ctx context.Context, claim *domain.Settlement) error {
	claim.UpdatedAt = time.Now().UTC()
	return w.settlements.Update(ctx, claim)
}
