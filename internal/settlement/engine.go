// Package settlement orchestrates purchase settlement: claim, sign, submit,
// confirm, reconcile.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"solana-marketplace/internal/domain"
	"solana-marketplace/internal/observability"
	"solana-marketplace/internal/reconcile"
	"solana-marketplace/internal/solana"
	"solana-marketplace/internal/storage"
	"solana-marketplace/internal/wallet"
)

// Default confirmation polling configuration.
const (
	DefaultCommitment     = solana.CommitmentConfirmed
	DefaultConfirmTimeout = 60 * time.Second
	DefaultPollInterval   = 500 * time.Millisecond
	DefaultMaxPollDelay   = 5 * time.Second
	DefaultBackoffMult    = 1.5
)

// Config tunes confirmation polling.
type Config struct {
	Commitment     string
	ConfirmTimeout time.Duration
	PollInterval   time.Duration
	MaxPollDelay   time.Duration
	BackoffMult    float64
}

// DefaultConfig returns the default polling configuration.
func DefaultConfig() Config {
	return Config{
		Commitment:     DefaultCommitment,
		ConfirmTimeout: DefaultConfirmTimeout,
		PollInterval:   DefaultPollInterval,
		MaxPollDelay:   DefaultMaxPollDelay,
		BackoffMult:    DefaultBackoffMult,
	}
}

// Options wires an Engine.
type Options struct {
	Session     *wallet.Manager
	RPC         solana.RPCClient
	Listings    storage.ListingStore
	Settlements storage.SettlementStore
	Reconciler  *reconcile.Service
	Audit       storage.AuditStore     // optional
	Metrics     *observability.Metrics // optional
	Logger      *slog.Logger
	Config      Config
}

// Engine performs purchase settlement. Within one Settle call the steps are
// strictly sequential: nothing touches the catalog before the ledger confirms,
// because the off-chain record is derived from the payment, not authoritative.
type Engine struct {
	session     *wallet.Manager
	rpc         solana.RPCClient
	listings    storage.ListingStore
	settlements storage.SettlementStore
	reconciler  *reconcile.Service
	audit       storage.AuditStore
	metrics     *observability.Metrics
	logger      *slog.Logger
	cfg         Config
}

// NewEngine creates a settlement engine.
func NewEngine(opts Options) *Engine {
	cfg := opts.Config
	if cfg.Commitment == "" {
		cfg = DefaultConfig()
	}
	return &Engine{
		session:     opts.Session,
		rpc:         opts.RPC,
		listings:    opts.Listings,
		settlements: opts.Settlements,
		reconciler:  opts.Reconciler,
		audit:       opts.Audit,
		metrics:     opts.Metrics,
		logger:      opts.Logger.With("component", "settlement"),
		cfg:         cfg,
	}
}

// Settle moves price SOL from buyer to seller for the listing and, on
// confirmed success, reconciles the catalog. It returns the on-chain
// signature. When reconciliation fails after a confirmed payment the
// signature is still returned: the payment has already happened, and the
// claim row stays behind for the follow-up reconciler.
func (e *Engine) Settle(ctx context.Context, buyer, seller string, price decimal.Decimal, listingID int64) (string, error) {
	logger := e.logger.With("listing", listingID, "buyer", buyer)

	address, ok := e.session.CurrentAddress()
	if !ok || address != buyer {
		return "", ErrNoActiveSession
	}
	if buyer == seller {
		return "", ErrSelfPurchase
	}

	listing, err := e.listings.GetByID(ctx, listingID)
	if err != nil {
		return "", fmt.Errorf("load listing: %w", err)
	}
	if listing.Sold {
		return "", ErrDuplicateSaleAttempt
	}
	if !listing.Price.Equal(price) {
		return "", ErrPriceMismatch
	}
	if listing.SellerAddress != seller {
		return "", fmt.Errorf("seller %s does not own listing %d", seller, listingID)
	}

	lamports, err := solana.LamportsFromSOL(price)
	if err != nil {
		return "", fmt.Errorf("convert price: %w", err)
	}

	provider, err := e.session.ActiveProvider()
	if err != nil {
		if errors.Is(err, wallet.ErrNoSession) {
			return "", ErrNoActiveSession
		}
		return "", ErrProviderUnavailable
	}

	// Claim the listing before anything touches the chain. The store allows
	// one open claim per listing, so a concurrent purchase loses here instead
	// of paying twice.
	now := time.Now().UTC()
	claim := &domain.Settlement{
		ID:        uuid.NewString(),
		ListingID: listingID,
		Buyer:     buyer,
		Seller:    seller,
		Amount:    price,
		Status:    domain.SettlementPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.settlements.Insert(ctx, claim); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return "", ErrDuplicateSaleAttempt
		}
		return "", fmt.Errorf("claim listing: %w", err)
	}
	if e.metrics != nil {
		e.metrics.SettlementsStarted.Inc()
	}
	e.auditStage(ctx, claim, domain.AuditStageClaim, "", now)
	logger = logger.With("settlement", claim.ID)

	blockhash, err := e.rpc.GetLatestBlockhash(ctx)
	if err != nil {
		e.failClaim(ctx, claim, "fetch blockhash: "+err.Error())
		return "", fmt.Errorf("%w: fetch blockhash: %v", ErrSubmissionFailure, err)
	}

	tx, err := solana.NewTransferTransaction(buyer, seller, lamports, blockhash.Blockhash)
	if err != nil {
		e.failClaim(ctx, claim, "build transfer: "+err.Error())
		return "", fmt.Errorf("build transfer: %w", err)
	}

	signStart := time.Now()
	signed, err := provider.SignTransaction(ctx, tx)
	if err != nil {
		if errors.Is(err, wallet.ErrUserRejected) {
			e.failClaim(ctx, claim, "user rejected signature")
			logger.Info("purchase cancelled by user")
			return "", ErrUserRejectedSignature
		}
		e.failClaim(ctx, claim, "sign: "+err.Error())
		return "", fmt.Errorf("sign transfer: %w", err)
	}
	claim.Signature = signed.SignatureBase58()
	e.auditStage(ctx, claim, domain.AuditStageSign, "", signStart)

	payload, err := signed.Serialize()
	if err != nil {
		e.failClaim(ctx, claim, "serialize: "+err.Error())
		return "", fmt.Errorf("serialize transfer: %w", err)
	}

	submitStart := time.Now()
	signature, err := e.rpc.SendTransaction(ctx, payload)
	if err != nil {
		e.failClaim(ctx, claim, "submit: "+err.Error())
		if e.metrics != nil {
			e.metrics.SettlementsFailed.WithLabelValues("submission").Inc()
		}
		return "", fmt.Errorf("%w: %v", ErrSubmissionFailure, err)
	}
	if signature != "" {
		claim.Signature = signature
	}
	claim.Status = domain.SettlementSubmitted
	e.updateClaim(ctx, claim)
	e.auditStage(ctx, claim, domain.AuditStageSubmit, "", submitStart)
	logger.Info("transfer submitted", "signature", claim.Signature)

	confirmStart := time.Now()
	if err := e.WaitConfirmation(ctx, claim.Signature); err != nil {
		switch {
		case errors.Is(err, ErrConfirmationTimeout):
			// Ambiguous: the transfer may still land. The claim stays
			// submitted for the follow-up reconciler.
			if e.metrics != nil {
				e.metrics.SettlementsFailed.WithLabelValues("confirmation_timeout").Inc()
			}
			e.auditFailure(ctx, claim, domain.AuditStageConfirm, "timeout", confirmStart)
			logger.Warn("confirmation timed out", "signature", claim.Signature)
			return "", ErrConfirmationTimeout
		case errors.Is(err, ErrTransactionFailed):
			e.failClaim(ctx, claim, "on-chain failure")
			if e.metrics != nil {
				e.metrics.SettlementsFailed.WithLabelValues("on_chain").Inc()
			}
			return "", err
		default:
			// Interrupted mid-poll; outcome unknown, same as a timeout.
			e.auditFailure(ctx, claim, domain.AuditStageConfirm, err.Error(), confirmStart)
			return "", fmt.Errorf("await confirmation: %w", err)
		}
	}
	claim.Status = domain.SettlementConfirmed
	e.updateClaim(ctx, claim)
	e.auditStage(ctx, claim, domain.AuditStageConfirm, "", confirmStart)
	if e.metrics != nil {
		e.metrics.SettlementsConfirmed.Inc()
		e.metrics.ConfirmationLatency.Observe(time.Since(confirmStart).Seconds())
	}
	logger.Info("transfer confirmed", "signature", claim.Signature)

	reconcileStart := time.Now()
	if _, err := e.reconciler.Reconcile(ctx, listingID, claim.Signature, buyer, seller, price); err != nil {
		// Money moved; surface nothing to the caller. The claim stays
		// confirmed and the follow-up reconciler retries the write.
		e.auditFailure(ctx, claim, domain.AuditStageReconcile, err.Error(), reconcileStart)
		if e.metrics != nil {
			e.metrics.ReconcileErrors.Inc()
		}
		logger.Error("reconciliation failed, leaving claim for follow-up", "err", err)
		return claim.Signature, nil
	}
	claim.Status = domain.SettlementReconciled
	e.updateClaim(ctx, claim)
	e.auditStage(ctx, claim, domain.AuditStageReconcile, "", reconcileStart)
	if e.metrics != nil {
		e.metrics.ReconcileSuccess.Inc()
	}

	return claim.Signature, nil
}

// WaitConfirmation polls signature status with exponential backoff until the
// configured commitment is reached, the transaction fails on-chain, or the
// confirmation timeout expires.
func (e *Engine) WaitConfirmation(ctx context.Context, signature string) error {
	deadline := time.Now().Add(e.cfg.ConfirmTimeout)
	delay := e.cfg.PollInterval

	for {
		statuses, err := e.rpc.GetSignatureStatuses(ctx, signature)
		if err == nil && len(statuses) == 1 {
			status := statuses[0]
			if status.Failed() {
				return fmt.Errorf("%w: %v", ErrTransactionFailed, status.Err)
			}
			if status.Reached(e.cfg.Commitment) {
				return nil
			}
		}

		if time.Now().After(deadline) {
			return ErrConfirmationTimeout
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay = time.Duration(float64(delay) * e.cfg.BackoffMult)
		if delay > e.cfg.MaxPollDelay {
			delay = e.cfg.MaxPollDelay
		}
	}
}

// failClaim marks the claim failed, releasing the listing for other buyers.
func (e *Engine) failClaim(ctx context.Context, claim *domain.Settlement, reason string) {
	claim.Status = domain.SettlementFailed
	claim.FailReason = reason
	e.updateClaim(ctx, claim)
}

func (e *Engine) updateClaim(ctx context.Context, claim *domain.Settlement) {
	claim.UpdatedAt = time.Now().UTC()
	// The claim must be released even when the caller's request context has
	// been cancelled; a stuck open claim blocks the listing for everyone.
	if err := e.settlements.Update(context.WithoutCancel(ctx), claim); err != nil {
		e.logger.Error("update settlement claim", "settlement", claim.ID, "err", err)
	}
}

func (e *Engine) auditStage(ctx context.Context, claim *domain.Settlement, stage, reason string, start time.Time) {
	if e.audit == nil {
		return
	}
	outcome := "ok"
	if reason != "" {
		outcome = "failed"
	}
	event := &domain.SettlementAuditEvent{
		TimestampMs:  time.Now().UnixMilli(),
		SettlementID: claim.ID,
		ListingID:    claim.ListingID,
		Stage:        stage,
		Outcome:      outcome,
		Reason:       reason,
		LatencyMs:    time.Since(start).Milliseconds(),
	}
	if err := e.audit.Append(context.WithoutCancel(ctx), []*domain.SettlementAuditEvent{event}); err != nil {
		e.logger.Warn("append audit event", "err", err)
	}
}

func (e *Engine) auditFailure(ctx context.Context, claim *domain.Settlement, stage, reason string, start time.Time) {
	if reason == "" {
		reason = "failed"
	}
	e.auditStage(ctx, claim, stage, reason, start)
}
