package settlement

import "errors"

// Settlement failure taxonomy. Every failure path surfaces one of these so
// callers can tell the outcomes apart.
var (
	// ErrProviderUnavailable: no signing provider installed or selected.
	ErrProviderUnavailable = errors.New("no signing provider available")

	// ErrNoActiveSession: no wallet session, or the buyer is not the session
	// address.
	ErrNoActiveSession = errors.New("no active wallet session for buyer")

	// ErrUserRejectedSignature: the user declined the signature request. No
	// side effects on the catalog.
	ErrUserRejectedSignature = errors.New("user rejected the signature request")

	// ErrSubmissionFailure: transport or network error submitting the signed
	// transaction. The transfer did not happen.
	ErrSubmissionFailure = errors.New("transaction submission failed")

	// ErrConfirmationTimeout: confirmation polling exceeded its deadline. The
	// outcome is ambiguous: the transfer may still land on-chain. The claim is
	// left for the follow-up reconciler.
	ErrConfirmationTimeout = errors.New("confirmation timed out")

	// ErrTransactionFailed: the transfer landed on-chain with an execution
	// error. No value moved.
	ErrTransactionFailed = errors.New("transaction failed on-chain")

	// ErrDuplicateSaleAttempt: the listing is already sold or already claimed
	// by another in-flight settlement.
	ErrDuplicateSaleAttempt = errors.New("listing already sold or claimed")

	// ErrSelfPurchase: buyer and seller are the same address.
	ErrSelfPurchase = errors.New("buyer and seller must differ")

	// ErrPriceMismatch: the price passed by the caller no longer matches the
	// listing.
	ErrPriceMismatch = errors.New("price does not match listing")
)
