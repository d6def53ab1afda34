package solana

import "context"

// Commitment levels accepted by the RPC node.
const (
	CommitmentProcessed = "processed"
	CommitmentConfirmed = "confirmed"
	CommitmentFinalized = "finalized"
)

// RPCClient defines the Solana RPC operations the settlement path consumes.
type RPCClient interface {
	// GetBalance retrieves the lamport balance of an address.
	GetBalance(ctx context.Context, address string) (uint64, error)

	// GetLatestBlockhash retrieves a recent blockhash used to scope
	// transaction validity.
	GetLatestBlockhash(ctx context.Context) (*Blockhash, error)

	// SendTransaction submits a serialized signed transaction and returns its
	// signature.
	SendTransaction(ctx context.Context, signedTx []byte) (string, error)

	// GetSignatureStatuses retrieves confirmation status for the given
	// signatures. Entries are nil for unknown signatures.
	GetSignatureStatuses(ctx context.Context, signatures ...string) ([]*SignatureStatus, error)
}

// Blockhash is the recent-blockhash reference attached to a transaction.
type Blockhash struct {
	Blockhash            string
	LastValidBlockHeight uint64
}

// SignatureStatus reports the ledger's view of a submitted transaction.
type SignatureStatus struct {
	Slot               uint64
	Confirmations      *uint64
	ConfirmationStatus string // processed | confirmed | finalized
	Err                interface{}
}

// Reached reports whether the status satisfies the given commitment level.
func (s *SignatureStatus) Reached(commitment string) bool {
	if s == nil {
		return false
	}
	switch commitment {
	case CommitmentProcessed:
		return s.ConfirmationStatus != ""
	case CommitmentConfirmed:
		return s.ConfirmationStatus == CommitmentConfirmed || s.ConfirmationStatus == CommitmentFinalized
	case CommitmentFinalized:
		return s.ConfirmationStatus == CommitmentFinalized
	}
	return false
}

// Failed reports whether the transaction landed on-chain with an error.
func (s *SignatureStatus) Failed() bool {
	return s != nil && s.Err != nil
}
