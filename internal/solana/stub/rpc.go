package stub

import (
	"context"
	"sync"

	"github.com/mr-tron/base58"

	"solana-marketplace/internal/solana"
)

// RPCClient implements solana.RPCClient for testing. Balances, blockhash and
// per-signature status progressions are scripted by the test.
type RPCClient struct {
	mu sync.Mutex

	Balances  map[string]uint64
	Blockhash string

	// Statuses maps a signature to the sequence of statuses returned by
	// successive GetSignatureStatuses calls; the last entry repeats. A nil
	// entry means "unknown to the node".
	Statuses map[string][]*solana.SignatureStatus
	// Default is the progression used for signatures with no scripted entry.
	Default []*solana.SignatureStatus
	polls   map[string]int

	// SendErr, when set, fails SendTransaction.
	SendErr error
	// BalanceErr, when set, fails GetBalance.
	BalanceErr error
	// BlockhashErr, when set, fails GetLatestBlockhash.
	BlockhashErr error

	// Sent collects serialized payloads passed to SendTransaction.
	Sent [][]byte
}

// NewRPCClient creates a new stub RPC client with a usable blockhash.
func NewRPCClient() *RPCClient {
	return &RPCClient{
		Balances:  make(map[string]uint64),
		Blockhash: base58.Encode(make([]byte, 32)),
		Statuses:  make(map[string][]*solana.SignatureStatus),
		polls:     make(map[string]int),
	}
}

// Compile-time interface check.
var _ solana.RPCClient = (*RPCClient)(nil)

// GetBalance retrieves a scripted balance.
func (c *RPCClient) GetBalance(_ context.Context, address string) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.BalanceErr != nil {
		return 0, c.BalanceErr
	}
	return c.Balances[address], nil
}

// GetLatestBlockhash returns the scripted blockhash.
func (c *RPCClient) GetLatestBlockhash(_ context.Context) (*solana.Blockhash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.BlockhashErr != nil {
		return nil, c.BlockhashErr
	}
	return &solana.Blockhash{Blockhash: c.Blockhash, LastValidBlockHeight: 1000}, nil
}

// SendTransaction records the payload and returns the signature encoded in it.
func (c *RPCClient) SendTransaction(_ context.Context, signedTx []byte) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.SendErr != nil {
		return "", c.SendErr
	}
	c.Sent = append(c.Sent, signedTx)
	// First byte is the signature count, next 64 bytes the signature.
	if len(signedTx) < 65 {
		return "", nil
	}
	return base58.Encode(signedTx[1:65]), nil
}

// GetSignatureStatuses replays the scripted status progression per signature.
func (c *RPCClient) GetSignatureStatuses(_ context.Context, signatures ...string) ([]*solana.SignatureStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]*solana.SignatureStatus, len(signatures))
	for i, sig := range signatures {
		seq, ok := c.Statuses[sig]
		if !ok {
			seq = c.Default
		}
		if len(seq) == 0 {
			continue
		}
		idx := c.polls[sig]
		if idx >= len(seq) {
			idx = len(seq) - 1
		}
		c.polls[sig]++
		out[i] = seq[idx]
	}
	return out, nil
}

// ScriptConfirmed scripts a signature that confirms after pending polls.
func (c *RPCClient) ScriptConfirmed(signature string, pendingPolls int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var seq []*solana.SignatureStatus
	for i := 0; i < pendingPolls; i++ {
		seq = append(seq, &solana.SignatureStatus{ConfirmationStatus: solana.CommitmentProcessed})
	}
	seq = append(seq, &solana.SignatureStatus{ConfirmationStatus: solana.CommitmentConfirmed})
	c.Statuses[signature] = seq
}

// ScriptAllConfirmed scripts every signature to confirm after pending polls.
func (c *RPCClient) ScriptAllConfirmed(pendingPolls int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var seq []*solana.SignatureStatus
	for i := 0; i < pendingPolls; i++ {
		seq = append(seq, &solana.SignatureStatus{ConfirmationStatus: solana.CommitmentProcessed})
	}
	seq = append(seq, &solana.SignatureStatus{ConfirmationStatus: solana.CommitmentConfirmed})
	c.Default = seq
}

// ScriptNeverConfirms scripts a signature that stays unknown forever.
func (c *RPCClient) ScriptNeverConfirms(signature string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Statuses[signature] = []*solana.SignatureStatus{nil}
}

// ScriptOnChainError scripts a signature that lands with an execution error.
func (c *RPCClient) ScriptOnChainError(signature string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Statuses[signature] = []*solana.SignatureStatus{
		{ConfirmationStatus: solana.CommitmentConfirmed, Err: map[string]interface{}{"InstructionError": []interface{}{0, "Custom"}}},
	}
}
