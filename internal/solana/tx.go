package solana

import (
	"encoding/binary"
	"fmt"

	"github.com/mr-tron/base58"
	"github.com/shopspring/decimal"
)

// LamportsPerSOL is the number of lamports in one SOL.
const LamportsPerSOL = 1_000_000_000

// systemProgramID is the system program address (32 zero bytes).
const systemProgramID = "11111111111111111111111111111111"

// systemTransferIndex is the system program instruction index for Transfer.
const systemTransferIndex uint32 = 2

// LamportsFromSOL converts a SOL amount to lamports. The amount must be
// positive and representable as a whole number of lamports.
func LamportsFromSOL(amount decimal.Decimal) (uint64, error) {
	if !amount.IsPositive() {
		return 0, fmt.Errorf("amount must be positive, got %s", amount)
	}
	lamports := amount.Mul(decimal.NewFromInt(LamportsPerSOL))
	if !lamports.IsInteger() {
		return 0, fmt.Errorf("amount %s is below lamport resolution", amount)
	}
	v := lamports.BigInt()
	if !v.IsUint64() {
		return 0, fmt.Errorf("amount %s overflows lamports", amount)
	}
	return v.Uint64(), nil
}

// SOLFromLamports converts lamports to a SOL amount.
func SOLFromLamports(lamports uint64) decimal.Decimal {
	return decimal.NewFromUint64(lamports).Div(decimal.NewFromInt(LamportsPerSOL))
}

// Transaction is an unsigned single-signer transfer transaction. The fee payer
// is the sending account.
type Transaction struct {
	From            string // sender and fee payer
	To              string
	Lamports        uint64
	RecentBlockhash string
}

// NewTransferTransaction builds a system-program transfer moving lamports from
// one account to another.
func NewTransferTransaction(from, to string, lamports uint64, recentBlockhash string) (*Transaction, error) {
	if err := ValidateAddress(from); err != nil {
		return nil, fmt.Errorf("from address: %w", err)
	}
	if err := ValidateAddress(to); err != nil {
		return nil, fmt.Errorf("to address: %w", err)
	}
	if from == to {
		return nil, fmt.Errorf("transfer to self")
	}
	if lamports == 0 {
		return nil, fmt.Errorf("zero lamports")
	}
	if recentBlockhash == "" {
		return nil, fmt.Errorf("missing recent blockhash")
	}
	return &Transaction{
		From:            from,
		To:              to,
		Lamports:        lamports,
		RecentBlockhash: recentBlockhash,
	}, nil
}

// Message serializes the transaction into the legacy wire message that gets
// signed. Layout: header, compact account key array, blockhash, compact
// instruction array.
func (t *Transaction) Message() ([]byte, error) {
	fromKey, err := base58.Decode(t.From)
	if err != nil {
		return nil, fmt.Errorf("decode from address: %w", err)
	}
	toKey, err := base58.Decode(t.To)
	if err != nil {
		return nil, fmt.Errorf("decode to address: %w", err)
	}
	programKey, err := base58.Decode(systemProgramID)
	if err != nil {
		return nil, fmt.Errorf("decode system program id: %w", err)
	}
	blockhash, err := base58.Decode(t.RecentBlockhash)
	if err != nil {
		return nil, fmt.Errorf("decode blockhash: %w", err)
	}
	if len(blockhash) != 32 {
		return nil, fmt.Errorf("blockhash must be 32 bytes, got %d", len(blockhash))
	}

	var msg []byte

	// Header: one required signature, no read-only signed accounts, one
	// read-only unsigned account (the program).
	msg = append(msg, 1, 0, 1)

	// Account keys: from (signer, writable), to (writable), program (readonly).
	msg = appendCompactU16(msg, 3)
	msg = append(msg, fromKey...)
	msg = append(msg, toKey...)
	msg = append(msg, programKey...)

	msg = append(msg, blockhash...)

	// Single transfer instruction: u32 instruction index + u64 lamports.
	data := make([]byte, 12)
	binary.LittleEndian.PutUint32(data[0:4], systemTransferIndex)
	binary.LittleEndian.PutUint64(data[4:12], t.Lamports)

	msg = appendCompactU16(msg, 1)
	msg = append(msg, 2) // program id index
	msg = appendCompactU16(msg, 2)
	msg = append(msg, 0, 1) // from, to
	msg = appendCompactU16(msg, len(data))
	msg = append(msg, data...)

	return msg, nil
}

// SignedTransaction is a transaction with its single signature attached.
type SignedTransaction struct {
	Message   []byte
	Signature []byte // 64-byte ed25519 signature
}

// Serialize produces the wire payload for sendTransaction: a compact array of
// signatures followed by the message.
func (st *SignedTransaction) Serialize() ([]byte, error) {
	if len(st.Signature) != 64 {
		return nil, fmt.Errorf("signature must be 64 bytes, got %d", len(st.Signature))
	}
	var out []byte
	out = appendCompactU16(out, 1)
	out = append(out, st.Signature...)
	out = append(out, st.Message...)
	return out, nil
}

// SignatureBase58 returns the base58 signature string that identifies the
// transaction on-chain.
func (st *SignedTransaction) SignatureBase58() string {
	return base58.Encode(st.Signature)
}

// appendCompactU16 appends a compact-u16 (shortvec) length prefix.
func appendCompactU16(b []byte, v int) []byte {
	for {
		if v < 0x80 {
			return append(b, byte(v))
		}
		b = append(b, byte(v&0x7f)|0x80)
		v >>= 7
	}
}
