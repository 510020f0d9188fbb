package chain

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// Transfer is the part of a landed transaction needed to validate a payment.
type Transfer struct {
	Signature    string
	Failed       bool
	AccountKeys  []string
	PreBalances  []uint64
	PostBalances []uint64
	Fee          uint64
}

type Client interface {
	// FindSignatures returns the signatures that reference the account, oldest first.
	FindSignatures(ctx context.Context, reference string) ([]string, error)
	GetTransfer(ctx context.Context, signature string) (*Transfer, bool, error)
}

// maxSignatures bounds how many transactions touching one reference are inspected.
const maxSignatures = 100

type RPCClient struct {
	rpc        *rpc.Client
	commitment rpc.CommitmentType
}

func NewRPCClient(endpoint string, commitment rpc.CommitmentType) *RPCClient {
	return &RPCClient{rpc: rpc.New(endpoint), commitment: commitment}
}

// ParseCommitment accepts "finalized" or "confirmed".
func ParseCommitment(s string) (rpc.CommitmentType, error) {
	switch s {
	case string(rpc.CommitmentFinalized):
		return rpc.CommitmentFinalized, nil
	case string(rpc.CommitmentConfirmed):
		return rpc.CommitmentConfirmed, nil
	default:
		return "", fmt.Errorf("unsupported commitment %q", s)
	}
}

func (c *RPCClient) FindSignatures(ctx context.Context, reference string) ([]string, error) {
	ref, err := solana.PublicKeyFromBase58(reference)
	if err != nil {
		return nil, fmt.Errorf("parse reference: %w", err)
	}

	limit := maxSignatures
	sigs, err := c.rpc.GetSignaturesForAddressWithOpts(ctx, ref, &rpc.GetSignaturesForAddressOpts{
		Limit:      &limit,
		Commitment: c.commitment,
	})
	if err != nil {
		return nil, fmt.Errorf("get signatures: %w", err)
	}

	// the node answers newest first
	out := make([]string, 0, len(sigs))
	for i := len(sigs) - 1; i >= 0; i-- {
		out = append(out, sigs[i].Signature.String())
	}
	return out, nil
}

func (c *RPCClient) GetTransfer(ctx context.Context, signature string) (*Transfer, bool, error) {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return nil, false, fmt.Errorf("parse signature: %w", err)
	}

	maxVersion := uint64(0)
	res, err := c.rpc.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Encoding:                       solana.EncodingBase64,
		Commitment:                     c.commitment,
		MaxSupportedTransactionVersion: &maxVersion,
	})
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get transaction: %w", err)
	}
	if res == nil || res.Meta == nil || res.Transaction == nil {
		return nil, false, nil
	}

	tx, err := res.Transaction.GetTransaction()
	if err != nil {
		return nil, false, fmt.Errorf("decode transaction: %w", err)
	}

	return &Transfer{
		Signature:    signature,
		Failed:       res.Meta.Err != nil,
		AccountKeys:  accountKeys(tx, res.Meta),
		PreBalances:  res.Meta.PreBalances,
		PostBalances: res.Meta.PostBalances,
		Fee:          res.Meta.Fee,
	}, true, nil
}

// accountKeys lists keys in balance order: static keys, then lookup-table
// writable keys, then lookup-table readonly keys.
func accountKeys(tx *solana.Transaction, meta *rpc.TransactionMeta) []string {
	loaded := meta.LoadedAddresses
	keys := make([]string, 0, len(tx.Message.AccountKeys)+len(loaded.Writable)+len(loaded.ReadOnly))
	for _, k := range tx.Message.AccountKeys {
		keys = append(keys, k.String())
	}
	for _, k := range loaded.Writable {
		keys = append(keys, k.String())
	}
	for _, k := range loaded.ReadOnly {
		keys = append(keys, k.String())
	}
	return keys
}
