// Package chain checks Solana Pay transfers against the ledger and builds
// transfer request URLs for new orders.
package chain

import (
	"context"

	"github.com/onlineshop/settlement/pkg/logging"
	"github.com/onlineshop/settlement/services/order/internal/domain"
	"github.com/onlineshop/settlement/services/order/internal/models"
)

type Verifier struct {
	client    Client
	recipient string
}

func NewVerifier(client Client, recipient string) *Verifier {
	return &Verifier{client: client, recipient: recipient}
}

func (v *Verifier) Verify(ctx context.Context, order *models.Order) domain.Verdict {
	if order.TotalAmountCrypto == nil {
		logging.FromContext(ctx).Error("chain_verify_missing_quote", "order_id", order.ID)
		return domain.Pending("missing quote")
	}
	return v.VerifyTransfer(ctx, order.ReferenceKey, v.recipient, *order.TotalAmountCrypto)
}

// VerifyTransfer scans transactions carrying the reference, oldest first, and
// confirms on the first one that moves exactly lamports to recipient. Reverted
// transactions and transactions not yet at commitment are never evidence of a
// mismatch; a landed transfer with the wrong recipient or amount is, unless a
// valid transfer also exists.
func (v *Verifier) VerifyTransfer(ctx context.Context, reference, recipient string, lamports int64) domain.Verdict {
	l := logging.FromContext(ctx).With("component", "chain_verifier", "reference", reference)

	sigs, err := v.client.FindSignatures(ctx, reference)
	if err != nil {
		l.Warn("chain_lookup_error", "err", err)
		return domain.Pending("rpc unavailable")
	}
	if len(sigs) == 0 {
		return domain.Pending("not found")
	}

	var (
		mismatch   bool
		unresolved string
	)
	for _, sig := range sigs {
		tx, found, err := v.client.GetTransfer(ctx, sig)
		if err != nil {
			l.Warn("chain_fetch_error", "signature", sig, "err", err)
			unresolved = "rpc unavailable"
			continue
		}
		if !found {
			if unresolved == "" {
				unresolved = "not finalized"
			}
			continue
		}
		if tx.Failed {
			l.Info("chain_tx_reverted", "signature", sig)
			continue
		}

		if reason := checkTransfer(tx, reference, recipient, lamports); reason != "" {
			l.Warn("chain_transfer_mismatch", "signature", sig, "check", reason)
			mismatch = true
			continue
		}
		return domain.Confirmed(sig)
	}

	switch {
	case unresolved != "":
		return domain.Pending(unresolved)
	case mismatch:
		return domain.Failed(domain.ReasonMismatch)
	default:
		return domain.Pending("no successful transfer")
	}
}

// checkTransfer returns which check a landed transaction fails, or "".
func checkTransfer(tx *Transfer, reference, recipient string, lamports int64) string {
	if indexOf(tx.AccountKeys, reference) < 0 {
		return "reference"
	}

	idx := indexOf(tx.AccountKeys, recipient)
	if idx < 0 || idx >= len(tx.PreBalances) || idx >= len(tx.PostBalances) {
		return "recipient"
	}

	delta := int64(tx.PostBalances[idx]) - int64(tx.PreBalances[idx])
	if idx == 0 {
		delta += int64(tx.Fee)
	}
	if delta != lamports {
		return "amount"
	}
	return ""
}

func indexOf(keys []string, key string) int {
	for i, k := range keys {
		if k == key {
			return i
		}
	}
	return -1
}
