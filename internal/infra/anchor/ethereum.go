package anchor

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	pkgerrors "github.com/pkg/errors"
	"go.opentelemetry.io/otel"

	"github.com/totegamma/ticketgate"
	"github.com/totegamma/ticketgate/internal/domain"
	"github.com/totegamma/ticketgate/internal/usecase"
)

var tracer = otel.Tracer("anchor")

// ReceiptFetcher is the part of ethclient.Client the validator needs.
type ReceiptFetcher interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// EthereumValidator checks that an anchor names a well formed transaction hash
// and, when a node is configured, that the transaction succeeded on chain.
type EthereumValidator struct {
	chain    string
	receipts ReceiptFetcher
}

// NewEthereumValidator accepts a nil fetcher for format-only validation.
func NewEthereumValidator(chain string, receipts ReceiptFetcher) *EthereumValidator {
	if chain == "" {
		chain = "ethereum"
	}
	return &EthereumValidator{chain: chain, receipts: receipts}
}

// Dial connects to an RPC endpoint the way the payment backend does.
func Dial(rpcURL string) (*ethclient.Client, error) {
	return ethclient.Dial(rpcURL)
}

func (v *EthereumValidator) Validate(ctx context.Context, a ticketgate.Anchor) error {
	ctx, span := tracer.Start(ctx, "Anchor.Ethereum.Validate")
	defer span.End()

	if a.Chain != v.chain {
		return fmt.Errorf("%w: unsupported chain %q", domain.ErrInvalidAnchor, a.Chain)
	}

	raw, err := hexutil.Decode(a.TxHash)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidAnchor, err)
	}
	if len(raw) != common.HashLength {
		return fmt.Errorf("%w: tx hash must be %d bytes, got %d", domain.ErrInvalidAnchor, common.HashLength, len(raw))
	}

	if v.receipts == nil {
		return nil
	}

	receipt, err := v.receipts.TransactionReceipt(ctx, common.BytesToHash(raw))
	if errors.Is(err, ethereum.NotFound) {
		return fmt.Errorf("%w: transaction %s not found", domain.ErrInvalidAnchor, a.TxHash)
	}
	if err != nil {
		span.RecordError(pkgerrors.Wrap(err, "Anchor.Ethereum.Validate: receipt lookup failed"))
		return err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("%w: transaction %s reverted", domain.ErrInvalidAnchor, a.TxHash)
	}
	return nil
}

var _ usecase.AnchorValidator = (*EthereumValidator)(nil)
