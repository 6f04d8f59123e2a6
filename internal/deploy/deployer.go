package deploy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/pendergraft/contradeploy/internal/signer"
)

// ErrNoSigner is returned when no account can send the deployment
var ErrNoSigner = signer.ErrNoSigner

var (
	// ErrReverted is returned when the deployment transaction was mined but failed
	ErrReverted = errors.New("deployment transaction reverted")
	// ErrNoCode is returned when the receipt succeeded but the address holds no code
	ErrNoCode = errors.New("no contract code after deployment")
)

const (
	// fallbackGasLimit is used when estimation fails
	fallbackGasLimit  = 10_000_000
	gasLimitBufferPct = 20
	gasPriceBoostPct  = 50
)

// Backend is the node client the deployer talks to. *ethclient.Client and
// the simulated backend's client both satisfy it.
type Backend interface {
	bind.DeployBackend
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
}

// Options configures a Deployer
type Options struct {
	Root         string
	ArtifactsDir string

	// GasReport prints gas used and cost after the deployment
	GasReport bool
	Currency  string

	Out    io.Writer
	Logger *slog.Logger
	Now    func() time.Time
}

// Result describes a completed deployment
type Result struct {
	Name        string
	Address     common.Address
	TxHash      common.Hash
	Deployer    common.Address
	BlockNumber uint64
	Gas         GasReport
	Paths       ExportPaths
}

// Deployer deploys one contract and exports its address
type Deployer struct {
	backend   Backend
	sender    signer.Sender
	factories FactorySource
	opts      Options
	logger    *slog.Logger
}

// New creates a deployer
func New(backend Backend, sender signer.Sender, factories FactorySource, opts Options) *Deployer {
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.ArtifactsDir == "" {
		opts.ArtifactsDir = "artifacts"
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Deployer{
		backend:   backend,
		sender:    sender,
		factories: factories,
		opts:      opts,
		logger:    logger,
	}
}

// Deploy gets the factory for name, sends the creation transaction, waits
// for it to be mined and writes the export files. Nothing is written when
// any step before the export fails.
func (d *Deployer) Deploy(ctx context.Context, name string) (*Result, error) {
	if d.sender == nil {
		return nil, ErrNoSigner
	}

	factory, err := d.factories.Factory(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("get contract factory: %w", err)
	}

	data, err := factory.DeployData()
	if err != nil {
		return nil, err
	}

	tx, err := d.send(ctx, data)
	if err != nil {
		return nil, err
	}

	d.logger.Info("transaction submitted, waiting for confirmation",
		slog.String("contract", name),
		slog.String("tx_hash", tx.Hash().Hex()),
	)

	receipt, address, err := d.wait(ctx, tx)
	if err != nil {
		return nil, err
	}

	fmt.Fprintf(d.opts.Out, "%s deployed to: %s\n", name, address.Hex())

	result := &Result{
		Name:        name,
		Address:     address,
		TxHash:      tx.Hash(),
		Deployer:    d.sender.Address(),
		BlockNumber: receipt.BlockNumber.Uint64(),
		Gas:         NewGasReport(receipt, tx),
		Paths:       NewExportPaths(d.opts.Root, d.opts.ArtifactsDir, name, d.opts.Now()),
	}

	if err := WriteExport(result.Paths, ExportRecord{Name: name, Addr: address.Hex()}); err != nil {
		return result, err
	}
	fmt.Fprintf(d.opts.Out, "Contract info exported at:\n\t %s \n\t %s\n", result.Paths.Stable, result.Paths.Timestamped)

	if d.opts.GasReport {
		result.Gas.Write(d.opts.Out, name, d.opts.Currency)
	}

	return result, nil
}

// send builds the contract-creation transaction and hands it to the sender
func (d *Deployer) send(ctx context.Context, data []byte) (*types.Transaction, error) {
	from := d.sender.Address()

	nonce, err := d.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("get nonce: %w", err)
	}

	gasPrice, err := d.gasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("get gas price: %w", err)
	}

	gasLimit, err := d.backend.EstimateGas(ctx, ethereum.CallMsg{
		From:     from,
		GasPrice: gasPrice,
		Value:    big.NewInt(0),
		Data:     data,
	})
	if err != nil {
		gasLimit = fallbackGasLimit
		d.logger.Warn("gas estimation failed, using default",
			slog.Uint64("gas_limit", gasLimit),
			slog.String("error", err.Error()),
		)
	} else {
		gasLimit = gasLimit * (100 + gasLimitBufferPct) / 100
	}

	d.logger.Debug("sending deployment transaction",
		slog.String("from", from.Hex()),
		slog.Uint64("nonce", nonce),
		slog.Uint64("gas_limit", gasLimit),
		slog.String("gas_price", gasPrice.String()),
	)

	tx := types.NewContractCreation(nonce, big.NewInt(0), gasLimit, gasPrice, data)
	sent, err := d.sender.Send(ctx, tx)
	if err != nil {
		return nil, err
	}
	return sent, nil
}

// gasPrice returns the suggested gas price boosted for faster inclusion
func (d *Deployer) gasPrice(ctx context.Context) (*big.Int, error) {
	price, err := d.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, err
	}
	boosted := new(big.Int).Mul(price, big.NewInt(100+gasPriceBoostPct))
	return boosted.Div(boosted, big.NewInt(100)), nil
}

// wait blocks until tx is mined and code exists at the new address
func (d *Deployer) wait(ctx context.Context, tx *types.Transaction) (*types.Receipt, common.Address, error) {
	receipt, err := bind.WaitMined(ctx, d.backend, tx)
	if err != nil {
		return nil, common.Address{}, fmt.Errorf("wait for receipt: %w", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, common.Address{}, fmt.Errorf("%w: tx %s in block %d", ErrReverted, tx.Hash().Hex(), receipt.BlockNumber.Uint64())
	}
	if receipt.ContractAddress == (common.Address{}) {
		return receipt, common.Address{}, fmt.Errorf("receipt for %s has no contract address", tx.Hash().Hex())
	}

	code, err := d.backend.CodeAt(ctx, receipt.ContractAddress, nil)
	if err != nil {
		return receipt, common.Address{}, fmt.Errorf("read deployed code: %w", err)
	}
	if len(code) == 0 {
		return receipt, common.Address{}, ErrNoCode
	}

	d.logger.Info("transaction confirmed",
		slog.Uint64("block_number", receipt.BlockNumber.Uint64()),
		slog.String("address", receipt.ContractAddress.Hex()),
	)
	return receipt, receipt.ContractAddress, nil
}
