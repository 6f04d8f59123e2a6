// Package signer provides the accounts that submit deployment transactions:
// local private keys from the configuration, or the unlocked accounts of a
// development node.
package signer

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/pendergraft/contradeploy/internal/config"
)

// ErrNoSigner is returned when a network has neither configured keys nor node accounts
var ErrNoSigner = errors.New("no account available to sign the transaction")

// Sender submits transactions on behalf of one account
type Sender interface {
	Address() common.Address
	// Send submits an unsigned transaction and returns it as the node knows it
	Send(ctx context.Context, tx *types.Transaction) (*types.Transaction, error)
}

// TxSender broadcasts signed transactions; *ethclient.Client satisfies it
type TxSender interface {
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// TxReader looks transactions up by hash; *ethclient.Client satisfies it
type TxReader interface {
	TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error)
}

// Backend is what a Sender needs from the node client
type Backend interface {
	TxSender
	TxReader
}

// RPCCaller issues raw JSON-RPC calls; *rpc.Client satisfies it
type RPCCaller interface {
	CallContext(ctx context.Context, result any, method string, args ...any) error
}

// ParseKey parses a hex private key with or without the 0x prefix
func ParseKey(hexKey string) (*ecdsa.PrivateKey, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return key, nil
}

// LocalSigner signs with a private key held in memory
type LocalSigner struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
	chainID    *big.Int
	client     TxSender
}

// NewLocalSigner creates a signer for hexKey that sends through client
func NewLocalSigner(hexKey string, chainID *big.Int, client TxSender) (*LocalSigner, error) {
	privateKey, err := ParseKey(hexKey)
	if err != nil {
		return nil, err
	}
	return &LocalSigner{
		privateKey: privateKey,
		address:    crypto.PubkeyToAddress(privateKey.PublicKey),
		chainID:    chainID,
		client:     client,
	}, nil
}

// Address returns the signer's address
func (s *LocalSigner) Address() common.Address {
	return s.address
}

// SignTransaction signs tx for the signer's chain
func (s *LocalSigner) SignTransaction(tx *types.Transaction) (*types.Transaction, error) {
	signedTx, err := types.SignTx(tx, types.LatestSignerForChainID(s.chainID), s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}
	return signedTx, nil
}

// Send signs tx and broadcasts it
func (s *LocalSigner) Send(ctx context.Context, tx *types.Transaction) (*types.Transaction, error) {
	signedTx, err := s.SignTransaction(tx)
	if err != nil {
		return nil, err
	}
	if err := s.client.SendTransaction(ctx, signedTx); err != nil {
		return nil, fmt.Errorf("send transaction: %w", err)
	}
	return signedTx, nil
}

// NodeAccount sends through eth_sendTransaction; the node signs
type NodeAccount struct {
	address common.Address
	rpc     RPCCaller
	reader  TxReader
}

// NewNodeAccount creates a sender for an account unlocked on the node
func NewNodeAccount(address common.Address, rpc RPCCaller, reader TxReader) *NodeAccount {
	return &NodeAccount{address: address, rpc: rpc, reader: reader}
}

// Address returns the node account's address
func (a *NodeAccount) Address() common.Address {
	return a.address
}

// sendTxArgs is the eth_sendTransaction parameter object
type sendTxArgs struct {
	From     common.Address  `json:"from"`
	To       *common.Address `json:"to,omitempty"`
	Gas      hexutil.Uint64  `json:"gas"`
	GasPrice *hexutil.Big    `json:"gasPrice,omitempty"`
	Value    *hexutil.Big    `json:"value"`
	Nonce    hexutil.Uint64  `json:"nonce"`
	Data     hexutil.Bytes   `json:"data"`
}

// Send asks the node to sign and broadcast tx, then fetches the result
func (a *NodeAccount) Send(ctx context.Context, tx *types.Transaction) (*types.Transaction, error) {
	args := sendTxArgs{
		From:  a.address,
		To:    tx.To(),
		Gas:   hexutil.Uint64(tx.Gas()),
		Value: (*hexutil.Big)(tx.Value()),
		Nonce: hexutil.Uint64(tx.Nonce()),
		Data:  tx.Data(),
	}
	if tx.GasPrice() != nil && tx.GasPrice().Sign() > 0 {
		args.GasPrice = (*hexutil.Big)(tx.GasPrice())
	}

	var hash common.Hash
	if err := a.rpc.CallContext(ctx, &hash, "eth_sendTransaction", args); err != nil {
		return nil, fmt.Errorf("eth_sendTransaction: %w", err)
	}

	sent, _, err := a.reader.TransactionByHash(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("fetch sent transaction %s: %w", hash.Hex(), err)
	}
	return sent, nil
}

// FromNetwork creates local signers for every key configured on the
// network. Keys are parsed here, not when the configuration is loaded.
func FromNetwork(n config.NetworkConfig, chainID *big.Int, client TxSender) ([]*LocalSigner, error) {
	signers := make([]*LocalSigner, 0, len(n.Accounts))
	for i, key := range n.Accounts {
		s, err := NewLocalSigner(key, chainID, client)
		if err != nil {
			return nil, fmt.Errorf("account %d: %w", i, err)
		}
		signers = append(signers, s)
	}
	return signers, nil
}

// NodeAccounts returns the node's eth_accounts
func NodeAccounts(ctx context.Context, rpc RPCCaller) ([]common.Address, error) {
	var accounts []common.Address
	if err := rpc.CallContext(ctx, &accounts, "eth_accounts"); err != nil {
		return nil, fmt.Errorf("eth_accounts: %w", err)
	}
	return accounts, nil
}

// Accounts returns the addresses of the configured keys, or the node's
// accounts when the network has none
func Accounts(ctx context.Context, rpc RPCCaller, n config.NetworkConfig) ([]common.Address, error) {
	if len(n.Accounts) > 0 {
		signers, err := FromNetwork(n, nil, nil)
		if err != nil {
			return nil, err
		}
		addrs := make([]common.Address, len(signers))
		for i, s := range signers {
			addrs[i] = s.Address()
		}
		return addrs, nil
	}
	return NodeAccounts(ctx, rpc)
}

// Select returns the sender for a deployment: the first configured key,
// otherwise the node's first account
func Select(ctx context.Context, n config.NetworkConfig, chainID *big.Int, client Backend, rpc RPCCaller) (Sender, error) {
	if len(n.Accounts) > 0 {
		signers, err := FromNetwork(n, chainID, client)
		if err != nil {
			return nil, err
		}
		return signers[0], nil
	}

	accounts, err := NodeAccounts(ctx, rpc)
	if err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		return nil, ErrNoSigner
	}
	return NewNodeAccount(accounts[0], rpc, client), nil
}
