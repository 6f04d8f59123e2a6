// Package domain contains the business logic for contract verification.
package domain

import (
	"context"

	"github.com/pendergraft/contradeploy/internal/etherscan"
)

// VerifyRequest is the request to verify a deployed contract.
type VerifyRequest struct {
	Chain    string // chain module, "evm"
	Builder  string // "" = detect from Root
	Root     string
	Contract string

	Network string
	ChainID int64
	RPC     string
	Address string

	// Libraries maps fully qualified library names to deployed addresses
	Libraries map[string]string

	// Explorer receives the source once the bytecode matches. Nil skips
	// source verification.
	Explorer    SourceVerifier
	ExplorerKey string // e.g. "polygonMumbai", recorded in the ledger
}

// VerifyResult is the result of a verification.
type VerifyResult struct {
	Verified  bool
	MatchType string // "full", "partial", "none"
	Message   string

	// SourceVerified is set when the explorer accepted the source
	SourceVerified bool
	// Recorded is set when the ledger entry was marked verified
	Recorded bool
}

// SourceVerifier submits source to a block explorer and waits for the
// verdict. *etherscan.Client satisfies it.
type SourceVerifier interface {
	Verify(ctx context.Context, req etherscan.SubmitRequest) error
}

// Ledger is the ledger operation the service uses. A nil Ledger skips recording.
type Ledger interface {
	UpdateVerificationStatus(ctx context.Context, chainID int64, address string, verified bool, verifiedOn []string) error
}
