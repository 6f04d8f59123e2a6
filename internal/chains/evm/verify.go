package evm

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/pendergraft/contradeploy/internal/chains"
)

// CBOR metadata marker (Solidity >=0.6.0) - "ipfs" in CBOR
var metadataMarker = []byte{0xa2, 0x64, 0x69, 0x70, 0x66, 0x73}

// Library placeholder pattern: __$<34 hex chars>$__
var libraryPlaceholder = regexp.MustCompile(`__\$[a-f0-9]{34}\$__`)

// StripMetadata removes the CBOR metadata appended to bytecode
func StripMetadata(bytecode []byte) []byte {
	idx := bytes.LastIndex(bytecode, metadataMarker)
	if idx == -1 {
		return bytecode
	}
	// The CBOR map starts at the marker; the two-byte length comes after it
	return bytecode[:idx]
}

// CompareBytecode compares deployed bytecode to the artifact's hex bytecode.
// Libraries map fully qualified names ("contracts/Lib.sol:Lib") to addresses.
func CompareBytecode(deployed []byte, artifactHex string, libraries map[string]string) *chains.VerifyResult {
	linked, err := LinkBytecode(artifactHex, libraries)
	if err != nil {
		return &chains.VerifyResult{
			Match:     false,
			MatchType: "none",
			Message:   err.Error(),
		}
	}
	artifact, err := hex.DecodeString(strings.TrimPrefix(linked, "0x"))
	if err != nil {
		return &chains.VerifyResult{
			Match:     false,
			MatchType: "none",
			Message:   fmt.Sprintf("artifact bytecode is not valid hex: %v", err),
		}
	}

	if len(deployed) == 0 {
		return &chains.VerifyResult{
			Match:     false,
			MatchType: "none",
			Message:   "No code at address",
		}
	}

	if bytes.Equal(deployed, artifact) {
		return &chains.VerifyResult{
			Match:     true,
			MatchType: "full",
			Message:   "Bytecode matches exactly including metadata",
		}
	}

	if bytes.Equal(StripMetadata(deployed), StripMetadata(artifact)) {
		return &chains.VerifyResult{
			Match:     true,
			MatchType: "partial",
			Message:   "Executable code matches, metadata differs (different source paths, comments, or build environment)",
		}
	}

	return &chains.VerifyResult{
		Match:     false,
		MatchType: "none",
		Message:   "Bytecode does not match",
	}
}

// LibraryPlaceholder returns the placeholder solc emits for a fully
// qualified library name: the first 17 bytes of its keccak256 hash.
func LibraryPlaceholder(fullyQualifiedName string) string {
	hash := crypto.Keccak256([]byte(fullyQualifiedName))
	return "__$" + hex.EncodeToString(hash)[:34] + "$__"
}

// LinkBytecode substitutes library addresses into hex bytecode. It fails
// when a placeholder is left unresolved or an address is invalid.
func LinkBytecode(bytecodeHex string, libraries map[string]string) (string, error) {
	for name, addr := range libraries {
		if !common.IsHexAddress(addr) {
			return "", fmt.Errorf("library %s: invalid address %q", name, addr)
		}
		replacement := strings.ToLower(strings.TrimPrefix(common.HexToAddress(addr).Hex(), "0x"))
		bytecodeHex = strings.ReplaceAll(bytecodeHex, LibraryPlaceholder(name), replacement)
	}

	if HasLibraryPlaceholders(bytecodeHex) {
		return "", fmt.Errorf("bytecode references unlinked libraries")
	}
	return bytecodeHex, nil
}

// HasLibraryPlaceholders checks if hex bytecode contains library placeholders
func HasLibraryPlaceholders(bytecodeHex string) bool {
	return libraryPlaceholder.MatchString(bytecodeHex)
}
