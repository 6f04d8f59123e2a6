// Package buildinfo reads the hh-sol-build-info-1 files that Hardhat and
// Foundry write next to their artifacts.
package buildinfo

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// File is a build-info file
type File struct {
	ID              string          `json:"id"`
	Format          string          `json:"_format"`
	SolcVersion     string          `json:"solcVersion"`     // Short: "0.8.10"
	SolcLongVersion string          `json:"solcLongVersion"` // Full: "0.8.10+commit.fc410830"
	Input           json.RawMessage `json:"input"`           // Standard JSON Input
	Output          json.RawMessage `json:"output"`          // Compilation output
}

// Settings is the subset of the standard JSON settings the tool reports
type Settings struct {
	Optimizer struct {
		Enabled bool `json:"enabled"`
		Runs    int  `json:"runs"`
	} `json:"optimizer"`
	EVMVersion string `json:"evmVersion"`
	ViaIR      bool   `json:"viaIR"`
}

// outputContracts represents output.contracts from Solidity compiler output
type outputContracts map[string]map[string]json.RawMessage

// Read decodes one build-info file
func Read(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading build-info: %w", err)
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing build-info %s: %w", filepath.Base(path), err)
	}
	return &f, nil
}

// HasContract reports whether this compilation produced the contract.
// An empty sourcePath matches the contract name in any source file.
func (f *File) HasContract(sourcePath, contractName string) bool {
	var output struct {
		Contracts outputContracts `json:"contracts"`
	}
	if err := json.Unmarshal(f.Output, &output); err != nil || output.Contracts == nil {
		return false
	}
	if sourcePath != "" {
		_, ok := output.Contracts[sourcePath][contractName]
		return ok
	}
	for _, contracts := range output.Contracts {
		if _, ok := contracts[contractName]; ok {
			return true
		}
	}
	return false
}

// Settings decodes input.settings
func (f *File) Settings() (Settings, error) {
	var input struct {
		Settings Settings `json:"settings"`
	}
	err := json.Unmarshal(f.Input, &input)
	return input.Settings, err
}

// StandardJSON returns the compiler input with the given top-level keys
// removed. solc only accepts language, sources and settings.
func (f *File) StandardJSON(strip ...string) ([]byte, error) {
	if len(strip) == 0 {
		return f.Input, nil
	}
	var m map[string]any
	if err := json.Unmarshal(f.Input, &m); err != nil {
		return nil, err
	}
	for _, key := range strip {
		delete(m, key)
	}
	return json.Marshal(m)
}

// Find scans dir for the build-info that produced contractName. Files are
// visited in name order. Without a sourcePath, the first readable file is
// returned when no file lists the contract.
func Find(dir, sourcePath, contractName string) (*File, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading build-info directory: %w", err)
	}

	var first *File
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		f, err := Read(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		if f.HasContract(sourcePath, contractName) {
			return f, nil
		}
		if first == nil && sourcePath == "" {
			first = f
		}
	}

	if first != nil {
		return first, nil
	}
	return nil, fmt.Errorf("build-info not found for contract %s", contractName)
}
