package registry

import (
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"chainExplorer/internal/model"
)

// Contract is a registered contract: its interface and typed metadata.
type Contract struct {
	Address  common.Address
	ABI      *abi.ABI
	Metadata model.ContractMetadata
}

// Kind returns the contract classification.
func (c *Contract) Kind() model.ContractKind {
	return c.Metadata.Kind
}

// Registry is a read-only address to contract mapping, built once at startup.
type Registry struct {
	contracts map[common.Address]*Contract
	addresses []string
}

// New validates the contracts and builds a registry.
func New(contracts ...Contract) (*Registry, error) {
	reg := &Registry{contracts: make(map[common.Address]*Contract, len(contracts))}
	for i := range contracts {
		contract := contracts[i]
		if contract.Address == (common.Address{}) {
			return nil, fmt.Errorf("contract %d: address is required", i)
		}
		if contract.ABI == nil {
			return nil, fmt.Errorf("contract %s: abi is required", contract.Address.Hex())
		}
		if err := contract.Metadata.Validate(); err != nil {
			return nil, fmt.Errorf("contract %s: %w", contract.Address.Hex(), err)
		}
		if _, exists := reg.contracts[contract.Address]; exists {
			return nil, fmt.Errorf("contract %s registered twice", contract.Address.Hex())
		}
		reg.contracts[contract.Address] = &contract
		reg.addresses = append(reg.addresses, contract.Address.Hex())
	}
	sort.Strings(reg.addresses)
	return reg, nil
}

// Lookup resolves an address in any letter case.
func (r *Registry) Lookup(address string) (*Contract, bool) {
	if r == nil || !common.IsHexAddress(address) {
		return nil, false
	}
	contract, ok := r.contracts[common.HexToAddress(address)]
	return contract, ok
}

// Addresses returns the registered addresses in checksum form.
func (r *Registry) Addresses() []string {
	if r == nil {
		return nil
	}
	out := make([]string, len(r.addresses))
	copy(out, r.addresses)
	return out
}

// Len returns the number of registered contracts.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.contracts)
}

// Tokens returns the token contracts keyed by checksum address.
func (r *Registry) Tokens() map[string]model.TokenInfo {
	out := make(map[string]model.TokenInfo)
	if r == nil {
		return out
	}
	for addr, contract := range r.contracts {
		if contract.Metadata.Kind == model.KindToken && contract.Metadata.Token != nil {
			out[addr.Hex()] = *contract.Metadata.Token
		}
	}
	return out
}

// OfKind returns the addresses of contracts of the given kind, sorted.
func (r *Registry) OfKind(kind model.ContractKind) []string {
	var out []string
	if r == nil {
		return out
	}
	for _, address := range r.addresses {
		if r.contracts[common.HexToAddress(address)].Metadata.Kind == kind {
			out = append(out, address)
		}
	}
	return out
}
