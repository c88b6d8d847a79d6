package registry

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"chainExplorer/internal/model"
)

// Spec describes a contract in configuration. ABI names a bundled interface;
// ABIFile points to a JSON ABI on disk. When both are empty the default
// interface for Kind is used.
type Spec struct {
	Address string     `mapstructure:"address" json:"address"`
	Kind    string     `mapstructure:"kind" json:"kind"`
	ABI     string     `mapstructure:"abi" json:"abi,omitempty"`
	ABIFile string     `mapstructure:"abi-file" json:"abiFile,omitempty"`
	Name    string     `mapstructure:"name" json:"name,omitempty"`
	Token   *TokenSpec `mapstructure:"token" json:"token,omitempty"`
	Token0  *TokenSpec `mapstructure:"token0" json:"token0,omitempty"`
	Token1  *TokenSpec `mapstructure:"token1" json:"token1,omitempty"`
}

// TokenSpec is token metadata in configuration.
type TokenSpec struct {
	Decimals uint8  `mapstructure:"decimals" json:"decimals"`
	Symbol   string `mapstructure:"symbol" json:"symbol"`
	Name     string `mapstructure:"name" json:"name"`
}

func (t *TokenSpec) info() model.TokenInfo {
	return model.TokenInfo{Decimals: t.Decimals, Symbol: t.Symbol, Name: t.Name}
}

var defaultABIByKind = map[model.ContractKind]string{
	model.KindToken:      ABIERC20,
	model.KindSwap:       ABIPair,
	model.KindRouter:     ABIRouterV2,
	model.KindFactory:    ABIFactory,
	model.KindMasterchef: ABIMasterchef,
}

// FromSpecs builds a registry from configuration entries.
func FromSpecs(specs []Spec) (*Registry, error) {
	contracts := make([]Contract, 0, len(specs))
	for i, spec := range specs {
		contract, err := spec.contract()
		if err != nil {
			return nil, fmt.Errorf("contracts[%d]: %w", i, err)
		}
		contracts = append(contracts, contract)
	}
	return New(contracts...)
}

func (s Spec) contract() (Contract, error) {
	address := strings.TrimSpace(s.Address)
	if !common.IsHexAddress(address) {
		return Contract{}, fmt.Errorf("invalid address %q", s.Address)
	}
	kind, err := model.ParseContractKind(strings.ToLower(strings.TrimSpace(s.Kind)))
	if err != nil {
		return Contract{}, err
	}

	metadata, err := s.metadata(kind)
	if err != nil {
		return Contract{}, fmt.Errorf("%s: %w", address, err)
	}

	parsed, err := s.abi(kind)
	if err != nil {
		return Contract{}, fmt.Errorf("%s: %w", address, err)
	}

	return Contract{
		Address:  common.HexToAddress(address),
		ABI:      parsed,
		Metadata: metadata,
	}, nil
}

func (s Spec) metadata(kind model.ContractKind) (model.ContractMetadata, error) {
	switch kind {
	case model.KindToken:
		if s.Token == nil {
			return model.ContractMetadata{}, fmt.Errorf("token contract requires token metadata")
		}
		return model.TokenMetadata(s.Token.info()), nil
	case model.KindSwap:
		if s.Token0 == nil || s.Token1 == nil {
			return model.ContractMetadata{}, fmt.Errorf("swap contract requires token0 and token1 metadata")
		}
		return model.SwapMetadata(s.Token0.info(), s.Token1.info()), nil
	default:
		return model.NamedMetadata(kind, s.Name), nil
	}
}

func (s Spec) abi(kind model.ContractKind) (*abi.ABI, error) {
	switch {
	case s.ABIFile != "":
		return LoadABIFile(s.ABIFile)
	case s.ABI != "":
		return BuiltinABI(s.ABI)
	}
	name, ok := defaultABIByKind[kind]
	if !ok {
		return nil, fmt.Errorf("%s contract requires abi or abi-file", kind)
	}
	return BuiltinABI(name)
}
