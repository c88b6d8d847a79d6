package model

import "fmt"

// ContractKind classifies a registered contract.
type ContractKind string

const (
	KindToken      ContractKind = "token"
	KindSwap       ContractKind = "swap"
	KindRouter     ContractKind = "router"
	KindFactory    ContractKind = "factory"
	KindMasterchef ContractKind = "masterchef"
	KindOther      ContractKind = "other"
)

// ParseContractKind validates a kind name.
func ParseContractKind(s string) (ContractKind, error) {
	switch kind := ContractKind(s); kind {
	case KindToken, KindSwap, KindRouter, KindFactory, KindMasterchef, KindOther:
		return kind, nil
	default:
		return "", fmt.Errorf("unknown contract kind: %q", s)
	}
}

// TokenInfo describes an ERC20 token.
type TokenInfo struct {
	Decimals uint8  `json:"decimals"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
}

// PairInfo describes the two tokens of a swap pair.
type PairInfo struct {
	Token0 TokenInfo `json:"token0"`
	Token1 TokenInfo `json:"token1"`
}

// ContractMetadata is the kind-specific payload of a registered contract.
// Exactly one payload is set, selected by Kind: Token for tokens, Pair for swaps,
// Name for everything else.
type ContractMetadata struct {
	Kind  ContractKind `json:"kind"`
	Token *TokenInfo   `json:"token,omitempty"`
	Pair  *PairInfo    `json:"pair,omitempty"`
	Name  string       `json:"name,omitempty"`
}

// TokenMetadata builds metadata for a token contract.
func TokenMetadata(info TokenInfo) ContractMetadata {
	return ContractMetadata{Kind: KindToken, Token: &info}
}

// SwapMetadata builds metadata for a swap pair contract.
func SwapMetadata(token0, token1 TokenInfo) ContractMetadata {
	return ContractMetadata{Kind: KindSwap, Pair: &PairInfo{Token0: token0, Token1: token1}}
}

// NamedMetadata builds metadata for router, factory, masterchef and other contracts.
func NamedMetadata(kind ContractKind, name string) ContractMetadata {
	return ContractMetadata{Kind: kind, Name: name}
}

// Validate checks that the payload matches the kind.
func (m ContractMetadata) Validate() error {
	switch m.Kind {
	case KindToken:
		if m.Token == nil || m.Pair != nil {
			return fmt.Errorf("token metadata requires token info only")
		}
	case KindSwap:
		if m.Pair == nil || m.Token != nil {
			return fmt.Errorf("swap metadata requires pair info only")
		}
	case KindRouter, KindFactory, KindMasterchef, KindOther:
		if m.Token != nil || m.Pair != nil {
			return fmt.Errorf("%s metadata carries a display name only", m.Kind)
		}
	default:
		return fmt.Errorf("unknown contract kind: %q", m.Kind)
	}
	return nil
}
