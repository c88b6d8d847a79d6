package registry

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"chainExplorer/internal/model"
)

var (
	tokenUSDT = model.TokenInfo{Decimals: 6, Symbol: "USDT", Name: "Metaverse-peg USDT Token"}
	tokenGENE = model.TokenInfo{Decimals: 18, Symbol: "GENE", Name: "Gene Token"}
	tokenDNA  = model.TokenInfo{Decimals: 4, Symbol: "DNA", Name: "Metaverse DNA Chain Token"}
	tokenWETP = model.TokenInfo{Decimals: 18, Symbol: "WETP", Name: "Wrapped ETP"}
)

// Specs of the gene.finance deployment the explorer ships with.
var builtinSpecs = []Spec{
	{Address: "0x196D99F873411f2b68F16EeAdA6eFFA6eaA2d924", Kind: string(model.KindMasterchef), Name: "gene.finance masterchef"},
	{Address: "0xcFe83d92B1dC366BE2d03F4baF5b23e30427394b", Kind: string(model.KindFactory), Name: "gene.finance factory"},
	{Address: "0xa61258EC3A0f0c99461Ea2F3458930a1dBEacF16", Kind: string(model.KindRouter), Name: "gene.finance router v2"},
	{Address: "0x662B1B37EB45925adCdc76437ad9f1865fcEcBC8", Kind: string(model.KindSwap), Token0: tokenSpec(tokenUSDT), Token1: tokenSpec(tokenWETP)},
	{Address: "0x527678F2B807b6d57fAd27651344Cc72B0d68F8f", Kind: string(model.KindSwap), Token0: tokenSpec(tokenUSDT), Token1: tokenSpec(tokenGENE)},
	{Address: "0xCA1C0bB48640c0d654a7eCE5c895281fE68eA0AF", Kind: string(model.KindSwap), Token0: tokenSpec(tokenUSDT), Token1: tokenSpec(tokenDNA)},
	{Address: "0x623761F60D677addBD5A07385e037105A13201EF", Kind: string(model.KindToken), Token: tokenSpec(tokenUSDT)},
	{Address: "0xD2aEE12b53895ff8ab99F1B7f73877983729888f", Kind: string(model.KindToken), Token: tokenSpec(tokenGENE)},
	{Address: "0xC35F4BFA9eA8946a3740AdfEb4445396834aDF62", Kind: string(model.KindToken), Token: tokenSpec(tokenDNA)},
	{Address: "0x757938BBD9a3108Ab1f29628C15d9c8715d2F481", Kind: string(model.KindToken), ABI: ABIWETH, Token: tokenSpec(tokenWETP)},
}

// Builtin returns the registry of the bundled gene.finance contracts.
func Builtin() (*Registry, error) {
	reg, err := FromSpecs(builtinSpecs)
	if err != nil {
		return nil, fmt.Errorf("builtin registry: %w", err)
	}
	return reg, nil
}

// BuiltinSpecs returns a copy of the bundled contract specs.
func BuiltinSpecs() []Spec {
	out := make([]Spec, len(builtinSpecs))
	copy(out, builtinSpecs)
	return out
}

// IsBuiltin reports whether address is one of the bundled contracts.
func IsBuiltin(address string) bool {
	target := common.HexToAddress(address)
	for _, spec := range builtinSpecs {
		if common.HexToAddress(spec.Address) == target {
			return true
		}
	}
	return false
}

func tokenSpec(info model.TokenInfo) *TokenSpec {
	return &TokenSpec{Decimals: info.Decimals, Symbol: info.Symbol, Name: info.Name}
}
