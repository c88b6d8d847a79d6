// Package report projects decoded transactions into the shapes printed by
// the query commands.
package report

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"chainExplorer/internal/model"
)

// SwapEventSignature is the pair event joined with router swap calls.
const SwapEventSignature = "Swap(address,uint256,uint256,uint256,uint256,address)"

// DefaultNativeSymbol names the chain's native coin in swap rows.
const DefaultNativeSymbol = "ETP"

// SwapMethods are the router calls listed as swaps.
var SwapMethods = []string{
	"swapExactTokensForETH",
	"swapExactTokensForTokens",
	"swapExactETHForTokens",
}

// Store is the read side the reports need.
type Store interface {
	TokenTransfers(ctx context.Context, limit int) ([]model.Transaction, error)
	ContractCallers(ctx context.Context, contract string, limit int) ([]string, error)
	DecodedCalls(ctx context.Context, contract string, names []string, limit int) ([]model.Transaction, error)
}

// Transfer is one token_transfer transaction.
type Transfer struct {
	Hash     string               `json:"hash"`
	Metadata *model.TokenTransfer `json:"metadata"`
}

// Swap is a successful router swap joined with its pair Swap events.
type Swap struct {
	Hash       string `json:"hash"`
	User       string `json:"user"`
	Type       string `json:"type"`
	Pair       string `json:"pair"`
	FromToken  string `json:"fromToken"`
	FromSymbol string `json:"fromSymbol"`
	FromAmount string `json:"fromAmount"`
	ToToken    string `json:"toToken"`
	ToSymbol   string `json:"toSymbol"`
	ToAmount   string `json:"toAmount"`
	Amount0In  string `json:"amount0In"`
	Amount1In  string `json:"amount1In"`
	Amount0Out string `json:"amount0Out"`
	Amount1Out string `json:"amount1Out"`
	Sender     string `json:"sender"`
	To         string `json:"to"`
}

// Reporter builds report rows. Token symbols and decimals come from the
// registered tokens.
type Reporter struct {
	store        Store
	tokens       map[string]model.TokenInfo
	nativeSymbol string
}

// New builds a Reporter. tokens is keyed by checksum address and may be nil.
func New(store Store, tokens map[string]model.TokenInfo) *Reporter {
	return &Reporter{store: store, tokens: tokens, nativeSymbol: DefaultNativeSymbol}
}

// TokenTransfers lists the newest token transfers.
func (r *Reporter) TokenTransfers(ctx context.Context, limit int) ([]Transfer, error) {
	txs, err := r.store.TokenTransfers(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("token transfers: %w", err)
	}
	out := make([]Transfer, 0, len(txs))
	for _, tx := range txs {
		out = append(out, Transfer{Hash: tx.Hash, Metadata: tx.Details.Metadata})
	}
	return out, nil
}

// ContractUsers lists distinct senders of transactions to contract.
func (r *Reporter) ContractUsers(ctx context.Context, contract string, limit int) ([]string, error) {
	if !common.IsHexAddress(contract) {
		return nil, fmt.Errorf("invalid contract address: %s", contract)
	}
	users, err := r.store.ContractCallers(ctx, contract, limit)
	if err != nil {
		return nil, fmt.Errorf("contract users: %w", err)
	}
	return users, nil
}

// Swaps lists successful swap calls to router. Calls without a decoded pair
// Swap event are left out.
func (r *Reporter) Swaps(ctx context.Context, router string, limit int) ([]Swap, error) {
	if !common.IsHexAddress(router) {
		return nil, fmt.Errorf("invalid router address: %s", router)
	}
	txs, err := r.store.DecodedCalls(ctx, router, SwapMethods, 0)
	if err != nil {
		return nil, fmt.Errorf("swap calls: %w", err)
	}

	out := make([]Swap, 0)
	for i := range txs {
		if limit > 0 && len(out) >= limit {
			break
		}
		tx := &txs[i]
		if tx.Receipt == nil || !tx.Receipt.Status || tx.Details == nil || tx.Details.Call == nil {
			continue
		}
		swap, ok := r.swap(tx)
		if ok {
			out = append(out, swap)
		}
	}
	return out, nil
}

func (r *Reporter) swap(tx *model.Transaction) (Swap, bool) {
	var events []model.DetailLog
	for _, log := range tx.Details.Logs {
		if log.Signature == SwapEventSignature {
			events = append(events, log)
		}
	}
	if len(events) == 0 {
		return Swap{}, false
	}
	first, last := events[0], events[len(events)-1]

	call := tx.Details.Call
	swap := Swap{
		Hash:       tx.Hash,
		User:       tx.From,
		Type:       call.Name,
		Pair:       first.Address,
		Amount0In:  argString(first, "amount0In"),
		Amount1In:  argString(first, "amount1In"),
		Amount0Out: argString(last, "amount0Out"),
		Amount1Out: argString(last, "amount1Out"),
		Sender:     argString(first, "sender"),
		To:         argString(last, "to"),
	}

	var path []string
	if arg, ok := call.Input("path"); ok {
		path = stringList(arg.Value)
	}
	if len(path) > 0 {
		swap.FromToken = path[0]
		swap.ToToken = path[len(path)-1]
	}
	swap.FromSymbol = r.symbol(swap.FromToken)
	swap.ToSymbol = r.symbol(swap.ToToken)
	if call.Name == "swapExactETHForTokens" {
		swap.FromSymbol = r.nativeSymbol
	}
	if call.Name == "swapExactTokensForETH" {
		swap.ToSymbol = r.nativeSymbol
	}

	swap.FromAmount = r.amount(swap.FromToken, nonZero(swap.Amount0In, swap.Amount1In))
	swap.ToAmount = r.amount(swap.ToToken, nonZero(swap.Amount0Out, swap.Amount1Out))
	return swap, true
}

func (r *Reporter) symbol(token string) string {
	if info, ok := r.lookup(token); ok {
		return info.Symbol
	}
	return token
}

// amount scales a raw integer by the token's decimals when the token is known.
func (r *Reporter) amount(token, raw string) string {
	info, ok := r.lookup(token)
	if !ok {
		return raw
	}
	value, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return raw
	}
	return decimal.NewFromBigInt(value, -int32(info.Decimals)).String()
}

func (r *Reporter) lookup(token string) (model.TokenInfo, bool) {
	if token == "" || !common.IsHexAddress(token) {
		return model.TokenInfo{}, false
	}
	info, ok := r.tokens[common.HexToAddress(token).Hex()]
	return info, ok
}

func argString(log model.DetailLog, name string) string {
	arg, ok := log.Arg(name)
	if !ok {
		return ""
	}
	return valueString(arg.Value)
}

// valueString renders a decoded value, both freshly decoded and after a
// JSON round trip through storage.
func valueString(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func stringList(value interface{}) []string {
	switch v := value.(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, valueString(item))
		}
		return out
	default:
		return nil
	}
}

func nonZero(a, b string) string {
	if a != "" && strings.TrimLeft(a, "0") != "" {
		return a
	}
	return b
}
