package report

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chainExplorer/internal/model"
)

const (
	router = "0xa61258EC3A0f0c99461Ea2F3458930a1dBEacF16"
	pair   = "0x527678F2B807b6d57fAd27651344Cc72B0d68F8f"
	usdt   = "0x623761F60D677addBD5A07385e037105A13201EF"
	gene   = "0xD2aEE12b53895ff8ab99F1B7f73877983729888f"
	user   = "0x00000000000000000000000000000000000000Aa"
)

type fakeStore struct {
	transfers []model.Transaction
	callers   []string
	calls     []model.Transaction
	names     []string
}

func (f *fakeStore) TokenTransfers(context.Context, int) ([]model.Transaction, error) {
	return f.transfers, nil
}

func (f *fakeStore) ContractCallers(context.Context, string, int) ([]string, error) {
	return f.callers, nil
}

func (f *fakeStore) DecodedCalls(_ context.Context, _ string, names []string, _ int) ([]model.Transaction, error) {
	f.names = names
	return f.calls, nil
}

func bigArg(name string, v int64) model.Argument {
	return model.Argument{Name: name, Type: "uint256", Value: model.NewBigInt(big.NewInt(v))}
}

func swapLog(amount0In, amount1In, amount0Out, amount1Out int64) model.DetailLog {
	return model.DetailLog{
		Address:   pair,
		Name:      "Swap",
		Signature: SwapEventSignature,
		Args: []model.Argument{
			{Name: "sender", Type: "address", Value: router},
			bigArg("amount0In", amount0In),
			bigArg("amount1In", amount1In),
			bigArg("amount0Out", amount0Out),
			bigArg("amount1Out", amount1Out),
			{Name: "to", Type: "address", Value: user},
		},
	}
}

func swapTx(hash, name string, status bool, path []interface{}, logs ...model.DetailLog) model.Transaction {
	return model.Transaction{
		Hash:    hash,
		From:    user,
		To:      router,
		Receipt: &model.Receipt{Status: status},
		Details: &model.TransactionDetails{
			Call: &model.CallData{
				Name:   name,
				Inputs: []model.Argument{{Name: "path", Type: "address[]", Value: path}},
			},
			Logs: logs,
		},
	}
}

func tokens() map[string]model.TokenInfo {
	return map[string]model.TokenInfo{
		usdt: {Decimals: 6, Symbol: "USDT"},
		gene: {Decimals: 18, Symbol: "GENE"},
	}
}

func TestSwapsJoinsPairEvent(t *testing.T) {
	store := &fakeStore{calls: []model.Transaction{
		swapTx("0x01", "swapExactTokensForTokens", true, []interface{}{usdt, gene}, swapLog(1500000, 0, 0, 2000000000000000000)),
		swapTx("0x02", "swapExactTokensForTokens", false, []interface{}{usdt, gene}, swapLog(1, 0, 0, 1)),
		swapTx("0x03", "swapExactETHForTokens", true, []interface{}{"0x757938BBD9a3108Ab1f29628C15d9c8715d2F481", usdt}, swapLog(0, 5, 7, 0)),
		swapTx("0x04", "swapExactTokensForETH", true, []interface{}{usdt}),
	}}
	swaps, err := New(store, tokens()).Swaps(context.Background(), router, 0)
	require.NoError(t, err)
	assert.Equal(t, SwapMethods, store.names)
	require.Len(t, swaps, 2)

	first := swaps[0]
	assert.Equal(t, "0x01", first.Hash)
	assert.Equal(t, user, first.User)
	assert.Equal(t, pair, first.Pair)
	assert.Equal(t, "USDT", first.FromSymbol)
	assert.Equal(t, "1.5", first.FromAmount)
	assert.Equal(t, "GENE", first.ToSymbol)
	assert.Equal(t, "2", first.ToAmount)
	assert.Equal(t, "1500000", first.Amount0In)

	second := swaps[1]
	assert.Equal(t, DefaultNativeSymbol, second.FromSymbol)
	assert.Equal(t, "5", second.FromAmount, "unknown token amounts stay raw")
	assert.Equal(t, "USDT", second.ToSymbol)
	assert.Equal(t, "0.000007", second.ToAmount)
}

func TestSwapsAfterStorageRoundTrip(t *testing.T) {
	log := swapLog(0, 0, 0, 0)
	for i := range log.Args {
		log.Args[i].Value = valueString(log.Args[i].Value)
	}
	log.Args[1].Value = "250"
	log.Args[4].Value = "1000000"
	store := &fakeStore{calls: []model.Transaction{
		swapTx("0x05", "swapExactTokensForTokens", true, []interface{}{gene, usdt}, log),
	}}

	swaps, err := New(store, nil).Swaps(context.Background(), router, 1)
	require.NoError(t, err)
	require.Len(t, swaps, 1)
	assert.Equal(t, gene, swaps[0].FromSymbol)
	assert.Equal(t, "250", swaps[0].FromAmount)
	assert.Equal(t, "1000000", swaps[0].ToAmount)
}

func TestSwapsRejectsBadRouter(t *testing.T) {
	_, err := New(&fakeStore{}, nil).Swaps(context.Background(), "router", 10)
	assert.Error(t, err)
}

func TestTokenTransfersAndUsers(t *testing.T) {
	meta := &model.TokenTransfer{From: user, To: usdt, Value: model.NewBigInt(big.NewInt(1000)), Formatted: "0.001", Symbol: "USDT"}
	store := &fakeStore{
		transfers: []model.Transaction{{Hash: "0x01", Details: &model.TransactionDetails{Type: model.TypeTokenTransfer, Metadata: meta}}},
		callers:   []string{user},
	}
	reporter := New(store, nil)

	transfers, err := reporter.TokenTransfers(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, transfers, 1)
	assert.Equal(t, "0.001", transfers[0].Metadata.Formatted)

	users, err := reporter.ContractUsers(context.Background(), usdt, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{user}, users)

	_, err = reporter.ContractUsers(context.Background(), "nope", 10)
	assert.Error(t, err)
}
