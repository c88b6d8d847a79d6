package registry

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Names of the interfaces bundled with the binary.
const (
	ABIERC20      = "erc20"
	ABIWETH       = "weth"
	ABIPair       = "uniswap-v2-pair"
	ABIRouterV2   = "uniswap-v2-router"
	ABIFactory    = "uniswap-v2-factory"
	ABIMasterchef = "masterchef"
)

const erc20ABIJSON = `[
  {"anonymous": false, "inputs": [
    {"indexed": true, "name": "from", "type": "address"},
    {"indexed": true, "name": "to", "type": "address"},
    {"indexed": false, "name": "value", "type": "uint256"}
  ], "name": "Transfer", "type": "event"},
  {"anonymous": false, "inputs": [
    {"indexed": true, "name": "owner", "type": "address"},
    {"indexed": true, "name": "spender", "type": "address"},
    {"indexed": false, "name": "value", "type": "uint256"}
  ], "name": "Approval", "type": "event"},
  {"inputs": [], "name": "name", "outputs": [{"name": "", "type": "string"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "symbol", "outputs": [{"name": "", "type": "string"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "decimals", "outputs": [{"name": "", "type": "uint8"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "totalSupply", "outputs": [{"name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [{"name": "account", "type": "address"}], "name": "balanceOf", "outputs": [{"name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [{"name": "owner", "type": "address"}, {"name": "spender", "type": "address"}], "name": "allowance", "outputs": [{"name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [{"name": "recipient", "type": "address"}, {"name": "amount", "type": "uint256"}], "name": "transfer", "outputs": [{"name": "", "type": "bool"}], "stateMutability": "nonpayable", "type": "function"},
  {"inputs": [{"name": "spender", "type": "address"}, {"name": "amount", "type": "uint256"}], "name": "approve", "outputs": [{"name": "", "type": "bool"}], "stateMutability": "nonpayable", "type": "function"},
  {"inputs": [{"name": "sender", "type": "address"}, {"name": "recipient", "type": "address"}, {"name": "amount", "type": "uint256"}], "name": "transferFrom", "outputs": [{"name": "", "type": "bool"}], "stateMutability": "nonpayable", "type": "function"}
]`

// Wrapped native coin: ERC20 plus deposit/withdraw.
const wethExtraABIJSON = `[
  {"anonymous": false, "inputs": [
    {"indexed": true, "name": "dst", "type": "address"},
    {"indexed": false, "name": "wad", "type": "uint256"}
  ], "name": "Deposit", "type": "event"},
  {"anonymous": false, "inputs": [
    {"indexed": true, "name": "src", "type": "address"},
    {"indexed": false, "name": "wad", "type": "uint256"}
  ], "name": "Withdrawal", "type": "event"},
  {"inputs": [], "name": "deposit", "outputs": [], "stateMutability": "payable", "type": "function"},
  {"inputs": [{"name": "wad", "type": "uint256"}], "name": "withdraw", "outputs": [], "stateMutability": "nonpayable", "type": "function"}
]`

const pairExtraABIJSON = `[
  {"anonymous": false, "inputs": [
    {"indexed": true, "name": "sender", "type": "address"},
    {"indexed": false, "name": "amount0In", "type": "uint256"},
    {"indexed": false, "name": "amount1In", "type": "uint256"},
    {"indexed": false, "name": "amount0Out", "type": "uint256"},
    {"indexed": false, "name": "amount1Out", "type": "uint256"},
    {"indexed": true, "name": "to", "type": "address"}
  ], "name": "Swap", "type": "event"},
  {"anonymous": false, "inputs": [
    {"indexed": false, "name": "reserve0", "type": "uint112"},
    {"indexed": false, "name": "reserve1", "type": "uint112"}
  ], "name": "Sync", "type": "event"},
  {"anonymous": false, "inputs": [
    {"indexed": true, "name": "sender", "type": "address"},
    {"indexed": false, "name": "amount0", "type": "uint256"},
    {"indexed": false, "name": "amount1", "type": "uint256"}
  ], "name": "Mint", "type": "event"},
  {"anonymous": false, "inputs": [
    {"indexed": true, "name": "sender", "type": "address"},
    {"indexed": false, "name": "amount0", "type": "uint256"},
    {"indexed": false, "name": "amount1", "type": "uint256"},
    {"indexed": true, "name": "to", "type": "address"}
  ], "name": "Burn", "type": "event"},
  {"inputs": [], "name": "token0", "outputs": [{"name": "", "type": "address"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "token1", "outputs": [{"name": "", "type": "address"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "getReserves", "outputs": [
    {"name": "_reserve0", "type": "uint112"},
    {"name": "_reserve1", "type": "uint112"},
    {"name": "_blockTimestampLast", "type": "uint32"}
  ], "stateMutability": "view", "type": "function"},
  {"inputs": [{"name": "to", "type": "address"}], "name": "mint", "outputs": [{"name": "liquidity", "type": "uint256"}], "stateMutability": "nonpayable", "type": "function"},
  {"inputs": [{"name": "to", "type": "address"}], "name": "burn", "outputs": [{"name": "amount0", "type": "uint256"}, {"name": "amount1", "type": "uint256"}], "stateMutability": "nonpayable", "type": "function"},
  {"inputs": [
    {"name": "amount0Out", "type": "uint256"},
    {"name": "amount1Out", "type": "uint256"},
    {"name": "to", "type": "address"},
    {"name": "data", "type": "bytes"}
  ], "name": "swap", "outputs": [], "stateMutability": "nonpayable", "type": "function"},
  {"inputs": [{"name": "to", "type": "address"}], "name": "skim", "outputs": [], "stateMutability": "nonpayable", "type": "function"},
  {"inputs": [], "name": "sync", "outputs": [], "stateMutability": "nonpayable", "type": "function"}
]`

const routerABIJSON = `[
  {"inputs": [], "name": "factory", "outputs": [{"name": "", "type": "address"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "WETH", "outputs": [{"name": "", "type": "address"}], "stateMutability": "view", "type": "function"},
  {"inputs": [
    {"name": "tokenA", "type": "address"},
    {"name": "tokenB", "type": "address"},
    {"name": "amountADesired", "type": "uint256"},
    {"name": "amountBDesired", "type": "uint256"},
    {"name": "amountAMin", "type": "uint256"},
    {"name": "amountBMin", "type": "uint256"},
    {"name": "to", "type": "address"},
    {"name": "deadline", "type": "uint256"}
  ], "name": "addLiquidity", "outputs": [
    {"name": "amountA", "type": "uint256"},
    {"name": "amountB", "type": "uint256"},
    {"name": "liquidity", "type": "uint256"}
  ], "stateMutability": "nonpayable", "type": "function"},
  {"inputs": [
    {"name": "token", "type": "address"},
    {"name": "amountTokenDesired", "type": "uint256"},
    {"name": "amountTokenMin", "type": "uint256"},
    {"name": "amountETHMin", "type": "uint256"},
    {"name": "to", "type": "address"},
    {"name": "deadline", "type": "uint256"}
  ], "name": "addLiquidityETH", "outputs": [
    {"name": "amountToken", "type": "uint256"},
    {"name": "amountETH", "type": "uint256"},
    {"name": "liquidity", "type": "uint256"}
  ], "stateMutability": "payable", "type": "function"},
  {"inputs": [
    {"name": "tokenA", "type": "address"},
    {"name": "tokenB", "type": "address"},
    {"name": "liquidity", "type": "uint256"},
    {"name": "amountAMin", "type": "uint256"},
    {"name": "amountBMin", "type": "uint256"},
    {"name": "to", "type": "address"},
    {"name": "deadline", "type": "uint256"}
  ], "name": "removeLiquidity", "outputs": [
    {"name": "amountA", "type": "uint256"},
    {"name": "amountB", "type": "uint256"}
  ], "stateMutability": "nonpayable", "type": "function"},
  {"inputs": [
    {"name": "token", "type": "address"},
    {"name": "liquidity", "type": "uint256"},
    {"name": "amountTokenMin", "type": "uint256"},
    {"name": "amountETHMin", "type": "uint256"},
    {"name": "to", "type": "address"},
    {"name": "deadline", "type": "uint256"}
  ], "name": "removeLiquidityETH", "outputs": [
    {"name": "amountToken", "type": "uint256"},
    {"name": "amountETH", "type": "uint256"}
  ], "stateMutability": "nonpayable", "type": "function"},
  {"inputs": [
    {"name": "amountIn", "type": "uint256"},
    {"name": "amountOutMin", "type": "uint256"},
    {"name": "path", "type": "address[]"},
    {"name": "to", "type": "address"},
    {"name": "deadline", "type": "uint256"}
  ], "name": "swapExactTokensForTokens", "outputs": [{"name": "amounts", "type": "uint256[]"}], "stateMutability": "nonpayable", "type": "function"},
  {"inputs": [
    {"name": "amountOut", "type": "uint256"},
    {"name": "amountInMax", "type": "uint256"},
    {"name": "path", "type": "address[]"},
    {"name": "to", "type": "address"},
    {"name": "deadline", "type": "uint256"}
  ], "name": "swapTokensForExactTokens", "outputs": [{"name": "amounts", "type": "uint256[]"}], "stateMutability": "nonpayable", "type": "function"},
  {"inputs": [
    {"name": "amountOutMin", "type": "uint256"},
    {"name": "path", "type": "address[]"},
    {"name": "to", "type": "address"},
    {"name": "deadline", "type": "uint256"}
  ], "name": "swapExactETHForTokens", "outputs": [{"name": "amounts", "type": "uint256[]"}], "stateMutability": "payable", "type": "function"},
  {"inputs": [
    {"name": "amountOut", "type": "uint256"},
    {"name": "amountInMax", "type": "uint256"},
    {"name": "path", "type": "address[]"},
    {"name": "to", "type": "address"},
    {"name": "deadline", "type": "uint256"}
  ], "name": "swapTokensForExactETH", "outputs": [{"name": "amounts", "type": "uint256[]"}], "stateMutability": "nonpayable", "type": "function"},
  {"inputs": [
    {"name": "amountIn", "type": "uint256"},
    {"name": "amountOutMin", "type": "uint256"},
    {"name": "path", "type": "address[]"},
    {"name": "to", "type": "address"},
    {"name": "deadline", "type": "uint256"}
  ], "name": "swapExactTokensForETH", "outputs": [{"name": "amounts", "type": "uint256[]"}], "stateMutability": "nonpayable", "type": "function"},
  {"inputs": [
    {"name": "amountOut", "type": "uint256"},
    {"name": "path", "type": "address[]"},
    {"name": "to", "type": "address"},
    {"name": "deadline", "type": "uint256"}
  ], "name": "swapETHForExactTokens", "outputs": [{"name": "amounts", "type": "uint256[]"}], "stateMutability": "payable", "type": "function"}
]`

const factoryABIJSON = `[
  {"anonymous": false, "inputs": [
    {"indexed": true, "name": "token0", "type": "address"},
    {"indexed": true, "name": "token1", "type": "address"},
    {"indexed": false, "name": "pair", "type": "address"},
    {"indexed": false, "name": "", "type": "uint256"}
  ], "name": "PairCreated", "type": "event"},
  {"inputs": [{"name": "tokenA", "type": "address"}, {"name": "tokenB", "type": "address"}], "name": "createPair", "outputs": [{"name": "pair", "type": "address"}], "stateMutability": "nonpayable", "type": "function"},
  {"inputs": [{"name": "", "type": "address"}, {"name": "", "type": "address"}], "name": "getPair", "outputs": [{"name": "", "type": "address"}], "stateMutability": "view", "type": "function"},
  {"inputs": [{"name": "", "type": "uint256"}], "name": "allPairs", "outputs": [{"name": "", "type": "address"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "allPairsLength", "outputs": [{"name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "feeTo", "outputs": [{"name": "", "type": "address"}], "stateMutability": "view", "type": "function"},
  {"inputs": [{"name": "_feeTo", "type": "address"}], "name": "setFeeTo", "outputs": [], "stateMutability": "nonpayable", "type": "function"},
  {"inputs": [{"name": "_feeToSetter", "type": "address"}], "name": "setFeeToSetter", "outputs": [], "stateMutability": "nonpayable", "type": "function"}
]`

const masterchefABIJSON = `[
  {"anonymous": false, "inputs": [
    {"indexed": true, "name": "user", "type": "address"},
    {"indexed": true, "name": "pid", "type": "uint256"},
    {"indexed": false, "name": "amount", "type": "uint256"}
  ], "name": "Deposit", "type": "event"},
  {"anonymous": false, "inputs": [
    {"indexed": true, "name": "user", "type": "address"},
    {"indexed": true, "name": "pid", "type": "uint256"},
    {"indexed": false, "name": "amount", "type": "uint256"}
  ], "name": "Withdraw", "type": "event"},
  {"anonymous": false, "inputs": [
    {"indexed": true, "name": "user", "type": "address"},
    {"indexed": true, "name": "pid", "type": "uint256"},
    {"indexed": false, "name": "amount", "type": "uint256"}
  ], "name": "EmergencyWithdraw", "type": "event"},
  {"inputs": [], "name": "poolLength", "outputs": [{"name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [{"name": "_pid", "type": "uint256"}, {"name": "_user", "type": "address"}], "name": "pendingReward", "outputs": [{"name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [
    {"name": "_allocPoint", "type": "uint256"},
    {"name": "_lpToken", "type": "address"},
    {"name": "_withUpdate", "type": "bool"}
  ], "name": "add", "outputs": [], "stateMutability": "nonpayable", "type": "function"},
  {"inputs": [
    {"name": "_pid", "type": "uint256"},
    {"name": "_allocPoint", "type": "uint256"},
    {"name": "_withUpdate", "type": "bool"}
  ], "name": "set", "outputs": [], "stateMutability": "nonpayable", "type": "function"},
  {"inputs": [], "name": "massUpdatePools", "outputs": [], "stateMutability": "nonpayable", "type": "function"},
  {"inputs": [{"name": "_pid", "type": "uint256"}], "name": "updatePool", "outputs": [], "stateMutability": "nonpayable", "type": "function"},
  {"inputs": [{"name": "_pid", "type": "uint256"}, {"name": "_amount", "type": "uint256"}], "name": "deposit", "outputs": [], "stateMutability": "nonpayable", "type": "function"},
  {"inputs": [{"name": "_pid", "type": "uint256"}, {"name": "_amount", "type": "uint256"}], "name": "withdraw", "outputs": [], "stateMutability": "nonpayable", "type": "function"},
  {"inputs": [{"name": "_pid", "type": "uint256"}], "name": "emergencyWithdraw", "outputs": [], "stateMutability": "nonpayable", "type": "function"}
]`

// Some legacy tokens return bytes32 from name/symbol.
const erc20Bytes32ABIJSON = `[
  {"inputs": [], "name": "symbol", "outputs": [{"name": "", "type": "bytes32"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "name", "outputs": [{"name": "", "type": "bytes32"}], "stateMutability": "view", "type": "function"}
]`

var builtinSources = map[string][]string{
	ABIERC20:      {erc20ABIJSON},
	ABIWETH:       {erc20ABIJSON, wethExtraABIJSON},
	ABIPair:       {erc20ABIJSON, pairExtraABIJSON},
	ABIRouterV2:   {routerABIJSON},
	ABIFactory:    {factoryABIJSON},
	ABIMasterchef: {masterchefABIJSON},
}

var (
	builtinABIs     map[string]*abi.ABI
	builtinABIsOnce sync.Once
	builtinABIsErr  error

	erc20Bytes32ABI     abi.ABI
	erc20Bytes32ABIOnce sync.Once
	erc20Bytes32ABIErr  error
)

// BuiltinABI returns a bundled interface by name.
func BuiltinABI(name string) (*abi.ABI, error) {
	builtinABIsOnce.Do(func() {
		builtinABIs = make(map[string]*abi.ABI, len(builtinSources))
		for key, parts := range builtinSources {
			parsed, err := parseABIParts(parts)
			if err != nil {
				builtinABIsErr = fmt.Errorf("parse %s abi: %w", key, err)
				return
			}
			builtinABIs[key] = parsed
		}
	})
	if builtinABIsErr != nil {
		return nil, builtinABIsErr
	}
	parsed, ok := builtinABIs[name]
	if !ok {
		return nil, fmt.Errorf("unknown builtin abi %q (known: %s)", name, strings.Join(BuiltinABINames(), ", "))
	}
	return parsed, nil
}

// BuiltinABINames lists the bundled interface names.
func BuiltinABINames() []string {
	names := make([]string, 0, len(builtinSources))
	for name := range builtinSources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoadABIFile parses a JSON ABI from disk.
func LoadABIFile(path string) (*abi.ABI, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open abi file: %w", err)
	}
	defer file.Close()

	parsed, err := abi.JSON(file)
	if err != nil {
		return nil, fmt.Errorf("parse abi file %s: %w", path, err)
	}
	return &parsed, nil
}

func erc20Bytes32ABIInstance() (abi.ABI, error) {
	erc20Bytes32ABIOnce.Do(func() {
		erc20Bytes32ABI, erc20Bytes32ABIErr = abi.JSON(strings.NewReader(erc20Bytes32ABIJSON))
	})
	return erc20Bytes32ABI, erc20Bytes32ABIErr
}

// parseABIParts merges several JSON fragments into one interface.
func parseABIParts(parts []string) (*abi.ABI, error) {
	merged := abi.ABI{
		Methods: make(map[string]abi.Method),
		Events:  make(map[string]abi.Event),
		Errors:  make(map[string]abi.Error),
	}
	for _, part := range parts {
		parsed, err := abi.JSON(strings.NewReader(part))
		if err != nil {
			return nil, err
		}
		for name, method := range parsed.Methods {
			merged.Methods[name] = method
		}
		for name, event := range parsed.Events {
			merged.Events[name] = event
		}
		for name, abiErr := range parsed.Errors {
			merged.Errors[name] = abiErr
		}
	}
	return &merged, nil
}
