package registry

import (
	"bytes"
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"chainExplorer/internal/model"
)

// ContractCaller executes read-only contract calls.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// FetchTokenInfo reads ERC20 decimals, symbol and name from chain. Name and
// symbol fall back to the bytes32 variant used by legacy tokens.
func FetchTokenInfo(ctx context.Context, caller ContractCaller, token common.Address, logger *zap.Logger) (model.TokenInfo, error) {
	info := model.TokenInfo{}
	if caller == nil {
		return info, fmt.Errorf("contract caller is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	stringABI, err := BuiltinABI(ABIERC20)
	if err != nil {
		return info, err
	}
	bytes32ABI, err := erc20Bytes32ABIInstance()
	if err != nil {
		return info, fmt.Errorf("parse erc20 bytes32 abi: %w", err)
	}

	call := func(method string, parsed *abi.ABI) ([]interface{}, error) {
		data, err := parsed.Pack(method)
		if err != nil {
			return nil, fmt.Errorf("pack %s: %w", method, err)
		}
		msg := ethereum.CallMsg{To: &token, Data: data}
		resp, err := caller.CallContract(ctx, msg, nil)
		if err != nil {
			return nil, fmt.Errorf("call %s: %w", method, err)
		}
		values, err := parsed.Unpack(method, resp)
		if err != nil {
			return nil, fmt.Errorf("unpack %s: %w", method, err)
		}
		if len(values) == 0 {
			return nil, fmt.Errorf("unpack %s: empty result", method)
		}
		return values, nil
	}

	values, err := call("decimals", stringABI)
	if err != nil {
		return info, err
	}
	decimals, err := asUint8(values[0])
	if err != nil {
		return info, err
	}
	info.Decimals = decimals

	readText := func(method string) string {
		if values, err := call(method, stringABI); err == nil {
			if text, ok := values[0].(string); ok {
				return text
			}
		}
		values, err := call(method, &bytes32ABI)
		if err != nil {
			logger.Debug("token text call failed", zap.String("token", token.Hex()), zap.String("method", method), zap.Error(err))
			return ""
		}
		text, _ := bytes32ToString(values[0])
		return text
	}
	info.Symbol = readText("symbol")
	info.Name = readText("name")

	return info, nil
}

func bytes32ToString(value interface{}) (string, bool) {
	switch v := value.(type) {
	case [32]byte:
		return string(bytes.TrimRight(v[:], "\x00")), true
	case []byte:
		return string(bytes.TrimRight(v, "\x00")), true
	default:
		return "", false
	}
}

func asUint8(value interface{}) (uint8, error) {
	switch v := value.(type) {
	case uint8:
		return v, nil
	case uint16:
		return uint8(v), nil
	case uint32:
		return uint8(v), nil
	case uint64:
		return uint8(v), nil
	case *big.Int:
		return uint8(v.Uint64()), nil
	default:
		return 0, fmt.Errorf("unsupported uint8 type %T", value)
	}
}
