package decoder

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"

	"chainExplorer/internal/model"
	"chainExplorer/internal/registry"
)

// ContractLookup resolves registered contracts by address.
type ContractLookup interface {
	Lookup(address string) (*registry.Contract, bool)
}

// Decoder turns raw call data and logs into named, typed values.
type Decoder struct {
	contracts ContractLookup
}

// New builds a decoder over the given registry.
func New(contracts ContractLookup) *Decoder {
	return &Decoder{contracts: contracts}
}

// Details assembles the decoded view of a transaction. It fails only when the
// call itself cannot be decoded; undecodable logs are kept raw.
func (d *Decoder) Details(tx *model.Transaction) (*model.TransactionDetails, error) {
	details := &model.TransactionDetails{Logs: []model.DetailLog{}}

	contract, registered := d.contracts.Lookup(tx.To)
	if registered {
		details.ContractMetadata = snapshot(contract.Metadata)
	}

	if tx.HasInput() {
		call, err := d.DecodeCall(tx.To, tx.Input)
		if err != nil {
			return nil, err
		}
		details.Call = call
	}

	if tx.Receipt != nil {
		for _, log := range tx.Receipt.Logs {
			details.Logs = append(details.Logs, d.DecodeLog(log))
		}
	}

	if registered && contract.Kind() == model.KindToken && details.Call != nil && details.Call.Name == "transfer" {
		transfer, err := tokenTransfer(tx, contract, details.Call)
		if err != nil {
			return nil, &DecodeError{Contract: tx.To, Err: err}
		}
		details.Type = model.TypeTokenTransfer
		details.Metadata = transfer
	}

	return details, nil
}

// DecodeCall decodes call data against the interface registered at address.
func (d *Decoder) DecodeCall(address, input string) (*model.CallData, error) {
	contract, ok := d.contracts.Lookup(address)
	if !ok {
		return nil, &DecodeError{Contract: address, Err: ErrUnknownContract}
	}

	data, err := hexutil.Decode(input)
	if err != nil {
		return nil, &DecodeError{Contract: address, Err: fmt.Errorf("%w: %v", ErrMalformed, err)}
	}
	if len(data) < 4 {
		return nil, &DecodeError{Contract: address, Err: fmt.Errorf("%w: %d bytes", ErrMalformed, len(data))}
	}

	method, err := contract.ABI.MethodById(data[:4])
	if err != nil {
		return nil, &DecodeError{Contract: address, Err: fmt.Errorf("%w %s", ErrUnknownSelector, hexutil.Encode(data[:4]))}
	}

	values, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, &DecodeError{Contract: address, Err: fmt.Errorf("%w: %s: %v", ErrMalformed, method.Name, err)}
	}

	call := &model.CallData{
		Name:            method.Name,
		Signature:       method.Sig,
		Selector:        hexutil.Encode(method.ID),
		Inputs:          make([]model.Argument, 0, len(method.Inputs)),
		Payable:         method.IsPayable(),
		StateMutability: method.StateMutability,
	}
	for i, arg := range method.Inputs {
		call.Inputs = append(call.Inputs, model.Argument{
			Name:  argName(arg, i),
			Type:  arg.Type.String(),
			Value: normalize(values[i]),
		})
	}
	for _, out := range method.Outputs {
		call.Outputs = append(call.Outputs, model.ArgumentType{Type: out.Type.String()})
	}
	return call, nil
}

// DecodeLog decodes a log with the interface of its emitter. Logs from
// unknown emitters, or with unknown or mismatching signatures, are returned raw.
func (d *Decoder) DecodeLog(log model.Log) model.DetailLog {
	raw := model.DetailLog{Address: log.Address, Topics: log.Topics, Data: log.Data}
	if len(log.Topics) == 0 {
		return raw
	}

	contract, ok := d.contracts.Lookup(log.Address)
	if !ok {
		return raw
	}

	topics, err := parseTopicHashes(log.Topics)
	if err != nil {
		return raw
	}
	event, err := contract.ABI.EventByID(topics[0])
	if err != nil {
		return raw
	}
	args, err := decodeEventArgs(event, topics[1:], log.Data)
	if err != nil {
		return raw
	}

	return model.DetailLog{
		Address:   log.Address,
		Data:      log.Data,
		Name:      event.Name,
		Signature: event.Sig,
		Topic:     event.ID.Hex(),
		Args:      args,
	}
}

func decodeEventArgs(event *abi.Event, topics []common.Hash, dataHex string) ([]model.Argument, error) {
	indexed := indexedArguments(event.Inputs)
	if len(topics) != len(indexed) {
		return nil, fmt.Errorf("expected %d topics, got %d", len(indexed)+1, len(topics)+1)
	}

	indexedValues := make(map[string]interface{}, len(indexed))
	if err := abi.ParseTopicsIntoMap(indexedValues, indexed, topics); err != nil {
		return nil, fmt.Errorf("parse topics: %w", err)
	}

	values, err := unpackNonIndexed(event, dataHex)
	if err != nil {
		return nil, err
	}

	args := make([]model.Argument, 0, len(event.Inputs))
	next := 0
	for i, arg := range event.Inputs {
		name := argName(arg, i)
		var value interface{}
		if arg.Indexed {
			value = indexedValues[name]
		} else {
			if next >= len(values) {
				return nil, fmt.Errorf("unpack %s: missing value for %s", event.Name, name)
			}
			value = values[next]
			next++
		}
		args = append(args, model.Argument{Name: name, Type: arg.Type.String(), Value: normalize(value)})
	}
	return args, nil
}

func tokenTransfer(tx *model.Transaction, contract *registry.Contract, call *model.CallData) (*model.TokenTransfer, error) {
	if len(call.Inputs) < 2 {
		return nil, fmt.Errorf("%w: transfer takes 2 arguments, got %d", ErrMalformed, len(call.Inputs))
	}
	recipient, ok := call.Inputs[0].Value.(string)
	if !ok {
		return nil, fmt.Errorf("%w: transfer recipient is %T", ErrMalformed, call.Inputs[0].Value)
	}
	amount, ok := call.Inputs[1].Value.(model.BigInt)
	if !ok || !amount.IsSet() {
		return nil, fmt.Errorf("%w: transfer amount is %T", ErrMalformed, call.Inputs[1].Value)
	}

	transfer := &model.TokenTransfer{
		From:     tx.From,
		To:       recipient,
		Value:    amount,
		Contract: contract.Address.Hex(),
	}
	if token := contract.Metadata.Token; token != nil {
		transfer.Decimals = token.Decimals
		transfer.Name = token.Name
		transfer.Symbol = token.Symbol
	}
	transfer.Formatted = FormatAmount(amount.Int, transfer.Decimals)
	return transfer, nil
}

// FormatAmount renders a raw token amount in whole units.
func FormatAmount(amount *big.Int, decimals uint8) string {
	if amount == nil {
		return "0"
	}
	return decimal.NewFromBigInt(amount, -int32(decimals)).String()
}

func snapshot(meta model.ContractMetadata) *model.ContractMetadata {
	out := meta
	if meta.Token != nil {
		token := *meta.Token
		out.Token = &token
	}
	if meta.Pair != nil {
		pair := *meta.Pair
		out.Pair = &pair
	}
	return &out
}

func argName(arg abi.Argument, index int) string {
	if arg.Name != "" {
		return arg.Name
	}
	return fmt.Sprintf("arg%d", index)
}

func parseTopicHashes(topics []string) ([]common.Hash, error) {
	out := make([]common.Hash, 0, len(topics))
	for _, topic := range topics {
		data, err := hexutil.Decode(topic)
		if err != nil {
			return nil, fmt.Errorf("invalid topic: %w", err)
		}
		if len(data) > common.HashLength {
			return nil, fmt.Errorf("topic length %d", len(data))
		}
		out = append(out, common.BytesToHash(data))
	}
	return out, nil
}

// indexedArguments returns the indexed inputs, with unnamed ones given the
// positional name used in decoded output.
func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for i, arg := range args {
		if arg.Indexed {
			arg.Name = argName(arg, i)
			indexed = append(indexed, arg)
		}
	}
	return indexed
}

func unpackNonIndexed(event *abi.Event, dataHex string) ([]interface{}, error) {
	data, err := hexutil.Decode(dataHex)
	if err != nil {
		return nil, fmt.Errorf("invalid data: %w", err)
	}
	nonIndexed := event.Inputs.NonIndexed()
	if len(nonIndexed) == 0 {
		return nil, nil
	}
	values, err := nonIndexed.Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", event.Name, err)
	}
	return values, nil
}
