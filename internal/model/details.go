package model

// TypeTokenTransfer marks a direct ERC20 transfer call.
const TypeTokenTransfer = "token_transfer"

// TransactionDetails is the decoded view of a transaction. It is written once.
type TransactionDetails struct {
	Call             *CallData         `json:"call,omitempty"`
	Logs             []DetailLog       `json:"logs"`
	ContractMetadata *ContractMetadata `json:"contract_metadata,omitempty"`
	Type             string            `json:"type,omitempty"`
	Metadata         *TokenTransfer    `json:"metadata,omitempty"`
}

// CallData is a decoded function call.
type CallData struct {
	Name            string         `json:"name"`
	Signature       string         `json:"signature"`
	Selector        string         `json:"selector"`
	Inputs          []Argument     `json:"inputs"`
	Outputs         []ArgumentType `json:"outputs,omitempty"`
	Payable         bool           `json:"payable"`
	StateMutability string         `json:"stateMutability"`
}

// Input returns the named input, if present.
func (c *CallData) Input(name string) (Argument, bool) {
	for _, arg := range c.Inputs {
		if arg.Name == name {
			return arg, true
		}
	}
	return Argument{}, false
}

// Argument is one decoded, named and typed value. Integers are held as BigInt.
type Argument struct {
	Name  string      `json:"name"`
	Type  string      `json:"type"`
	Value interface{} `json:"value"`
}

// ArgumentType is a declared output type.
type ArgumentType struct {
	Type string `json:"type"`
}

// DetailLog is either a decoded event (Name set) or the raw log when no
// interface for the emitter is known.
type DetailLog struct {
	Address   string     `json:"address"`
	Data      string     `json:"data"`
	Topics    []string   `json:"topics,omitempty"`
	Name      string     `json:"name,omitempty"`
	Signature string     `json:"signature,omitempty"`
	Topic     string     `json:"topic,omitempty"`
	Args      []Argument `json:"args,omitempty"`
}

// Decoded reports whether the log was matched to a known event.
func (l DetailLog) Decoded() bool {
	return l.Name != ""
}

// Arg returns the named event argument, if present.
func (l DetailLog) Arg(name string) (Argument, bool) {
	for _, arg := range l.Args {
		if arg.Name == name {
			return arg, true
		}
	}
	return Argument{}, false
}

// TokenTransfer is the semantic payload of a token_transfer transaction.
type TokenTransfer struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Value     BigInt `json:"value"`
	Formatted string `json:"formatted"`
	Decimals  uint8  `json:"decimals"`
	Name      string `json:"name"`
	Symbol    string `json:"symbol"`
	Contract  string `json:"contract"`
}
