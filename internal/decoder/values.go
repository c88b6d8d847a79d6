package decoder

import (
	"math/big"
	"reflect"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"chainExplorer/internal/model"
)

// normalize converts ABI-unpacked Go values into storable form: integers of
// 64 bits or more become BigInt, addresses are checksummed, byte strings are
// hex encoded. Arrays and tuples are converted element by element.
func normalize(value interface{}) interface{} {
	switch v := value.(type) {
	case nil:
		return nil
	case *big.Int:
		return model.NewBigInt(v)
	case int64:
		return model.NewBigInt(big.NewInt(v))
	case uint64:
		return model.NewBigInt(new(big.Int).SetUint64(v))
	case common.Address:
		return v.Hex()
	case common.Hash:
		return v.Hex()
	case []byte:
		return hexutil.Encode(v)
	case string, bool, int8, int16, int32, uint8, uint16, uint32:
		return v
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Ptr:
		if rv.IsNil() {
			return nil
		}
		return normalize(rv.Elem().Interface())
	case reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			raw := make([]byte, rv.Len())
			for i := range raw {
				raw[i] = byte(rv.Index(i).Uint())
			}
			return hexutil.Encode(raw)
		}
		return normalizeList(rv)
	case reflect.Slice:
		return normalizeList(rv)
	case reflect.Struct:
		return normalizeTuple(rv)
	default:
		return value
	}
}

func normalizeList(rv reflect.Value) []interface{} {
	out := make([]interface{}, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		out[i] = normalize(rv.Index(i).Interface())
	}
	return out
}

// normalizeTuple maps an unpacked tuple struct by its json field names,
// which carry the ABI component names.
func normalizeTuple(rv reflect.Value) map[string]interface{} {
	out := make(map[string]interface{}, rv.NumField())
	rt := rv.Type()
	for i := 0; i < rv.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		name := strings.Split(field.Tag.Get("json"), ",")[0]
		if name == "" {
			name = field.Name
		}
		out[name] = normalize(rv.Field(i).Interface())
	}
	return out
}
