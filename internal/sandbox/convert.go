package sandbox

import (
	"fmt"
	"math"
	"slices"

	"github.com/Shopify/go-lua"
)

const maxDepth = 32

// pushValue pushes decoded JSON data onto the stack.
func pushValue(l *lua.State, value any, depth int) {
	if depth > maxDepth {
		l.PushNil()
		return
	}
	switch v := value.(type) {
	case nil:
		l.PushNil()
	case bool:
		l.PushBoolean(v)
	case float64:
		l.PushNumber(v)
	case int:
		l.PushInteger(v)
	case string:
		l.PushString(v)
	case []any:
		l.CreateTable(len(v), 0)
		for i, item := range v {
			pushValue(l, item, depth+1)
			l.RawSetInt(-2, i+1)
		}
	case map[string]any:
		l.CreateTable(0, len(v))
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			pushValue(l, v[k], depth+1)
			l.SetField(-2, k)
		}
	default:
		l.PushString(fmt.Sprint(v))
	}
}

// luaToGo converts the value at index into JSON-safe Go data.
func luaToGo(l *lua.State, index, depth int) (any, error) {
	if depth > maxDepth {
		return nil, fmt.Errorf("result nests deeper than %d levels", maxDepth)
	}
	switch l.TypeOf(index) {
	case lua.TypeNil, lua.TypeNone:
		return nil, nil
	case lua.TypeBoolean:
		return l.ToBoolean(index), nil
	case lua.TypeNumber:
		value, _ := l.ToNumber(index)
		return normalizeNumber(value), nil
	case lua.TypeString:
		value, _ := l.ToString(index)
		return value, nil
	case lua.TypeTable:
		return tableToGo(l, index, depth)
	default:
		return lua.TypeNameOf(l, index), nil
	}
}

func tableToGo(l *lua.State, index, depth int) (any, error) {
	index = l.AbsIndex(index)
	isArray := true
	maxIndex := 0
	count := 0
	l.PushNil()
	for l.Next(index) {
		count++
		if isArray {
			key, _ := l.ToNumber(-2)
			if l.TypeOf(-2) == lua.TypeNumber && key >= 1 && math.Mod(key, 1) == 0 {
				maxIndex = max(maxIndex, int(key))
			} else {
				isArray = false
			}
		}
		l.Pop(1)
	}
	if count == 0 {
		return []any{}, nil
	}
	if isArray && maxIndex == count {
		out := make([]any, 0, maxIndex)
		for i := 1; i <= maxIndex; i++ {
			l.RawGetInt(index, i)
			value, err := luaToGo(l, -1, depth+1)
			l.Pop(1)
			if err != nil {
				return nil, err
			}
			out = append(out, value)
		}
		return out, nil
	}

	out := make(map[string]any, count)
	l.PushNil()
	for l.Next(index) {
		key, err := tableKey(l)
		if err != nil {
			l.Pop(2)
			return nil, err
		}
		value, err := luaToGo(l, -1, depth+1)
		if err != nil {
			l.Pop(2)
			return nil, err
		}
		out[key] = value
		l.Pop(1)
	}
	return out, nil
}

// tableKey renders the key at -2 without disturbing iteration.
func tableKey(l *lua.State) (string, error) {
	switch l.TypeOf(-2) {
	case lua.TypeString:
		key, _ := l.ToString(-2)
		return key, nil
	case lua.TypeNumber:
		value, _ := l.ToNumber(-2)
		return fmt.Sprint(normalizeNumber(value)), nil
	case lua.TypeBoolean:
		return fmt.Sprint(l.ToBoolean(-2)), nil
	default:
		return "", fmt.Errorf("unsupported %s key in result", lua.TypeNameOf(l, -2))
	}
}

// normalizeNumber turns integral floats into ints and non-finite values into
// nil so the result always encodes as JSON.
func normalizeNumber(value float64) any {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return nil
	}
	if math.Mod(value, 1) == 0 && math.Abs(value) < 1<<53 {
		return int64(value)
	}
	return value
}
