//go:build !no_external

package external

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// callTimeout bounds a single converter call into a script.
const callTimeout = time.Second

// scriptVM is the Lua state of one converter file. Lua states are
// single-threaded; every call holds mu.
type scriptVM struct {
	name  string
	mu    sync.Mutex
	state *lua.LState
}

func newScriptVM(name string) *scriptVM {
	L := lua.NewState(lua.Options{SkipOpenLibs: false})

	// Sandbox: remove dangerous libs and functions
	for _, g := range []string{"os", "io", "loadfile", "dofile", "require", "load", "debug", "package"} {
		L.SetGlobal(g, lua.LNil)
	}
	return &scriptVM{name: name, state: L}
}

func (vm *scriptVM) close() {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.state.Close()
}

// run executes the file body and returns the definition table it returns.
func (vm *scriptVM) run(code string) (*lua.LTable, error) {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	vm.state.SetContext(ctx)
	defer vm.state.RemoveContext()

	top := vm.state.GetTop()
	if err := vm.state.DoString(code); err != nil {
		return nil, fmt.Errorf("%s: %w", vm.name, err)
	}
	if vm.state.GetTop() == top {
		return nil, fmt.Errorf("%s: script returned no definition", vm.name)
	}
	ret := vm.state.Get(-1)
	vm.state.Pop(vm.state.GetTop() - top)
	tbl, ok := ret.(*lua.LTable)
	if !ok {
		return nil, fmt.Errorf("%s: script returned %s, want table", vm.name, ret.Type())
	}
	return tbl, nil
}

// call invokes fn with args converted from Go and returns up to nret
// results converted back.
func (vm *scriptVM) call(fn *lua.LFunction, nret int, args ...any) ([]any, error) {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	L := vm.state
	L.SetContext(ctx)
	defer L.RemoveContext()

	largs := make([]lua.LValue, len(args))
	for i, a := range args {
		largs[i] = goToLua(L, a)
	}
	if err := L.CallByParam(lua.P{Fn: fn, NRet: nret, Protect: true}, largs...); err != nil {
		return nil, fmt.Errorf("%s: %w", vm.name, err)
	}
	out := make([]any, nret)
	for i := nret - 1; i >= 0; i-- {
		out[i] = luaToGo(L.Get(-1))
		L.Pop(1)
	}
	return out, nil
}

// goToLua converts a Go value to a Lua value.
func goToLua(L *lua.LState, v any) lua.LValue {
	switch val := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(val)
	case string:
		return lua.LString(val)
	case int:
		return lua.LNumber(val)
	case int8:
		return lua.LNumber(val)
	case int16:
		return lua.LNumber(val)
	case int32:
		return lua.LNumber(val)
	case int64:
		return lua.LNumber(val)
	case uint8:
		return lua.LNumber(val)
	case uint16:
		return lua.LNumber(val)
	case uint32:
		return lua.LNumber(val)
	case uint64:
		return lua.LNumber(val)
	case float32:
		return lua.LNumber(val)
	case float64:
		return lua.LNumber(val)
	case []byte:
		return lua.LString(val)
	case map[string]any:
		t := L.NewTable()
		for k, vv := range val {
			t.RawSetString(k, goToLua(L, vv))
		}
		return t
	case []any:
		t := L.NewTable()
		for i, vv := range val {
			t.RawSetInt(i+1, goToLua(L, vv))
		}
		return t
	case []string:
		t := L.NewTable()
		for i, s := range val {
			t.RawSetInt(i+1, lua.LString(s))
		}
		return t
	default:
		return lua.LString(fmt.Sprintf("%v", val))
	}
}

// luaToGo converts a Lua value to a Go value. Tables with only positive
// integer keys become []any, other tables map[string]any.
func luaToGo(v lua.LValue) any {
	switch val := v.(type) {
	case lua.LBool:
		return bool(val)
	case lua.LString:
		return string(val)
	case lua.LNumber:
		return float64(val)
	case *lua.LTable:
		if n := val.MaxN(); n > 0 && n == tableLen(val) {
			out := make([]any, 0, n)
			for i := 1; i <= n; i++ {
				out = append(out, luaToGo(val.RawGetInt(i)))
			}
			return out
		}
		out := make(map[string]any)
		val.ForEach(func(k, vv lua.LValue) {
			out[k.String()] = luaToGo(vv)
		})
		return out
	}
	return nil
}

func tableLen(t *lua.LTable) int {
	n := 0
	t.ForEach(func(lua.LValue, lua.LValue) { n++ })
	return n
}

// wireValue narrows integral Lua numbers to int64 so they encode into
// integer ZCL types.
func wireValue(v any) any {
	if f, ok := v.(float64); ok && f == math.Trunc(f) && !math.IsInf(f, 0) {
		return int64(f)
	}
	return v
}

// stringList reads a Lua array of strings; a single string is a
// one-element list.
func stringList(v lua.LValue) []string {
	switch val := v.(type) {
	case lua.LString:
		return []string{string(val)}
	case *lua.LTable:
		var out []string
		for i := 1; i <= val.MaxN(); i++ {
			out = append(out, val.RawGetInt(i).String())
		}
		return out
	}
	return nil
}

// enumTable reads a Lua table of token = code pairs.
func enumTable(t *lua.LTable) (map[string]int, error) {
	out := make(map[string]int)
	var err error
	t.ForEach(func(k, v lua.LValue) {
		n, ok := v.(lua.LNumber)
		if !ok && err == nil {
			err = fmt.Errorf("enum value %s=%s is not a number", k, v)
			return
		}
		out[k.String()] = int(n)
	})
	return out, err
}
