package rules

import (
	"fmt"
	"os"
	"sync"

	luajson "github.com/alicebob/gopher-json"
	lua "github.com/yuin/gopher-lua"

	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/models"
)

// Script runs a Lua rule script. The script must define
//
//	function evaluate(move, session) ... end
//
// where move is {wallet, clientMoveId, data} and session carries roomId,
// mode, turnNumber, currentTurnWallet, moveCount and participants. It returns
// a table {endsTurn=bool, winner=string, draw=bool} or nil for a plain
// turn-ending move. Raising a Lua error rejects the move.
type Script struct {
	mu sync.Mutex
	L  *lua.LState
}

// LoadScriptFile compiles the script at path
func LoadScriptFile(path string) (*Script, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules script: %w", err)
	}
	return LoadScript(string(src))
}

// LoadScript compiles src and checks that evaluate is defined
func LoadScript(src string) (*Script, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	for _, lib := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		if err := L.CallByParam(lua.P{Fn: L.NewFunction(lib.fn), NRet: 0, Protect: true}, lua.LString(lib.name)); err != nil {
			L.Close()
			return nil, fmt.Errorf("open lua lib %s: %w", lib.name, err)
		}
	}
	if err := L.DoString(src); err != nil {
		L.Close()
		return nil, fmt.Errorf("load rules script: %w", err)
	}
	if L.GetGlobal("evaluate").Type() != lua.LTFunction {
		L.Close()
		return nil, fmt.Errorf("rules script does not define evaluate(move, session)")
	}
	return &Script{L: L}, nil
}

// Close releases the Lua state
func (e *Script) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.L.Close()
}

// Evaluate implements Engine
func (e *Script) Evaluate(s *models.GameSession, m models.Move) (Verdict, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	L := e.L

	move := L.NewTable()
	move.RawSetString("wallet", lua.LString(m.Wallet))
	move.RawSetString("clientMoveId", lua.LString(m.ClientMoveID))
	if len(m.MoveData) > 0 {
		data, err := luajson.Decode(L, m.MoveData)
		if err != nil {
			return Verdict{}, models.Errorf(models.CodeInvalidInput, "moveData: %v", err)
		}
		move.RawSetString("data", data)
	}

	sess := L.NewTable()
	sess.RawSetString("roomId", lua.LString(s.RoomID))
	sess.RawSetString("mode", lua.LString(s.Mode))
	sess.RawSetString("turnNumber", lua.LNumber(s.TurnNumber))
	sess.RawSetString("currentTurnWallet", lua.LString(s.CurrentTurnWallet))
	sess.RawSetString("moveCount", lua.LNumber(s.MoveCount))
	seats := L.NewTable()
	for _, p := range s.Participants {
		seats.Append(lua.LString(p))
	}
	sess.RawSetString("participants", seats)

	if err := L.CallByParam(lua.P{Fn: L.GetGlobal("evaluate"), NRet: 1, Protect: true}, move, sess); err != nil {
		return Verdict{}, models.Errorf(models.CodeInvalidInput, "move rejected: %v", err)
	}
	ret := L.Get(-1)
	L.Pop(1)

	tbl, ok := ret.(*lua.LTable)
	if !ok {
		if ret == lua.LNil {
			return Verdict{TurnEnding: true}, nil
		}
		return Verdict{}, models.Errorf(models.CodeInternal, "evaluate returned %s", ret.Type())
	}

	v := Verdict{TurnEnding: true}
	if b, ok := tbl.RawGetString("endsTurn").(lua.LBool); ok {
		v.TurnEnding = bool(b)
	}
	if lua.LVAsBool(tbl.RawGetString("draw")) {
		v.Outcome = &Outcome{Draw: true}
	} else if w, ok := tbl.RawGetString("winner").(lua.LString); ok && w != "" {
		if !s.IsParticipant(string(w)) {
			return Verdict{}, models.Errorf(models.CodeInvalidInput, "winner %s is not seated", w)
		}
		v.Outcome = &Outcome{Winner: string(w)}
	}
	return v, nil
}
