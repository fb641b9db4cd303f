package scripting

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

//go:embed formulas.lua
var defaultFormulas string

// Engine wraps a single gopher-lua VM for the combat and progression
// formulas. Single-goroutine access only (game loop).
type Engine struct {
	vm  *lua.LState
	log *zap.Logger
}

// NewEngine creates a Lua engine with the built-in formulas loaded, then
// overlays any .lua files from scriptsDir (empty = built-ins only).
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, log: log}

	if err := vm.DoString(defaultFormulas); err != nil {
		vm.Close()
		return nil, fmt.Errorf("load built-in formulas: %w", err)
	}
	if scriptsDir != "" {
		if err := e.loadDir(scriptsDir); err != nil {
			vm.Close()
			return nil, fmt.Errorf("load scripts: %w", err)
		}
	}
	return e, nil
}

// loadDir loads all .lua files in a directory.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// CombatContext holds pre-packed data for one melee hit.
type CombatContext struct {
	AttackerStr int
	AttackerLvl int
	TargetHP    int
	TargetMHP   int
	TargetLvl   int
}

// AttackResult is returned by the Lua calc_attack function.
type AttackResult struct {
	Damage int
	XPGain int
}

// CalcAttack calls the Lua calc_attack function.
func (e *Engine) CalcAttack(ctx CombatContext) AttackResult {
	fallback := AttackResult{Damage: ctx.AttackerStr, XPGain: ctx.AttackerStr}

	fn := e.vm.GetGlobal("calc_attack")
	if fn == lua.LNil {
		e.log.Error("lua function calc_attack not found")
		return fallback
	}

	t := e.vm.NewTable()

	atk := e.vm.NewTable()
	atk.RawSetString("str", lua.LNumber(ctx.AttackerStr))
	atk.RawSetString("lvl", lua.LNumber(ctx.AttackerLvl))
	t.RawSetString("attacker", atk)

	tgt := e.vm.NewTable()
	tgt.RawSetString("hp", lua.LNumber(ctx.TargetHP))
	tgt.RawSetString("mhp", lua.LNumber(ctx.TargetMHP))
	tgt.RawSetString("lvl", lua.LNumber(ctx.TargetLvl))
	t.RawSetString("target", tgt)

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, t); err != nil {
		e.log.Error("lua calc_attack error", zap.Error(err))
		return fallback
	}

	result := e.vm.Get(-1)
	e.vm.Pop(1)

	rt, ok := result.(*lua.LTable)
	if !ok {
		e.log.Error("lua calc_attack returned non-table")
		return fallback
	}

	return AttackResult{
		Damage: int(lua.LVAsNumber(rt.RawGetString("damage"))),
		XPGain: int(lua.LVAsNumber(rt.RawGetString("xp_gain"))),
	}
}

// ProgressContext holds the attacker's stats at a level-up check.
type ProgressContext struct {
	XP  int
	MXP int
	Str int
	Lvl int
	MHP int
}

// LevelUpResult is the post-level-up stat block returned by Lua.
type LevelUpResult struct {
	MXP int
	Str int
	Lvl int
	MHP int
}

// CalcLevelUp calls the Lua calc_level_up function.
func (e *Engine) CalcLevelUp(ctx ProgressContext) LevelUpResult {
	fallback := LevelUpResult{
		MXP: ctx.MXP * 12 / 10,
		Str: ctx.Str + 1,
		Lvl: ctx.Lvl + 1,
		MHP: ctx.MHP + 2,
	}

	fn := e.vm.GetGlobal("calc_level_up")
	if fn == lua.LNil {
		e.log.Error("lua function calc_level_up not found")
		return fallback
	}

	t := e.vm.NewTable()
	t.RawSetString("xp", lua.LNumber(ctx.XP))
	t.RawSetString("mxp", lua.LNumber(ctx.MXP))
	t.RawSetString("str", lua.LNumber(ctx.Str))
	t.RawSetString("lvl", lua.LNumber(ctx.Lvl))
	t.RawSetString("mhp", lua.LNumber(ctx.MHP))

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, t); err != nil {
		e.log.Error("lua calc_level_up error", zap.Error(err))
		return fallback
	}

	result := e.vm.Get(-1)
	e.vm.Pop(1)

	rt, ok := result.(*lua.LTable)
	if !ok {
		e.log.Error("lua calc_level_up returned non-table")
		return fallback
	}

	return LevelUpResult{
		MXP: int(lua.LVAsNumber(rt.RawGetString("mxp"))),
		Str: int(lua.LVAsNumber(rt.RawGetString("str"))),
		Lvl: int(lua.LVAsNumber(rt.RawGetString("lvl"))),
		MHP: int(lua.LVAsNumber(rt.RawGetString("mhp"))),
	}
}

// Close releases the Lua VM.
func (e *Engine) Close() {
	e.vm.Close()
}
