// emitter.go - post-order tape emission from a parsed AST.
//
// Grounded on original_source/compiler.c's emission walk: a variable
// prelude of nop commands precedes the expression commands, and each
// operand becomes either an inlined literal or a signed backward offset
// (POS(t) = totcmds-1-t->command_no) to the command that produced it.

package lyd

import "strconv"

// emitVal is what walking a single AST node contributes to its parent's
// argument slot: either an inlined literal/index, or the absolute tape
// index of a command whose output the parent must reference.
type emitVal struct {
	isRef bool
	val   float64 // literal value, or (if isRef) the absolute command index
}

func emit(source string, root *exprNode, resolve opResolver) (*Program, error) {
	prog := &Program{source: source}
	varIndex := map[string]int{}

	var collectVars func(n *exprNode) error
	collectVars = func(n *exprNode) error {
		switch n.kind {
		case nVar:
			if _, ok := varIndex[n.str]; ok {
				return nil
			}
			def := 0.0
			if n.hasInit {
				def = n.init
			}
			h := str2float(n.str)
			varIndex[n.str] = len(prog.cmds)
			prog.varName = append(prog.varName, n.str)
			prog.varHash = append(prog.varHash, h)
			prog.cmds = append(prog.cmds, Command{
				Op:    OpNop,
				Arity: 2,
				Arg:   [argSlots]float64{def, h},
			})
		case nCall:
			for _, a := range n.args {
				if err := collectVars(a); err != nil {
					return err
				}
			}
		}
		return nil
	}
	if err := collectVars(root); err != nil {
		return nil, err
	}

	var walk func(n *exprNode) (emitVal, error)
	walk = func(n *exprNode) (emitVal, error) {
		switch n.kind {
		case nLit:
			return emitVal{val: n.num}, nil

		case nStr:
			idx := len(prog.waveNames)
			prog.waveNames = append(prog.waveNames, n.str)
			return emitVal{val: float64(idx)}, nil

		case nVar:
			return emitVal{isRef: true, val: float64(varIndex[n.str])}, nil

		case nCall:
			op, info, ok := lookupOp(n.str, resolve)
			if !ok {
				return emitVal{}, newCompileError(n.pos, "unknown operator or function %q", n.str)
			}
			if len(n.args) < info.arity.min || len(n.args) > info.arity.max {
				return emitVal{}, newCompileError(n.pos, "%q takes %s, got %d argument(s)",
					n.str, describeArity(info.arity), len(n.args))
			}
			if len(n.args) > argSlots {
				return emitVal{}, newCompileError(n.pos, "%q: too many arguments (max %d)", n.str, argSlots)
			}

			childVals := make([]emitVal, len(n.args))
			for i, a := range n.args {
				v, err := walk(a)
				if err != nil {
					return emitVal{}, err
				}
				childVals[i] = v
			}

			var cmd Command
			cmd.Op = op
			cmd.Arity = len(n.args)
			parentIdx := len(prog.cmds)
			for i, v := range childVals {
				if v.isRef {
					cmd.Arg[i] = -(float64(parentIdx) - v.val)
				} else {
					cmd.Arg[i] = v.val
				}
			}
			prog.cmds = append(prog.cmds, cmd)
			return emitVal{isRef: true, val: float64(parentIdx)}, nil

		default:
			return emitVal{}, newCompileError(n.pos, "internal: unhandled node kind")
		}
	}

	rootVal, err := walk(root)
	if err != nil {
		return nil, err
	}

	// The terminator needs to know where the root's output lives: when
	// root is a bare literal (no command of its own), a trailing nop
	// holding that literal keeps the "last command before OpEnd is the
	// program's output" invariant true. A bare variable root needs no
	// wrapper: its prelude nop is then the only command before OpEnd.
	if !rootVal.isRef {
		prog.cmds = append(prog.cmds, Command{Op: OpNop, Arity: 1, Arg: [argSlots]float64{rootVal.val}})
	}
	prog.cmds = append(prog.cmds, Command{Op: OpEnd})

	return prog, nil
}

func describeArity(a arity) string {
	if a.min == a.max {
		switch a.min {
		case 0:
			return "no arguments"
		case 1:
			return "1 argument"
		default:
			return strconv.Itoa(a.min) + " arguments"
		}
	}
	return strconv.Itoa(a.min) + "-" + strconv.Itoa(a.max) + " arguments"
}

// lookupOp resolves a call name against the built-in catalog first, then
// the supplied extension resolver (nil when compiling without an engine).
func lookupOp(name string, resolve opResolver) (Opcode, opInfo, bool) {
	if op, ok := builtinByName[name]; ok {
		return op, builtinCatalog[op], true
	}
	if resolve != nil {
		if op, ar, ok := resolve(name); ok {
			return op, opInfo{name: name, arity: ar}, true
		}
	}
	return 0, opInfo{}, false
}
