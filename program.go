// program.go - Command/Program tape types and the compile() entry point.
//
// Grounded on original_source/compiler.c (the tape shape: a flat command
// array, POS(t) signed backward offsets, a variable prelude of nop commands)
// and lyd-private.h's LydOp/LydVM struct fields.

package lyd

// argSlots is the fixed number of argument slots a Command carries, per
// spec.md §3 ("8 raw argument slots").
const argSlots = 8

// Command is one entry in a compiled tape. Arg holds up to Arity raw
// argument values; a value <= -1 is a signed backward offset to another
// command's output (POS(t) in the original compiler), everything else is a
// literal.
type Command struct {
	Op    Opcode
	Arity int
	Arg   [argSlots]float64
}

// isRef reports whether arg is a backward reference rather than a literal.
func isRef(arg float64) bool {
	return arg <= -1
}

// refOffset turns a reference arg into the number of commands to step back.
func refOffset(arg float64) int {
	return int(-arg)
}

// Program is a compiled tape: the variable prelude (one OpNop per unique
// variable referenced by name in the source) followed by the expression
// commands in emission order, terminated by an OpEnd marker.
type Program struct {
	source    string
	cmds      []Command
	varName   []string // varName[i] is the name bound to prelude slot i
	varHash   []float64
	waveNames []string // string-literal arguments, e.g. wave("kick")
}

// outputIndex is the tape index whose output is the program's result: the
// command directly before the OpEnd terminator.
func (p *Program) outputIndex() int {
	return len(p.cmds) - 2
}

// NumVoices-independent static info. VM-side per-voice state (phase
// accumulators, delay lines, filter history) is never stored here; a
// Program is immutable once compiled and safely shared across voices.

// opResolver looks up a call name that isn't one of the built-ins,
// returning the assigned Opcode and its arity. The extension registry
// (extension.go) implements this for Engine.Compile; package-level Compile
// has no resolver and only accepts the built-in catalog.
type opResolver func(name string) (Opcode, arity, bool)

// Compile parses source and emits a tape using only the built-in opcode
// catalog. It returns a *CompileError when source is not a valid
// expression, matching spec.md §4.1/§7: a failed compile returns no
// Program. Use Engine.Compile to additionally resolve extension ops.
func Compile(source string) (*Program, error) {
	return compileProgram(source, nil)
}

func compileProgram(source string, resolve opResolver) (*Program, error) {
	toks, err := lex(source)
	if err != nil {
		return nil, err
	}
	p := newParser(toks, source)
	expr, err := p.parseExpr(0)
	if err != nil {
		return nil, err
	}
	if !p.atEnd() {
		return nil, newCompileError(p.peek().pos, "unexpected trailing input %q", p.peek().text)
	}
	return emit(source, expr, resolve)
}

// CommandCount reports the number of tape entries, prelude included.
func (p *Program) CommandCount() int {
	return len(p.cmds)
}

// VarCount reports the number of distinct named variables in the program.
func (p *Program) VarCount() int {
	return len(p.varName)
}

// VarNames returns the variable names in prelude-slot order.
func (p *Program) VarNames() []string {
	out := make([]string, len(p.varName))
	copy(out, p.varName)
	return out
}

// str2float hashes a variable or macro name into the float prelude tags the
// VM uses to match set_param calls against a running voice's variables.
// Ported verbatim from original_source/lyd-private.h:str2float: the first
// ten lowercased characters only, each weighted by its position.
func str2float(name string) float64 {
	var f float64
	for i := 0; i < len(name) && i < 10; i++ {
		c := name[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		f += float64(int(c)-'a') / 30.0 * float64(int(1)<<uint(i)) / 100.0
	}
	return f
}
