// parser.go - Pratt (top-down operator precedence) parser, per spec.md §4.1.
//
// Grounded on original_source/compiler.c's token/nud/led structure and
// binding-power table (`+ -` = 50, unary prefix = 70, `* / %` = 60, `^` = 70,
// call/grouping `(` = 80).

package lyd

import "strconv"

type nodeKind int

const (
	nLit nodeKind = iota
	nStr
	nVar
	nCall
)

// exprNode is a parsed AST node. emitter.go walks it post-order to build the
// tape.
type exprNode struct {
	kind nodeKind
	pos  int

	num float64 // nLit
	str string  // nStr, and the op/variable name for nVar/nCall

	hasInit bool
	init    float64 // nVar default value from an "=default" initializer

	args []*exprNode // nCall
}

const (
	bpNone   = 0
	bpSum    = 50
	bpProd   = 60
	bpPrefix = 70
	bpPow    = 70
	bpCall   = 80
)

type parser struct {
	toks []token
	pos  int
	src  string
}

func newParser(toks []token, src string) *parser {
	return &parser{toks: toks, src: src}
}

func (p *parser) peek() token {
	return p.toks[p.pos]
}

func (p *parser) next() token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) atEnd() bool {
	return p.peek().kind == tEOF
}

// infixBp returns the left binding power of tok if it's an infix operator,
// or 0 if tok cannot continue an expression.
func infixBp(tok token) int {
	if tok.kind != tOp {
		return bpNone
	}
	switch tok.text {
	case "+", "-":
		return bpSum
	case "*", "/", "%":
		return bpProd
	case "^":
		return bpPow
	}
	return bpNone
}

func (p *parser) parseExpr(minBp int) (*exprNode, error) {
	left, err := p.parseNud()
	if err != nil {
		return nil, err
	}

	for {
		tok := p.peek()
		bp := infixBp(tok)
		if bp == 0 || bp <= minBp {
			break
		}
		p.next()
		nextMinBp := bp
		if tok.text == "^" {
			// right-associative: allow a same-bp rhs to recurse
			nextMinBp = bp - 1
		}
		right, err := p.parseExpr(nextMinBp)
		if err != nil {
			return nil, err
		}
		left = &exprNode{
			kind: nCall,
			pos:  tok.pos,
			str:  tok.text,
			args: []*exprNode{left, right},
		}
	}

	return left, nil
}

func (p *parser) parseNud() (*exprNode, error) {
	tok := p.next()

	switch tok.kind {
	case tNumber:
		return &exprNode{kind: nLit, pos: tok.pos, num: tok.num}, nil

	case tString:
		return &exprNode{kind: nStr, pos: tok.pos, str: tok.text}, nil

	case tLParen:
		expr, err := p.parseExpr(0)
		if err != nil {
			return nil, err
		}
		if p.peek().kind != tRParen {
			return nil, newCompileError(p.peek().pos, "expected ')'")
		}
		p.next()
		return expr, nil

	case tOp:
		if tok.text == "-" {
			operand, err := p.parseExpr(bpPrefix)
			if err != nil {
				return nil, err
			}
			return &exprNode{kind: nCall, pos: tok.pos, str: "neg", args: []*exprNode{operand}}, nil
		}
		return nil, newCompileError(tok.pos, "unexpected operator %q", tok.text)

	case tIdent:
		if p.peek().kind == tLParen {
			p.next() // consume '('
			var args []*exprNode
			if p.peek().kind != tRParen {
				for {
					arg, err := p.parseExpr(0)
					if err != nil {
						return nil, err
					}
					args = append(args, arg)
					if p.peek().kind == tComma {
						p.next()
						continue
					}
					break
				}
			}
			if p.peek().kind != tRParen {
				return nil, newCompileError(p.peek().pos, "expected ')' to close %q call", tok.text)
			}
			p.next()
			return &exprNode{kind: nCall, pos: tok.pos, str: tok.text, args: args}, nil
		}

		if v, ok := namedConstant(tok.text); ok {
			return &exprNode{kind: nLit, pos: tok.pos, num: v}, nil
		}

		node := &exprNode{kind: nVar, pos: tok.pos, str: tok.text}
		if tok.hasInit {
			v, err := parseFloatInit(tok.init)
			if err != nil {
				return nil, newCompileError(tok.pos, "invalid default for variable %q: %s", tok.text, tok.init)
			}
			node.hasInit = true
			node.init = v
		}
		return node, nil

	default:
		return nil, newCompileError(tok.pos, "unexpected end of input")
	}
}

func parseFloatInit(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}

// namedConstant resolves the classifier's reserved constant names (spec.md
// §4.1 step (b)), matching original_source/compiler.c's constant_lexicon.
// Checked ahead of the variable fallback so "pi", "phi", "iphi" can never
// be shadowed by a bareword variable of the same name.
func namedConstant(name string) (float64, bool) {
	switch name {
	case "pi":
		return 3.141592653589793, true
	case "phi":
		return 1.61803399, true
	case "iphi":
		return 0.61803399, true
	}
	return 0, false
}
