// Package callexpr parses the call expressions typed by users into
// evaluation requests.
//
// Supported forms are:
//
//	local.Method(args...)          instance call on a local variable
//	Namespace.Type.Method(args...) static call
//	local.ctor(args...)            constructor run on a struct local
//	new(Namespace.Type, args...)   new object
//
// Arguments are locals, literals (numbers, strings, 'c' characters, true,
// false and null), negated numbers and conversions of literals to the
// built-in numeric types, such as int64(5) or char(65).
package callexpr

import (
	"bytes"
	"errors"
	"fmt"
	"go/ast"
	"go/constant"
	"go/parser"
	"go/printer"
	"go/token"
	"math"
	"strings"

	"github.com/go-delve/remoteeval/pkg/metadata"
	"github.com/go-delve/remoteeval/pkg/proc"
)

// Scope resolves the names used in an expression.
type Scope interface {
	// Lookup finds a type by name.
	Lookup(name string) (*metadata.Type, bool)
	// PrimitiveType returns the built-in type with the given code.
	PrimitiveType(code metadata.TypeCode) *metadata.Type
	// Local returns the local variable called name, or ErrNotFound.
	Local(name string) (*proc.Value, error)
}

// ErrNotFound is returned by Scope.Local for unknown names.
var ErrNotFound = errors.New("not found")

var errNotACall = errors.New("not a function call")

// constructorName is the metadata name of instance constructors.
const constructorName = ".ctor"

var conversions = map[string]metadata.TypeCode{
	"bool":    metadata.TypeCodeBoolean,
	"char":    metadata.TypeCodeChar,
	"int8":    metadata.TypeCodeSByte,
	"sbyte":   metadata.TypeCodeSByte,
	"uint8":   metadata.TypeCodeByte,
	"byte":    metadata.TypeCodeByte,
	"int16":   metadata.TypeCodeInt16,
	"uint16":  metadata.TypeCodeUInt16,
	"int32":   metadata.TypeCodeInt32,
	"int":     metadata.TypeCodeInt32,
	"uint32":  metadata.TypeCodeUInt32,
	"int64":   metadata.TypeCodeInt64,
	"long":    metadata.TypeCodeInt64,
	"uint64":  metadata.TypeCodeUInt64,
	"float32": metadata.TypeCodeSingle,
	"float":   metadata.TypeCodeSingle,
	"float64": metadata.TypeCodeDouble,
	"double":  metadata.TypeCodeDouble,
}

// untyped is a literal whose type is decided by the parameter it is
// passed to.
type untyped struct {
	val constant.Value
}

// Bind parses expr and resolves it in scope.
func Bind(scope Scope, expr string) (*proc.EvalRequest, error) {
	t, err := parser.ParseExpr(expr)
	if err != nil {
		return nil, err
	}
	for {
		p, ok := t.(*ast.ParenExpr)
		if !ok {
			break
		}
		t = p.X
	}
	node, ok := t.(*ast.CallExpr)
	if !ok {
		return nil, errNotACall
	}
	if id, ok := node.Fun.(*ast.Ident); ok && id.Name == "new" {
		return bindNew(scope, node)
	}
	sel, ok := node.Fun.(*ast.SelectorExpr)
	if !ok {
		return nil, fmt.Errorf("can not call %s: expected <receiver>.<method> or <type>.<method>", exprToString(node.Fun))
	}
	args, err := bindArgs(scope, node.Args)
	if err != nil {
		return nil, err
	}
	name := sel.Sel.Name
	if name == "ctor" {
		name = constructorName
	}

	req := &proc.EvalRequest{}
	var typ *metadata.Type
	if id, ok := sel.X.(*ast.Ident); ok {
		recv, err := scope.Local(id.Name)
		switch {
		case err == nil:
			req.Receiver = recv
			typ = recv.Type()
		case !errors.Is(err, ErrNotFound):
			return nil, err
		}
	}
	if req.Receiver == nil {
		tname := exprToString(sel.X)
		typ, ok = scope.Lookup(tname)
		if !ok {
			return nil, fmt.Errorf("could not find local or type %s", tname)
		}
	}

	m, err := findMethod(typ, name, args, req.Receiver == nil)
	if err != nil {
		return nil, err
	}
	req.Method = m
	req.Args, err = typeArgs(scope, m, args)
	if err != nil {
		return nil, err
	}
	return req, nil
}

func bindNew(scope Scope, node *ast.CallExpr) (*proc.EvalRequest, error) {
	if len(node.Args) == 0 {
		return nil, errors.New("new needs a type")
	}
	tname := exprToString(node.Args[0])
	typ, ok := scope.Lookup(tname)
	if !ok {
		return nil, fmt.Errorf("could not find type %s", tname)
	}
	args, err := bindArgs(scope, node.Args[1:])
	if err != nil {
		return nil, err
	}
	m, err := findMethod(typ, constructorName, args, false)
	if err != nil {
		return nil, err
	}
	req := &proc.EvalRequest{Method: m, NewObject: true}
	req.Args, err = typeArgs(scope, m, args)
	if err != nil {
		return nil, err
	}
	return req, nil
}

// findMethod picks the method called name of typ. Methods with the right
// number of parameters are preferred, then the most derived one. A
// single candidate is returned even if its arity is wrong so that the
// evaluation reports the mismatch.
func findMethod(typ *metadata.Type, name string, args []interface{}, static bool) (*metadata.Method, error) {
	var cands []*metadata.Method
	if name == constructorName {
		cands = typ.Constructors()
	} else {
		for _, m := range typ.MethodsNamed(name) {
			if m.Static == static {
				cands = append(cands, m)
			}
		}
	}
	for _, m := range cands {
		if len(m.AllParameterTypes()) == len(args) {
			return m, nil
		}
	}
	switch len(cands) {
	case 0:
		kind := "method"
		if static {
			kind = "static method"
		}
		return nil, fmt.Errorf("%s has no %s %s", typ, kind, strings.TrimPrefix(name, "."))
	case 1:
		return cands[0], nil
	}
	return nil, fmt.Errorf("no overload of %s.%s takes %d arguments", typ, strings.TrimPrefix(name, "."), len(args))
}

func bindArgs(scope Scope, exprs []ast.Expr) ([]interface{}, error) {
	args := make([]interface{}, len(exprs))
	for i, e := range exprs {
		v, err := bindArg(scope, e)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		args[i] = v
	}
	return args, nil
}

func bindArg(scope Scope, t ast.Expr) (interface{}, error) {
	switch node := t.(type) {
	case *ast.ParenExpr:
		return bindArg(scope, node.X)

	case *ast.BasicLit:
		switch node.Kind {
		case token.STRING:
			return constant.StringVal(constant.MakeFromLiteral(node.Value, node.Kind, 0)), nil
		case token.CHAR:
			v, _ := constant.Int64Val(constant.MakeFromLiteral(node.Value, node.Kind, 0))
			return proc.Char(v), nil
		}
		return untyped{constant.MakeFromLiteral(node.Value, node.Kind, 0)}, nil

	case *ast.UnaryExpr:
		v, err := bindArg(scope, node.X)
		if err != nil {
			return nil, err
		}
		u, ok := v.(untyped)
		if !ok || (node.Op != token.SUB && node.Op != token.ADD) {
			return nil, fmt.Errorf("operator %s not supported on %s", node.Op, exprToString(node.X))
		}
		return untyped{constant.UnaryOp(node.Op, u.val, 0)}, nil

	case *ast.Ident:
		switch node.Name {
		case "true", "false":
			return node.Name == "true", nil
		case "null", "nil":
			return nil, nil
		}
		v, err := scope.Local(node.Name)
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("could not find local %s", node.Name)
		}
		return v, err

	case *ast.CallExpr:
		id, ok := node.Fun.(*ast.Ident)
		if !ok || len(node.Args) != 1 {
			return nil, fmt.Errorf("nested calls are not supported: %s", exprToString(node))
		}
		code, ok := conversions[id.Name]
		if !ok {
			return nil, fmt.Errorf("unknown conversion %s", id.Name)
		}
		v, err := bindArg(scope, node.Args[0])
		if err != nil {
			return nil, err
		}
		u, ok := v.(untyped)
		if !ok {
			return nil, fmt.Errorf("can only convert literals, not %s", exprToString(node.Args[0]))
		}
		return literalPrimitive(scope, u.val, scope.PrimitiveType(code))
	}
	return nil, fmt.Errorf("expression %s not supported", exprToString(t))
}

// typeArgs gives untyped literals the type of the parameter they are
// passed to, or their default type for non primitive parameters.
func typeArgs(scope Scope, m *metadata.Method, args []interface{}) ([]interface{}, error) {
	params := m.AllParameterTypes()
	for i, a := range args {
		u, ok := a.(untyped)
		if !ok {
			continue
		}
		typ := defaultType(scope, u.val)
		if i < len(params) && params[i].Kind == metadata.Primitive {
			typ = params[i]
		}
		p, err := literalPrimitive(scope, u.val, typ)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		args[i] = p
	}
	return args, nil
}

func defaultType(scope Scope, v constant.Value) *metadata.Type {
	if v.Kind() == constant.Float {
		return scope.PrimitiveType(metadata.TypeCodeDouble)
	}
	return scope.PrimitiveType(metadata.TypeCodeInt32)
}

// integerRanges are the inclusive bounds of the integer primitive types.
var integerRanges = map[metadata.TypeCode][2]constant.Value{
	metadata.TypeCodeChar:   {constant.MakeInt64(0), constant.MakeUint64(math.MaxUint16)},
	metadata.TypeCodeSByte:  {constant.MakeInt64(math.MinInt8), constant.MakeInt64(math.MaxInt8)},
	metadata.TypeCodeByte:   {constant.MakeInt64(0), constant.MakeUint64(math.MaxUint8)},
	metadata.TypeCodeInt16:  {constant.MakeInt64(math.MinInt16), constant.MakeInt64(math.MaxInt16)},
	metadata.TypeCodeUInt16: {constant.MakeInt64(0), constant.MakeUint64(math.MaxUint16)},
	metadata.TypeCodeInt32:  {constant.MakeInt64(math.MinInt32), constant.MakeInt64(math.MaxInt32)},
	metadata.TypeCodeUInt32: {constant.MakeInt64(0), constant.MakeUint64(math.MaxUint32)},
	metadata.TypeCodeInt64:  {constant.MakeInt64(math.MinInt64), constant.MakeInt64(math.MaxInt64)},
	metadata.TypeCodeUInt64: {constant.MakeInt64(0), constant.MakeUint64(math.MaxUint64)},
}

func overflows(v constant.Value, typ *metadata.Type) error {
	return &proc.EvalError{Kind: proc.MalformedRequest, Detail: fmt.Sprintf("constant %v overflows %s", v, typ)}
}

// literalPrimitive converts the numeric constant v to the primitive type
// typ. Integer constants that do not fit typ are rejected.
func literalPrimitive(scope Scope, v constant.Value, typ *metadata.Type) (*proc.Primitive, error) {
	var src *proc.Primitive
	switch v.Kind() {
	case constant.Int:
		if r, ok := integerRanges[typ.Code]; ok && (constant.Compare(v, token.LSS, r[0]) || constant.Compare(v, token.GTR, r[1])) {
			return nil, overflows(v, typ)
		}
		if n, exact := constant.Int64Val(v); exact {
			src = &proc.Primitive{Type: scope.PrimitiveType(metadata.TypeCodeInt64), Val: n}
		} else if u, exact := constant.Uint64Val(v); exact {
			src = &proc.Primitive{Type: scope.PrimitiveType(metadata.TypeCodeUInt64), Val: u}
		} else {
			return nil, overflows(v, typ)
		}
	case constant.Float:
		f, _ := constant.Float64Val(v)
		src = &proc.Primitive{Type: scope.PrimitiveType(metadata.TypeCodeDouble), Val: f}
	default:
		return nil, fmt.Errorf("can not convert %v to %s", v, typ)
	}
	return proc.ConvertPrimitive(src, typ)
}

func exprToString(t ast.Expr) string {
	var buf bytes.Buffer
	printer.Fprint(&buf, token.NewFileSet(), t)
	return buf.String()
}
