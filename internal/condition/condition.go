// Package condition evaluates job gating conditions. Conditions are HCL
// expressions parsed once at load time, evaluated against the run's
// variables; the expression AST gives glob matching, equality and boolean
// combinators without embedding a dynamic language.
package condition

import (
	"fmt"
	"path"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/function"
)

// Parse parses a condition string into an expression. The filename is used
// only for diagnostics.
func Parse(src, filename string) (hcl.Expression, error) {
	expr, diags := hclsyntax.ParseExpression([]byte(src), filename, hcl.InitialPos)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parsing condition %q: %w", src, diags)
	}
	return expr, nil
}

// globFunc matches a string against a shell-style glob pattern,
// e.g. glob("v*.*.*", event.ref_name).
var globFunc = function.New(&function.Spec{
	Params: []function.Parameter{
		{Name: "pattern", Type: cty.String},
		{Name: "value", Type: cty.String},
	},
	Type: function.StaticReturnType(cty.Bool),
	Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
		ok, err := path.Match(args[0].AsString(), args[1].AsString())
		if err != nil {
			return cty.NilVal, fmt.Errorf("bad glob pattern %q: %w", args[0].AsString(), err)
		}
		return cty.BoolVal(ok), nil
	},
})

// EvalContext builds the evaluation context for run variables: an `event`
// object exposing each variable as a string, plus the glob() function.
func EvalContext(vars map[string]string) *hcl.EvalContext {
	attrs := make(map[string]cty.Value, len(vars))
	for name, val := range vars {
		attrs[name] = cty.StringVal(val)
	}
	eventVal := cty.EmptyObjectVal
	if len(attrs) > 0 {
		eventVal = cty.ObjectVal(attrs)
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{"event": eventVal},
		Functions: map[string]function.Function{"glob": globFunc},
	}
}

// Eval evaluates a boolean condition against run variables. A nil
// expression is vacuously true.
func Eval(expr hcl.Expression, vars map[string]string) (bool, error) {
	if expr == nil {
		return true, nil
	}
	val, diags := expr.Value(EvalContext(vars))
	if diags.HasErrors() {
		return false, fmt.Errorf("evaluating condition: %w", diags)
	}
	val, err := convert.Convert(val, cty.Bool)
	if err != nil {
		return false, fmt.Errorf("condition is not boolean: %w", err)
	}
	if val.IsNull() {
		return false, fmt.Errorf("condition evaluated to null")
	}
	return val.True(), nil
}

// EvalString evaluates an expression expected to yield a string, used for
// templated release names.
func EvalString(expr hcl.Expression, vars map[string]string) (string, error) {
	val, diags := expr.Value(EvalContext(vars))
	if diags.HasErrors() {
		return "", fmt.Errorf("evaluating expression: %w", diags)
	}
	val, err := convert.Convert(val, cty.String)
	if err != nil {
		return "", fmt.Errorf("expression is not a string: %w", err)
	}
	if val.IsNull() {
		return "", fmt.Errorf("expression evaluated to null")
	}
	return val.AsString(), nil
}
