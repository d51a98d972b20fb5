package warning

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Env is what trigger formulas can reference.
type Env struct {
	Score    int    `expr:"score"`
	Previous int    `expr:"previous"`
	Amount   int    `expr:"amount"`
	Set      string `expr:"set"`
}

// Condition is a compiled boolean trigger formula such as "score >= 3".
type Condition struct {
	source  string
	program *vm.Program
}

// CompileCondition compiles a trigger formula. Unknown variables fail compilation.
func CompileCondition(formula string) (*Condition, error) {
	formula = strings.TrimSpace(formula)
	if formula == "" {
		return nil, fmt.Errorf("%w: empty trigger formula", ErrInvalidFormula)
	}

	program, err := expr.Compile(formula, expr.Env(Env{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidFormula, formula, err)
	}

	return &Condition{source: formula, program: program}, nil
}

// Eval runs the formula against env.
func (c *Condition) Eval(env Env) (bool, error) {
	out, err := expr.Run(c.program, env)
	if err != nil {
		return false, fmt.Errorf("trigger %q: %w", c.source, err)
	}
	result, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("trigger %q returned %T", c.source, out)
	}
	return result, nil
}

func (c *Condition) String() string {
	return c.source
}

// Amount is a point amount that may depend on per-check variables,
// e.g. "delay < 1 ? 3 : 1" for the antispam delay check.
type Amount struct {
	source   string
	constant int
	program  *vm.Program
}

// CompileAmount compiles an amount formula over the given variable names.
// Plain integers are kept as constants.
func CompileAmount(formula string, vars ...string) (*Amount, error) {
	formula = strings.TrimSpace(formula)
	if formula == "" {
		return &Amount{source: "0"}, nil
	}
	if n, err := strconv.Atoi(formula); err == nil {
		return &Amount{source: formula, constant: n}, nil
	}

	env := make(map[string]any, len(vars))
	for _, v := range vars {
		env[v] = 0.0
	}

	program, err := expr.Compile(formula, expr.Env(env))
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidFormula, formula, err)
	}
	return &Amount{source: formula, program: program}, nil
}

// Eval computes the amount rounded to the nearest integer.
func (a *Amount) Eval(vars map[string]float64) (int, error) {
	if a == nil {
		return 0, nil
	}
	if a.program == nil {
		return a.constant, nil
	}

	env := make(map[string]any, len(vars))
	for k, v := range vars {
		env[k] = v
	}

	out, err := expr.Run(a.program, env)
	if err != nil {
		return 0, fmt.Errorf("amount %q: %w", a.source, err)
	}

	switch v := out.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(math.Round(v)), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("amount %q returned %T", a.source, out)
	}
}

func (a *Amount) String() string {
	if a == nil {
		return "0"
	}
	return a.source
}
