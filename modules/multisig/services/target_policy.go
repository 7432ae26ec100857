package services

import (
	"errors"
	"strings"

	"github.com/google/cel-go/cel"

	"github.com/jacksonlee411/board-multisig/modules/multisig/domain/types"
)

var newTargetPolicyCELEnv = func() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("target", cel.StringType),
		cel.Variable("description", cel.StringType),
		cel.Variable("payload_size", cel.IntType),
		cel.Variable("known_target", cel.BoolType),
	)
}

// TargetPolicy decides whether a proposal may name a target. A nil policy
// admits every non-zero target.
type TargetPolicy struct {
	expr    string
	program cel.Program
	known   map[types.Identity]struct{}
}

func CompileTargetPolicy(expr string, knownTargets []types.Identity) (*TargetPolicy, error) {
	expr = strings.TrimSpace(expr)
	known := make(map[types.Identity]struct{}, len(knownTargets))
	for _, id := range knownTargets {
		known[types.NormalizeIdentity(string(id))] = struct{}{}
	}
	if expr == "" {
		return &TargetPolicy{known: known}, nil
	}

	env, err := newTargetPolicyCELEnv()
	if err != nil {
		return nil, err
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, errors.New("target policy: expression must be boolean")
	}
	program, err := env.Program(ast)
	if err != nil {
		return nil, err
	}
	return &TargetPolicy{expr: expr, program: program, known: known}, nil
}

func (p *TargetPolicy) Expr() string {
	if p == nil {
		return ""
	}
	return p.expr
}

func (p *TargetPolicy) Allow(target types.Identity, description string, payload []byte) (bool, error) {
	if p == nil || p.program == nil {
		return true, nil
	}
	_, known := p.known[target]
	out, _, err := p.program.Eval(map[string]any{
		"target":       string(target),
		"description":  description,
		"payload_size": int64(len(payload)),
		"known_target": known,
	})
	if err != nil {
		return false, err
	}
	allowed, ok := out.Value().(bool)
	if !ok {
		return false, errors.New("target policy: non-boolean result")
	}
	return allowed, nil
}
