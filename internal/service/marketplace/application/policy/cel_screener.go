// internal/service/marketplace/application/policy/cel_screener.go
package policy

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"

	"agrilink/internal/service/marketplace/application"
	"agrilink/internal/service/marketplace/domain"
)

// CELScreener 是 application.RequestScreener 的 CEL 实现。
// 这是一个典型的适配器：把通用表达式引擎的 API 适配到领域接口上。
// 货主用一条布尔表达式描述放行条件，比如限制单次认领上限：
//
//	request.quantity <= 500 && request.quantity <= item.quantityAvailable
//
// 表达式在创建时编译一次，之后每次提交求值。
type CELScreener struct {
	expr    string
	program cel.Program
}

var _ application.RequestScreener = (*CELScreener)(nil)

// NewCELScreener 编译筛查表达式。表达式必须对 request / item
// 两个变量求值为布尔。语法错误在这里暴露，而不是提交时。
func NewCELScreener(expr string) (*CELScreener, error) {
	env, err := cel.NewEnv(
		cel.Variable("request", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("item", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build CEL environment: %w", err)
	}

	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("invalid screening expression %q: %w", expr, iss.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("screening expression %q must evaluate to bool, got %s", expr, ast.OutputType())
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to plan screening expression: %w", err)
	}
	return &CELScreener{expr: expr, program: program}, nil
}

// Screen 求值表达式，false 时以 ErrValidation 拦截提交。
func (s *CELScreener) Screen(ctx context.Context, req *domain.Request, item *domain.InventoryItem) error {
	displayName := ""
	if item.Details != nil {
		displayName = item.Details.DisplayName()
	}

	out, _, err := s.program.ContextEval(ctx, map[string]interface{}{
		"request": map[string]interface{}{
			"quantity":      req.RequestedQuantity,
			"itemId":        req.ItemID,
			"requesterId":   req.RequesterID,
			"requesterRole": string(req.RequesterRole),
		},
		"item": map[string]interface{}{
			"id":                item.ID,
			"quantityAvailable": item.QuantityAvailable,
			"displayName":       displayName,
		},
	})
	if err != nil {
		return fmt.Errorf("screening expression evaluation failed: %w", err)
	}

	verdict, ok := out.Value().(bool)
	if !ok {
		return fmt.Errorf("screening expression returned %T, want bool", out.Value())
	}
	if !verdict {
		return fmt.Errorf("%w: blocked by screening policy %q", domain.ErrValidation, s.expr)
	}
	return nil
}
