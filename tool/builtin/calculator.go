package builtin

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/TSGCFO/langchain-agent/tool"
)

// CalculatorInput is the argument shape of the calculator tool.
type CalculatorInput struct {
	Operation string  `json:"operation" jsonschema:"enum=add,enum=subtract,enum=multiply,enum=divide,enum=power,description=Arithmetic operation"`
	A         float64 `json:"a" jsonschema:"description=Left operand"`
	B         float64 `json:"b" jsonschema:"description=Right operand"`
}

// ErrDivideByZero is returned by the calculator for division by zero.
var ErrDivideByZero = errors.New("division by zero")

// NewCalculator returns the calculator tool.
func NewCalculator() tool.Tool {
	return tool.NewFunctionToolFromStruct("calculator",
		"Performs add, subtract, multiply, divide or power on two numbers.",
		CalculatorInput{},
		func(_ context.Context, args map[string]any) (any, error) {
			op, _ := args["operation"].(string)
			a, err := toFloat(args["a"])
			if err != nil {
				return nil, fmt.Errorf("a: %w", err)
			}
			b, err := toFloat(args["b"])
			if err != nil {
				return nil, fmt.Errorf("b: %w", err)
			}
			switch op {
			case "add":
				return a + b, nil
			case "subtract":
				return a - b, nil
			case "multiply":
				return a * b, nil
			case "divide":
				if b == 0 {
					return nil, ErrDivideByZero
				}
				return a / b, nil
			case "power":
				return math.Pow(a, b), nil
			default:
				return nil, tool.NewToolError("calculator", fmt.Sprintf("unknown operation %q", op), tool.CodeValidation)
			}
		})
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case int32:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("expected number, got %T", v)
	}
}
