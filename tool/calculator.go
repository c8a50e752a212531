package tool

import (
	"context"
	"fmt"
)

// NewCalculator returns a tool that performs basic arithmetic on two numbers.
//
// Domain errors such as division by zero are reported inside the result
// payload under an "error" key rather than as invocation failures, so the
// model can read and recover from them.
func NewCalculator() *FunctionTool {
	return NewFunctionTool(
		"calculator",
		"Perform a basic arithmetic operation on two numbers. Supported operations: add, sub, mul, div.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"first_num": map[string]any{
					"type":        "number",
					"description": "The first operand",
				},
				"second_num": map[string]any{
					"type":        "number",
					"description": "The second operand",
				},
				"operation": map[string]any{
					"type":        "string",
					"description": "One of: add, sub, mul, div",
				},
			},
			"required": []string{"first_num", "second_num", "operation"},
		},
		func(_ context.Context, args map[string]any) (any, error) {
			first, ok := toFloat(args["first_num"])
			if !ok {
				return map[string]any{"error": fmt.Sprintf("first_num is not a number: %v", args["first_num"])}, nil
			}

			second, ok := toFloat(args["second_num"])
			if !ok {
				return map[string]any{"error": fmt.Sprintf("second_num is not a number: %v", args["second_num"])}, nil
			}

			operation, _ := args["operation"].(string)

			var result float64

			switch operation {
			case "add":
				result = first + second
			case "sub":
				result = first - second
			case "mul":
				result = first * second
			case "div":
				if second == 0 {
					return map[string]any{"error": "Division by zero is not allowed"}, nil
				}

				result = first / second
			default:
				return map[string]any{"error": fmt.Sprintf("Unsupported operation '%s'", operation)}, nil
			}

			return map[string]any{
				"first_num":  first,
				"second_num": second,
				"operation":  operation,
				"result":     result,
			}, nil
		},
	)
}

// toFloat widens the numeric types JSON decoding and hand-built argument maps
// actually produce.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
