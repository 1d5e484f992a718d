// Package tools provides the built-in tools the assistant can round-trip
// through: a sample Revit element selector and a real expression evaluator.
package tools

import (
	"context"
	"fmt"
	"log"

	"github.com/Knetic/govaluate"
	"github.com/baidakovil/rca"
	"github.com/baidakovil/rca/internal/adapters"
)

// SetupTools creates and returns all built-in tools.
func SetupTools() []rca.Tool {
	return []rca.Tool{
		adapters.NewGoToolAdapter(
			"select_elements",
			SelectElementsByCategory,
			adapters.WithDescription("Selects Revit elements of a given category in the active document."),
			adapters.WithCategory("Revit"),
			adapters.WithParameters(map[string]string{
				"category": "Revit category name (e.g. 'Walls', 'Doors')",
			}),
			adapters.WithReturns("The matched category and the list of selected element ids."),
			adapters.WithExamples([]string{
				`select_elements {"category": "Walls"}`,
				`select_elements {"category": "Doors"}`,
			}),
			adapters.WithValidator(validateSelectElementsInput),
		),
		adapters.NewGoToolAdapter(
			"calculate",
			PerformCalculation,
			adapters.WithDescription("Evaluates a mathematical expression."),
			adapters.WithCategory("Math"),
			adapters.WithParameters(map[string]string{
				"expression": "Mathematical expression to evaluate (e.g. '5*9')",
			}),
			adapters.WithReturns("The evaluation result."),
			adapters.WithExamples([]string{
				`calculate {"expression": "5*9"}`,
				`calculate {"expression": "(1+2)*3.5"}`,
			}),
			adapters.WithValidator(validateCalculationInput),
		),
	}
}

// SelectElementsByCategory is a placeholder for the Revit-side selection
// command. Outside a Revit host it echoes the requested category with an
// empty id list so the conversation flow can be exercised end to end.
func SelectElementsByCategory(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error) {
	category, ok := input["category"].(string)
	if !ok {
		return nil, fmt.Errorf("invalid or missing category argument (expected string at key 'category')")
	}
	log.Printf("TOOL: Selecting elements of category '%s'...", category)

	output := make(map[string]interface{})
	output["category"] = category
	output["element_ids"] = []int{}
	output["note"] = "selection requires a live Revit host; returning empty set"
	return output, nil
}

// PerformCalculation evaluates the expression with govaluate.
// It expects an argument named "expression" containing the expression string.
func PerformCalculation(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error) {
	expression, ok := input["expression"].(string)
	if !ok {
		return nil, fmt.Errorf("invalid or missing expression argument (expected string at key 'expression')")
	}
	log.Printf("TOOL: Calculating '%s'...", expression)

	parsed, err := govaluate.NewEvaluableExpression(expression)
	if err != nil {
		return nil, fmt.Errorf("invalid expression %q: %w", expression, err)
	}

	value, err := parsed.Evaluate(nil)
	if err != nil {
		return nil, fmt.Errorf("evaluation of %q failed: %w", expression, err)
	}

	output := make(map[string]interface{})
	output["output"] = value
	return output, nil
}

// Validator functions for tools

// validateSelectElementsInput validates the input for the select_elements tool.
func validateSelectElementsInput(input map[string]interface{}) error {
	category, ok := input["category"]
	if !ok {
		return fmt.Errorf("missing category (expected at key 'category')")
	}

	categoryStr, ok := category.(string)
	if !ok {
		return fmt.Errorf("category must be a string, got %T", category)
	}

	if len(categoryStr) == 0 {
		return fmt.Errorf("category cannot be empty")
	}

	return nil
}

// validateCalculationInput validates the input for the calculate tool.
func validateCalculationInput(input map[string]interface{}) error {
	expr, ok := input["expression"]
	if !ok {
		return fmt.Errorf("missing expression (expected at key 'expression')")
	}

	exprStr, ok := expr.(string)
	if !ok {
		return fmt.Errorf("expression must be a string, got %T", expr)
	}

	if len(exprStr) == 0 {
		return fmt.Errorf("expression cannot be empty")
	}

	if len(exprStr) > 1000 {
		return fmt.Errorf("expression too long (max 1000 characters)")
	}

	return nil
}
