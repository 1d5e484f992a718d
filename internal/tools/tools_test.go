package tools

import (
	"context"
	"testing"
)

func TestPerformCalculation(t *testing.T) {
	output, err := PerformCalculation(context.Background(), map[string]interface{}{
		"expression": "5 * 9",
	})
	if err != nil {
		t.Fatalf("PerformCalculation failed: %v", err)
	}
	value, ok := output["output"].(float64)
	if !ok {
		t.Fatalf("expected float64 output, got %T", output["output"])
	}
	if value != 45 {
		t.Errorf("expected 45, got %v", value)
	}
}

func TestPerformCalculation_Nested(t *testing.T) {
	output, err := PerformCalculation(context.Background(), map[string]interface{}{
		"expression": "(1 + 2) * 3.5",
	})
	if err != nil {
		t.Fatalf("PerformCalculation failed: %v", err)
	}
	if output["output"].(float64) != 10.5 {
		t.Errorf("expected 10.5, got %v", output["output"])
	}
}

func TestPerformCalculation_InvalidExpression(t *testing.T) {
	if _, err := PerformCalculation(context.Background(), map[string]interface{}{
		"expression": "5 *",
	}); err == nil {
		t.Error("expected error for malformed expression")
	}

	if _, err := PerformCalculation(context.Background(), map[string]interface{}{
		"expression": 42,
	}); err == nil {
		t.Error("expected error for non-string expression")
	}
}

func TestSelectElementsByCategory(t *testing.T) {
	output, err := SelectElementsByCategory(context.Background(), map[string]interface{}{
		"category": "Walls",
	})
	if err != nil {
		t.Fatalf("SelectElementsByCategory failed: %v", err)
	}
	if output["category"] != "Walls" {
		t.Errorf("expected echoed category, got %v", output["category"])
	}
	ids, ok := output["element_ids"].([]int)
	if !ok || len(ids) != 0 {
		t.Errorf("expected empty id list, got %v", output["element_ids"])
	}
}

func TestValidators(t *testing.T) {
	if err := validateSelectElementsInput(map[string]interface{}{"category": "Doors"}); err != nil {
		t.Errorf("valid input rejected: %v", err)
	}
	if err := validateSelectElementsInput(map[string]interface{}{}); err == nil {
		t.Error("missing category accepted")
	}
	if err := validateSelectElementsInput(map[string]interface{}{"category": ""}); err == nil {
		t.Error("empty category accepted")
	}

	if err := validateCalculationInput(map[string]interface{}{"expression": "1+1"}); err != nil {
		t.Errorf("valid expression rejected: %v", err)
	}
	if err := validateCalculationInput(map[string]interface{}{"expression": 7}); err == nil {
		t.Error("non-string expression accepted")
	}
}

func TestSetupTools(t *testing.T) {
	tools := SetupTools()
	if len(tools) != 2 {
		t.Fatalf("expected 2 built-in tools, got %d", len(tools))
	}

	names := map[string]bool{}
	for _, tool := range tools {
		names[tool.Name()] = true
		if tool.Schema()["description"] == "" {
			t.Errorf("tool %s has no description", tool.Name())
		}
	}
	if !names["select_elements"] || !names["calculate"] {
		t.Errorf("unexpected tool set: %v", names)
	}
}
