package schema

import (
	"testing"

	"github.com/portfolioos/quantd/models"
)

func TestNewRequestSchema(t *testing.T) {
	s, err := NewRequestSchema()
	if err != nil {
		t.Fatalf("NewRequestSchema() returned an error: %v", err)
	}

	// every dispatchable method must have a compiled schema
	for _, method := range models.Methods() {
		if _, err := s.Get(method); err != nil {
			t.Errorf("no schema for method %s: %v", method, err)
		}
	}
}

func TestValidate_MonteCarlo(t *testing.T) {
	s, err := NewRequestSchema()
	if err != nil {
		t.Fatal(err)
	}

	res, err := s.Validate(models.MethodMonteCarlo, map[string]any{
		"initial_portfolio":   1_000_000.0,
		"annual_withdrawal":   40_000.0,
		"return_distribution": []any{0.07, -0.12, 0.21},
		"n_trials":            1000,
		"seed":                42,
	})
	if err != nil {
		t.Fatalf("Validate returned an error: %v", err)
	}

	if !res.Valid() {
		t.Errorf("expected valid params, got errors: %v", res.Errors())
	}
}

func TestValidate_MonteCarlo_MissingRequired(t *testing.T) {
	s, err := NewRequestSchema()
	if err != nil {
		t.Fatal(err)
	}

	res, err := s.Validate(models.MethodMonteCarlo, map[string]any{
		"initial_portfolio": 1_000_000.0,
	})
	if err != nil {
		t.Fatalf("Validate returned an error: %v", err)
	}

	if res.Valid() {
		t.Error("expected missing required params to fail validation")
	}
}

func TestValidate_Sensitivity_RejectsUnknownVaryParam(t *testing.T) {
	s, err := NewRequestSchema()
	if err != nil {
		t.Fatal(err)
	}

	res, err := s.Validate(models.MethodSensitivity, map[string]any{
		"initial_portfolio":   500_000.0,
		"annual_withdrawal":   20_000.0,
		"return_distribution": []any{0.05, 0.08},
		"vary_param":          "volatility",
		"values":              []any{0.03, 0.04},
	})
	if err != nil {
		t.Fatalf("Validate returned an error: %v", err)
	}

	if res.Valid() {
		t.Error("expected unknown vary_param to fail validation")
	}
}

func TestValidate_Ping(t *testing.T) {
	s, err := NewRequestSchema()
	if err != nil {
		t.Fatal(err)
	}

	res, err := s.Validate(models.MethodPing, map[string]any{})
	if err != nil {
		t.Fatalf("Validate returned an error: %v", err)
	}

	if !res.Valid() {
		t.Errorf("expected empty ping params to be valid, got: %v", res.Errors())
	}

	res, err = s.Validate(models.MethodPing, map[string]any{"extra": 1})
	if err != nil {
		t.Fatalf("Validate returned an error: %v", err)
	}

	if res.Valid() {
		t.Error("expected extra ping params to fail validation")
	}
}

func TestValidate_UnknownMethod(t *testing.T) {
	s, err := NewRequestSchema()
	if err != nil {
		t.Fatal(err)
	}

	if _, err := s.Validate(models.Method("analysis.sharpe"), nil); err == nil {
		t.Error("expected an error for a method without a schema")
	}
}
