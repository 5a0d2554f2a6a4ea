package models_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/portfolioos/quantd/models"
)

func TestParseMethod(t *testing.T) {
	tests := []struct {
		name   string
		want   models.Method
		wantOk bool
	}{
		{"simulation.monte_carlo", models.MethodMonteCarlo, true},
		{"Simulation.Monte_Carlo", models.MethodMonteCarlo, true},
		{"analysis.cagr", models.MethodCagr, true},
		{"market.validate_ohlcv", models.MethodValidateOhlcv, true},
		{"engine.ping", models.MethodPing, true},
		{"simulation", "", false},
		{"monte_carlo", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method, ok := models.ParseMethod(tt.name)
			assert.Equal(t, tt.wantOk, ok)
			assert.Equal(t, tt.want, method)
		})
	}
}

func TestMethods_ContainsAllKnownMethods(t *testing.T) {
	all := models.Methods()

	assert.Len(t, all, 11)
	assert.Contains(t, all, models.MethodMonteCarlo)
	assert.Contains(t, all, models.MethodPing)
}
