// Package schema holds the request schemas for every engine method.
// The schemas check shape and types only. Semantic constraints, like
// value ranges, are enforced by the engine itself.
package schema

import (
	"embed"
	"errors"
	"fmt"

	"github.com/xeipuuv/gojsonschema"

	"github.com/portfolioos/quantd/models"
)

//go:embed request-*.json
var requestFiles embed.FS

// requestSchemaFiles maps each engine method to its request schema.
var requestSchemaFiles = map[models.Method]string{
	models.MethodMonteCarlo:     "request-monte-carlo.json",
	models.MethodScenario:       "request-scenario.json",
	models.MethodSensitivity:    "request-sensitivity.json",
	models.MethodCagr:           "request-cagr.json",
	models.MethodMaxDrawdown:    "request-max-drawdown.json",
	models.MethodPercentileRank: "request-percentile-rank.json",
	models.MethodBootstrap:      "request-bootstrap.json",
	models.MethodValidateOhlcv:  "request-validate-ohlcv.json",
	models.MethodDetectGaps:     "request-detect-gaps.json",
	models.MethodDetectOutliers: "request-detect-outliers.json",
	models.MethodPing:           "request-ping.json",
}

var ErrSchemaNotFound = errors.New("schema not found")

type Schema struct {
	schemas map[models.Method]*gojsonschema.Schema
}

func (s *Schema) Get(method models.Method) (*gojsonschema.Schema, error) {
	schema, ok := s.schemas[method]
	if !ok {
		return nil, ErrSchemaNotFound
	}

	return schema, nil
}

func (s *Schema) Validate(method models.Method, params map[string]any) (*gojsonschema.Result, error) {
	schema, err := s.Get(method)
	if err != nil {
		return nil, err
	}

	return schema.Validate(gojsonschema.NewGoLoader(params))
}

// NewRequestSchema compiles the embedded request schemas for all
// engine methods.
func NewRequestSchema() (*Schema, error) {
	schemas := make(map[models.Method]*gojsonschema.Schema, len(requestSchemaFiles))

	for method, file := range requestSchemaFiles {
		data, err := requestFiles.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read schema for %s: %w", method, err)
		}

		schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
		if err != nil {
			return nil, fmt.Errorf("compile schema for %s: %w", method, err)
		}

		schemas[method] = schema
	}

	return &Schema{schemas: schemas}, nil
}
