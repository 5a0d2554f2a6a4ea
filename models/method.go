package models

import (
	"strings"
)

// Method identifies an operation dispatched to the quant engine.
type Method string

const (
	MethodMonteCarlo     Method = "simulation.monte_carlo"
	MethodScenario       Method = "simulation.scenario"
	MethodSensitivity    Method = "simulation.sensitivity"
	MethodCagr           Method = "analysis.cagr"
	MethodMaxDrawdown    Method = "analysis.max_drawdown"
	MethodPercentileRank Method = "analysis.percentile_rank"
	MethodBootstrap      Method = "analysis.bootstrap"
	MethodValidateOhlcv  Method = "market.validate_ohlcv"
	MethodDetectGaps     Method = "market.detect_gaps"
	MethodDetectOutliers Method = "market.detect_outliers"
	MethodPing           Method = "engine.ping"
)

var methods = map[string]Method{
	string(MethodMonteCarlo):     MethodMonteCarlo,
	string(MethodScenario):       MethodScenario,
	string(MethodSensitivity):    MethodSensitivity,
	string(MethodCagr):           MethodCagr,
	string(MethodMaxDrawdown):    MethodMaxDrawdown,
	string(MethodPercentileRank): MethodPercentileRank,
	string(MethodBootstrap):      MethodBootstrap,
	string(MethodValidateOhlcv):  MethodValidateOhlcv,
	string(MethodDetectGaps):     MethodDetectGaps,
	string(MethodDetectOutliers): MethodDetectOutliers,
	string(MethodPing):           MethodPing,
}

func (m Method) String() string {
	return string(m)
}

// ParseMethod parses a method name as sent by clients. Method names
// are case-insensitive.
func ParseMethod(name string) (Method, bool) {
	method, ok := methods[strings.ToLower(name)]
	return method, ok
}

// Methods returns all dispatchable methods.
func Methods() []Method {
	all := make([]Method, 0, len(methods))
	for _, m := range methods {
		all = append(all, m)
	}
	return all
}
