package handler

import (
	"github.com/portfolioos/quantd/internal/server"
)

func NewEvalRoute(handler *EvalHandler) server.HttpHandlerResult {
	return server.AsHttpHandler("/api/v1/eval", handler)
}

func NewHealthRoute(handler *HealthHandler) server.HttpHandlerResult {
	return server.AsHttpHandler("/health", handler)
}
