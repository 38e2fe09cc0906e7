package handlers

import (
	"github.com/heyarsen/Content-Factory-sub005/internal/app/service/reconcile"
	"github.com/heyarsen/Content-Factory-sub005/pkg/response"
)

// RespOK is a generic OK envelope for endpoints returning no specific data.
type RespOK struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    interface{}              `json:"data"`
}

// RespSnapshot wraps the reconciliation snapshot in the standard envelope.
type RespSnapshot struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    reconcile.Snapshot       `json:"data"`
}
