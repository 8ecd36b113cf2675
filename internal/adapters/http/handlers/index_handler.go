// Package handlers holds the demo service's endpoints. Each one is a
// func(*appctx.Context) error that shapes the response through the Context
// and leaves writing it to the dispatcher.
package handlers

import (
	appctx "github.com/jsamuelsen11/cascade/internal/app/context"
)

// Index describes the service at GET /.
type Index struct {
	Service string   `json:"service"`
	Env     string   `json:"env"`
	Routes  []string `json:"routes"`
}

// IndexHandler serves the service description, as JSON or plain text
// depending on the Accept header.
type IndexHandler struct {
	index Index
}

// NewIndexHandler returns a handler describing service and its routes.
func NewIndexHandler(service, env string, routes []string) *IndexHandler {
	return &IndexHandler{index: Index{
		Service: service,
		Env:     env,
		Routes:  append([]string(nil), routes...),
	}}
}

// Get handles GET /. Clients that prefer JSON get the Index; everyone else
// gets one line of text.
func (h *IndexHandler) Get(c *appctx.Context) error {
	c.Response().Vary("Accept")

	switch t, _ := c.Request().Accepts("text", "json"); t {
	case "json":
		c.SetBody(h.index)
	default:
		c.SetBody(h.index.Service + " (" + h.index.Env + ")\n")
	}
	return nil
}
