// Package dto holds the wire shapes the HTTP adapter writes.
package dto

import (
	"errors"
	"net/http"
	"sort"

	"github.com/jsamuelsen11/cascade/internal/domain"
)

// ProblemContentType is the RFC 9457 media type.
const ProblemContentType = "application/problem+json"

// Problem is an RFC 9457 Problem Details body.
type Problem struct {
	Type     string        `json:"type"`
	Title    string        `json:"title"`
	Status   int           `json:"status"`
	Detail   string        `json:"detail,omitempty"`
	Instance string        `json:"instance,omitempty"`
	Errors   []FieldDetail `json:"errors,omitempty"`
}

// FieldDetail is one field-level validation failure.
type FieldDetail struct {
	Location string `json:"location"`
	Message  string `json:"message"`
}

// NewProblem describes err for the client. The detail is the error message
// only when err is exposed or maps to a client error; server faults get the
// status title alone. instance is normally the original request URI.
func NewProblem(err error, instance string) Problem {
	status := domain.StatusOf(err)

	p := Problem{
		Type:     "about:blank",
		Title:    http.StatusText(status),
		Status:   status,
		Instance: instance,
	}
	if p.Title == "" {
		p.Title = "Unknown Status"
	}

	if domain.IsExposed(err) || status < http.StatusInternalServerError {
		p.Detail = detail(err)
	}

	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		p.Errors = fieldDetails(verr.Fields)
	}

	return p
}

// detail prefers an HTTPError's own message over the wrapped chain.
func detail(err error) string {
	var herr *domain.HTTPError
	if errors.As(err, &herr) {
		return herr.Error()
	}
	return err.Error()
}

func fieldDetails(fields map[string]string) []FieldDetail {
	details := make([]FieldDetail, 0, len(fields))
	for field, msg := range fields {
		details = append(details, FieldDetail{
			Location: "query." + field,
			Message:  msg,
		})
	}
	sort.Slice(details, func(i, j int) bool {
		return details[i].Location < details[j].Location
	})
	return details
}
