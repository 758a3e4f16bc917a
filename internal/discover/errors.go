package discover

import (
	"fmt"
	"strings"
)

// MethodNotFoundError reports a supplied method name that matches no
// annotated RPC.
type MethodNotFoundError struct {
	Method string
}

func (e *MethodNotFoundError) Error() string {
	return fmt.Sprintf("method %q not found in proto descriptors", e.Method)
}

// AmbiguousMethodError reports a bare method name shared by more than one
// service.
type AmbiguousMethodError struct {
	Method     string
	Candidates []string
}

func (e *AmbiguousMethodError) Error() string {
	return fmt.Sprintf(
		"ambiguous method name %q matches multiple services (%s); use the qualified 'Service.Method' syntax",
		e.Method, strings.Join(e.Candidates, ", "),
	)
}

// UnsupportedBodySelectorError reports a google.api.http body selector
// other than "" or "*".
type UnsupportedBodySelectorError struct {
	Method string
	Body   string
}

func (e *UnsupportedBodySelectorError) Error() string {
	return fmt.Sprintf(
		"method %q uses unsupported body selector %q: only \"*\" (whole message) or no body are supported",
		e.Method, e.Body,
	)
}
