package instrumentation

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys. Only metadata goes into traces. Token values,
// authorization codes, and client secrets must never appear as
// attribute values.
const (
	AttrClientID      = attribute.Key("oauth.client_id")
	AttrUserID        = attribute.Key("oauth.user_id")
	AttrScope         = attribute.Key("oauth.scope")
	AttrGrantType     = attribute.Key("oauth.grant_type")
	AttrResponseType  = attribute.Key("oauth.response_type")
	AttrClientType    = attribute.Key("oauth.client_type")
	AttrPKCEMethod    = attribute.Key("oauth.pkce.method")
	AttrTokenTypeHint = attribute.Key("oauth.token_type_hint") //nolint:gosec // attribute name, not a credential
)

// RecordError marks span failed and records err. Nil-safe on both
// arguments.
func RecordError(span trace.Span, err error) {
	if span != nil && err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// SetSpanSuccess marks span as completed successfully. Nil-safe.
func SetSpanSuccess(span trace.Span) {
	if span != nil {
		span.SetStatus(codes.Ok, "")
	}
}

// SetSpanError sets an error status without an error value. Nil-safe.
func SetSpanError(span trace.Span, message string) {
	if span != nil {
		span.SetStatus(codes.Error, message)
	}
}

// SetSpanAttributes sets attributes on span. Nil-safe.
func SetSpanAttributes(span trace.Span, attrs ...attribute.KeyValue) {
	if span != nil {
		span.SetAttributes(attrs...)
	}
}

// AddOAuthFlowAttributes attaches the identifying attributes of an
// authorization flow, skipping empty values.
func AddOAuthFlowAttributes(span trace.Span, clientID, userID, scope string) {
	if clientID != "" {
		SetSpanAttributes(span, AttrClientID.String(clientID))
	}
	if userID != "" {
		SetSpanAttributes(span, AttrUserID.String(userID))
	}
	if scope != "" {
		SetSpanAttributes(span, AttrScope.String(scope))
	}
}

// AddPKCEAttributes records which PKCE method protected an exchange.
func AddPKCEAttributes(span trace.Span, method string) {
	if method != "" {
		SetSpanAttributes(span, AttrPKCEMethod.String(method))
	}
}

// AddGrantAttributes records the grant type and client type being
// processed.
func AddGrantAttributes(span trace.Span, grantType, clientType string) {
	SetSpanAttributes(span,
		AttrGrantType.String(grantType),
		AttrClientType.String(clientType),
	)
}
