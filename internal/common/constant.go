package common

// AuthorizationHeaderName is the HTTP header (and gRPC metadata key, lower-cased)
// carrying the bearer token.
const AuthorizationHeaderName = "Authorization"

// BearerScheme is the only authorization scheme the server accepts.
const BearerScheme = "Bearer"

// Message roles stored with conversation messages.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)
