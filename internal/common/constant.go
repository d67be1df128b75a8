package common

// UsernameHeaderName carries the verified token subject from the gateway to
// downstream services.
const UsernameHeaderName = "X-Username"

// RolesHeaderName carries the verified roles (comma separated) downstream.
const RolesHeaderName = "X-Roles"

// AuthorizationHeaderName is the inbound bearer token header.
const AuthorizationHeaderName = "Authorization"

// BearerPrefix is the expected scheme prefix of AuthorizationHeaderName.
const BearerPrefix = "Bearer "

// DefaultRole is assigned at registration when no roles are supplied.
const DefaultRole = "USER"
