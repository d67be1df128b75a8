// Package client is a small HTTP client for the Auth API. Requests carry
// the bearer token from a previous login so they pass the gateway's edge
// authorization.
package client
