// Package cli implements the citygate command-line client: register,
// login, profile, update-profile and change-password against the Auth API.
//
// Prompts go to stderr so that stdout carries only results (for example
// the token printed by login).
package cli
