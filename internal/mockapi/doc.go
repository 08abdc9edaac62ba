// Package mockapi serves a development license backend from memory.
//
// The server speaks the same REST dialect as the production backend so the
// console, the CLI subcommands and the package tests can run without one.
// It is seeded with twenty sample licenses and a ten module catalog, records
// an audit entry for every create, update and delete, and signs HS256 login
// tokens. Bearer verification is opt-in through Options.RequireAuth.
package mockapi
