// Package context carries request-scoped values (trace ids, the resolved
// account) across layer boundaries without leaking transport details.
package context

type contextKey string
