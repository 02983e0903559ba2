// Package store defines the persistence contracts for agent configuration,
// mutable runtime data and skill-scoped key/value rows, together with an
// in-memory implementation suitable for tests and examples. A durable
// postgres implementation lives in the postgres subpackage.
package store
