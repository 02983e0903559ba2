// Package core contains the shared vocabulary of the runtime: role-based
// content with a closed set of part types (text, image references, function
// calls and responses), the error taxonomy surfaced at the runtime boundary,
// and small identifier helpers. Higher level packages (model, tool, engine)
// depend on core but never the other way around.
package core
