package graph

// ValidationError reports the first rule a candidate graph violated.
// The message identifies the offending node or edge and is meant to be shown
// to the human as-is.
type ValidationError struct {
	// Entity is the node key or "from -> to" edge label the rule fired on.
	// Empty for graph-level rules.
	Entity string
	Msg    string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

func violation(entity, msg string) *ValidationError {
	return &ValidationError{Entity: entity, Msg: msg}
}
