package store

// ValidationError is returned by Config.Validate and every Store setter when
// a mutation is malformed. The HTTP surface reports it as 400
// {status:"error", msg:...}.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }
