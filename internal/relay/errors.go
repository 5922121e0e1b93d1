package relay

import "fmt"

// ConnError is a failure confined to one connection. It never stops the
// dispatcher or sibling connections.
type ConnError struct {
	ID  string
	Op  string
	Err error
}

func (e *ConnError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.ID, e.Op, e.Err)
}

func (e *ConnError) Unwrap() error {
	return e.Err
}
