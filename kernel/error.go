package kernel

// Error describes a kernel error. Errors that callers need to compare against
// are defined as package-level pointers to Error and checked by identity.
type Error struct {
	// The module where the error occurred.
	Module string

	// The error message
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// String returns the error message prefixed by the name of the module that
// raised it.
func (e *Error) String() string {
	return "[" + e.Module + "] " + e.Message
}
