package warning

import "errors"

var (
	// ErrUnknownWarningSet indicates points awarded to a set that is not configured.
	ErrUnknownWarningSet = errors.New("unknown warning set")

	// ErrInvalidFormula indicates a trigger or amount formula that does not compile.
	ErrInvalidFormula = errors.New("invalid formula")
)
