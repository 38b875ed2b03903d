package tx

import "errors"

var (
	// ErrMalformedTransaction indicates the raw transaction bytes do not
	// decode as version | inputs | outputs | locktime.
	ErrMalformedTransaction = errors.New("tx: malformed transaction")

	// ErrUnsupportedScript indicates an output script matches none of the
	// recognized templates.
	ErrUnsupportedScript = errors.New("tx: unsupported script")

	// ErrOutputIndex indicates an output index past the end of the output vector.
	ErrOutputIndex = errors.New("tx: output index out of range")

	// ErrScriptBuild indicates script construction failed.
	ErrScriptBuild = errors.New("tx: script build failed")
)
