package mockfs

import (
	"fmt"
	"net/http"
)

// HTTPError is an error that carries an HTTP status code. Handlers return it
// to have the centralized error handler respond with the matching status and
// a JSON body of the form {"error": "<message>"}.
type HTTPError struct {
	Code    int
	Message string
}

// NewHTTPError returns a new instance of the `HTTPError` with the code and
// the optional message. If the message is omitted, the standard status text
// of the code is used.
func NewHTTPError(code int, message ...string) *HTTPError {
	he := &HTTPError{Code: code}
	if len(message) > 0 {
		he.Message = message[0]
	} else {
		he.Message = http.StatusText(code)
	}

	return he
}

// Error implements the `error`.
func (he *HTTPError) Error() string {
	return he.Message
}

// Request-time errors.
var (
	ErrMalformedJSON       = NewHTTPError(http.StatusBadRequest, "malformed JSON body")
	ErrMissingCredentials  = NewHTTPError(http.StatusBadRequest, "missing credentials")
	ErrAuthFailure         = NewHTTPError(http.StatusUnauthorized, "invalid username or password")
	ErrTokenInvalid        = NewHTTPError(http.StatusUnauthorized, "token is invalid or expired")
	ErrNotFound            = NewHTTPError(http.StatusNotFound, "not found")
	ErrIDConflict          = NewHTTPError(http.StatusConflict, "a record with this id already exists")
	ErrFileNotUploaded     = NewHTTPError(http.StatusBadRequest, "no file present in the multipart body")
	ErrUploadFormatInvalid = NewHTTPError(http.StatusBadRequest, "request body is not valid multipart form data")
)

// BuildError is an error raised while turning the mock tree into a routing
// table. During initial startup it aborts the process; during a hot-reload it
// is logged and the previous table stays live.
type BuildError struct {
	Kind BuildErrorKind
	Path string
	Err  error
}

// BuildErrorKind is the kind of the `BuildError`.
type BuildErrorKind uint8

// build error kinds
const (
	BadFilenameGrammar BuildErrorKind = iota
	BadRangeBounds
	DuplicateRoute
	DuplicateAuth
	TOMLParseFailure
	MissingMockRoot
)

// buildErrorKindNames are the diagnostic names of the build error kinds.
var buildErrorKindNames = []string{
	"bad filename grammar",
	"bad range bounds",
	"duplicate route",
	"duplicate auth",
	"toml parse failure",
	"missing mock root",
}

// newBuildError returns a new instance of the `BuildError` with the kind, the
// offending path and the optional underlying err.
func newBuildError(kind BuildErrorKind, path string, err error) *BuildError {
	return &BuildError{
		Kind: kind,
		Path: path,
		Err:  err,
	}
}

// Error implements the `error`.
func (be *BuildError) Error() string {
	if be.Err != nil {
		return fmt.Sprintf(
			"mockfs: %s: %s: %v",
			buildErrorKindNames[be.Kind],
			be.Path,
			be.Err,
		)
	}

	return fmt.Sprintf("mockfs: %s: %s", buildErrorKindNames[be.Kind], be.Path)
}

// Unwrap returns the underlying error of the be.
func (be *BuildError) Unwrap() error {
	return be.Err
}
