package mockfs

import (
	"fmt"
	"net/http"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Segment is a single URL segment contributed by a braced filename token.
type Segment struct {
	Kind SegmentKind

	// Name is the exact value for `SegmentLiteral` and the parameter name
	// for `SegmentParam`.
	Name string

	// Lo and Hi are the inclusive bounds for `SegmentRange`.
	Lo int
	Hi int
}

// SegmentKind is the kind of the `Segment`. The order of the constants is the
// dispatch precedence: literal beats range beats param.
type SegmentKind uint8

// segment kinds
const (
	SegmentLiteral SegmentKind = iota
	SegmentRange
	SegmentParam
)

// RESTMarker configures the collection behind a REST file.
type RESTMarker struct {
	IDKey  string
	IDType IDType
}

// UploadMarker configures an upload folder.
type UploadMarker struct {
	Alias     string
	Temporary bool
}

// FileToken is the parse result of a mock file basename. Exactly one of the
// route-producing attributes (Method+Segment, REST, Auth, Upload, Static) is
// meaningful.
type FileToken struct {
	Method        string
	Segment       *Segment
	REST          *RESTMarker
	Auth          bool
	Upload        *UploadMarker
	Protected     bool
	Ext           string
	Static        bool
	StaticSegment string
}

// DirToken is the parse result of a directory basename.
type DirToken struct {
	Name        string
	Protected   bool
	Upload      *UploadMarker
	Public      bool
	PublicAlias string
	GraphQL     bool
}

var (
	methodFileRx = regexp.MustCompile(
		`^(get|post|put|patch|delete|options)(?:\{([^{}]+)\})?\.([^.]+)$`,
	)
	restFileRx   = regexp.MustCompile(`^rest(?:\{([^{}]+)\})?\.(json|jgd)$`)
	authFileRx   = regexp.MustCompile(`^\{auth\}(?:\.(json|jgd))?$`)
	uploadRx     = regexp.MustCompile(`^\{upload\}(\{temp\})?(?:-(.+))?$`)
	identifierRx = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	rangeRx      = regexp.MustCompile(`^([0-9]+)-([0-9]+)$`)
)

// fileMethods maps the method token of a filename to the HTTP method.
var fileMethods = map[string]string{
	"get":     http.MethodGet,
	"post":    http.MethodPost,
	"put":     http.MethodPut,
	"patch":   http.MethodPatch,
	"delete":  http.MethodDelete,
	"options": http.MethodOptions,
}

// parseBasename parses the basename of a mock file into a `FileToken`.
// Anything that matches none of the recognized patterns is a plain static
// file, never an error; errors are reserved for recognized patterns with
// invalid innards (an unknown id type, inverted range bounds).
func parseBasename(basename string) (*FileToken, error) {
	t := &FileToken{}

	name := basename
	if strings.HasPrefix(name, "$") {
		t.Protected = true
		name = name[1:]
	}

	if m := authFileRx.FindStringSubmatch(name); m != nil {
		t.Auth = true
		if m[1] != "" {
			t.Ext = "." + m[1]
		}

		return t, nil
	}

	if m := uploadRx.FindStringSubmatch(name); m != nil {
		t.Upload = &UploadMarker{
			Temporary: m[1] != "",
			Alias:     m[2],
		}

		return t, nil
	}

	if m := restFileRx.FindStringSubmatch(name); m != nil {
		marker, err := parseRESTParams(m[1])
		if err != nil {
			return nil, newBuildError(BadFilenameGrammar, basename, err)
		}

		t.REST = marker
		t.Ext = "." + m[2]

		return t, nil
	}

	if m := methodFileRx.FindStringSubmatch(name); m != nil {
		t.Method = fileMethods[m[1]]
		t.Ext = "." + m[3]

		if m[2] != "" {
			seg, err := parseSegment(m[2])
			if err != nil {
				if be, ok := err.(*BuildError); ok {
					be.Path = basename
					return nil, be
				}

				return nil, newBuildError(
					BadFilenameGrammar,
					basename,
					err,
				)
			}

			t.Segment = seg
		}

		return t, nil
	}

	// Plain static file
	t.Static = true
	t.Ext = filepath.Ext(name)
	if _, known := mediaTypeByExtension(t.Ext); known {
		t.StaticSegment = strings.TrimSuffix(name, t.Ext)
	} else {
		t.StaticSegment = name
	}

	return t, nil
}

// parseSegment classifies the body of a braced filename token. Two
// non-negative integers joined by a dash form a range, an identifier forms a
// named parameter and everything else matches as an exact value.
func parseSegment(body string) (*Segment, error) {
	if m := rangeRx.FindStringSubmatch(body); m != nil {
		lo, err := strconv.Atoi(m[1])
		if err != nil {
			return nil, newBuildError(BadRangeBounds, body, err)
		}

		hi, err := strconv.Atoi(m[2])
		if err != nil {
			return nil, newBuildError(BadRangeBounds, body, err)
		}

		if lo > hi {
			return nil, newBuildError(BadRangeBounds, body, fmt.Errorf(
				"lower bound %d exceeds upper bound %d",
				lo,
				hi,
			))
		}

		return &Segment{
			Kind: SegmentRange,
			Lo:   lo,
			Hi:   hi,
		}, nil
	}

	if identifierRx.MatchString(body) {
		return &Segment{
			Kind: SegmentParam,
			Name: body,
		}, nil
	}

	return &Segment{
		Kind: SegmentLiteral,
		Name: body,
	}, nil
}

// parseRESTParams resolves the body of a rest token's braces. The body may be
// a bare id type, an id key, or "key:type". An empty body falls back to the
// "id" key with the Uuid policy.
func parseRESTParams(body string) (*RESTMarker, error) {
	marker := &RESTMarker{
		IDKey:  "id",
		IDType: IDUuid,
	}

	if body == "" {
		return marker, nil
	}

	if it, ok := parseIDType(body); ok {
		marker.IDType = it
		return marker, nil
	}

	key, typ, cut := strings.Cut(body, ":")
	if !identifierRx.MatchString(key) {
		return nil, fmt.Errorf("invalid id key %q", key)
	}

	marker.IDKey = key
	if cut {
		it, ok := parseIDType(typ)
		if !ok {
			return nil, fmt.Errorf("unknown id type %q", typ)
		}

		marker.IDType = it
	}

	return marker, nil
}

// parseIDType resolves an id type name.
func parseIDType(name string) (IDType, bool) {
	switch strings.ToLower(name) {
	case "uuid":
		return IDUuid, true
	case "int":
		return IDInt, true
	case "none":
		return IDNone, true
	}

	return IDUuid, false
}

// parseDirname parses the basename of a mock directory into a `DirToken`.
func parseDirname(basename string) (*DirToken, error) {
	t := &DirToken{}

	name := basename
	if strings.HasPrefix(name, "$") {
		t.Protected = true
		name = name[1:]
	}

	if m := uploadRx.FindStringSubmatch(name); m != nil {
		t.Upload = &UploadMarker{
			Temporary: m[1] != "",
			Alias:     m[2],
		}
		if t.Upload.Alias == "" {
			t.Upload.Alias = "upload"
		}

		return t, nil
	}

	switch {
	case name == "public":
		t.Public = true
		t.PublicAlias = "public"
	case strings.HasPrefix(name, "public-") && len(name) > len("public-"):
		t.Public = true
		t.PublicAlias = strings.TrimPrefix(name, "public-")
	case name == "graphql":
		t.GraphQL = true
	}

	t.Name = name

	return t, nil
}
