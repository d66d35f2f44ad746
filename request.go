package mockfs

import (
	"encoding/json"
	"io"
	"net/http"
)

// Request is an HTTP request.
type Request struct {
	// Server is where the request belongs.
	Server *Server

	// Method is the HTTP method.
	Method string

	// Path is the cleaned URL path.
	Path string

	// Header is the header map.
	Header http.Header

	// Body is the message body.
	Body io.ReadCloser

	// Params holds the values parsed from the PARAM components of the
	// matched route path, keyed by param name. The value of an ANY
	// component is keyed by "*".
	Params map[string]string

	// ParamNames preserves the order in which params appear in the
	// matched route path. SQL routes bind them positionally.
	ParamNames []string

	// Username is attached by the auth gas after a token validates.
	Username string

	hr *http.Request
}

// reset resets the r with the s and the hr.
func (r *Request) reset(s *Server, hr *http.Request) {
	r.Server = s
	r.Method = hr.Method
	r.Path = pathClean(hr.URL.Path)
	r.Header = hr.Header
	r.Body = hr.Body
	r.Params = map[string]string{}
	r.ParamNames = r.ParamNames[:0]
	r.Username = ""
	r.hr = hr
}

// HTTPRequest returns the underlying `http.Request` of the r.
func (r *Request) HTTPRequest() *http.Request {
	return r.hr
}

// Param returns the value of the named route param of the r.
func (r *Request) Param(name string) string {
	return r.Params[name]
}

// setParam records a route param value, keeping the positional order.
func (r *Request) setParam(name, value string) {
	if _, ok := r.Params[name]; !ok {
		r.ParamNames = append(r.ParamNames, name)
	}

	r.Params[name] = value
}

// Cookie returns the value of the named cookie of the r, or "" when absent.
func (r *Request) Cookie(name string) string {
	c, err := r.hr.Cookie(name)
	if err != nil {
		return ""
	}

	return c.Value
}

// Bind decodes the JSON body of the r into the v. A body that is not valid
// JSON maps to a 400.
func (r *Request) Bind(v interface{}) error {
	if r.Body == nil {
		return ErrMalformedJSON
	}

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return ErrMalformedJSON
	}

	return nil
}
