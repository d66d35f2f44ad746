package mockfs

import "net/http"

// Table is one immutable routing table: the matching tree plus the gas
// chains wrapping every route. A table is built off-path, published through
// an atomic swap and never mutated afterwards; in-flight requests keep the
// table they started on.
type Table struct {
	router *router
	routes []*Route
	gases  []Gas
}

// newTable assembles the routes into a `Table`, wrapping each route's
// handler with its delay and, for protected routes, the auth gas.
func newTable(s *Server, routes []*Route) (*Table, error) {
	t := &Table{
		router: newRouter(),
		routes: routes,
	}

	for _, r := range routes {
		h := r.Handler
		if r.Delay > 0 {
			h = DelayGas(r.Delay)(h)
		}

		if r.Protected {
			h = AuthGas(s.tokens)(h)
		}

		t.router.register(r.Method, r.Path, &boundRoute{
			route:   r,
			handler: h,
		})
	}

	t.gases = []Gas{RecoverGas(s)}
	if s.CORSEnabled {
		t.gases = append(t.gases, CORSGas(s.AllowedOrigin))
	}
	t.gases = append(t.gases, LoggerGas(s))

	return t, nil
}

// Routes returns the route records of the t.
func (t *Table) Routes() []*Route {
	out := make([]*Route, len(t.routes))
	copy(out, t.routes)

	return out
}

// dispatch serves the req through the t: route lookup, then the table-level
// gas chain around the matched handler. The gases are always FILO.
func (t *Table) dispatch(req *Request, res *Response) error {
	h := func(req *Request, res *Response) error {
		br, matched := t.router.route(req)
		if br == nil {
			if matched {
				return NewHTTPError(
					http.StatusMethodNotAllowed,
					http.StatusText(
						http.StatusMethodNotAllowed,
					),
				)
			}

			return ErrNotFound
		}

		return br.handler(req, res)
	}

	for i := len(t.gases) - 1; i >= 0; i-- {
		h = t.gases[i](h)
	}

	return h(req, res)
}

// routesHandler responds with the live table as a JSON listing, which the
// browser tester renders.
func routesHandler(s *Server) Handler {
	return func(req *Request, res *Response) error {
		t := s.table()
		if t == nil {
			return res.WriteJSON([]interface{}{})
		}

		type routeInfo struct {
			Method    string `json:"method"`
			Path      string `json:"path"`
			Kind      string `json:"kind"`
			Protected bool   `json:"protected"`
			DelayMS   int64  `json:"delay_ms"`
		}

		routes := t.Routes()
		out := make([]routeInfo, 0, len(routes))
		for _, r := range routes {
			if r.Kind == KindInternal {
				continue
			}

			out = append(out, routeInfo{
				Method:    r.Method,
				Path:      r.Path,
				Kind:      r.Kind.String(),
				Protected: r.Protected,
				DelayMS:   r.Delay.Milliseconds(),
			})
		}

		return res.WriteJSON(out)
	}
}
