package mockfs

import (
	"net/http"
	"os"
)

// staticHandler returns a handler that serves the file at the path. The
// bytes are re-read through the coffer, so content edits show up without a
// table rebuild.
func staticHandler(path string) Handler {
	return func(req *Request, res *Response) error {
		err := res.WriteFile(path)
		if os.IsNotExist(err) {
			return ErrNotFound
		}

		return err
	}
}

// jgdHandler returns a handler that evaluates the JGD schema at the path on
// every request and serves the resulting JSON.
func jgdHandler(s *Server, path string) Handler {
	return func(req *Request, res *Response) error {
		a, err := s.coffer.asset(path)
		if os.IsNotExist(err) {
			return ErrNotFound
		} else if err != nil {
			return err
		}

		v, err := s.JGD.Evaluate(a.content())
		if err != nil {
			s.logger.ERROR(
				"mockfs: jgd evaluation failed",
				map[string]interface{}{
					"file":  path,
					"error": err.Error(),
				},
			)

			return NewHTTPError(
				http.StatusInternalServerError,
				"failed to evaluate response schema",
			)
		}

		return res.WriteJSON(v)
	}
}

// restListHandler returns the list handler of a REST group.
func restListHandler(c *Collection) Handler {
	return func(req *Request, res *Response) error {
		return res.WriteJSON(c.List())
	}
}

// restGetHandler returns the by-id handler of a REST group.
func restGetHandler(c *Collection) Handler {
	return func(req *Request, res *Response) error {
		r, ok := c.Get(req.Param("id"))
		if !ok {
			return ErrNotFound
		}

		return res.WriteJSON(r)
	}
}

// restCreateHandler returns the create handler of a REST group.
func restCreateHandler(c *Collection) Handler {
	return func(req *Request, res *Response) error {
		obj := Record{}
		if err := req.Bind(&obj); err != nil {
			return err
		}

		stored, err := c.Insert(obj)
		if err == ErrIDConflict {
			return err
		} else if err != nil {
			// The None policy rejects records without an id
			return NewHTTPError(http.StatusBadRequest, err.Error())
		}

		res.Status = http.StatusCreated

		return res.WriteJSON(stored)
	}
}

// restReplaceHandler returns the PUT handler of a REST group.
func restReplaceHandler(c *Collection) Handler {
	return func(req *Request, res *Response) error {
		obj := Record{}
		if err := req.Bind(&obj); err != nil {
			return err
		}

		r, ok := c.Replace(req.Param("id"), obj)
		if !ok {
			return ErrNotFound
		}

		return res.WriteJSON(r)
	}
}

// restMergeHandler returns the PATCH handler of a REST group.
func restMergeHandler(c *Collection) Handler {
	return func(req *Request, res *Response) error {
		patch := Record{}
		if err := req.Bind(&patch); err != nil {
			return err
		}

		r, ok := c.Merge(req.Param("id"), patch)
		if !ok {
			return ErrNotFound
		}

		return res.WriteJSON(r)
	}
}

// restDeleteHandler returns the DELETE handler of a REST group.
func restDeleteHandler(c *Collection) Handler {
	return func(req *Request, res *Response) error {
		if !c.Delete(req.Param("id")) {
			return ErrNotFound
		}

		return res.NoContent()
	}
}

// loginCredentials is the body of a login request.
type loginCredentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// loginHandler returns the login handler of an auth group. Passwords are
// compared as plain strings against the user collection; that is the
// documented behavior of a mock server, not an oversight.
func loginHandler(s *Server, users *Collection) Handler {
	return func(req *Request, res *Response) error {
		creds := loginCredentials{}
		if err := req.Bind(&creds); err != nil {
			return err
		}

		if creds.Username == "" || creds.Password == "" {
			return ErrMissingCredentials
		}

		user, ok := users.Get(creds.Username)
		if !ok {
			return ErrAuthFailure
		}

		password, _ := user["password"].(string)
		if password != creds.Password {
			return ErrAuthFailure
		}

		token, err := s.tokens.Issue(creds.Username)
		if err != nil {
			return err
		}

		res.SetCookie(&http.Cookie{
			Name:     authCookieName,
			Value:    token,
			Path:     "/",
			MaxAge:   int(tokenTTL.Seconds()),
			HttpOnly: true,
		})

		sanitized := Record{}
		for k, v := range user {
			if k == "password" {
				continue
			}

			sanitized[k] = v
		}

		return res.WriteJSON(map[string]interface{}{
			"token": token,
			"user":  sanitized,
		})
	}
}

// logoutHandler returns the logout handler of an auth group. The token is
// extracted exactly as the auth gas extracts it.
func logoutHandler(s *Server) Handler {
	return func(req *Request, res *Response) error {
		if token := extractToken(req); token != "" {
			s.tokens.Revoke(token)
		}

		res.SetCookie(&http.Cookie{
			Name:     authCookieName,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
		})

		return res.WriteJSON(map[string]interface{}{
			"message": "Successfully logged out",
		})
	}
}

// collectionsHandler responds with the schemas of every collection, keyed by
// collection name.
func collectionsHandler(s *Server) Handler {
	return func(req *Request, res *Response) error {
		out := map[string]map[string]FieldSchema{}
		for name, c := range s.collections.All() {
			out[name] = c.Schema()
		}

		return res.WriteJSON(out)
	}
}

// collectionSchemaHandler responds with the schema of one collection.
func collectionSchemaHandler(s *Server) Handler {
	return func(req *Request, res *Response) error {
		c, ok := s.collections.Get(req.Param("name"))
		if !ok {
			return ErrNotFound
		}

		return res.WriteJSON(c.Schema())
	}
}
