package mockfs

import (
	"net/http"
	"os"
)

// sqlHandler returns a handler that executes the SQL file at the path
// against the embedded engine. The "?" placeholders in the SQL are bound
// positionally: first the fixedArgs a range or exact-value segment pinned at
// build time, then the route's path params in the order they appear in the
// pattern.
func sqlHandler(s *Server, path string, fixedArgs ...interface{}) Handler {
	return func(req *Request, res *Response) error {
		a, err := s.coffer.asset(path)
		if os.IsNotExist(err) {
			return ErrNotFound
		} else if err != nil {
			return err
		}

		args := make([]interface{}, 0, len(fixedArgs)+len(req.ParamNames))
		args = append(args, fixedArgs...)
		for _, name := range req.ParamNames {
			args = append(args, req.Param(name))
		}

		rows, err := s.sql.Query(string(a.content()), args...)
		if err != nil {
			s.logger.ERROR(
				"mockfs: sql execution failed",
				map[string]interface{}{
					"file":  path,
					"error": err.Error(),
				},
			)

			return NewHTTPError(
				http.StatusInternalServerError,
				"failed to execute query",
			)
		}

		return res.WriteJSON(rows)
	}
}
