package mockfs

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Handler defines a function to serve requests.
type Handler func(*Request, *Response) error

// Gas defines a function to process gases.
//
// A gas is a function chained in the request-response cycle with access to
// the `Request` and `Response` which it uses to perform a specific action,
// for example, gating on a token or recovering from panics.
type Gas func(Handler) Handler

// Skipper defines a function to skip a gas.
type Skipper func(*Request) bool

// defaultSkipper skips nothing.
func defaultSkipper(*Request) bool {
	return false
}

// CORSGasConfig defines the config for the CORS gas.
type CORSGasConfig struct {
	// Skipper defines a function to skip the gas.
	Skipper Skipper

	// AllowOrigin is the origin that may access the resource.
	// Optional. Default value "*".
	AllowOrigin string

	// AllowHeaders is the list of request headers that can be used when
	// making the actual request.
	// Optional. Default value ["Authorization", "Content-Type"].
	AllowHeaders []string

	// MaxAge indicates how long (in seconds) the results of a preflight
	// request can be cached.
	// Optional. Default value 0.
	MaxAge int
}

// fill keeps all the fields of the `CORSGasConfig` have value.
func (c *CORSGasConfig) fill() {
	if c.Skipper == nil {
		c.Skipper = defaultSkipper
	}
	if c.AllowOrigin == "" {
		c.AllowOrigin = "*"
	}
	if len(c.AllowHeaders) == 0 {
		c.AllowHeaders = []string{"Authorization", "Content-Type"}
	}
}

// CORSGas returns a Cross-Origin Resource Sharing (CORS) gas that allows the
// origin.
func CORSGas(origin string) Gas {
	return CORSGasWithConfig(CORSGasConfig{AllowOrigin: origin})
}

// CORSGasWithConfig returns a CORS gas from the config.
// See: `CORSGas()`.
func CORSGasWithConfig(config CORSGasConfig) Gas {
	config.fill()

	allowMethods := strings.Join([]string{
		http.MethodGet,
		http.MethodPost,
		http.MethodPut,
		http.MethodPatch,
		http.MethodDelete,
		http.MethodOptions,
	}, ",")
	allowHeaders := strings.Join(config.AllowHeaders, ",")

	return func(next Handler) Handler {
		return func(req *Request, res *Response) error {
			if config.Skipper(req) {
				return next(req, res)
			}

			res.Header.Add("Vary", "Origin")
			res.Header.Set(
				"Access-Control-Allow-Origin",
				config.AllowOrigin,
			)

			if req.Method == http.MethodOptions &&
				req.Header.Get(
					"Access-Control-Request-Method",
				) != "" {
				res.Header.Set(
					"Access-Control-Allow-Methods",
					allowMethods,
				)
				res.Header.Set(
					"Access-Control-Allow-Headers",
					allowHeaders,
				)
				if config.MaxAge > 0 {
					res.Header.Set(
						"Access-Control-Max-Age",
						fmt.Sprint(config.MaxAge),
					)
				}

				res.Status = http.StatusNoContent

				return res.Write(nil)
			}

			return next(req, res)
		}
	}
}

// RecoverGas returns a gas that recovers from panics in downstream handlers
// and maps them to an internal server error, keeping the process alive.
func RecoverGas(s *Server) Gas {
	return func(next Handler) Handler {
		return func(req *Request, res *Response) (err error) {
			defer func() {
				if r := recover(); r != nil {
					s.logger.ERROR(
						"mockfs: panic caught in handler",
						map[string]interface{}{
							"path":  req.Path,
							"panic": fmt.Sprint(r),
						},
					)

					err = NewHTTPError(
						http.StatusInternalServerError,
						"internal server error",
					)
				}
			}()

			return next(req, res)
		}
	}
}

// DelayGas returns a gas that suspends the request for the d before the
// handler runs. A client disconnect cancels the wait.
func DelayGas(d time.Duration) Gas {
	return func(next Handler) Handler {
		return func(req *Request, res *Response) error {
			if d > 0 {
				t := time.NewTimer(d)
				select {
				case <-t.C:
				case <-req.HTTPRequest().Context().Done():
					t.Stop()
					return req.HTTPRequest().Context().Err()
				}
			}

			return next(req, res)
		}
	}
}

// LoggerGas returns a gas that logs every request-response cycle at the
// DEBUG level.
func LoggerGas(s *Server) Gas {
	return func(next Handler) Handler {
		return func(req *Request, res *Response) error {
			start := time.Now()
			err := next(req, res)
			s.logger.DEBUG(
				"mockfs: request served",
				map[string]interface{}{
					"method":   req.Method,
					"path":     req.Path,
					"status":   res.Status,
					"duration": time.Since(start).String(),
				},
			)

			return err
		}
	}
}
