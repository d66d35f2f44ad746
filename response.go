package mockfs

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/aofei/mimesniffer"
	"github.com/cespare/xxhash/v2"
)

// Response is an HTTP response.
type Response struct {
	// Server is where the response belongs.
	Server *Server

	// Status is the status code.
	Status int

	// Header is the header map.
	Header http.Header

	// Written indicates whether at least one byte has been written to the
	// client.
	Written bool

	req *Request
	hrw http.ResponseWriter
}

// reset resets the r with the s, hrw and req.
func (r *Response) reset(s *Server, hrw http.ResponseWriter, req *Request) {
	r.Server = s
	r.Status = http.StatusOK
	r.Header = hrw.Header()
	r.Written = false
	r.req = req
	r.hrw = hrw
}

// HTTPResponseWriter returns the underlying `http.ResponseWriter` of the r.
func (r *Response) HTTPResponseWriter() http.ResponseWriter {
	return r.hrw
}

// SetCookie sets the c to the `Header` of the r. Invalid cookies will be
// silently dropped.
func (r *Response) SetCookie(c *http.Cookie) {
	if v := c.String(); v != "" {
		r.Header.Add("Set-Cookie", v)
	}
}

// Write writes the content to the client, sniffing the Content-Type when no
// one set it.
func (r *Response) Write(content io.ReadSeeker) error {
	if content == nil {
		if !r.Written {
			r.hrw.WriteHeader(r.Status)
			r.Written = true
		}

		return nil
	}

	if !r.Written && r.Header.Get("Content-Type") == "" {
		b := make([]byte, 512)
		n, err := io.ReadFull(content, b)
		if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
			return err
		}

		if _, err := content.Seek(0, io.SeekStart); err != nil {
			return err
		}

		r.Header.Set("Content-Type", mimesniffer.Sniff(b[:n]))
	}

	if !r.Written {
		r.hrw.WriteHeader(r.Status)
		r.Written = true
	}

	if r.req.Method == http.MethodHead {
		return nil
	}

	_, err := io.Copy(r.hrw, content)

	return err
}

// WriteString writes the s as a "text/plain" content to the client.
func (r *Response) WriteString(s string) error {
	r.Header.Set("Content-Type", "text/plain; charset=utf-8")
	return r.Write(strings.NewReader(s))
}

// WriteHTML writes the h as a "text/html" content to the client, minified
// when the minifier feature is enabled.
func (r *Response) WriteHTML(h string) error {
	if r.Server.MinifierEnabled {
		if b, err := r.Server.minifier.minify(
			"text/html",
			[]byte(h),
		); err == nil {
			h = string(b)
		}
	}

	r.Header.Set("Content-Type", "text/html; charset=utf-8")

	return r.Write(strings.NewReader(h))
}

// WriteJSON writes an "application/json" content encoded from the v to the
// client.
func (r *Response) WriteJSON(v interface{}) error {
	var (
		b   []byte
		err error
	)

	if r.Server.DebugMode {
		b, err = json.MarshalIndent(v, "", "\t")
	} else {
		b, err = json.Marshal(v)
	}

	if err != nil {
		return err
	}

	r.Header.Set("Content-Type", "application/json; charset=utf-8")

	return r.Write(bytes.NewReader(b))
}

// WriteBlob writes the b to the client under the contentType.
func (r *Response) WriteBlob(contentType string, b []byte) error {
	if contentType != "" {
		r.Header.Set("Content-Type", contentType)
	}

	return r.Write(bytes.NewReader(b))
}

// NoContent responds 204 with an empty body.
func (r *Response) NoContent() error {
	r.Status = http.StatusNoContent
	return r.Write(nil)
}

// WriteFile writes the content of the file targeted by the filename to the
// client. The bytes come from the coffer so that repeated serving avoids disk
// reads while still observing on-disk edits.
func (r *Response) WriteFile(filename string) error {
	a, err := r.Server.coffer.asset(filename)
	if err != nil {
		return err
	}

	if r.Header.Get("Content-Type") == "" {
		ct := a.mimeType
		if ct == "" {
			if mt, ok := mediaTypeByExtension(
				filepath.Ext(filename),
			); ok {
				ct = mt
			} else {
				ct = mime.TypeByExtension(filepath.Ext(filename))
			}
		}

		if ct != "" {
			r.Header.Set("Content-Type", ct)
		}
	}

	content := a.content()
	if r.Header.Get("ETag") == "" {
		r.Header.Set("ETag", fmt.Sprintf(
			"%q",
			base64.StdEncoding.EncodeToString(
				xxhashSum(content),
			),
		))
	}

	if r.Header.Get("Last-Modified") == "" {
		r.Header.Set(
			"Last-Modified",
			a.modTime.UTC().Format(http.TimeFormat),
		)
	}

	return r.Write(bytes.NewReader(content))
}

// xxhashSum returns the xxhash digest of the b.
func xxhashSum(b []byte) []byte {
	h := xxhash.New()
	h.Write(b)
	return h.Sum(nil)
}

// Redirect writes the url as a redirection to the client.
func (r *Response) Redirect(url string) error {
	if r.Status < http.StatusMultipleChoices ||
		r.Status >= http.StatusBadRequest {
		r.Status = http.StatusFound
	}

	http.Redirect(r.hrw, r.req.HTTPRequest(), url, r.Status)
	r.Written = true

	return nil
}

// Attachment writes the content as a download named filename, with the
// Content-Type inferred from the extension and a timestamp for caches.
func (r *Response) Attachment(content io.ReadSeeker, filename string, modTime time.Time) error {
	ct, ok := mediaTypeByExtension(filepath.Ext(filename))
	if !ok {
		ct = mime.TypeByExtension(filepath.Ext(filename))
	}

	if ct != "" {
		r.Header.Set("Content-Type", ct)
	}

	r.Header.Set(
		"Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", filename),
	)

	if !modTime.IsZero() {
		r.Header.Set(
			"Last-Modified",
			modTime.UTC().Format(http.TimeFormat),
		)
	}

	return r.Write(content)
}
