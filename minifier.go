package mockfs

import (
	"bytes"
	"sync"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"
	"github.com/tdewolff/minify/v2/json"
	"github.com/tdewolff/minify/v2/svg"
	"github.com/tdewolff/minify/v2/xml"
)

// minifier is used to minify contents by the MIME types. The built-in pages
// (the tester and the GraphiQL page) go through it before every write.
type minifier struct {
	once     *sync.Once
	minifier *minify.M
}

// newMinifier returns a pointer of a new instance of the `minifier`.
func newMinifier() *minifier {
	return &minifier{
		once: &sync.Once{},
	}
}

// load initializes the underlying minifier of the m.
func (m *minifier) load() {
	m.minifier = minify.New()
	m.minifier.Add("text/html", &html.Minifier{})
	m.minifier.Add("text/css", &css.Minifier{})
	m.minifier.Add("application/javascript", &js.Minifier{})
	m.minifier.Add("application/json", &json.Minifier{})
	m.minifier.Add("application/xml", &xml.Minifier{})
	m.minifier.Add("image/svg+xml", &svg.Minifier{})
}

// minify minifies the b by the mimeType.
func (m *minifier) minify(mimeType string, b []byte) ([]byte, error) {
	m.once.Do(m.load)

	buf := bytes.Buffer{}
	if err := m.minifier.Minify(
		mimeType,
		&buf,
		bytes.NewReader(b),
	); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
