package mockfs

// mediaTypes maps the filename extensions the server knows how to serve to
// their media types. A static file whose extension appears here gets its
// extension stripped from the final URL segment; unknown extensions stay in
// the URL untouched.
var mediaTypes = map[string]string{
	".html": "text/html; charset=utf-8",
	".htm":  "text/html; charset=utf-8",
	".css":  "text/css; charset=utf-8",
	".js":   "application/javascript; charset=utf-8",
	".json": "application/json; charset=utf-8",
	".jgd":  "application/json; charset=utf-8",
	".xml":  "application/xml; charset=utf-8",
	".txt":  "text/plain; charset=utf-8",
	".md":   "text/markdown; charset=utf-8",
	".csv":  "text/csv; charset=utf-8",
	".toml": "application/toml; charset=utf-8",
	".yaml": "application/yaml; charset=utf-8",
	".yml":  "application/yaml; charset=utf-8",
	".svg":  "image/svg+xml",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
	".ico":  "image/x-icon",
	".pdf":  "application/pdf",
	".zip":  "application/zip",
	".mp3":  "audio/mpeg",
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".woff": "font/woff",
	".wasm": "application/wasm",
}

// mediaTypeByExtension returns the media type registered for the ext, if any.
func mediaTypeByExtension(ext string) (string, bool) {
	mt, ok := mediaTypes[ext]
	return mt, ok
}
