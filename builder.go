package mockfs

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// builder performs one depth-first walk of the mock root and accumulates the
// route records of the next routing table. The inherited environment
// (protection flag and delay) travels through the recursion explicitly.
type builder struct {
	s *Server

	byKey    map[string]*Route
	byNorm   map[string]*Route
	routes   []*Route
	gqlOps   map[string]gqlOpFile
	authFile string
}

// collectionFileRx splits a graphql collection filename stem into a name and
// an optional braced id policy.
var collectionFileRx = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_-]*)(?:\{([^{}]*)\})?$`)

// build walks the mock root of the s and assembles a fresh routing table.
// State-bearing stores (collections, tokens, uploads) are looked up in the
// s, not rebuilt, so their contents survive the swap.
func (s *Server) build() (*Table, error) {
	fi, err := os.Stat(s.MockRoot)
	if err != nil || !fi.IsDir() {
		return nil, newBuildError(MissingMockRoot, s.MockRoot, err)
	}

	b := &builder{
		s:      s,
		byKey:  map[string]*Route{},
		byNorm: map[string]*Route{},
		gqlOps: map[string]gqlOpFile{},
	}

	env := routeEnv{
		delay: time.Duration(s.DefaultDelayMS) * time.Millisecond,
	}

	if err := b.walkDir(s.MockRoot, "", env); err != nil {
		return nil, err
	}

	b.addReservedRoutes()

	return newTable(s, b.routes)
}

// addRoute registers the r, resolving (method, path) collisions: a more
// specific origin (literal over range over param) silently wins, an equally
// specific one is a duplicate route error.
func (b *builder) addRoute(r *Route) error {
	key := r.Method + " " + r.Path
	if prev, ok := b.byKey[key]; ok {
		if prev.specificity <= r.specificity {
			if prev.specificity == r.specificity {
				return newBuildError(
					DuplicateRoute,
					fmt.Sprintf(
						"%s (%s and %s)",
						key,
						prev.Source,
						r.Source,
					),
					nil,
				)
			}

			return nil
		}

		// The new route is more specific; replace in place
		for i, existing := range b.routes {
			if existing == prev {
				b.routes[i] = r
				break
			}
		}
		b.byKey[key] = r

		return nil
	}

	// Two patterns that differ only in param names would be ambiguous in
	// the matching tree
	norm := r.Method + " " + collapseParamNames(r.Path)
	if prev, ok := b.byNorm[norm]; ok && prev.Path != r.Path {
		return newBuildError(
			DuplicateRoute,
			fmt.Sprintf(
				"%s %s is ambiguous with %s %s",
				r.Method,
				r.Path,
				prev.Method,
				prev.Path,
			),
			nil,
		)
	}

	b.byKey[key] = r
	b.byNorm[norm] = r
	b.routes = append(b.routes, r)

	return nil
}

// collapseParamNames strips the names out of the param components of the p.
func collapseParamNames(p string) string {
	out := make([]byte, 0, len(p))
	inParam := false
	for i := 0; i < len(p); i++ {
		switch {
		case p[i] == '{':
			inParam = true
			out = append(out, '{')
		case p[i] == '}':
			inParam = false
			out = append(out, '}')
		case !inParam:
			out = append(out, p[i])
		}
	}

	return string(out)
}

// walkDir visits one directory of the mock tree.
func (b *builder) walkDir(dir, prefix string, env routeEnv) error {
	env, err := mergeDirEnv(env, dir)
	if err != nil {
		return err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	// Files first so that sibling TOML lookups never race the recursion,
	// ordered literal > range > param to mirror dispatch precedence.
	type parsedFile struct {
		name  string
		token *FileToken
	}

	files := []parsedFile{}
	for _, de := range entries {
		name := de.Name()
		if de.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}

		if filepath.Ext(name) == ".toml" {
			continue
		}

		t, err := parseBasename(name)
		if err != nil {
			return err
		}

		files = append(files, parsedFile{name: name, token: t})
	}

	sort.SliceStable(files, func(i, j int) bool {
		si, sj := fileSpecificity(files[i].token), fileSpecificity(files[j].token)
		if si != sj {
			return si < sj
		}

		return files[i].name < files[j].name
	})

	for _, pf := range files {
		if err := b.visitFile(
			dir,
			prefix,
			pf.name,
			pf.token,
			env,
		); err != nil {
			return err
		}
	}

	for _, de := range entries {
		name := de.Name()
		if !de.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}

		if err := b.visitDir(dir, prefix, name, env); err != nil {
			return err
		}
	}

	return nil
}

// fileSpecificity ranks a file token for in-directory registration order.
func fileSpecificity(t *FileToken) SegmentKind {
	if t.Segment != nil {
		return t.Segment.Kind
	}

	return SegmentLiteral
}

// visitDir dispatches one sub-directory by its special-cased basename.
func (b *builder) visitDir(parent, prefix, name string, env routeEnv) error {
	dt, err := parseDirname(name)
	if err != nil {
		return err
	}

	dir := filepath.Join(parent, name)

	switch {
	case dt.Public:
		return b.addPublicMount(dir, prefix, dt.PublicAlias)
	case dt.Upload != nil:
		return b.addUploadRoutes(dir, prefix, dt.Upload, env)
	case dt.GraphQL:
		return b.addGraphQLRoutes(dir, env)
	}

	if dt.Protected {
		env.protected = true
	}

	return b.walkDir(dir, prefix+"/"+dt.Name, env)
}

// visitFile turns one parsed mock file into route records.
func (b *builder) visitFile(
	dir, prefix, name string,
	t *FileToken,
	env routeEnv,
) error {
	path := filepath.Join(dir, name)

	if t.Protected {
		env.protected = true
	}

	rc, err := loadRouteConfig(env, path)
	if err != nil {
		return err
	}

	switch {
	case t.Auth:
		return b.addAuthRoutes(dir, prefix, path, rc)
	case t.Upload != nil:
		b.s.logger.WARN(
			"mockfs: {upload} must be a directory, ignoring file",
			map[string]interface{}{"file": path},
		)
		return nil
	case t.REST != nil:
		return b.addRESTRoutes(dir, prefix, path, t, rc)
	case t.Method != "":
		return b.addMethodRoutes(prefix, path, t, rc)
	}

	return b.addStaticRoute(prefix, path, t, rc)
}

// addStaticRoute registers a plain static file under its stripped-or-kept
// segment, answering GET and HEAD.
func (b *builder) addStaticRoute(
	prefix, path string,
	t *FileToken,
	rc *RouteConfig,
) error {
	pattern := prefix + "/" + t.StaticSegment
	if rc.Remap != "" {
		pattern = rc.Remap
	}

	h := staticHandler(path)
	for _, method := range []string{http.MethodGet, http.MethodHead} {
		if err := b.addRoute(&Route{
			Method:      method,
			Path:        pattern,
			Kind:        KindStatic,
			Protected:   rc.Protected,
			Delay:       rc.Delay,
			Source:      path,
			Handler:     h,
			specificity: SegmentLiteral,
		}); err != nil {
			return err
		}
	}

	return nil
}

// addMethodRoutes registers the route(s) of a method-prefixed file. A range
// segment fans out into one route per integer; the extension picks the
// handler variant.
func (b *builder) addMethodRoutes(
	prefix, path string,
	t *FileToken,
	rc *RouteConfig,
) error {
	base := prefix
	if base == "" {
		base = "/"
	}

	type target struct {
		pattern  string
		rank     SegmentKind
		fixedArg []interface{}
	}

	targets := []target{}
	switch {
	case t.Segment == nil:
		targets = append(targets, target{pattern: base, rank: SegmentLiteral})
	case t.Segment.Kind == SegmentLiteral:
		targets = append(targets, target{
			pattern:  prefix + "/" + t.Segment.Name,
			rank:     SegmentLiteral,
			fixedArg: []interface{}{t.Segment.Name},
		})
	case t.Segment.Kind == SegmentParam:
		targets = append(targets, target{
			pattern: prefix + "/{" + t.Segment.Name + "}",
			rank:    SegmentParam,
		})
	case t.Segment.Kind == SegmentRange:
		for i := t.Segment.Lo; i <= t.Segment.Hi; i++ {
			targets = append(targets, target{
				pattern:  prefix + "/" + strconv.Itoa(i),
				rank:     SegmentRange,
				fixedArg: []interface{}{i},
			})
		}
	}

	for _, tg := range targets {
		pattern := tg.pattern
		if rc.Remap != "" {
			pattern = rc.Remap
		}

		var (
			h    Handler
			kind RouteKind
		)

		switch t.Ext {
		case ".jgd":
			h = jgdHandler(b.s, path)
			kind = KindJGD
		case ".sql":
			h = sqlHandler(b.s, path, tg.fixedArg...)
			kind = KindSQL
		default:
			h = staticHandler(path)
			kind = KindStatic
		}

		if err := b.addRoute(&Route{
			Method:      t.Method,
			Path:        pattern,
			Kind:        kind,
			Protected:   rc.Protected,
			Delay:       rc.Delay,
			Source:      path,
			Handler:     h,
			specificity: tg.rank,
		}); err != nil {
			return err
		}
	}

	return nil
}

// addRESTRoutes registers the six-endpoint CRUD group of a rest file over
// the collection named after the owning directory.
func (b *builder) addRESTRoutes(
	dir, prefix, path string,
	t *FileToken,
	rc *RouteConfig,
) error {
	name := filepath.Base(dir)
	idKey := t.REST.IDKey
	idType := t.REST.IDType

	if rc.Collection != nil {
		if rc.Collection.IDKey != "" {
			idKey = rc.Collection.IDKey
		}
		if rc.Collection.IDType != "" {
			it, ok := parseIDType(rc.Collection.IDType)
			if !ok {
				return newBuildError(
					TOMLParseFailure,
					path,
					fmt.Errorf(
						"unknown id type %q",
						rc.Collection.IDType,
					),
				)
			}

			idType = it
		}
	}

	c, created := b.s.collections.Ensure(name, idKey, idType)
	if created {
		if err := b.loadCollectionFile(c, path, t.Ext); err != nil {
			return err
		}
	}

	return b.addRESTGroup(prefix, path, c, rc.Protected, rc.Delay)
}

// addRESTGroup registers the CRUD route set of the c under the prefix.
func (b *builder) addRESTGroup(
	prefix, source string,
	c *Collection,
	protected bool,
	delay time.Duration,
) error {
	base := prefix
	if base == "" {
		base = "/"
	}

	item := prefix + "/{id}"

	group := []struct {
		method  string
		pattern string
		rank    SegmentKind
		handler Handler
	}{
		{http.MethodGet, base, SegmentLiteral, restListHandler(c)},
		{http.MethodPost, base, SegmentLiteral, restCreateHandler(c)},
		{http.MethodGet, item, SegmentParam, restGetHandler(c)},
		{http.MethodPut, item, SegmentParam, restReplaceHandler(c)},
		{http.MethodPatch, item, SegmentParam, restMergeHandler(c)},
		{http.MethodDelete, item, SegmentParam, restDeleteHandler(c)},
	}

	for _, g := range group {
		if err := b.addRoute(&Route{
			Method:      g.method,
			Path:        g.pattern,
			Kind:        KindREST,
			Protected:   protected,
			Delay:       delay,
			Source:      source,
			Collection:  c.Name(),
			Handler:     g.handler,
			specificity: g.rank,
		}); err != nil {
			return err
		}
	}

	return nil
}

// loadCollectionFile loads the initial records of the c from the file at the
// path. A ".jgd" file is evaluated first.
func (b *builder) loadCollectionFile(c *Collection, path, ext string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var records []Record
	if ext == ".jgd" {
		v, err := b.s.JGD.Evaluate(content)
		if err != nil {
			return newBuildError(BadFilenameGrammar, path, err)
		}

		arr, ok := v.([]interface{})
		if !ok {
			return newBuildError(
				BadFilenameGrammar,
				path,
				fmt.Errorf("jgd bootstrap must produce an array"),
			)
		}

		for _, e := range arr {
			if r, ok := e.(map[string]interface{}); ok {
				records = append(records, r)
			}
		}
	} else if len(content) > 0 {
		if err := json.Unmarshal(content, &records); err != nil {
			return newBuildError(BadFilenameGrammar, path, err)
		}
	}

	if len(records) == 0 {
		return nil
	}

	if err := c.LoadInitial(records); err != nil {
		return newBuildError(BadFilenameGrammar, path, err)
	}

	return nil
}

// addAuthRoutes registers the compound routes of an {auth} file: login and
// logout, plus a protected CRUD group over the users collection. Only one
// {auth} file may exist per tree.
func (b *builder) addAuthRoutes(
	dir, prefix, path string,
	rc *RouteConfig,
) error {
	if b.authFile != "" && b.authFile != path {
		return newBuildError(
			DuplicateAuth,
			fmt.Sprintf("%s and %s", b.authFile, path),
			nil,
		)
	}
	b.authFile = path

	if rc.Auth != nil {
		b.s.tokens.SetSecret(rc.Auth.Secret)
	}

	users, created := b.s.collections.Ensure("users", "username", IDNone)
	if created {
		ext := filepath.Ext(path)
		if err := b.loadCollectionFile(users, path, ext); err != nil {
			return err
		}
	}

	plain := []struct {
		pattern string
		kind    RouteKind
		handler Handler
	}{
		{prefix + "/login", KindAuthLogin, loginHandler(b.s, users)},
		{prefix + "/logout", KindAuthLogout, logoutHandler(b.s)},
	}

	for _, p := range plain {
		if err := b.addRoute(&Route{
			Method:      http.MethodPost,
			Path:        p.pattern,
			Kind:        p.kind,
			Delay:       rc.Delay,
			Source:      path,
			Handler:     p.handler,
			specificity: SegmentLiteral,
		}); err != nil {
			return err
		}
	}

	return b.addRESTGroup(prefix+"/users", path, users, true, rc.Delay)
}

// addUploadRoutes registers the three endpoints of an upload folder and
// wires its store, registering temporary folders for purge-on-shutdown.
func (b *builder) addUploadRoutes(
	dir, prefix string,
	marker *UploadMarker,
	env routeEnv,
) error {
	us := b.s.uploads.ensure(dir, marker.Alias, marker.Temporary)

	base := prefix + "/" + marker.Alias

	group := []struct {
		method  string
		pattern string
		kind    RouteKind
		rank    SegmentKind
		handler Handler
	}{
		{http.MethodPost, base, KindUpload, SegmentLiteral, us.handlePost},
		{http.MethodGet, base, KindUploadList, SegmentLiteral, us.handleList},
		{http.MethodGet, base + "/{file}", KindUploadDownload, SegmentParam, us.handleDownload},
	}

	for _, g := range group {
		if err := b.addRoute(&Route{
			Method:      g.method,
			Path:        g.pattern,
			Kind:        g.kind,
			Protected:   env.protected,
			Delay:       env.delay,
			Source:      dir,
			Handler:     g.handler,
			specificity: g.rank,
		}); err != nil {
			return err
		}
	}

	return nil
}

// addPublicMount registers a wildcard static mount for a public folder.
// Public routes are never protected, whatever their ancestors say.
func (b *builder) addPublicMount(dir, prefix, alias string) error {
	pattern := prefix + "/" + alias + "/*"

	h := func(req *Request, res *Response) error {
		rel := filepath.FromSlash("/" + req.Param("*"))
		rel = filepath.Clean(rel)

		err := res.WriteFile(filepath.Join(dir, rel))
		if os.IsNotExist(err) {
			return ErrNotFound
		}

		return err
	}

	for _, method := range []string{http.MethodGet, http.MethodHead} {
		if err := b.addRoute(&Route{
			Method:      method,
			Path:        pattern,
			Kind:        KindStatic,
			Source:      dir,
			Handler:     h,
			specificity: SegmentParam,
		}); err != nil {
			return err
		}
	}

	return nil
}

// addGraphQLRoutes registers the GraphQL endpoint pair and pre-loads the
// collections of the "collections" sub-directory. The remaining files of
// the directory become canned responses for matching operation names.
func (b *builder) addGraphQLRoutes(dir string, env routeEnv) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	for _, de := range entries {
		name := de.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		if de.IsDir() {
			if name == "collections" {
				if err := b.loadGraphQLCollections(
					filepath.Join(dir, name),
				); err != nil {
					return err
				}
			}

			continue
		}

		ext := filepath.Ext(name)
		if ext != ".json" && ext != ".jgd" {
			continue
		}

		op := strings.TrimSuffix(name, ext)
		b.gqlOps[op] = gqlOpFile{
			path: filepath.Join(dir, name),
			jgd:  ext == ".jgd",
		}
	}

	if err := b.addRoute(&Route{
		Method:      http.MethodPost,
		Path:        "/graphql",
		Kind:        KindGraphQL,
		Protected:   env.protected,
		Delay:       env.delay,
		Source:      dir,
		Handler:     graphqlHandler(b.s, b.gqlOps),
		specificity: SegmentLiteral,
	}); err != nil {
		return err
	}

	return b.addRoute(&Route{
		Method:      http.MethodGet,
		Path:        "/graphiql",
		Kind:        KindGraphiQL,
		Source:      dir,
		Handler:     graphiqlPageHandler(b.s),
		specificity: SegmentLiteral,
	})
}

// loadGraphQLCollections pre-loads every file of a graphql/collections
// directory as a collection. The stem names the collection; a braced suffix
// picks the id policy the way a rest file does.
func (b *builder) loadGraphQLCollections(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	for _, de := range entries {
		name := de.Name()
		if de.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}

		ext := filepath.Ext(name)
		if ext != ".json" && ext != ".jgd" {
			continue
		}

		stem := strings.TrimSuffix(name, ext)
		m := collectionFileRx.FindStringSubmatch(stem)
		if m == nil {
			return newBuildError(
				BadFilenameGrammar,
				filepath.Join(dir, name),
				nil,
			)
		}

		marker, err := parseRESTParams(m[2])
		if err != nil {
			return newBuildError(
				BadFilenameGrammar,
				filepath.Join(dir, name),
				err,
			)
		}

		c, created := b.s.collections.Ensure(
			m[1],
			marker.IDKey,
			marker.IDType,
		)
		if created {
			if err := b.loadCollectionFile(
				c,
				filepath.Join(dir, name),
				ext,
			); err != nil {
				return err
			}
		}
	}

	return nil
}

// addReservedRoutes registers the server-owned endpoints: the browser
// tester, the collection introspection pair, the live route listing and the
// reload event stream.
func (b *builder) addReservedRoutes() {
	reserved := []struct {
		method  string
		pattern string
		handler Handler
	}{
		{http.MethodGet, "/", testerPageHandler(b.s)},
		{http.MethodGet, "/mock-server/collections", collectionsHandler(b.s)},
		{http.MethodGet, "/mock-server/collections/{name}", collectionSchemaHandler(b.s)},
		{http.MethodGet, "/mock-server/routes", routesHandler(b.s)},
		{http.MethodGet, "/mock-server/events", eventsHandler(b.s)},
	}

	for _, r := range reserved {
		b.addRoute(&Route{
			Method:      r.method,
			Path:        r.pattern,
			Kind:        KindInternal,
			Handler:     r.handler,
			specificity: SegmentLiteral,
		})
	}
}
