package mockfs

import (
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/parser"
	"github.com/graphql-go/graphql/language/source"
)

// gqlOpFile is a canned response file for a named GraphQL operation, found
// under "graphql/<name>.json" or "graphql/<name>.jgd".
type gqlOpFile struct {
	path string
	jgd  bool
}

// gqlRequest is the body of a GraphQL POST.
type gqlRequest struct {
	Query         string                 `json:"query"`
	OperationName string                 `json:"operationName"`
	Variables     map[string]interface{} `json:"variables"`
}

// graphqlHandler returns the handler of POST /graphql. An operation name
// matching a canned file short-circuits to that file's content; everything
// else resolves against the live collection set, with relations inferred
// from "<other>_id" foreign-key naming at query time.
func graphqlHandler(s *Server, ops map[string]gqlOpFile) Handler {
	return func(req *Request, res *Response) error {
		gr := gqlRequest{}
		if err := req.Bind(&gr); err != nil {
			return err
		}

		if gr.OperationName != "" {
			if op, ok := ops[gr.OperationName]; ok {
				return serveGQLOpFile(s, op, req, res)
			}
		}

		if gr.Query == "" {
			return NewHTTPError(
				http.StatusBadRequest,
				"missing query",
			)
		}

		doc, err := parser.Parse(parser.ParseParams{
			Source: source.NewSource(&source.Source{
				Body: []byte(gr.Query),
				Name: "GraphQL request",
			}),
		})
		if err != nil {
			return NewHTTPError(http.StatusBadRequest, err.Error())
		}

		op := pickOperation(doc, gr.OperationName)
		if op == nil {
			return NewHTTPError(
				http.StatusBadRequest,
				"no matching operation in query",
			)
		}

		data := map[string]interface{}{}
		for _, sel := range op.SelectionSet.Selections {
			field, ok := sel.(*ast.Field)
			if !ok {
				continue
			}

			var v interface{}
			if op.Operation == ast.OperationTypeMutation {
				v, err = s.resolveMutation(field, gr.Variables)
			} else {
				v, err = s.resolveQueryField(field, gr.Variables)
			}

			if err != nil {
				if he, ok := err.(*HTTPError); ok {
					return res.WriteJSON(map[string]interface{}{
						"errors": []map[string]interface{}{
							{"message": he.Message},
						},
					})
				}

				return err
			}

			data[gqlResponseKey(field)] = v
		}

		return res.WriteJSON(map[string]interface{}{"data": data})
	}
}

// serveGQLOpFile serves the canned file of a named operation.
func serveGQLOpFile(s *Server, op gqlOpFile, req *Request, res *Response) error {
	if op.jgd {
		return jgdHandler(s, op.path)(req, res)
	}

	err := res.WriteFile(op.path)
	if os.IsNotExist(err) {
		return ErrNotFound
	}

	return err
}

// pickOperation selects the operation definition matching the name, or the
// only/first one when no name is given.
func pickOperation(doc *ast.Document, name string) *ast.OperationDefinition {
	var first *ast.OperationDefinition
	for _, def := range doc.Definitions {
		op, ok := def.(*ast.OperationDefinition)
		if !ok {
			continue
		}

		if name == "" {
			if first == nil {
				first = op
			}
			continue
		}

		if op.Name != nil && op.Name.Value == name {
			return op
		}
	}

	return first
}

// gqlResponseKey returns the alias of the field, falling back to its name.
func gqlResponseKey(field *ast.Field) string {
	if field.Alias != nil {
		return field.Alias.Value
	}

	return field.Name.Value
}

// resolveQueryField resolves one root query field against the collections.
func (s *Server) resolveQueryField(
	field *ast.Field,
	variables map[string]interface{},
) (interface{}, error) {
	name := field.Name.Value
	c, ok := s.collections.Get(name)
	if !ok {
		return nil, NewHTTPError(
			http.StatusBadRequest,
			"unknown collection "+name,
		)
	}

	args := gqlArgValues(field.Arguments, variables)

	if idv, ok := args[c.IDKey()]; ok {
		r, found := c.Get(idString(idv))
		if !found {
			return nil, nil
		}

		return s.projectRecord(r, name, field.SelectionSet), nil
	}

	records := c.List()
	out := make([]interface{}, 0, len(records))
	for _, r := range records {
		if !matchesArgs(r, args) {
			continue
		}

		out = append(out, s.projectRecord(r, name, field.SelectionSet))
	}

	return out, nil
}

// matchesArgs reports whether every argument equals the record's field of
// the same name.
func matchesArgs(r Record, args map[string]interface{}) bool {
	for k, want := range args {
		if idString(r[k]) != idString(want) {
			return false
		}
	}

	return true
}

// projectRecord restricts the r to the requested fields, resolving nested
// selections as relations. A selected field naming another collection joins
// its records through "<singular-of-collection>_id"; a selected field whose
// "<field>_id" exists on the r resolves to the single related record.
func (s *Server) projectRecord(
	r Record,
	collection string,
	set *ast.SelectionSet,
) Record {
	if set == nil || len(set.Selections) == 0 {
		return r
	}

	out := Record{}
	for _, sel := range set.Selections {
		field, ok := sel.(*ast.Field)
		if !ok {
			continue
		}

		name := field.Name.Value
		key := gqlResponseKey(field)

		if field.SelectionSet == nil {
			if v, ok := r[name]; ok {
				out[key] = v
			}

			continue
		}

		if related, ok := s.resolveRelation(
			r,
			collection,
			name,
			field.SelectionSet,
		); ok {
			out[key] = related
		}
	}

	return out
}

// resolveRelation resolves a nested selection through foreign-key naming.
// Relations are discovered against the live collection set on every request.
func (s *Server) resolveRelation(
	r Record,
	collection string,
	name string,
	set *ast.SelectionSet,
) (interface{}, bool) {
	// Child side: the record carries "<name>_id" pointing into the
	// collection named by the field (or its plural).
	if fk, ok := r[name+"_id"]; ok {
		target, tok := s.collections.Get(name)
		if !tok {
			target, tok = s.collections.Get(name + "s")
		}

		if tok {
			if child, found := target.Get(idString(fk)); found {
				return s.projectRecord(
					child,
					target.Name(),
					set,
				), true
			}

			return nil, true
		}
	}

	// Parent side: records of the collection named by the field carry
	// "<singular-of-this>_id" pointing back at the r.
	target, ok := s.collections.Get(name)
	if !ok {
		return nil, false
	}

	fkField := singularize(collection) + "_id"
	parentID := idString(r[idKeyOf(s, collection)])

	records := target.List()
	out := make([]interface{}, 0, len(records))
	for _, child := range records {
		if fk, ok := child[fkField]; ok && idString(fk) == parentID {
			out = append(out, s.projectRecord(child, name, set))
		}
	}

	return out, true
}

// idKeyOf returns the id key of the named collection, defaulting to "id".
func idKeyOf(s *Server, name string) string {
	if c, ok := s.collections.Get(name); ok {
		return c.IDKey()
	}

	return "id"
}

// singularize strips a trailing "s". Good enough for the naming heuristic
// the relation inference documents.
func singularize(name string) string {
	if strings.HasSuffix(name, "s") && len(name) > 1 {
		return name[:len(name)-1]
	}

	return name
}

// resolveMutation resolves one mutation field. The supported shapes are
// create<Name>, update<Name> and delete<Name>, mapping onto the collection
// store operations.
func (s *Server) resolveMutation(
	field *ast.Field,
	variables map[string]interface{},
) (interface{}, error) {
	name := field.Name.Value
	args := gqlArgValues(field.Arguments, variables)

	var verb, target string
	for _, v := range []string{"create", "update", "delete"} {
		if strings.HasPrefix(name, v) && len(name) > len(v) {
			verb = v
			target = name[len(v):]
			break
		}
	}

	if verb == "" {
		return nil, NewHTTPError(
			http.StatusBadRequest,
			"unsupported mutation "+name,
		)
	}

	c, ok := s.findMutationCollection(target)
	if !ok {
		return nil, NewHTTPError(
			http.StatusBadRequest,
			"unknown collection for mutation "+name,
		)
	}

	input := args
	if in, ok := args["input"].(map[string]interface{}); ok {
		input = in
	}

	switch verb {
	case "create":
		r, err := c.Insert(Record(input))
		if err != nil {
			return nil, NewHTTPError(
				http.StatusBadRequest,
				err.Error(),
			)
		}

		return s.projectRecord(r, c.Name(), field.SelectionSet), nil
	case "update":
		idv, ok := input[c.IDKey()]
		if !ok {
			idv = args[c.IDKey()]
		}

		patch := Record{}
		for k, v := range input {
			if k != c.IDKey() {
				patch[k] = v
			}
		}

		r, found := c.Merge(idString(idv), patch)
		if !found {
			return nil, ErrNotFound
		}

		return s.projectRecord(r, c.Name(), field.SelectionSet), nil
	}

	idv := args[c.IDKey()]

	return c.Delete(idString(idv)), nil
}

// findMutationCollection resolves the <Name> part of a mutation to a
// collection: lowercased, as-is or pluralized.
func (s *Server) findMutationCollection(target string) (*Collection, bool) {
	name := strings.ToLower(target[:1]) + target[1:]
	if c, ok := s.collections.Get(name); ok {
		return c, true
	}

	if c, ok := s.collections.Get(name + "s"); ok {
		return c, true
	}

	return nil, false
}

// gqlArgValues evaluates AST argument values into plain Go values.
func gqlArgValues(
	args []*ast.Argument,
	variables map[string]interface{},
) map[string]interface{} {
	out := map[string]interface{}{}
	for _, a := range args {
		out[a.Name.Value] = gqlValue(a.Value, variables)
	}

	return out
}

// gqlValue evaluates one AST value.
func gqlValue(v ast.Value, variables map[string]interface{}) interface{} {
	switch t := v.(type) {
	case *ast.Variable:
		return variables[t.Name.Value]
	case *ast.IntValue:
		n, _ := strconv.ParseFloat(t.Value, 64)
		return n
	case *ast.FloatValue:
		n, _ := strconv.ParseFloat(t.Value, 64)
		return n
	case *ast.StringValue:
		return t.Value
	case *ast.BooleanValue:
		return t.Value
	case *ast.EnumValue:
		return t.Value
	case *ast.ListValue:
		out := make([]interface{}, 0, len(t.Values))
		for _, e := range t.Values {
			out = append(out, gqlValue(e, variables))
		}
		return out
	case *ast.ObjectValue:
		out := map[string]interface{}{}
		for _, f := range t.Fields {
			out[f.Name.Value] = gqlValue(f.Value, variables)
		}
		return out
	}

	return nil
}
