package mockfs

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// JGDEvaluator evaluates a JGD (JSON Generator Definition) schema into plain
// JSON data. The server calls it on every request to a ".jgd" route and once
// per ".jgd" REST bootstrap.
type JGDEvaluator interface {
	Evaluate(schema []byte) (interface{}, error)
}

// builtinJGD is the built-in `JGDEvaluator`.
//
// A schema is ordinary JSON with two generator facilities: an object of the
// form {"$repeat": n, "$of": <schema>} evaluates to an array of n evaluated
// items, and string values may embed placeholder tokens such as "{{uuid}}",
// "{{int 1 100}}", "{{float 0 1}}", "{{bool}}", "{{name}}", "{{email}}",
// "{{now}}" and "{{index}}" (the current repeat index).
type builtinJGD struct{}

// placeholderRx matches one placeholder token inside a string value.
var placeholderRx = regexp.MustCompile(`\{\{\s*([a-zA-Z]+)((?:\s+[^\s}]+)*)\s*\}\}`)

// jgdFirstNames and jgdLastNames feed the name-flavored placeholders.
var (
	jgdFirstNames = []string{
		"Ada", "Alan", "Edsger", "Grace", "Linus", "Margaret",
		"Dennis", "Ken", "Barbara", "Donald",
	}
	jgdLastNames = []string{
		"Lovelace", "Turing", "Dijkstra", "Hopper", "Torvalds",
		"Hamilton", "Ritchie", "Thompson", "Liskov", "Knuth",
	}
	jgdWords = []string{
		"lorem", "ipsum", "dolor", "sit", "amet", "consectetur",
		"adipiscing", "elit", "sed", "do", "eiusmod", "tempor",
	}
)

// Evaluate implements the `JGDEvaluator`.
func (builtinJGD) Evaluate(schema []byte) (interface{}, error) {
	var v interface{}
	if err := json.Unmarshal(schema, &v); err != nil {
		return nil, fmt.Errorf("mockfs: invalid jgd schema: %w", err)
	}

	return evalJGD(v, 0), nil
}

// evalJGD walks the decoded schema, expanding repeat objects and placeholder
// strings. The index is the current repeat position.
func evalJGD(v interface{}, index int) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		if of, ok := t["$of"]; ok {
			if n, has := toInt64(t["$repeat"]); has && n >= 0 {
				out := make([]interface{}, 0, n)
				for i := int64(0); i < n; i++ {
					out = append(out, evalJGD(of, int(i)))
				}

				return out
			}
		}

		out := make(map[string]interface{}, len(t))
		for k, e := range t {
			out[k] = evalJGD(e, index)
		}

		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = evalJGD(e, index)
		}

		return out
	case string:
		return evalJGDString(t, index)
	}

	return v
}

// evalJGDString expands the placeholder tokens of the s. A string that is a
// single non-string-valued placeholder keeps its native JSON type.
func evalJGDString(s string, index int) interface{} {
	m := placeholderRx.FindStringSubmatch(s)
	if m != nil && m[0] == s {
		return evalPlaceholder(m[1], strings.Fields(m[2]), index)
	}

	return placeholderRx.ReplaceAllStringFunc(s, func(tok string) string {
		mm := placeholderRx.FindStringSubmatch(tok)
		return fmt.Sprint(evalPlaceholder(
			mm[1],
			strings.Fields(mm[2]),
			index,
		))
	})
}

// evalPlaceholder produces the value of one placeholder.
func evalPlaceholder(name string, args []string, index int) interface{} {
	argInt := func(i, fallback int) int {
		if i < len(args) {
			if n, err := strconv.Atoi(args[i]); err == nil {
				return n
			}
		}

		return fallback
	}

	switch name {
	case "uuid":
		return uuid.NewString()
	case "int":
		lo, hi := argInt(0, 0), argInt(1, 100)
		if hi < lo {
			lo, hi = hi, lo
		}
		return float64(lo + rand.Intn(hi-lo+1))
	case "float":
		lo, hi := argInt(0, 0), argInt(1, 1)
		return float64(lo) + rand.Float64()*float64(hi-lo)
	case "bool":
		return rand.Intn(2) == 0
	case "index":
		return float64(index)
	case "firstName":
		return jgdFirstNames[rand.Intn(len(jgdFirstNames))]
	case "lastName":
		return jgdLastNames[rand.Intn(len(jgdLastNames))]
	case "name":
		return jgdFirstNames[rand.Intn(len(jgdFirstNames))] + " " +
			jgdLastNames[rand.Intn(len(jgdLastNames))]
	case "email":
		return strings.ToLower(
			jgdFirstNames[rand.Intn(len(jgdFirstNames))] + "." +
				jgdLastNames[rand.Intn(len(jgdLastNames))] +
				"@example.com",
		)
	case "now":
		return time.Now().Format(time.RFC3339)
	case "date":
		d := time.Now().AddDate(0, 0, -rand.Intn(365))
		return d.Format("2006-01-02")
	case "lorem":
		n := argInt(0, 5)
		words := make([]string, 0, n)
		for i := 0; i < n; i++ {
			words = append(
				words,
				jgdWords[rand.Intn(len(jgdWords))],
			)
		}
		return strings.Join(words, " ")
	}

	return "{{" + name + "}}"
}
