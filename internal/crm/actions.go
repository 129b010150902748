package crm

import (
	"fmt"
	"net/url"
	"strings"
)

// ActionTemplate is a bot-defined CRM call: method + path + optional query
// and body, parameterized with {placeholder} markers that are substituted
// from tool-call arguments at dispatch time.
type ActionTemplate struct {
	Name   string                 `json:"name"`
	Method string                 `json:"method"`
	Path   string                 `json:"path"`
	Query  map[string]string      `json:"query,omitempty"`
	Body   map[string]interface{} `json:"body,omitempty"`
}

// RenderedAction is a template with all placeholders substituted, ready for
// Client.DoAction.
type RenderedAction struct {
	Method string
	Path   string
	Query  url.Values
	Body   map[string]interface{}
}

// Render substitutes {key} placeholders in the template's path, query and
// body from args. Missing placeholders are an error; forwarding a literal
// "{vendor_id}" to the CRM would fail in a much less debuggable way.
func (t ActionTemplate) Render(args map[string]interface{}) (RenderedAction, error) {
	method := strings.ToUpper(t.Method)
	if method == "" {
		method = "GET"
	}

	path, err := substitute(t.Path, args)
	if err != nil {
		return RenderedAction{}, fmt.Errorf("action %q path: %w", t.Name, err)
	}
	if path == "" {
		path = "/"
	}

	var query url.Values
	if len(t.Query) > 0 {
		query = url.Values{}
		for k, v := range t.Query {
			rendered, err := substitute(v, args)
			if err != nil {
				return RenderedAction{}, fmt.Errorf("action %q query %s: %w", t.Name, k, err)
			}
			query.Set(k, rendered)
		}
	}

	var body map[string]interface{}
	if len(t.Body) > 0 {
		rendered, err := substituteValue(t.Body, args)
		if err != nil {
			return RenderedAction{}, fmt.Errorf("action %q body: %w", t.Name, err)
		}
		body = rendered.(map[string]interface{})
	}

	return RenderedAction{Method: method, Path: path, Query: query, Body: body}, nil
}

// substitute replaces every {key} in s with the stringified argument value.
func substitute(s string, args map[string]interface{}) (string, error) {
	var b strings.Builder
	for {
		open := strings.IndexByte(s, '{')
		if open < 0 {
			b.WriteString(s)
			return b.String(), nil
		}
		close := strings.IndexByte(s[open:], '}')
		if close < 0 {
			b.WriteString(s)
			return b.String(), nil
		}
		close += open

		b.WriteString(s[:open])
		key := s[open+1 : close]
		val, ok := args[key]
		if !ok {
			return "", fmt.Errorf("missing argument %q", key)
		}
		b.WriteString(stringify(val))
		s = s[close+1:]
	}
}

// substituteValue walks nested maps/slices substituting string leaves.
func substituteValue(v interface{}, args map[string]interface{}) (interface{}, error) {
	switch val := v.(type) {
	case string:
		// A bare "{key}" placeholder keeps the argument's native type so
		// numeric fields round-trip as numbers.
		if strings.HasPrefix(val, "{") && strings.HasSuffix(val, "}") && strings.Count(val, "{") == 1 {
			key := val[1 : len(val)-1]
			arg, ok := args[key]
			if !ok {
				return nil, fmt.Errorf("missing argument %q", key)
			}
			return arg, nil
		}
		return substitute(val, args)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, inner := range val {
			rendered, err := substituteValue(inner, args)
			if err != nil {
				return nil, err
			}
			out[k] = rendered
		}
		return out, nil
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, inner := range val {
			rendered, err := substituteValue(inner, args)
			if err != nil {
				return nil, err
			}
			out[i] = rendered
		}
		return out, nil
	default:
		return val, nil
	}
}

func stringify(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		// JSON numbers arrive as float64; render integers without decimals.
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%v", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}
