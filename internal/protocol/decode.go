package protocol

import (
	"bytes"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// InvocationRequest is the decoded form of one inbound reflex event.
// It is immutable after decode and owned by a single dispatch cycle.
type InvocationRequest struct {
	Target   string
	Method   string
	Element  *Element
	ReflexID string
	URL      string
	Params   url.Values
}

// NewReflexID generates a UUIDv4 correlation id. Clients normally supply
// their own at interaction creation time; this is for server-originated
// interactions and outbound envelopes.
func NewReflexID() string { return uuid.NewString() }

// ParseDesignation splits a "ClassName#method_name" designation.
// A bare "ClassName" designates the class's default handler and returns
// an empty method.
func ParseDesignation(s string) (class, method string, err error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", "", decodeErr("empty designation")
	}
	class, method, found := strings.Cut(s, "#")
	if strings.Contains(method, "#") {
		return "", "", decodeErr("malformed designation %q", s)
	}
	if class == "" || (found && method == "") {
		return "", "", decodeErr("malformed designation %q", s)
	}
	if strings.ContainsAny(class, " \t") || strings.ContainsAny(method, " \t") {
		return "", "", decodeErr("malformed designation %q", s)
	}
	return class, method, nil
}

// Decode parses an inbound reflex envelope into an InvocationRequest.
// It has no side effects. The correlation id must be present; malformed
// designations, form data, or element bags fail with ErrDecode.
func Decode(env Envelope) (*InvocationRequest, error) {
	if env.Type != TypeReflex {
		return nil, decodeErr("unexpected envelope type %q", env.Type)
	}
	class, method, err := ParseDesignation(env.Target)
	if err != nil {
		return nil, err
	}
	id := strings.TrimSpace(env.ReflexID)
	if id == "" {
		return nil, decodeErr("missing reflex_id")
	}

	params := url.Values{}
	if env.FormData != "" {
		params, err = url.ParseQuery(env.FormData)
		if err != nil {
			return nil, decodeErr("malformed form data: %v", err)
		}
	}

	element, err := parseElement(env.Element)
	if err != nil {
		return nil, err
	}

	return &InvocationRequest{
		Target:   class,
		Method:   method,
		Element:  element,
		ReflexID: id,
		URL:      env.URL,
		Params:   params,
	}, nil
}

// boolean flag attributes; everything else is a string leaf.
func isFlagAttr(name string) bool {
	switch strings.ToLower(name) {
	case "checked", "selected":
		return true
	}
	return false
}

// parseElement decodes the serialized attribute bag token by token so the
// wire order of attributes is preserved. "dataset" and "values" are the
// only nested members; any other nested value is a malformed bag.
func parseElement(raw json.RawMessage) (*Element, error) {
	e := newElement()
	if len(raw) == 0 || string(bytes.TrimSpace(raw)) == "null" {
		return e, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, decodeErr("malformed element: %v", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, decodeErr("element must be an object")
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, decodeErr("malformed element: %v", err)
		}
		key := keyTok.(string)

		switch key {
		case "dataset":
			if err := parseDataset(dec, e); err != nil {
				return nil, err
			}
		case "values":
			if err := parseValues(dec, e); err != nil {
				return nil, err
			}
		default:
			valTok, err := dec.Token()
			if err != nil {
				return nil, decodeErr("malformed element: %v", err)
			}
			switch v := valTok.(type) {
			case string:
				e.set(key, v)
			case bool:
				if isFlagAttr(key) {
					e.set(key, v)
				} else if v {
					e.set(key, "true")
				} else {
					e.set(key, "false")
				}
			case json.Number:
				e.set(key, v.String())
			case nil:
				e.set(key, "")
			default:
				return nil, decodeErr("element attribute %q is not a leaf value", key)
			}
		}
	}
	// closing brace
	if _, err := dec.Token(); err != nil {
		return nil, decodeErr("malformed element: %v", err)
	}
	return e, nil
}

func parseDataset(dec *json.Decoder, e *Element) error {
	tok, err := dec.Token()
	if err != nil {
		return decodeErr("malformed dataset: %v", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return decodeErr("dataset must be an object")
	}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return decodeErr("malformed dataset: %v", err)
		}
		key := keyTok.(string)
		valTok, err := dec.Token()
		if err != nil {
			return decodeErr("malformed dataset: %v", err)
		}
		switch v := valTok.(type) {
		case string:
			e.dataset[key] = v
		case json.Number:
			e.dataset[key] = v.String()
		case bool:
			if v {
				e.dataset[key] = "true"
			} else {
				e.dataset[key] = "false"
			}
		case nil:
			e.dataset[key] = ""
		default:
			return decodeErr("dataset value %q is not a leaf value", key)
		}
	}
	_, err = dec.Token()
	if err != nil {
		return decodeErr("malformed dataset: %v", err)
	}
	return nil
}

func parseValues(dec *json.Decoder, e *Element) error {
	tok, err := dec.Token()
	if err != nil {
		return decodeErr("malformed values: %v", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		return decodeErr("values must be an array")
	}
	for dec.More() {
		valTok, err := dec.Token()
		if err != nil {
			return decodeErr("malformed values: %v", err)
		}
		switch v := valTok.(type) {
		case string:
			e.values = append(e.values, v)
		case json.Number:
			e.values = append(e.values, v.String())
		default:
			return decodeErr("values entries must be strings")
		}
	}
	_, err = dec.Token()
	if err != nil {
		return decodeErr("malformed values: %v", err)
	}
	return nil
}
