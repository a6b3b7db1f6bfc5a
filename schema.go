package doro

import (
	"encoding/json"
	"fmt"
	"net/url"
)

// Schema management. A schema is a JSON Schema document the server
// uses to validate object content for one type name. The server stores
// schemas as objects of type "Schema", which is what the pre-flight
// existence checks below count.

// CreateSchema registers a new schema under the given type name. The
// name must not already be registered; re-registering is refused
// locally, use UpdateSchema instead.
func (s *Session) CreateSchema(name string, schema interface{}) error {
	n, err := s.schemaCount(name)
	if err != nil {
		return err
	}
	if n > 0 {
		return usageErrorf("schema %q already exists; use UpdateSchema", name)
	}
	return s.putSchema(name, schema)
}

// UpdateSchema replaces the schema registered under the given type
// name. The name must already be registered; use CreateSchema for a
// new one.
func (s *Session) UpdateSchema(name string, schema interface{}) error {
	n, err := s.schemaCount(name)
	if err != nil {
		return err
	}
	if n == 0 {
		return usageErrorf("schema %q does not exist; use CreateSchema", name)
	}
	return s.putSchema(name, schema)
}

// GetSchema fetches the schema document registered under the given
// type name.
func (s *Session) GetSchema(name string) (map[string]interface{}, error) {
	v, err := s.doJason("GET", "/schemas/"+url.PathEscape(name), nil, nil, "")
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if b, err := v.Marshal(); err == nil {
		_ = json.Unmarshal(b, &m)
	}
	if m == nil {
		return map[string]interface{}{}, nil
	}
	return m, nil
}

func (s *Session) putSchema(name string, schema interface{}) error {
	_, err := s.doJSONBody("PUT", "/schemas/"+url.PathEscape(name), nil, schema)
	return err
}

func (s *Session) schemaCount(name string) (int64, error) {
	return s.Count(fmt.Sprintf(`type:"Schema" AND /name:%q`, name))
}
