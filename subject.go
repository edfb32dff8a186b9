package goIssuer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// Subject is the authenticated principal carried by a code and the tokens
// minted from it. Properties are validated once, when the subject is
// produced, and treated as opaque afterwards.
type Subject struct {
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
}

// SubjectSchema validates the properties of one subject type and returns
// their normalized form.
type SubjectSchema interface {
	Validate(properties map[string]any) (map[string]any, error)
}

// Subjects maps subject type names to their schemas.
type Subjects map[string]SubjectSchema

// ObjectSchema validates properties by strict JSON decoding into T,
// rejecting unknown fields, then running Check.
type ObjectSchema[T any] struct {
	Check func(T) error
}

func (s ObjectSchema[T]) Validate(properties map[string]any) (map[string]any, error) {
	raw, err := json.Marshal(properties)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	var v T
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if s.Check != nil {
		if err := s.Check(v); err != nil {
			return nil, err
		}
	}

	normalized, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if err := json.Unmarshal(normalized, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UserSubject is the property set of the default "user" subject type.
type UserSubject struct {
	ID string `json:"id"`
}

// DefaultSubjects declares the single "user" type with a required id.
func DefaultSubjects() Subjects {
	return Subjects{
		"user": ObjectSchema[UserSubject]{Check: func(u UserSubject) error {
			if u.ID == "" {
				return errors.New("id is required")
			}
			return nil
		}},
	}
}

// Types returns the declared type names in sorted order.
func (s Subjects) Types() []string {
	out := make([]string, 0, len(s))
	for name := range s {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (s Subjects) validate(sub Subject) (Subject, error) {
	schema, ok := s[sub.Type]
	if !ok {
		return Subject{}, fmt.Errorf("%w: unknown subject type %q", ErrInvalidSubject, sub.Type)
	}
	props, err := schema.Validate(sub.Properties)
	if err != nil {
		return Subject{}, fmt.Errorf("%w: %v", ErrInvalidSubject, err)
	}
	return Subject{Type: sub.Type, Properties: props}, nil
}

// subjectClaim renders the "sub" claim: type and id joined by a colon, or
// empty when the subject has no string id.
func subjectClaim(sub Subject) string {
	id, _ := sub.Properties["id"].(string)
	if id == "" {
		return ""
	}
	return sub.Type + ":" + id
}
