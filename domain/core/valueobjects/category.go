package valueobjects

import (
	"encoding/json"
	"strings"

	pkgerrors "relmap/pkg/errors"
)

// Category is a role tag a person may carry
type Category string

const (
	CategoryPartner      Category = "Partenaire"
	CategoryInvestor     Category = "Investisseur"
	CategoryOther        Category = "Autre"
	CategoryTrainingBody Category = "Organisme de formation"
	CategoryAdvisor      Category = "Advisor"
)

// AllCategories lists every known tag in display order
var AllCategories = []Category{
	CategoryPartner,
	CategoryInvestor,
	CategoryOther,
	CategoryTrainingBody,
	CategoryAdvisor,
}

// ParseCategory matches a tag case-insensitively
func ParseCategory(s string) (Category, bool) {
	s = strings.TrimSpace(s)
	for _, c := range AllCategories {
		if strings.EqualFold(string(c), s) {
			return c, true
		}
	}
	return "", false
}

// CategorySet is an unordered set of categories
type CategorySet struct {
	members map[Category]struct{}
}

// NewCategorySet builds a set, rejecting unknown tags
func NewCategorySet(values ...string) (CategorySet, error) {
	set := CategorySet{members: make(map[Category]struct{}, len(values))}
	for _, v := range values {
		c, ok := ParseCategory(v)
		if !ok {
			return CategorySet{}, pkgerrors.NewValidationError("unknown category: " + v)
		}
		set.members[c] = struct{}{}
	}
	return set, nil
}

// CategorySetOf builds a set from known categories
func CategorySetOf(categories ...Category) CategorySet {
	set := CategorySet{members: make(map[Category]struct{}, len(categories))}
	for _, c := range categories {
		set.members[c] = struct{}{}
	}
	return set
}

// ParseCategoryList splits a delimited cell. Unknown tokens are returned separately.
func ParseCategoryList(s, delimiter string) (CategorySet, []string) {
	set := CategorySet{members: make(map[Category]struct{})}
	var unknown []string
	if strings.TrimSpace(s) == "" {
		return set, nil
	}
	for _, token := range strings.Split(s, delimiter) {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		if c, ok := ParseCategory(token); ok {
			set.members[c] = struct{}{}
		} else {
			unknown = append(unknown, token)
		}
	}
	return set, unknown
}

// Has reports membership
func (s CategorySet) Has(c Category) bool {
	_, ok := s.members[c]
	return ok
}

// Len returns the number of members
func (s CategorySet) Len() int {
	return len(s.members)
}

// IsEmpty reports whether the set has no member
func (s CategorySet) IsEmpty() bool {
	return len(s.members) == 0
}

// Intersects reports whether both sets share at least one member
func (s CategorySet) Intersects(other CategorySet) bool {
	small, large := s, other
	if small.Len() > large.Len() {
		small, large = large, small
	}
	for c := range small.members {
		if large.Has(c) {
			return true
		}
	}
	return false
}

// Equals compares membership, ignoring order
func (s CategorySet) Equals(other CategorySet) bool {
	if s.Len() != other.Len() {
		return false
	}
	for c := range s.members {
		if !other.Has(c) {
			return false
		}
	}
	return true
}

// Values returns members in display order
func (s CategorySet) Values() []Category {
	values := make([]Category, 0, len(s.members))
	for _, c := range AllCategories {
		if s.Has(c) {
			values = append(values, c)
		}
	}
	return values
}

// Strings returns members as plain strings in display order
func (s CategorySet) Strings() []string {
	values := s.Values()
	out := make([]string, len(values))
	for i, c := range values {
		out[i] = string(c)
	}
	return out
}

// Join encodes the set as a single delimited string
func (s CategorySet) Join(delimiter string) string {
	return strings.Join(s.Strings(), delimiter)
}

// MarshalJSON encodes the set as an array in display order
func (s CategorySet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Strings())
}

// UnmarshalJSON decodes an array of known tags
func (s *CategorySet) UnmarshalJSON(data []byte) error {
	var values []string
	if err := json.Unmarshal(data, &values); err != nil {
		return err
	}
	set, err := NewCategorySet(values...)
	if err != nil {
		return err
	}
	*s = set
	return nil
}

// NewCategorySetLenient builds a set from the known tags and returns the others
func NewCategorySetLenient(values ...string) (CategorySet, []string) {
	set := CategorySet{members: make(map[Category]struct{}, len(values))}
	var unknown []string
	for _, v := range values {
		if c, ok := ParseCategory(v); ok {
			set.members[c] = struct{}{}
		} else if v != "" {
			unknown = append(unknown, v)
		}
	}
	return set, unknown
}
