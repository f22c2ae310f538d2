package book

import "encoding/json"

// Field is a tri-state JSON value used by partial updates: absent (leave the
// stored value unchanged), explicit null (clear it), or set.
type Field[T any] struct {
	Set   bool
	Null  bool
	Value T
}

// UnmarshalJSON records presence; encoding/json invokes it for explicit nulls
// as well, which is what distinguishes "clear" from "keep".
func (f *Field[T]) UnmarshalJSON(data []byte) error {
	f.Set = true
	if string(data) == "null" {
		f.Null = true
		var zero T
		f.Value = zero
		return nil
	}
	return json.Unmarshal(data, &f.Value)
}

// UpdatePatch enumerates the fields an owner may change outside a deal.
type UpdatePatch struct {
	Title       Field[string] `json:"title"`
	Author      Field[string] `json:"author"`
	Description Field[string] `json:"description"`
	ISBN        Field[string] `json:"isbn"`
	Category    Field[string] `json:"category"`
	Condition   Field[string] `json:"condition"`
	CoverURL    Field[string] `json:"cover_url"`
}
