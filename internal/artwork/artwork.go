// Package artwork carries references to uploaded print artwork. The engine
// only copies references between records; file contents are owned by the
// upload pipeline.
package artwork

import "encoding/json"

// Ref points at one placed artwork file.
type Ref struct {
	Location  string          `json:"location"`
	FileRef   string          `json:"fileRef"`
	Transform json.RawMessage `json:"transform,omitempty"`
}

// CopyRefs returns an independent copy of refs so the source record can be
// discarded without sharing backing arrays.
func CopyRefs(refs []Ref) []Ref {
	if len(refs) == 0 {
		return nil
	}
	out := make([]Ref, len(refs))
	for i, ref := range refs {
		out[i] = Ref{
			Location:  ref.Location,
			FileRef:   ref.FileRef,
			Transform: append(json.RawMessage(nil), ref.Transform...),
		}
	}
	return out
}
