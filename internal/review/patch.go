package review

import (
	"encoding/json"
	"fmt"
)

// OpKind names a patch operation on the wire.
type OpKind string

const (
	OpReplace      OpKind = "replace"
	OpInsertBefore OpKind = "insert_before"
	OpInsertAfter  OpKind = "insert_after"
	OpAppend       OpKind = "append"
	OpAddSection   OpKind = "add_section"
)

// PatchOperation is one edit instruction against a draft. The set of
// implementations is closed: Replace, InsertBefore, InsertAfter, Append and
// AddSection.
type PatchOperation interface {
	Kind() OpKind
	patchOperation()
}

// Replace swaps OldText for NewText.
type Replace struct {
	OldText string `json:"old_text"`
	NewText string `json:"new_text"`
}

// InsertBefore places Content immediately before Anchor.
type InsertBefore struct {
	Anchor  string `json:"anchor"`
	Content string `json:"content"`
}

// InsertAfter places Content immediately after Anchor.
type InsertAfter struct {
	Anchor  string `json:"anchor"`
	Content string `json:"content"`
}

// Append adds Content to the end of the section headed Section.
type Append struct {
	Section string `json:"section"`
	Content string `json:"content"`
}

// AddSection adds a new section.
type AddSection struct {
	Heading string `json:"heading"`
	Content string `json:"content"`
}

func (Replace) Kind() OpKind      { return OpReplace }
func (InsertBefore) Kind() OpKind { return OpInsertBefore }
func (InsertAfter) Kind() OpKind  { return OpInsertAfter }
func (Append) Kind() OpKind       { return OpAppend }
func (AddSection) Kind() OpKind   { return OpAddSection }

func (Replace) patchOperation()      {}
func (InsertBefore) patchOperation() {}
func (InsertAfter) patchOperation()  {}
func (Append) patchOperation()       {}
func (AddSection) patchOperation()   {}

type envelope struct {
	Operation OpKind          `json:"operation"`
	Params    json.RawMessage `json:"params,omitempty"`
}

func marshalOp(kind OpKind, params any) ([]byte, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Operation: kind, Params: raw})
}

// The param aliases drop the MarshalJSON method to avoid recursion.
type (
	replaceParams      Replace
	insertBeforeParams InsertBefore
	insertAfterParams  InsertAfter
	appendParams       Append
	addSectionParams   AddSection
)

func (p Replace) MarshalJSON() ([]byte, error) { return marshalOp(OpReplace, replaceParams(p)) }
func (p InsertBefore) MarshalJSON() ([]byte, error) {
	return marshalOp(OpInsertBefore, insertBeforeParams(p))
}
func (p InsertAfter) MarshalJSON() ([]byte, error) {
	return marshalOp(OpInsertAfter, insertAfterParams(p))
}
func (p Append) MarshalJSON() ([]byte, error) { return marshalOp(OpAppend, appendParams(p)) }
func (p AddSection) MarshalJSON() ([]byte, error) {
	return marshalOp(OpAddSection, addSectionParams(p))
}

// DecodePatch parses one {"operation": ..., "params": {...}} object. When
// params is absent the fields are read from the object itself.
func DecodePatch(raw json.RawMessage) (PatchOperation, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode patch operation: %w", err)
	}
	params := env.Params
	if len(params) == 0 || string(params) == "null" {
		params = raw
	}

	var (
		op  PatchOperation
		err error
	)
	switch env.Operation {
	case OpReplace:
		var p replaceParams
		err = json.Unmarshal(params, &p)
		op = Replace(p)
	case OpInsertBefore:
		var p insertBeforeParams
		err = json.Unmarshal(params, &p)
		op = InsertBefore(p)
	case OpInsertAfter:
		var p insertAfterParams
		err = json.Unmarshal(params, &p)
		op = InsertAfter(p)
	case OpAppend:
		var p appendParams
		err = json.Unmarshal(params, &p)
		op = Append(p)
	case OpAddSection:
		var p addSectionParams
		err = json.Unmarshal(params, &p)
		op = AddSection(p)
	default:
		return nil, fmt.Errorf("unknown patch operation %q", env.Operation)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s params: %w", env.Operation, err)
	}
	return op, nil
}
