package domain

import (
	"encoding/json"
	"fmt"
)

// Payload is the kind-specific data a SyncJob carries. The set of
// implementations is closed: SearchPayload, SingleProfilePayload,
// ExportStartPayload and ExportStatusCheckPayload.
type Payload interface {
	isPayload()
}

// SearchPayload drives search and recurringSearch jobs.
type SearchPayload struct {
	Filter SearchFilter
}

// SingleProfilePayload drives a singleProfile job.
type SingleProfilePayload struct {
	ProfileID string
}

// ExportStartPayload drives an exportStart job.
type ExportStartPayload struct {
	Params ExportParams
}

// ExportStatusCheckPayload drives an exportStatusCheck job.
type ExportStatusCheckPayload struct {
	ExportID string
}

func (SearchPayload) isPayload()            {}
func (SingleProfilePayload) isPayload()     {}
func (ExportStartPayload) isPayload()       {}
func (ExportStatusCheckPayload) isPayload() {}

// payloadEnvelope is the persisted shape; exactly one field is populated.
type payloadEnvelope struct {
	SearchParams *SearchFilter `json:"searchParams,omitempty"`
	ProfileID    string        `json:"profileId,omitempty"`
	ExportParams *ExportParams `json:"exportParams,omitempty"`
	ExportID     string        `json:"exportId,omitempty"`
}

// EncodePayload renders p into the persisted envelope.
func EncodePayload(p Payload) ([]byte, error) {
	var env payloadEnvelope
	switch v := p.(type) {
	case SearchPayload:
		f := v.Filter
		env.SearchParams = &f
	case SingleProfilePayload:
		env.ProfileID = v.ProfileID
	case ExportStartPayload:
		params := v.Params
		env.ExportParams = &params
	case ExportStatusCheckPayload:
		env.ExportID = v.ExportID
	default:
		return nil, fmt.Errorf("%w: unsupported payload type %T", ErrInvalidPayload, p)
	}
	return json.Marshal(env)
}

// DecodePayload parses the persisted envelope and checks that exactly one
// field is populated and that it is the one kind expects.
func DecodePayload(kind JobKind, data []byte) (Payload, error) {
	var env payloadEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	populated := 0
	if env.SearchParams != nil {
		populated++
	}
	if env.ProfileID != "" {
		populated++
	}
	if env.ExportParams != nil {
		populated++
	}
	if env.ExportID != "" {
		populated++
	}
	if populated != 1 {
		return nil, fmt.Errorf("%w: expected exactly one field, got %d", ErrInvalidPayload, populated)
	}

	var p Payload
	switch {
	case env.SearchParams != nil:
		p = SearchPayload{Filter: *env.SearchParams}
	case env.ProfileID != "":
		p = SingleProfilePayload{ProfileID: env.ProfileID}
	case env.ExportParams != nil:
		p = ExportStartPayload{Params: *env.ExportParams}
	default:
		p = ExportStatusCheckPayload{ExportID: env.ExportID}
	}

	if err := CheckPayloadKind(kind, p); err != nil {
		return nil, err
	}
	return p, nil
}

// CheckPayloadKind verifies that p is the variant kind requires.
func CheckPayloadKind(kind JobKind, p Payload) error {
	ok := false
	switch p.(type) {
	case SearchPayload:
		ok = kind == JobKindSearch || kind == JobKindRecurringSearch
	case SingleProfilePayload:
		ok = kind == JobKindSingleProfile
	case ExportStartPayload:
		ok = kind == JobKindExportStart
	case ExportStatusCheckPayload:
		ok = kind == JobKindExportStatusCheck
	}
	if !ok {
		return fmt.Errorf("%w: %T does not match job kind %q", ErrInvalidPayload, p, kind)
	}
	return nil
}
