package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
)

// ChangeType classifies a detected difference.
type ChangeType string

const (
	ChangeAdd    ChangeType = "Add"
	ChangeUpdate ChangeType = "Update"
	ChangeDelete ChangeType = "Delete"
)

// ValueKind names the single value slot populated on a change record.
type ValueKind string

const (
	KindString   ValueKind = "String"
	KindInt      ValueKind = "Int"
	KindDouble   ValueKind = "Double"
	KindBool     ValueKind = "Bool"
	KindDateTime ValueKind = "DateTime"
	KindCave     ValueKind = "Cave"
	KindEntrance ValueKind = "Entrance"
)

// ChangeValue is the sum type behind a change record: exactly one variant is
// ever present, and its kind is carried by the variant itself rather than by
// parallel nullable fields.
type ChangeValue interface {
	Kind() ValueKind
}

// StringValue carries a string change. Previous is set only on updates;
// deletes carry the removed value in Value.
type StringValue struct {
	Value    string  `json:"value"`
	Previous *string `json:"previous,omitempty"`
}

// IntValue carries an integer change.
type IntValue struct {
	Value    int  `json:"value"`
	Previous *int `json:"previous,omitempty"`
}

// DoubleValue carries a floating-point change.
type DoubleValue struct {
	Value    float64  `json:"value"`
	Previous *float64 `json:"previous,omitempty"`
}

// BoolValue carries a boolean change.
type BoolValue struct {
	Value    bool  `json:"value"`
	Previous *bool `json:"previous,omitempty"`
}

// DateTimeValue carries a timestamp change, compared by instant.
type DateTimeValue struct {
	Value    time.Time  `json:"value"`
	Previous *time.Time `json:"previous,omitempty"`
}

// CaveValue is the structural marker for a cave-level Add or Delete.
type CaveValue struct {
	ID uuid.UUID `json:"id"`
}

// EntranceValue is the structural marker for an entrance-level Add or Delete.
type EntranceValue struct {
	ID uuid.UUID `json:"id"`
}

func (StringValue) Kind() ValueKind   { return KindString }
func (IntValue) Kind() ValueKind      { return KindInt }
func (DoubleValue) Kind() ValueKind   { return KindDouble }
func (BoolValue) Kind() ValueKind     { return KindBool }
func (DateTimeValue) Kind() ValueKind { return KindDateTime }
func (CaveValue) Kind() ValueKind     { return KindCave }
func (EntranceValue) Kind() ValueKind { return KindEntrance }

// ChangeRecord is one detected difference between two snapshots. Records are
// created at diff time and never mutated afterwards.
type ChangeRecord struct {
	ID              uuid.UUID   `json:"id"`
	ChangeRequestID uuid.UUID   `json:"change_request_id"`
	CaveID          uuid.UUID   `json:"cave_id"`
	EntranceID      *uuid.UUID  `json:"entrance_id,omitempty"`
	Property        string      `json:"property"`
	ChangeType      ChangeType  `json:"change_type"`
	Value           ChangeValue `json:"value"`
	CreatedAt       time.Time   `json:"created_at"`
}

// SameChange reports whether two records describe the identical change:
// same type, property, entrance scope, value, and previous value. Record
// ids and timestamps are ignored. Timestamps inside values compare by
// instant.
func (r ChangeRecord) SameChange(o ChangeRecord) bool {
	if r.ChangeType != o.ChangeType || r.Property != o.Property {
		return false
	}
	if (r.EntranceID == nil) != (o.EntranceID == nil) {
		return false
	}
	if r.EntranceID != nil && *r.EntranceID != *o.EntranceID {
		return false
	}
	return sameValue(r.Value, o.Value)
}

func sameValue(a, b ChangeValue) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch av := a.(type) {
	case StringValue:
		bv := b.(StringValue)
		return av.Value == bv.Value && samePtr(av.Previous, bv.Previous)
	case IntValue:
		bv := b.(IntValue)
		return av.Value == bv.Value && samePtr(av.Previous, bv.Previous)
	case DoubleValue:
		bv := b.(DoubleValue)
		return av.Value == bv.Value && samePtr(av.Previous, bv.Previous)
	case BoolValue:
		bv := b.(BoolValue)
		return av.Value == bv.Value && samePtr(av.Previous, bv.Previous)
	case DateTimeValue:
		bv := b.(DateTimeValue)
		if !av.Value.Equal(bv.Value) {
			return false
		}
		if (av.Previous == nil) != (bv.Previous == nil) {
			return false
		}
		return av.Previous == nil || av.Previous.Equal(*bv.Previous)
	case CaveValue:
		return av.ID == b.(CaveValue).ID
	case EntranceValue:
		return av.ID == b.(EntranceValue).ID
	}
	return false
}

func samePtr[T comparable](a, b *T) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	return a == nil || *a == *b
}

// changeValueEnvelope is the persisted JSON form of a ChangeValue.
type changeValueEnvelope struct {
	Kind  ValueKind       `json:"kind"`
	Value json.RawMessage `json:"value"`
}

// EncodeChangeValue serializes a ChangeValue for storage.
func EncodeChangeValue(v ChangeValue) ([]byte, error) {
	if v == nil {
		return nil, eris.New("model: nil change value")
	}
	inner, err := json.Marshal(v)
	if err != nil {
		return nil, eris.Wrap(err, "model: marshal change value")
	}
	return json.Marshal(changeValueEnvelope{Kind: v.Kind(), Value: inner})
}

// DecodeChangeValue deserializes a stored ChangeValue.
func DecodeChangeValue(data []byte) (ChangeValue, error) {
	var env changeValueEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, eris.Wrap(err, "model: unmarshal change value envelope")
	}
	var (
		v   ChangeValue
		err error
	)
	switch env.Kind {
	case KindString:
		var sv StringValue
		err = json.Unmarshal(env.Value, &sv)
		v = sv
	case KindInt:
		var iv IntValue
		err = json.Unmarshal(env.Value, &iv)
		v = iv
	case KindDouble:
		var dv DoubleValue
		err = json.Unmarshal(env.Value, &dv)
		v = dv
	case KindBool:
		var bv BoolValue
		err = json.Unmarshal(env.Value, &bv)
		v = bv
	case KindDateTime:
		var tv DateTimeValue
		err = json.Unmarshal(env.Value, &tv)
		v = tv
	case KindCave:
		var cv CaveValue
		err = json.Unmarshal(env.Value, &cv)
		v = cv
	case KindEntrance:
		var ev EntranceValue
		err = json.Unmarshal(env.Value, &ev)
		v = ev
	default:
		return nil, eris.Errorf("model: unknown change value kind %q", env.Kind)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "model: unmarshal %s change value", env.Kind)
	}
	return v, nil
}
