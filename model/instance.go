package model

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Instance is a value of an entity type: field name to value.
type Instance map[string]any

// Row is one result-set row: column name to value.
type Row map[string]any

// ID returns the resolved identity of the instance, if any.
func (i Instance) ID() (uuid.UUID, bool) {
	id, err := toUUID(i[IDField])
	if err != nil || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

// Serialize returns a copy with nested lists and mappings collapsed to JSON text.
func (i Instance) Serialize() (Instance, error) {
	out := make(Instance, len(i))
	for k, v := range i {
		collapsed, err := collapse(v)
		if err != nil {
			return nil, fmt.Errorf("serialize field %s: %w", k, err)
		}
		out[k] = collapsed
	}
	return out, nil
}

// IdentityFor derives the id of a keyed entity from its key value.
func (t *EntityType) IdentityFor(key any) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(t.FullName()+"/"+fmt.Sprint(key)))
}

// ResolveID attaches the id of the instance and returns it.
// Keyed types always hash the key value so an entity has one row per key,
// whatever id the caller passed. Others keep a given id or get a random one.
func (t *EntityType) ResolveID(inst Instance) (uuid.UUID, error) {
	var given uuid.UUID
	if v, ok := inst[IDField]; ok && v != nil {
		id, err := toUUID(v)
		if err != nil {
			return uuid.Nil, fmt.Errorf("entity %s has an invalid id: %w", t.FullName(), err)
		}
		given = id
	}

	var id uuid.UUID
	if key := t.KeyField(); key != nil {
		value, ok := inst[key.Name]
		if !ok || value == nil || value == "" {
			return uuid.Nil, fmt.Errorf("entity %s is missing its key field %s", t.FullName(), key.Name)
		}
		id = t.IdentityFor(value)
	} else if given != uuid.Nil {
		id = given
	} else {
		id = uuid.New()
	}
	inst[IDField] = id
	return id, nil
}

// Values returns the storage values of the declared fields in column order.
// Required fields must be present.
func (t *EntityType) Values(inst Instance) ([]any, error) {
	values := make([]any, len(t.Fields))
	for idx, f := range t.Fields {
		v, ok := inst[f.Name]
		if !ok || v == nil {
			if f.Required || f.IsKey || f.Name == IDField {
				return nil, fmt.Errorf("entity %s is missing required field %s", t.FullName(), f.Name)
			}
			values[idx] = nil
			continue
		}
		sv, err := storageValue(f, v)
		if err != nil {
			return nil, fmt.Errorf("entity %s field %s: %w", t.FullName(), f.Name, err)
		}
		values[idx] = sv
	}
	return values, nil
}

// Hydrate converts a row into a typed instance of the declared fields.
// Columns that are not declared fields (embeddings, distance) are dropped.
func (t *EntityType) Hydrate(row Row) (Instance, error) {
	inst := make(Instance, len(t.Fields))
	for _, f := range t.Fields {
		v, ok := row[f.Name]
		if !ok {
			continue
		}
		if v == nil {
			inst[f.Name] = nil
			continue
		}
		typed, err := hydrateValue(f, v)
		if err != nil {
			return nil, fmt.Errorf("hydrate %s.%s: %w", t.FullName(), f.Name, err)
		}
		inst[f.Name] = typed
	}
	return inst, nil
}

// StorageValue converts v to the storage value of the named field.
func (t *EntityType) StorageValue(field string, v any) (any, error) {
	f, ok := t.Field(field)
	if !ok {
		return nil, fmt.Errorf("entity %s has no field %s", t.FullName(), field)
	}
	return storageValue(f, v)
}

func storageValue(f Field, v any) (any, error) {
	switch f.Type {
	case FieldTypeUUID:
		id, err := toUUID(v)
		if err != nil {
			return nil, err
		}
		return id.String(), nil
	case FieldTypeJSON:
		if s, ok := v.(string); ok && json.Valid([]byte(s)) {
			return s, nil
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	case FieldTypeTimestamp:
		switch tv := v.(type) {
		case time.Time:
			return tv, nil
		case *time.Time:
			return *tv, nil
		case string:
			return time.Parse(time.RFC3339Nano, tv)
		}
		return nil, fmt.Errorf("unsupported timestamp value %T", v)
	}
	return collapse(v)
}

func hydrateValue(f Field, v any) (any, error) {
	if b, ok := v.([]byte); ok {
		v = string(b)
	}
	switch f.Type {
	case FieldTypeString, FieldTypeText:
		return fmt.Sprint(v), nil
	case FieldTypeInteger:
		switch n := v.(type) {
		case int64:
			return n, nil
		case int:
			return int64(n), nil
		case int32:
			return int64(n), nil
		case float64:
			return int64(n), nil
		case string:
			return strconv.ParseInt(n, 10, 64)
		}
	case FieldTypeFloat:
		switch n := v.(type) {
		case float64:
			return n, nil
		case float32:
			return float64(n), nil
		case int64:
			return float64(n), nil
		case string:
			return strconv.ParseFloat(n, 64)
		}
	case FieldTypeBoolean:
		switch b := v.(type) {
		case bool:
			return b, nil
		case string:
			return strconv.ParseBool(b)
		}
	case FieldTypeJSON:
		s, ok := v.(string)
		if !ok {
			return v, nil
		}
		var decoded any
		if err := json.Unmarshal([]byte(s), &decoded); err != nil {
			return nil, err
		}
		return decoded, nil
	case FieldTypeTimestamp:
		switch tv := v.(type) {
		case time.Time:
			return tv, nil
		case string:
			return time.Parse(time.RFC3339Nano, tv)
		}
	case FieldTypeUUID:
		return toUUID(v)
	}
	return nil, fmt.Errorf("cannot convert %T to %s", v, f.Type)
}

// collapse turns slices and maps into JSON text and leaves scalars alone.
func collapse(v any) (any, error) {
	switch v.(type) {
	case nil, string, bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64,
		float32, float64, time.Time, []byte:
		return v, nil
	case uuid.UUID:
		return v.(uuid.UUID).String(), nil
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Slice, reflect.Array, reflect.Map, reflect.Struct:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	}
	return v, nil
}

func toUUID(v any) (uuid.UUID, error) {
	switch id := v.(type) {
	case uuid.UUID:
		return id, nil
	case string:
		return uuid.Parse(id)
	case []byte:
		if len(id) == 16 {
			return uuid.FromBytes(id)
		}
		return uuid.ParseBytes(id)
	case nil:
		return uuid.Nil, nil
	}
	return uuid.Nil, fmt.Errorf("unsupported id value %T", v)
}
