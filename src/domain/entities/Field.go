package entities

import (
	"encoding/json"
	"math"
	"strconv"
)

type FieldKind int

const (
	// FieldConcrete é um valor comum (string, número, mapa...).
	FieldConcrete FieldKind = iota
	// FieldStub aponta para uma única entidade ainda não resolvida.
	FieldStub
	// FieldStubList aponta para uma lista de entidades não resolvidas.
	FieldStubList
)

// Reference is the minimal {id, type} pointer stored in place of a related entity.
type Reference struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

// Field is the tagged value stored for every key of a record.
type Field struct {
	kind  FieldKind
	value any
	refs  []Reference
}

func Concrete(value any) Field {
	return Field{kind: FieldConcrete, value: value}
}

func Stub(ref Reference) Field {
	return Field{kind: FieldStub, refs: []Reference{ref}}
}

func StubList(refs []Reference) Field {
	return Field{kind: FieldStubList, refs: append([]Reference(nil), refs...)}
}

func (f Field) Kind() FieldKind {
	return f.kind
}

// Value returns a copy of the concrete value; it is nil for stubs.
func (f Field) Value() any {
	return copyValue(f.value)
}

func (f Field) Reference() (Reference, bool) {
	if f.kind != FieldStub {
		return Reference{}, false
	}
	return f.refs[0], true
}

func (f Field) References() ([]Reference, bool) {
	if f.kind != FieldStubList {
		return nil, false
	}
	return append([]Reference(nil), f.refs...), true
}

func (f Field) IsStub() bool {
	return f.kind == FieldStub || f.kind == FieldStubList
}

// render returns the plain representation of the field, stubs as {id, type} maps.
func (f Field) render(idKey, typeKey string) any {
	switch f.kind {
	case FieldStub:
		return referenceMap(f.refs[0], idKey, typeKey)
	case FieldStubList:
		out := make([]any, len(f.refs))
		for i, ref := range f.refs {
			out[i] = referenceMap(ref, idKey, typeKey)
		}
		return out
	default:
		return copyValue(f.value)
	}
}

// copyValue copies nested maps and slices so records never share them with
// callers. Scalars are returned as they are.
func copyValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		if v == nil {
			return v
		}
		out := make(map[string]any, len(v))
		for key, item := range v {
			out[key] = copyValue(item)
		}
		return out
	case []any:
		if v == nil {
			return v
		}
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = copyValue(item)
		}
		return out
	case []map[string]any:
		if v == nil {
			return v
		}
		out := make([]map[string]any, len(v))
		for i, item := range v {
			out[i], _ = copyValue(item).(map[string]any)
		}
		return out
	case []string:
		return append([]string(nil), v...)
	}
	return value
}

func referenceMap(ref Reference, idKey, typeKey string) map[string]any {
	return map[string]any{idKey: ref.ID, typeKey: ref.Type}
}

// normalizeField decides how a raw value is stored. Live models and
// collections are never kept: only their references are.
func normalizeField(value any, idKey, typeKey string) Field {
	switch v := value.(type) {
	case Field:
		return v
	case *Model:
		if v == nil {
			return Concrete(nil)
		}
		return Stub(v.Reference())
	case Collection:
		return StubList(v.References())
	case []*Model:
		return StubList(Collection(v).References())
	case Reference:
		return Stub(v)
	case []Reference:
		return StubList(v)
	case map[string]any:
		if ref, ok := referenceFromMap(v, idKey, typeKey); ok {
			return Stub(ref)
		}
	case []map[string]any:
		if refs, ok := referencesFromMaps(v, idKey, typeKey); ok {
			return StubList(refs)
		}
	case []any:
		if len(v) > 0 {
			maps := make([]map[string]any, 0, len(v))
			for _, item := range v {
				m, ok := item.(map[string]any)
				if !ok {
					return Concrete(copyValue(value))
				}
				maps = append(maps, m)
			}
			if refs, ok := referencesFromMaps(maps, idKey, typeKey); ok {
				return StubList(refs)
			}
		}
	}

	return Concrete(copyValue(value))
}

func referenceFromMap(m map[string]any, idKey, typeKey string) (Reference, bool) {
	rawID, hasID := m[idKey]
	rawType, hasType := m[typeKey]
	if !hasID || !hasType {
		return Reference{}, false
	}

	id, ok := ToID(rawID)
	if !ok {
		return Reference{}, false
	}
	entityType, ok := rawType.(string)
	if !ok || entityType == "" {
		return Reference{}, false
	}

	return Reference{ID: id, Type: entityType}, true
}

func referencesFromMaps(maps []map[string]any, idKey, typeKey string) ([]Reference, bool) {
	if len(maps) == 0 {
		return nil, false
	}

	refs := make([]Reference, 0, len(maps))
	for _, m := range maps {
		ref, ok := referenceFromMap(m, idKey, typeKey)
		if !ok {
			return nil, false
		}
		refs = append(refs, ref)
	}
	return refs, true
}

// ToID normalises the identifier representations found in decoded payloads.
func ToID(value any) (int64, bool) {
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint:
		if uint64(v) > math.MaxInt64 {
			return 0, false
		}
		return int64(v), true
	case uint8:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint32:
		return int64(v), true
	case uint64:
		if v > math.MaxInt64 {
			return 0, false
		}
		return int64(v), true
	case float32:
		return floatToID(float64(v))
	case float64:
		return floatToID(v)
	case json.Number:
		id, err := v.Int64()
		return id, err == nil
	case string:
		id, err := strconv.ParseInt(v, 10, 64)
		return id, err == nil
	}
	return 0, false
}

func floatToID(f float64) (int64, bool) {
	if f != math.Trunc(f) || f > math.MaxInt64 || f < math.MinInt64 {
		return 0, false
	}
	return int64(f), true
}
