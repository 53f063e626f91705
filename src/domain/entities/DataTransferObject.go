package entities

import (
	"encoding/json"
	"modelrepo/src/domain"
)

const (
	DefaultIDKey   = "id"
	DefaultTypeKey = "type"
)

// Record guarda os campos de um único registro.
type Record map[string]Field

// DataTransferObject wraps one record or a homogeneous list of records and
// gives uniform access to their fields. Whether it is a collection is decided
// at construction and never changes.
type DataTransferObject struct {
	records      []Record
	isCollection bool
	idKey        string
	typeKey      string
}

func NewDataTransferObject(data map[string]any) *DataTransferObject {
	dto := &DataTransferObject{idKey: DefaultIDKey, typeKey: DefaultTypeKey}
	dto.records = []Record{dto.buildRecord(data)}
	return dto
}

func NewDataTransferObjectCollection(data []map[string]any) *DataTransferObject {
	dto := &DataTransferObject{isCollection: true, idKey: DefaultIDKey, typeKey: DefaultTypeKey}
	dto.records = make([]Record, 0, len(data))
	for _, item := range data {
		dto.records = append(dto.records, dto.buildRecord(item))
	}
	return dto
}

func (d *DataTransferObject) buildRecord(data map[string]any) Record {
	record := make(Record, len(data))
	for key, value := range data {
		record[key] = normalizeField(value, d.idKey, d.typeKey)
	}
	return record
}

func (d *DataTransferObject) IsCollection() bool {
	return d.isCollection
}

func (d *DataTransferObject) Len() int {
	return len(d.records)
}

// Get returns the raw value of name without resolving references. For a
// collection it returns one value per record.
func (d *DataTransferObject) Get(name string) (any, error) {
	if !d.isCollection {
		field, ok := d.records[0][name]
		if !ok {
			return nil, &domain.UndefinedPropertyError{Property: name}
		}
		return field.render(d.idKey, d.typeKey), nil
	}

	values := make([]any, 0, len(d.records))
	for _, record := range d.records {
		field, ok := record[name]
		if !ok {
			return nil, &domain.UndefinedPropertyError{Property: name}
		}
		values = append(values, field.render(d.idKey, d.typeKey))
	}
	return values, nil
}

// Has reports whether name is present; for a collection, in every record.
func (d *DataTransferObject) Has(name string) bool {
	if len(d.records) == 0 {
		return false
	}
	for _, record := range d.records {
		if _, ok := record[name]; !ok {
			return false
		}
	}
	return true
}

// Field returns the stored tagged value of name in the first record.
func (d *DataTransferObject) Field(name string) (Field, bool) {
	if len(d.records) == 0 {
		return Field{}, false
	}
	field, ok := d.records[0][name]
	return field, ok
}

// Records returns plain copies of the records.
func (d *DataTransferObject) Records() []map[string]any {
	out := make([]map[string]any, 0, len(d.records))
	for _, record := range d.records {
		out = append(out, d.renderRecord(record))
	}
	return out
}

func (d *DataTransferObject) renderRecord(record Record) map[string]any {
	out := make(map[string]any, len(record))
	for key, field := range record {
		out[key] = field.render(d.idKey, d.typeKey)
	}
	return out
}

func (d *DataTransferObject) MarshalJSON() ([]byte, error) {
	if d.isCollection {
		return json.Marshal(d.Records())
	}
	return json.Marshal(d.renderRecord(d.records[0]))
}
