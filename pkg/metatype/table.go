package metatype

import (
	"fmt"
	"strings"

	"github.com/openfroyo/detyped/pkg/faults"
)

// TableType is a set of composite rows uniquely identified by an ordered list
// of index columns.
type TableType struct {
	baseType
	rowType    *CompositeType
	indexNames []string
}

// NewTableType requires at least one index column; every column must be a
// distinct item of rowType.
func NewTableType(typeName, description string, rowType *CompositeType, indexNames ...string) (*TableType, error) {
	if typeName == "" {
		return nil, faults.NewSchemaError("table type name is empty").WithDetail("field", "typeName")
	}
	if rowType == nil {
		return nil, faults.NewSchemaError("table %s has no row type", typeName).WithDetail("field", "rowType")
	}
	if len(indexNames) == 0 {
		return nil, faults.NewSchemaError("table %s has no index columns", typeName).WithDetail("field", "indexNames")
	}
	seen := make(map[string]struct{}, len(indexNames))
	for _, name := range indexNames {
		if !rowType.HasItem(name) {
			return nil, faults.NewSchemaError("table %s index column %q is not an item of %s", typeName, name, rowType.TypeName()).
				WithDetail("field", "indexNames")
		}
		if _, dup := seen[name]; dup {
			return nil, faults.NewSchemaError("table %s repeats index column %q", typeName, name).
				WithCode(faults.ErrCodeDuplicate).WithDetail("field", "indexNames")
		}
		seen[name] = struct{}{}
	}
	names := make([]string, len(indexNames))
	copy(names, indexNames)
	return &TableType{
		baseType: baseType{
			className:   ClassTable,
			typeName:    typeName,
			description: description,
			kind:        KindTable,
		},
		rowType:    rowType,
		indexNames: names,
	}, nil
}

// RowType returns the composite type of rows.
func (t *TableType) RowType() *CompositeType { return t.rowType }

// IndexNames returns the index columns in order.
func (t *TableType) IndexNames() []string {
	out := make([]string, len(t.indexNames))
	copy(out, t.indexNames)
	return out
}

// IsValue accepts a *TableValue of an equal type whose rows are valid.
func (t *TableType) IsValue(v interface{}) bool {
	tv, ok := v.(*TableValue)
	if !ok || tv == nil {
		return false
	}
	if !t.Equal(tv.metaType) {
		return false
	}
	for _, e := range tv.index.entries {
		if !t.rowType.IsValue(e.value) {
			return false
		}
	}
	return true
}

// Equal compares type name, row type and the ordered index columns.
func (t *TableType) Equal(other MetaType) bool {
	o, ok := other.(*TableType)
	if !ok || o == nil {
		return false
	}
	if t == o {
		return true
	}
	if t.typeName != o.typeName || len(t.indexNames) != len(o.indexNames) {
		return false
	}
	for i := range t.indexNames {
		if t.indexNames[i] != o.indexNames[i] {
			return false
		}
	}
	return t.rowType.Equal(o.rowType)
}

// Hash implements MetaType.
func (t *TableType) Hash() int32 {
	h := hashString(t.typeName) + 31*t.rowType.Hash()
	for _, n := range t.indexNames {
		h = 31*h + hashString(n)
	}
	return h
}

func (t *TableType) String() string {
	return fmt.Sprintf("%s<%s by %s>", t.typeName, t.rowType.TypeName(), strings.Join(t.indexNames, ","))
}

// TableValue maps composite keys, the tuple of index column values, to rows.
type TableValue struct {
	metaType *TableType
	index    *valueIndex
}

// NewTableValue creates a table and puts rows into it.
func NewTableValue(t *TableType, rows ...*CompositeValue) (*TableValue, error) {
	if t == nil {
		return nil, faults.NewSchemaError("null table meta type")
	}
	tv := &TableValue{metaType: t, index: newValueIndex()}
	for _, r := range rows {
		if err := tv.Put(r); err != nil {
			return nil, err
		}
	}
	return tv, nil
}

// MetaType implements MetaValue.
func (tv *TableValue) MetaType() MetaType { return tv.metaType }

// TableType returns the bound type.
func (tv *TableValue) TableType() *TableType { return tv.metaType }

// CalculateIndex returns the key tuple of row. Every index column must be set.
func (tv *TableValue) CalculateIndex(row *CompositeValue) ([]MetaValue, error) {
	if row == nil {
		return nil, faults.NewValidationError("null table row")
	}
	if !tv.metaType.rowType.IsValue(row) {
		return nil, faults.NewValidationError("row %s is not a %s", row, tv.metaType.rowType.TypeName())
	}
	key := make([]MetaValue, len(tv.metaType.indexNames))
	for i, name := range tv.metaType.indexNames {
		v := row.items[name]
		if IsNil(v) {
			return nil, faults.NewValidationError("row has no value for index column %s", name).WithDetail("item", name)
		}
		key[i] = CloneValue(v)
	}
	return key, nil
}

// Put adds a copy of row. A row whose key is already present is rejected.
func (tv *TableValue) Put(row *CompositeValue) error {
	key, err := tv.CalculateIndex(row)
	if err != nil {
		return err
	}
	if tv.index.find(key) >= 0 {
		return faults.NewValidationError("table %s already has a row for key %s", tv.metaType.typeName, formatKey(key)).
			WithCode(faults.ErrCodeDuplicate)
	}
	tv.index.put(key, row.Clone())
	return nil
}

// Replace adds or overwrites a copy of row and returns the previous row, if
// any.
func (tv *TableValue) Replace(row *CompositeValue) (*CompositeValue, error) {
	key, err := tv.CalculateIndex(row)
	if err != nil {
		return nil, err
	}
	old, _ := tv.index.put(key, row.Clone())
	if IsNil(old) {
		return nil, nil
	}
	return old.(*CompositeValue), nil
}

// Get returns a copy of the row for the key tuple, nil if absent.
func (tv *TableValue) Get(key ...MetaValue) *CompositeValue {
	v, ok := tv.index.get(key)
	if !ok {
		return nil
	}
	return v.Clone().(*CompositeValue)
}

// ContainsKey reports whether the key tuple is present.
func (tv *TableValue) ContainsKey(key ...MetaValue) bool {
	return tv.index.find(key) >= 0
}

// Remove deletes and returns the row for the key tuple.
func (tv *TableValue) Remove(key ...MetaValue) *CompositeValue {
	v, ok := tv.index.remove(key)
	if !ok {
		return nil
	}
	return v.(*CompositeValue)
}

// Len returns the number of rows.
func (tv *TableValue) Len() int { return tv.index.len() }

// Rows returns copies of the rows in insertion order.
func (tv *TableValue) Rows() []*CompositeValue {
	out := make([]*CompositeValue, 0, tv.index.len())
	for _, e := range tv.index.entries {
		out = append(out, e.value.Clone().(*CompositeValue))
	}
	return out
}

// Keys returns the key tuples in insertion order.
func (tv *TableValue) Keys() [][]MetaValue {
	out := make([][]MetaValue, 0, tv.index.len())
	for _, e := range tv.index.entries {
		out = append(out, e.key)
	}
	return out
}

// Equal implements MetaValue.
func (tv *TableValue) Equal(other MetaValue) bool {
	o, ok := other.(*TableValue)
	if !ok || o == nil {
		return false
	}
	return tv.metaType.Equal(o.metaType) && tv.index.equal(o.index)
}

// Hash implements MetaValue.
func (tv *TableValue) Hash() int32 {
	return tv.metaType.Hash() + tv.index.hash()
}

// Clone implements MetaValue.
func (tv *TableValue) Clone() MetaValue {
	return &TableValue{metaType: tv.metaType, index: tv.index.clone()}
}

func (tv *TableValue) String() string {
	return tv.metaType.typeName + ":" + tv.index.String()
}

func (tv *TableValue) sealedValue() {}

func formatKey(key []MetaValue) string {
	parts := make([]string, len(key))
	for i, k := range key {
		parts[i] = valueString(k)
	}
	return "(" + strings.Join(parts, ",") + ")"
}
