package core

import (
	"errors"
	"reflect"
	"testing"
)

func TestNewTable_DuplicateColumn(t *testing.T) {
	_, err := NewTable(Column{Name: "a"}, Column{Name: "a"})
	if !errors.Is(err, ErrInvalidTable) {
		t.Errorf("NewTable() error = %v, want ErrInvalidTable", err)
	}
}

func TestTable_AppendAndSet(t *testing.T) {
	table, err := NewTable(Column{Name: "id", Kind: KindInt}, Column{Name: "name"})
	if err != nil {
		t.Fatalf("NewTable() error = %v", err)
	}

	if err := table.Append(Row{"id": 1, "name": "a"}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := table.Append(Row{"id": int32(2)}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := table.Append(Row{"bogus": 1}); !errors.Is(err, ErrInvalidTable) {
		t.Errorf("Append(unknown column) error = %v, want ErrInvalidTable", err)
	}
	if err := table.Append(Row{"id": []byte("x")}); !errors.Is(err, ErrInvalidTable) {
		t.Errorf("Append(bad value) error = %v, want ErrInvalidTable", err)
	}

	if table.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", table.Len())
	}
	if v, _ := table.Value(1, "id"); v != int64(2) {
		t.Errorf("id[1] = %#v, want int64(2)", v)
	}
	if v, _ := table.Value(1, "name"); v != nil {
		t.Errorf("name[1] = %#v, want nil", v)
	}

	if err := table.Set(1, "name", "b"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := table.Set(5, "name", "b"); err == nil {
		t.Error("Set() out of range should fail")
	}
	if err := table.Set(0, "nope", "b"); err == nil {
		t.Error("Set() unknown column should fail")
	}
	if _, err := table.Value(0, "nope"); err == nil {
		t.Error("Value() unknown column should fail")
	}

	records, err := table.Records()
	if err != nil {
		t.Fatalf("Records() error = %v", err)
	}
	want := [][]string{{"id", "name"}, {"1", "a"}, {"2", "b"}}
	if !reflect.DeepEqual(records, want) {
		t.Errorf("Records() = %v, want %v", records, want)
	}
}

func TestTable_ColumnsIsCopy(t *testing.T) {
	table, _ := NewTable(Column{Name: "a", Kind: KindInt})
	cols := table.Columns()
	cols[0].Name = "changed"

	if _, ok := table.Column("a"); !ok {
		t.Error("mutating Columns() result changed the table")
	}
}

func TestKind_String(t *testing.T) {
	tests := map[Kind]string{
		KindString: "string",
		KindInt:    "int",
		KindFloat:  "float",
		KindBool:   "bool",
	}
	for k, want := range tests {
		if got := k.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", k, got, want)
		}
	}
}
