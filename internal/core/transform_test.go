package core

import (
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/tabimport/internal/schema"
)

func fixedNow(t *testing.T, at time.Time) {
	t.Helper()
	prev := now
	now = func() time.Time { return at }
	t.Cleanup(func() { now = prev })
}

func TestPrepare_Coercion(t *testing.T) {
	columns := []schema.Column{
		{Name: "price", DataType: schema.TypeDecimal},
		{Name: "qty", DataType: schema.TypeInt},
		{Name: "active", DataType: schema.TypeBoolean},
		{Name: "born", DataType: schema.TypeDate},
		{Name: "seen", DataType: schema.TypeDatetime},
		{Name: "name", DataType: schema.TypeVarchar},
	}
	mappings := []ColumnMapping{
		MapTo("Price", "price"), MapTo("Qty", "qty"), MapTo("Active", "active"),
		MapTo("Born", "born"), MapTo("Seen", "seen"), MapTo("Name", "name"),
	}

	recs := Prepare([][]any{{"42.5", "7", "Yes", "3/15/2024", "2024-03-15 10:30:00", "  Ada  "}}, mappings, columns)
	if len(recs) != 1 {
		t.Fatalf("got %d records, want 1", len(recs))
	}
	rec := recs[0]

	if v, ok := rec["price"].(float64); !ok || v != 42.5 {
		t.Errorf("price = %#v, want float64 42.5", rec["price"])
	}
	if v, ok := rec["qty"].(int64); !ok || v != 7 {
		t.Errorf("qty = %#v, want int64 7", rec["qty"])
	}
	if v, ok := rec["active"].(bool); !ok || !v {
		t.Errorf("active = %#v, want true", rec["active"])
	}
	if rec["born"] != "2024-03-15" {
		t.Errorf("born = %#v, want 2024-03-15", rec["born"])
	}
	if rec["seen"] != "2024-03-15T10:30:00.000Z" {
		t.Errorf("seen = %#v, want 2024-03-15T10:30:00.000Z", rec["seen"])
	}
	if rec["name"] != "Ada" {
		t.Errorf("name = %#v, want Ada", rec["name"])
	}
}

func TestPrepare_OmitsEmptyAndInvalid(t *testing.T) {
	columns := []schema.Column{
		{Name: "qty", DataType: schema.TypeInt},
		{Name: "note", DataType: schema.TypeText},
		{Name: "unused", DataType: schema.TypeText},
	}
	mappings := []ColumnMapping{MapTo("Qty", "qty"), MapTo("Note", "note"), Unmapped("Other")}

	rec := Prepare([][]any{{"abc", "", "ignored"}}, mappings, columns)[0]

	if len(rec) != 0 {
		t.Errorf("record = %v, want empty", rec)
	}
}

func TestPrepare_BooleanIsStrictlyTruthy(t *testing.T) {
	columns := []schema.Column{{Name: "b", DataType: schema.TypeBoolean}}
	mappings := []ColumnMapping{MapTo("B", "b")}

	for in, want := range map[string]bool{"TRUE": true, "y": true, "1": true, "no": false, "0": false, "maybe": false} {
		rec := Prepare([][]any{{in}}, mappings, columns)[0]
		if rec["b"] != want {
			t.Errorf("%q -> %#v, want %v", in, rec["b"], want)
		}
	}
}

func TestPrepare_Defaults(t *testing.T) {
	columns := []schema.Column{
		{Name: "status", DataType: schema.TypeEnum, Required: true, DefaultValue: "pending"},
		{Name: "qty", DataType: schema.TypeInt, Required: true, DefaultValue: "0"},
		{Name: "tier", DataType: schema.TypeVarchar},
	}
	mappings := []ColumnMapping{
		MapTo("Status", "status"),
		MapTo("Qty", "qty"),
		{FileHeader: "Tier", TableColumn: ptr("tier"), UseDefaultValue: true, DefaultValue: "gold"},
	}

	rec := Prepare([][]any{{"", nil, ""}}, mappings, columns)[0]

	if rec["status"] != "pending" {
		t.Errorf("status = %#v, want pending", rec["status"])
	}
	if rec["qty"] != int64(0) {
		t.Errorf("qty = %#v, want int64 0", rec["qty"])
	}
	if rec["tier"] != "gold" {
		t.Errorf("tier = %#v, want gold", rec["tier"])
	}
}

func TestPrepare_SyntheticFallbacks(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	fixedNow(t, at)

	columns := []schema.Column{
		{Name: "first_name", DataType: schema.TypeVarchar, Required: true},
		{Name: "last_name", DataType: schema.TypeVarchar},
		{Name: "email", DataType: schema.TypeVarchar, Required: true},
		{Name: "status", DataType: schema.TypeEnum, Required: true},
		{Name: "created_at", DataType: schema.TypeDatetime, Required: true},
		{Name: "risk_score", DataType: schema.TypeInt, Required: true},
		{Name: "phone", DataType: schema.TypeVarchar, Required: true},
		{Name: "region", DataType: schema.TypeVarchar, Required: true},
	}
	mappings := []ColumnMapping{MapTo("First", "first_name"), MapTo("Last", "last_name")}

	rec := Prepare([][]any{{"Mary Ann", "O'Neil"}}, mappings, columns)[0]

	want := PreparedRecord{
		"first_name": "Mary Ann",
		"last_name":  "O'Neil",
		"email":      "maryann.oneil@placeholder.local",
		"status":     "active",
		"created_at": "2025-06-01T12:00:00.000Z",
		"risk_score": int64(0),
		"phone":      "000-000-0000",
	}
	if len(rec) != len(want) {
		t.Errorf("record = %v, want %v", rec, want)
	}
	for k, v := range want {
		if rec[k] != v {
			t.Errorf("%s = %#v, want %#v", k, rec[k], v)
		}
	}
	if _, ok := rec["region"]; ok {
		t.Error("region has no fallback and should stay absent")
	}
}

func TestPrepare_PlaceholderEmailWithoutNames(t *testing.T) {
	columns := []schema.Column{{Name: "email", DataType: schema.TypeVarchar, Required: true}}

	rec := Prepare([][]any{{}}, nil, columns)[0]

	email, _ := rec["email"].(string)
	if !strings.HasPrefix(email, "user-") || !strings.HasSuffix(email, "@"+PlaceholderEmailDomain) {
		t.Errorf("email = %q, want user-<id>@%s", email, PlaceholderEmailDomain)
	}
}

func TestPrepare_OneRecordPerRow(t *testing.T) {
	columns := []schema.Column{{Name: "a", DataType: schema.TypeVarchar}}
	recs := Prepare([][]any{{"1"}, {""}, {"3"}}, []ColumnMapping{MapTo("A", "a")}, columns)
	if len(recs) != 3 {
		t.Errorf("got %d records, want 3", len(recs))
	}
}

func TestCoerce_DateIdempotent(t *testing.T) {
	dateCol := schema.Column{Name: "d", DataType: schema.TypeDate}
	timeCol := schema.Column{Name: "t", DataType: schema.TypeDatetime}
	stampCol := schema.Column{Name: "s", DataType: schema.TypeTimestamp}

	inputs := []struct {
		col   schema.Column
		value string
	}{
		{dateCol, "3/15/2024"},
		{dateCol, "March 15, 2024"},
		{dateCol, "2024-03-15T23:59:59Z"},
		{timeCol, "2024-03-15 10:30"},
		{timeCol, "2024-03-15T10:30:00.123+05:30"},
		{stampCol, "3/15/2024 2:05 PM"},
	}

	for _, in := range inputs {
		once := Coerce(in.value, in.col)
		if once == nil {
			t.Fatalf("Coerce(%q) = nil", in.value)
		}
		twice := Coerce(once, in.col)
		if twice != once {
			t.Errorf("Coerce(Coerce(%q)) = %#v, want %#v", in.value, twice, once)
		}
	}
}
