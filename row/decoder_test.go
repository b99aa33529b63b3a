// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package row

import (
	"testing"

	"github.com/quiverdb/storaged/expr"
	"github.com/quiverdb/storaged/ion"
)

// encodeBlob builds a raw value blob in field order, matching the
// wire layout Decoder.Decode expects: a compression-flag byte
// followed by an ion struct whose field labels are interned in
// exactly the order a Decoder built from schema would intern them.
func encodeBlob(t *testing.T, schema *Schema, set map[string]ion.Datum) []byte {
	t.Helper()
	var st ion.Symtab
	for _, f := range schema.Fields {
		st.Intern(f.Name)
	}
	var buf ion.Buffer
	buf.BeginStruct(-1)
	for _, f := range schema.Fields {
		d, ok := set[f.Name]
		if !ok {
			continue
		}
		buf.BeginField(st.Intern(f.Name))
		d.Encode(&buf, &st)
	}
	buf.EndStruct()
	return append([]byte{byte(flagRaw)}, buf.Bytes()...)
}

func testSchema(t *testing.T) *Schema {
	t.Helper()
	s, err := NewSchema(1, []Field{
		{Name: "name", Type: String},
		{Name: "age", Type: Int, Nullable: true},
		{Name: "country", Type: String, Default: &expr.Constant{Value: expr.StringValue("unknown")}},
		{Name: "expires_at", Type: Int, TTLCol: true, Default: &expr.Constant{Value: expr.IntValue(0)}},
	})
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestDecodeAllPresentFields(t *testing.T) {
	s := testSchema(t)
	d := NewDecoder(s, 1000)
	blob := encodeBlob(t, s, map[string]ion.Datum{
		"name":       ion.String("Tim Duncan"),
		"age":        ion.Int(42),
		"country":    ion.String("Virgin Islands"),
		"expires_at": ion.Int(9999),
	})
	r, err := d.Decode(blob)
	if err != nil {
		t.Fatal(err)
	}
	if r.Expired() {
		t.Fatal("row should not be expired")
	}
	v, ok := r.Prop("name")
	if !ok {
		t.Fatal("expected name present")
	}
	if s, _ := v.AsString(); s != "Tim Duncan" {
		t.Fatalf("got %v", v)
	}
}

func TestDecodeMissingFieldUsesDefault(t *testing.T) {
	s := testSchema(t)
	d := NewDecoder(s, 1000)
	blob := encodeBlob(t, s, map[string]ion.Datum{
		"name":       ion.String("Tony Parker"),
		"expires_at": ion.Int(9999),
	})
	r, err := d.Decode(blob)
	if err != nil {
		t.Fatal(err)
	}
	v, ok := r.Prop("country")
	if !ok {
		t.Fatal("expected default-backed field to be present")
	}
	if got, _ := v.AsString(); got != "unknown" {
		t.Fatalf("got %v", got)
	}
	// age is nullable with no default: missing means Null.
	age, ok := r.Prop("age")
	if !ok || !age.IsNull() {
		t.Fatalf("expected age to decode as null, got %v ok=%v", age, ok)
	}
}

func TestDecodeExpiredRowReportsEmpty(t *testing.T) {
	s := testSchema(t)
	d := NewDecoder(s, 10_000)
	blob := encodeBlob(t, s, map[string]ion.Datum{
		"name":       ion.String("Manu Ginobili"),
		"expires_at": ion.Int(1),
	})
	r, err := d.Decode(blob)
	if err != nil {
		t.Fatal(err)
	}
	if !r.Expired() {
		t.Fatal("expected row to be expired")
	}
	if _, ok := r.Prop("name"); ok {
		t.Fatal("expired row must report every property absent")
	}
}

func TestDecodeMissingNonNullableNoDefaultErrors(t *testing.T) {
	s, err := NewSchema(1, []Field{
		{Name: "required", Type: String},
	})
	if err != nil {
		t.Fatal(err)
	}
	d := NewDecoder(s, 0)
	blob := encodeBlob(t, s, map[string]ion.Datum{})
	if _, err := d.Decode(blob); err == nil {
		t.Fatal("expected error decoding a missing required field with no default")
	}
}

func TestDecoderCachesDefaultAcrossRows(t *testing.T) {
	s := testSchema(t)
	d := NewDecoder(s, 1000)
	blob := encodeBlob(t, s, map[string]ion.Datum{
		"name":       ion.String("Dwyane Wade"),
		"expires_at": ion.Int(9999),
	})
	if _, err := d.Decode(blob); err != nil {
		t.Fatal(err)
	}
	if !d.defaultsComputed[2] {
		t.Fatal("expected country's default to be memoized after first decode")
	}
	// Mutate the cached slot directly to prove the second Decode call
	// reuses it rather than re-evaluating the Default node.
	d.defaults[2] = expr.StringValue("cached")
	r2, err := d.Decode(blob)
	if err != nil {
		t.Fatal(err)
	}
	v, _ := r2.Prop("country")
	if got, _ := v.AsString(); got != "cached" {
		t.Fatalf("expected cached default to be reused, got %v", got)
	}
}
