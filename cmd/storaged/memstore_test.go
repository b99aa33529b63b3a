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

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/quiverdb/storaged/catalog"
)

const testSpaceYAML = `
catalog_version: 3
vid_len: 4
tags:
  - id: 7
    fields:
      - {name: name, type: string, nullable: true}
      - {name: points, type: int, nullable: true}
    indexes:
      - id: 1
        name: by_points
        columns:
          - {name: points, kind: tag, tag_id: 7}
edges:
  - id: 1
    fields:
      - {name: since, type: int}
`

func writeTestSpace(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "space.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadSpaceConfigAndBuildCatalog(t *testing.T) {
	path := writeTestSpace(t, testSpaceYAML)
	cfg, err := loadSpaceConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.VIDLen != 4 {
		t.Fatalf("expected vid_len 4, got %d", cfg.VIDLen)
	}

	cat, err := newMemCatalog(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if cat.Version() != 3 {
		t.Fatalf("expected catalog version 3, got %d", cat.Version())
	}

	schema, ok := cat.TagSchema(catalog.TagID(7))
	if !ok {
		t.Fatal("expected tag 7 to be declared")
	}
	if _, _, ok := schema.FieldByName("points"); !ok {
		t.Fatal("expected schema to carry a points field")
	}

	idx := cat.TagIndexes(catalog.TagID(7))
	if len(idx) != 1 || idx[0].Name != "by_points" {
		t.Fatalf("expected one by_points index, got %#v", idx)
	}

	if _, ok := cat.EdgeSchema(catalog.EdgeTypeID(1)); !ok {
		t.Fatal("expected edge type 1 to be declared")
	}
	if _, ok := cat.TagSchema(catalog.TagID(99)); ok {
		t.Fatal("tag 99 should not be declared")
	}
}

func TestLoadSpaceConfigRejectsUnknownFieldType(t *testing.T) {
	path := writeTestSpace(t, `
catalog_version: 1
vid_len: 4
tags:
  - id: 1
    fields:
      - {name: bad, type: timestamp}
`)
	cfg, err := loadSpaceConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := newMemCatalog(cfg); err == nil {
		t.Fatal("expected an error for an unsupported field type")
	}
}

func TestMemStorePartitionRoundTrip(t *testing.T) {
	store := newMemStore()
	p := store.partition(1)
	p.put([]byte("b"), []byte("vb"))
	p.put([]byte("a"), []byte("va"))
	p.put([]byte("c"), []byte("vc"))

	v, ok, err := p.Get([]byte("b"))
	if err != nil || !ok || string(v) != "vb" {
		t.Fatalf("Get: got %q, %v, %v", v, ok, err)
	}

	cur, err := p.Cursor()
	if err != nil {
		t.Fatal(err)
	}
	defer cur.Close()
	k, v, err := cur.Seek([]byte("aa"))
	if err != nil {
		t.Fatal(err)
	}
	if string(k) != "b" || string(v) != "vb" {
		t.Fatalf("Seek(aa): got key=%q val=%q", k, v)
	}
	k, v, err = cur.Next()
	if err != nil {
		t.Fatal(err)
	}
	if string(k) != "c" || string(v) != "vc" {
		t.Fatalf("Next: got key=%q val=%q", k, v)
	}
	k, _, err = cur.Next()
	if err != nil {
		t.Fatal(err)
	}
	if k != nil {
		t.Fatalf("expected exhausted cursor, got key=%q", k)
	}

	// Partitions are created lazily and independently.
	other := store.partition(2)
	if _, ok, _ := other.Get([]byte("b")); ok {
		t.Fatal("expected partition 2 to start empty")
	}
}
