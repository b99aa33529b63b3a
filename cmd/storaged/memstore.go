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
	"bytes"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/quiverdb/storaged/catalog"
	"github.com/quiverdb/storaged/index"
	"github.com/quiverdb/storaged/kv"
	"github.com/quiverdb/storaged/row"

	"sigs.k8s.io/yaml"
)

// The real KV engine and catalog store are out of this module's scope
// (spec.md §1's non-goals); what follows is a small in-memory stand-in
// so `storaged` has something to bind to and run against without a
// production storage deployment, the way a daemon's own "--dev" mode
// would. It is loaded once at startup from a YAML space description
// and never written to again.

// spaceConfig is the on-disk YAML shape for one space's catalog: the
// tag/edge schemas and secondary indexes the dispatcher validates
// requests against (spec §3).
type spaceConfig struct {
	CatalogVersion uint32           `json:"catalog_version"`
	VIDLen         int              `json:"vid_len"`
	Tags           []entityConfig   `json:"tags"`
	Edges          []entityConfig   `json:"edges"`
}

type entityConfig struct {
	ID      int32          `json:"id"`
	Fields  []fieldConfig  `json:"fields"`
	Indexes []indexConfig  `json:"indexes,omitempty"`
}

type fieldConfig struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable,omitempty"`
}

type indexConfig struct {
	ID      uint32         `json:"id"`
	Name    string         `json:"name"`
	Columns []columnConfig `json:"columns"`
}

type columnConfig struct {
	Name     string `json:"name"`
	Kind     string `json:"kind"` // "tag" or "edge"
	TagID    int32  `json:"tag_id,omitempty"`
	EdgeType int32  `json:"edge_type,omitempty"`
}

func parseFieldType(s string) (row.Type, error) {
	switch s {
	case "bool":
		return row.Bool, nil
	case "int":
		return row.Int, nil
	case "float":
		return row.Float, nil
	case "string":
		return row.String, nil
	case "bytes":
		return row.Bytes, nil
	default:
		return 0, fmt.Errorf("unsupported field type %q", s)
	}
}

func buildSchema(e entityConfig) (*row.Schema, error) {
	fields := make([]row.Field, len(e.Fields))
	for i, f := range e.Fields {
		t, err := parseFieldType(f.Type)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Name, err)
		}
		fields[i] = row.Field{Name: f.Name, Type: t, Nullable: f.Nullable}
	}
	return row.NewSchema(1, fields)
}

func buildCandidates(indexes []indexConfig) []index.Candidate {
	out := make([]index.Candidate, len(indexes))
	for i, ic := range indexes {
		cols := make([]index.Column, len(ic.Columns))
		for j, c := range ic.Columns {
			kind := index.ColTag
			if c.Kind == "edge" {
				kind = index.ColEdge
			}
			cols[j] = index.Column{Name: c.Name, Kind: kind, TagID: c.TagID, EdgeType: c.EdgeType}
		}
		out[i] = index.Candidate{ID: ic.ID, Name: ic.Name, Columns: cols}
	}
	return out
}

// memCatalog is a fixed-at-load-time catalog.Catalog backed by the
// YAML space description loaded at startup.
type memCatalog struct {
	version     uint32
	tagSchemas  map[int32]*row.Schema
	edgeSchemas map[int32]*row.Schema
	tagIndexes  map[int32][]index.Candidate
	edgeIndexes map[int32][]index.Candidate
}

func loadSpaceConfig(path string) (*spaceConfig, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg spaceConfig
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &cfg, nil
}

func newMemCatalog(cfg *spaceConfig) (*memCatalog, error) {
	c := &memCatalog{
		version:     cfg.CatalogVersion,
		tagSchemas:  make(map[int32]*row.Schema),
		edgeSchemas: make(map[int32]*row.Schema),
		tagIndexes:  make(map[int32][]index.Candidate),
		edgeIndexes: make(map[int32][]index.Candidate),
	}
	if c.version == 0 {
		c.version = 1
	}
	for _, tag := range cfg.Tags {
		schema, err := buildSchema(tag)
		if err != nil {
			return nil, fmt.Errorf("tag %d: %w", tag.ID, err)
		}
		c.tagSchemas[tag.ID] = schema
		c.tagIndexes[tag.ID] = buildCandidates(tag.Indexes)
	}
	for _, edge := range cfg.Edges {
		schema, err := buildSchema(edge)
		if err != nil {
			return nil, fmt.Errorf("edge %d: %w", edge.ID, err)
		}
		c.edgeSchemas[edge.ID] = schema
		c.edgeIndexes[edge.ID] = buildCandidates(edge.Indexes)
	}
	return c, nil
}

func (c *memCatalog) Version() uint32 { return c.version }

func (c *memCatalog) TagSchema(tag catalog.TagID) (*row.Schema, bool) {
	s, ok := c.tagSchemas[int32(tag)]
	return s, ok
}

func (c *memCatalog) EdgeSchema(et catalog.EdgeTypeID) (*row.Schema, bool) {
	s, ok := c.edgeSchemas[int32(et)]
	return s, ok
}

func (c *memCatalog) TagIndexes(tag catalog.TagID) []index.Candidate {
	return c.tagIndexes[int32(tag)]
}

func (c *memCatalog) EdgeIndexes(et catalog.EdgeTypeID) []index.Candidate {
	return c.edgeIndexes[int32(et)]
}

func (c *memCatalog) EdgeTypes() []catalog.EdgeTypeID {
	out := make([]catalog.EdgeTypeID, 0, len(c.edgeSchemas))
	for et := range c.edgeSchemas {
		out = append(out, catalog.EdgeTypeID(et))
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// memPartition is one partition's ordered keyspace, guarded for
// concurrent partition-pool access (kv.Reader's own contract).
type memPartition struct {
	mu   sync.RWMutex
	keys [][]byte
	vals [][]byte
}

func (m *memPartition) put(k, v []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := sort.Search(len(m.keys), func(i int) bool { return bytes.Compare(m.keys[i], k) >= 0 })
	m.keys = append(m.keys, nil)
	m.vals = append(m.vals, nil)
	copy(m.keys[i+1:], m.keys[i:])
	copy(m.vals[i+1:], m.vals[i:])
	m.keys[i], m.vals[i] = k, v
}

func (m *memPartition) Get(k []byte) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i, kk := range m.keys {
		if bytes.Equal(kk, k) {
			return m.vals[i], true, nil
		}
	}
	return nil, false, nil
}

func (m *memPartition) Cursor() (kv.Cursor, error) {
	return &memPartCursor{m: m, pos: -1}, nil
}

type memPartCursor struct {
	m   *memPartition
	pos int
}

func (c *memPartCursor) Seek(seek []byte) ([]byte, []byte, error) {
	c.m.mu.RLock()
	defer c.m.mu.RUnlock()
	i := sort.Search(len(c.m.keys), func(i int) bool { return bytes.Compare(c.m.keys[i], seek) >= 0 })
	c.pos = i
	if i >= len(c.m.keys) {
		return nil, nil, nil
	}
	return c.m.keys[i], c.m.vals[i], nil
}

func (c *memPartCursor) Next() ([]byte, []byte, error) {
	c.m.mu.RLock()
	defer c.m.mu.RUnlock()
	c.pos++
	if c.pos >= len(c.m.keys) {
		return nil, nil, nil
	}
	return c.m.keys[c.pos], c.m.vals[c.pos], nil
}

func (c *memPartCursor) Close() {}

// memStore hands out one memPartition per partition id, creating it
// on first touch; this is the PartitionReader a local storaged binds
// to when no external storage engine is wired in.
type memStore struct {
	mu    sync.Mutex
	parts map[uint32]*memPartition
}

func newMemStore() *memStore {
	return &memStore{parts: make(map[uint32]*memPartition)}
}

func (s *memStore) partition(id uint32) *memPartition {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.parts[id]
	if !ok {
		p = &memPartition{}
		s.parts[id] = p
	}
	return p
}
