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

// Package ion is a small self-describing tagged-buffer encoding used to
// serialize expression trees, plan nodes, and cursor blobs so that they
// can round-trip across the RPC boundary and across process restarts.
//
// It borrows the API shape (not the wire format) of an Amazon-Ion-style
// buffer: a Symtab interns repeated field/column names so they are only
// spelled out once per message, and a Buffer builds nested
// struct/list/scalar values with Begin*/End* calls.
package ion

// Symbol is an interned string id.
type Symbol uint32

// Symtab interns strings to small integers so that repeated field
// and column names are not re-spelled on the wire.
type Symtab struct {
	interned []string
	toindex  map[string]Symbol
}

func (s *Symtab) init() {
	if s.toindex == nil {
		s.toindex = make(map[string]Symbol)
	}
}

// Intern returns the Symbol associated with str, allocating
// a new one if str has not been seen before.
func (s *Symtab) Intern(str string) Symbol {
	s.init()
	if sym, ok := s.toindex[str]; ok {
		return sym
	}
	sym := Symbol(len(s.interned))
	s.interned = append(s.interned, str)
	s.toindex[str] = sym
	return sym
}

// Get returns the string associated with sym, or ("", false)
// if sym is not a valid symbol in this table.
func (s *Symtab) Get(sym Symbol) (string, bool) {
	if int(sym) < 0 || int(sym) >= len(s.interned) {
		return "", false
	}
	return s.interned[sym], true
}

// Reset clears the symbol table.
func (s *Symtab) Reset() {
	s.interned = s.interned[:0]
	for k := range s.toindex {
		delete(s.toindex, k)
	}
}

// Len returns the number of interned symbols.
func (s *Symtab) Len() int { return len(s.interned) }
