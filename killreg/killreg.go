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

// Package killreg tracks which in-flight (session, plan) pairs have
// been cancelled, so execution nodes can poll a cheap check (a
// read-locked map lookup) instead of threading a context.Context cancellation channel
// through every row of every node (spec §5, §4.5's "before producing
// each row, a node checks the request's cancellation signal").
package killreg

import "sync"

// Registry answers whether a given session's plan has been killed.
type Registry interface {
	IsKilled(sessionID, planID int64) bool
}

// Map is the in-process Registry implementation: a small set of
// killed (session, plan) pairs, guarded by a RWMutex since kills are
// rare relative to the IsKilled polling rate.
type Map struct {
	mu     sync.RWMutex
	killed map[killKey]struct{}
}

type killKey struct {
	session, plan int64
}

// NewMap returns an empty registry.
func NewMap() *Map {
	return &Map{killed: make(map[killKey]struct{})}
}

// Kill marks (sessionID, planID) as cancelled. Idempotent.
func (m *Map) Kill(sessionID, planID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.killed[killKey{sessionID, planID}] = struct{}{}
}

// Clear removes (sessionID, planID) from the registry, e.g. once its
// request has finished and the id space is free to reuse.
func (m *Map) Clear(sessionID, planID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.killed, killKey{sessionID, planID})
}

// IsKilled implements Registry.
func (m *Map) IsKilled(sessionID, planID int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.killed[killKey{sessionID, planID}]
	return ok
}
