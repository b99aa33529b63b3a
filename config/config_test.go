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

package config

import (
	"log"
	"testing"
)

func TestParseReaderPoolKind(t *testing.T) {
	cases := []struct {
		in   string
		want ReaderPoolKind
	}{
		{"io", IO},
		{"cpu", Cpu},
		{"", Cpu},
		{"bogus", Cpu},
	}
	for _, c := range cases {
		if got := ParseReaderPoolKind(c.in, nil); got != c.want {
			t.Errorf("ParseReaderPoolKind(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestParseReaderPoolKindWarnsOnUnknown(t *testing.T) {
	var logged bool
	logger := log.New(testWriter{func(p []byte) { logged = true }}, "", 0)
	ParseReaderPoolKind("nonsense", logger)
	if !logged {
		t.Fatal("expected a warning to be logged for an unrecognised value")
	}
}

type testWriter struct{ fn func([]byte) }

func (w testWriter) Write(p []byte) (int, error) {
	w.fn(p)
	return len(p), nil
}

func TestEffectiveLimitClampsToMax(t *testing.T) {
	c := Config{MaxEdgeReturnedPerVertex: 10}
	requested := int64(50)
	got := c.EffectiveLimit(&requested)
	if got == nil || *got != 10 {
		t.Fatalf("expected clamped limit 10, got %v", got)
	}

	requested = 3
	got = c.EffectiveLimit(&requested)
	if got == nil || *got != 3 {
		t.Fatalf("expected request's own lower limit 3, got %v", got)
	}

	got = c.EffectiveLimit(nil)
	if got == nil || *got != 10 {
		t.Fatalf("expected absent request limit to default to the cap, got %v", got)
	}
}

func TestEffectiveLimitUnboundedWhenNoCap(t *testing.T) {
	c := Config{}
	requested := int64(7)
	got := c.EffectiveLimit(&requested)
	if got == nil || *got != 7 {
		t.Fatalf("expected passthrough of requested limit, got %v", got)
	}
	if got := c.EffectiveLimit(nil); got != nil {
		t.Fatalf("expected nil (no limit at all), got %v", got)
	}
}

func TestShouldPoll(t *testing.T) {
	c := Config{CheckPlanKilledFrequency: 0}
	for i := 0; i < 5; i++ {
		if !c.ShouldPoll(i) {
			t.Fatalf("frequency 0 should poll every row, failed at %d", i)
		}
	}

	c = Config{CheckPlanKilledFrequency: 4}
	if !c.ShouldPoll(0) || c.ShouldPoll(1) || c.ShouldPoll(2) || c.ShouldPoll(3) || !c.ShouldPoll(4) {
		t.Fatal("expected ShouldPoll to be true only on multiples of the frequency")
	}
}

func TestDefaultSizesReaderHandlersToCoreCount(t *testing.T) {
	d := Default()
	if d.ReaderHandlers < 1 {
		t.Fatalf("expected at least one reader handler, got %d", d.ReaderHandlers)
	}
}
