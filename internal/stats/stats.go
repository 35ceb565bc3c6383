/*
   stats calculates traffic statistics for broadcast rooms
   Copyright (C) 2019 Timothy Drysdale <timothy.d.drysdale@gmail.com>

   This program is free software: you can redistribute it and/or modify
   it under the terms of the GNU Affero General Public License as
   published by the Free Software Foundation, either version 3 of the
   License, or (at your option) any later version.

   This program is distributed in the hope that it will be useful,
   but WITHOUT ANY WARRANTY; without even the implied warranty of
   MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
   GNU Affero General Public License for more details.

   You should have received a copy of the GNU Affero General Public License
   along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

package stats

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/eclesh/welford"
)

// Stats holds message statistics for every room that has seen traffic
type Stats struct {
	mu sync.Mutex

	rooms map[string]*Messages

	// Now is a function for getting the time - useful for mocking in test
	Now func() time.Time
}

// Messages represents statistics for messages published in one room
type Messages struct {
	First time.Time
	Last  time.Time
	Bytes *welford.Stats
	Dt    *welford.Stats
}

// RoomReport represents statistics for a room in serialisable form
type RoomReport struct {
	Room  string       `json:"room"`
	First string       `json:"first"`
	Last  string       `json:"last"` //how long ago
	Bytes WelfordStats `json:"bytes"`
	Dt    WelfordStats `json:"dt"`
}

// WelfordStats represents statistical values
type WelfordStats struct {
	Count    uint64  `json:"count"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Mean     float64 `json:"mean"`
	Stddev   float64 `json:"stddev"`
	Variance float64 `json:"variance"`
}

// New returns a pointer to new, empty Stats
func New() *Stats {
	return &Stats{
		rooms: make(map[string]*Messages),
		Now:   time.Now,
	}
}

// Record adds a message of size bytes published in room
func (s *Stats) Record(room string, size int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.Now()

	m, ok := s.rooms[room]

	if !ok {
		m = &Messages{
			First: now,
			Bytes: welford.New(),
			Dt:    welford.New(),
		}
		s.rooms[room] = m
	} else {
		m.Dt.Add(now.Sub(m.Last).Seconds())
	}

	m.Last = now
	m.Bytes.Add(float64(size))
}

// Forget drops the statistics for room
func (s *Stats) Forget(room string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, room)
}

// Count returns how many messages have been recorded for room
func (s *Stats) Count(room string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.rooms[room]
	if !ok {
		return 0
	}
	return m.Bytes.Count()
}

// Report returns statistics for all rooms, sorted by room
func (s *Stats) Report() []RoomReport {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.Now()

	reports := make([]RoomReport, 0, len(s.rooms))

	for room, m := range s.rooms {
		reports = append(reports, RoomReport{
			Room:  room,
			First: m.First.UTC().Format(time.RFC3339),
			Last:  now.Sub(m.Last).String(),
			Bytes: *NewWelford(m.Bytes),
			Dt:    *NewWelford(m.Dt),
		})
	}

	sort.Slice(reports, func(i, j int) bool { return reports[i].Room < reports[j].Room })

	return reports
}

// NewWelford copies the current values out of w. Values that are undefined
// for small sample counts are reported as zero so the result always marshals.
func NewWelford(w *welford.Stats) *WelfordStats {
	r := &WelfordStats{
		Count:    w.Count(),
		Min:      finite(w.Min()),
		Max:      finite(w.Max()),
		Mean:     finite(w.Mean()),
		Stddev:   finite(w.Stddev()),
		Variance: finite(w.Variance()),
	}
	return r
}

func finite(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
