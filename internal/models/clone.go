package models

// Clone returns a deep copy of the match. Store mutations operate on a clone
// and swap the pointer, so readers holding the old *Match never observe a
// partial write.
func (m *Match) Clone() *Match {
	out := *m
	out.Innings = make([]Innings, len(m.Innings))
	for i := range m.Innings {
		out.Innings[i] = m.Innings[i].Clone()
	}
	return &out
}

// Clone returns a deep copy of the innings.
func (inn Innings) Clone() Innings {
	out := inn
	out.Batsmen = append([]Batsman(nil), inn.Batsmen...)
	out.Bowlers = append([]Bowler(nil), inn.Bowlers...)
	out.OverHistory = make([]Over, len(inn.OverHistory))
	for i, over := range inn.OverHistory {
		over.Balls = append([]Ball(nil), over.Balls...)
		out.OverHistory[i] = over
	}
	return out
}
