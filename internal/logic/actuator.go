package logic

import "time"

// Scheduler turns the per-tick wet/dry classification into debounced actuator
// commands. It tracks the current wet or dry streak and the time of the last
// move; a move needs both a long enough streak and a long enough dwell.
type Scheduler struct {
	p ActuatorParams

	wetSince   time.Time // zero when unset
	drySince   time.Time // zero when unset
	lastChange time.Time
	atWet      bool
	counts     TransitionCounts
}

// NewScheduler creates a scheduler at the dry position. now counts as the
// last actuator move, so the dry dwell runs from boot.
func NewScheduler(p ActuatorParams, now time.Time) *Scheduler {
	return &Scheduler{
		p:          p,
		lastChange: now,
	}
}

// Boot returns the command that puts the actuator at its initial position.
func (s *Scheduler) Boot() Command {
	return Command{
		Time:     s.lastChange,
		Position: s.Position(),
		Angle:    s.p.Angle(s.Position()),
		Source:   SourceBoot,
	}
}

// Step feeds one classification into the scheduler.
// Returns a command if the actuator should move, nil otherwise.
func (s *Scheduler) Step(wet bool, now time.Time) *Command {
	if wet {
		if s.wetSince.IsZero() {
			s.wetSince = now
		}
		s.drySince = time.Time{}
	} else {
		if s.drySince.IsZero() {
			s.drySince = now
		}
		s.wetSince = time.Time{}
	}

	sinceMove := now.Sub(s.lastChange)

	if !s.atWet {
		if !s.wetSince.IsZero() && now.Sub(s.wetSince) >= s.p.WetDebounce && sinceMove >= s.p.MinDryDwell {
			s.counts.ToWet++
			return s.move(true, now, SourceAuto)
		}
		return nil
	}

	if !s.drySince.IsZero() && now.Sub(s.drySince) >= s.p.DryDebounce && sinceMove >= s.p.MinWetDwell {
		s.counts.ToDry++
		return s.move(false, now, SourceAuto)
	}
	return nil
}

// Override moves the actuator immediately, ignoring debounce and dwell.
// The move restarts the dwell timer; the wet/dry streak timers are left as
// they are, so automatic control resumes once the dwell has passed.
func (s *Scheduler) Override(pos Position, now time.Time) Command {
	s.counts.Overrides++
	return *s.move(pos == PositionWet, now, SourceOverride)
}

func (s *Scheduler) move(wet bool, now time.Time, src Source) *Command {
	s.atWet = wet
	s.lastChange = now
	pos := s.Position()
	return &Command{
		Time:     now,
		Position: pos,
		Angle:    s.p.Angle(pos),
		Source:   src,
	}
}

// Position returns the current commanded position.
func (s *Scheduler) Position() Position {
	if s.atWet {
		return PositionWet
	}
	return PositionDry
}

// Angle returns the current commanded servo angle.
func (s *Scheduler) Angle() int {
	return s.p.Angle(s.Position())
}

// LastChange returns the time of the last commanded move.
func (s *Scheduler) LastChange() time.Time {
	return s.lastChange
}

// Streaks returns the start of the current wet and dry streaks (zero when unset).
func (s *Scheduler) Streaks() (wetSince, drySince time.Time) {
	return s.wetSince, s.drySince
}

// Counts returns a copy of the transition counters.
func (s *Scheduler) Counts() TransitionCounts {
	return s.counts
}
