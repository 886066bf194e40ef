package parallel

import "sync/atomic"

// StopFlag is the shared cooperative-cancellation signal (spec §4.8,
// §5): checked between records, never mid-record. Workers that
// observe it set drain their current chunk and return without
// emitting further rows.
type StopFlag struct {
	flag atomic.Bool
}

func (s *StopFlag) Set()          { s.flag.Store(true) }
func (s *StopFlag) IsSet() bool   { return s.flag.Load() }
func (s *StopFlag) Reset()        { s.flag.Store(false) }
