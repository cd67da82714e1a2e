package rinex

import (
	"errors"
	"fmt"
	"time"

	"example.com/rnxgate/internal/grammar"
)

var (
	// ErrMissingMandatoryField reports a header without its version line,
	// end marker or a mandatory catalog for the file type.
	ErrMissingMandatoryField = errors.New("missing mandatory header field")

	// ErrMergeConflict reports two containers disagreeing on the payload
	// of a shared epoch under the fail-on-conflict policy.
	ErrMergeConflict = errors.New("merge conflict")
)

// MalformedHeaderLineError reports an unparseable header line.
type MalformedHeaderLineError struct {
	Label string
	N     int // 1-based line number
	Err   error
}

func (e *MalformedHeaderLineError) Error() string {
	return fmt.Sprintf("malformed header line %d (%s): %v", e.N, e.Label, e.Err)
}

func (e *MalformedHeaderLineError) Unwrap() error {
	return e.Err
}

// RecordDecodeError reports a body line that cannot be matched to the
// active grammar. The decoder stops at the first one.
type RecordDecodeError struct {
	FileType grammar.FileType
	N        int
	Line     string
	Err      error
}

func (e *RecordDecodeError) Error() string {
	return fmt.Sprintf("%s record at line %d: %v (%q)", e.FileType, e.N, e.Err, e.Line)
}

func (e *RecordDecodeError) Unwrap() error {
	return e.Err
}

// EpochSatelliteCountMismatch reports an epoch line whose declared
// satellite count disagrees with the data lines that followed.
type EpochSatelliteCountMismatch struct {
	Declared int
	Got      int
}

func (e *EpochSatelliteCountMismatch) Error() string {
	return fmt.Sprintf("epoch declares %d satellites, found %d", e.Declared, e.Got)
}

// NonMonotonicEpochError reports an out-of-order insert into an
// append-only container.
type NonMonotonicEpochError struct {
	Prev time.Time
	Next time.Time
}

func (e *NonMonotonicEpochError) Error() string {
	return fmt.Sprintf("epoch %s precedes %s", e.Next.Format(time.RFC3339Nano), e.Prev.Format(time.RFC3339Nano))
}
