package chain

import (
	"fmt"
	"io/fs"
	"syscall"

	"github.com/pkg/errors"
)

// Sentinel errors for package chain.
// Every *Error matches exactly one of the kind sentinels with errors.Is().
var (
	// Kind sentinels
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrConflict      = errors.New("snapshot already exists at index")
	ErrIOFailure     = errors.New("i/o failure")
	ErrInconsistent  = errors.New("version chain out of sync with file")
	ErrReservedName  = errors.New("name is reserved for version chain artifacts")

	// Configuration errors
	ErrRelativeRoot = errors.New("storage root must be an absolute path")
	ErrRelativePath = errors.New("client path must be absolute")

	// Counter record errors
	ErrBadCounter = errors.New("malformed counter record")
)

// Kind classifies a chain failure into the closed set callers translate.
type Kind int

const (
	KindIOFailure Kind = iota
	KindNotFound
	KindAlreadyExists
	KindConflict
	KindInconsistent
	KindReservedName
)

var kindSentinels = map[Kind]error{
	KindIOFailure:     ErrIOFailure,
	KindNotFound:      ErrNotFound,
	KindAlreadyExists: ErrAlreadyExists,
	KindConflict:      ErrConflict,
	KindInconsistent:  ErrInconsistent,
	KindReservedName:  ErrReservedName,
}

func (k Kind) String() string {
	return kindSentinels[k].Error()
}

// Error is a failed chain or file operation on one path.
type Error struct {
	Kind Kind
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s %s: %s", e.Op, e.Path, e.Kind)
	}
	return fmt.Sprintf("%s %s: %s: %v", e.Op, e.Path, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel of the error's kind.
func (e *Error) Is(target error) bool {
	return kindSentinels[e.Kind] == target
}

// Errno returns the backing store's errno beneath err, if there is one.
func Errno(err error) (syscall.Errno, bool) {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno, true
	}
	return 0, false
}

// wrap classifies a backing store error. Missing and existing paths keep
// their own kinds so that callers can tell them apart from real I/O faults.
func wrap(op, path string, err error) error {
	if err == nil {
		return nil
	}
	var ce *Error
	if errors.As(err, &ce) {
		return err
	}
	kind := KindIOFailure
	switch {
	case errors.Is(err, fs.ErrNotExist):
		kind = KindNotFound
	case errors.Is(err, fs.ErrExist):
		kind = KindAlreadyExists
	}
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}

func inconsistent(op, path string, err error) error {
	return &Error{Kind: KindInconsistent, Op: op, Path: path, Err: err}
}

// KindOf reports the kind of the outermost *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind, true
	}
	return 0, false
}
