package gistcache

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	// ErrEmptyContent: upstream answered 200 but without a div.
	ErrEmptyContent = errors.New("gistcache: upstream returned no content")
	// ErrUnexpectedStatus: upstream answered with anything but 200.
	ErrUnexpectedStatus = errors.New("gistcache: unexpected upstream status")
	// ErrNoParser: OnContentChanged needs Options.Parser.
	ErrNoParser = errors.New("gistcache: no parser configured")
)

// InputError is the only error Render returns: the request itself is
// malformed. Nothing is cached for it.
type InputError struct {
	Field  string
	Value  string
	Reason string
}

func (e *InputError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("gistcache: invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("gistcache: invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// FetchError wraps every upstream failure. Render recovers from it; it is
// only visible to Fetcher callers and hooks.
type FetchError struct {
	Key    SnippetKey
	URL    string
	Status int // 0 when no response was received
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("gistcache: fetch %s: status %d: %v", e.URL, e.Status, e.Err)
	}
	return fmt.Sprintf("gistcache: fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Timeout reports whether the fetch gave up waiting on upstream.
func (e *FetchError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(e.Err, &ne) && ne.Timeout()
}

// StoreError is a cache or durable backend failure. Reads treat it as a
// miss, writes log and drop it.
type StoreError struct {
	Tier Tier
	Op   string // get | set | del | gen
	Key  string
	Err  error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("gistcache: %s %s %q: %v", e.Tier, e.Op, e.Key, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// InvalidateError means a key could not be invalidated at all: both the
// generation bump and the delete failed.
type InvalidateError struct {
	Key     string
	BumpErr error
	DelErr  error
}

func (e *InvalidateError) Error() string {
	switch {
	case e.BumpErr != nil && e.DelErr != nil:
		return fmt.Sprintf("invalidate %q failed: gen bump and delete failed: bump=%v; delete=%v",
			e.Key, e.BumpErr, e.DelErr)
	case e.BumpErr != nil:
		return fmt.Sprintf("invalidate %q: gen bump failed: %v", e.Key, e.BumpErr)
	case e.DelErr != nil:
		return fmt.Sprintf("invalidate %q: delete failed: %v", e.Key, e.DelErr)
	default:
		return fmt.Sprintf("invalidate %q: unknown error", e.Key)
	}
}

func (e *InvalidateError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.BumpErr != nil {
		errs = append(errs, e.BumpErr)
	}
	if e.DelErr != nil {
		errs = append(errs, e.DelErr)
	}
	return errs
}
