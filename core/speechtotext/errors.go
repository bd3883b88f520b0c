package speechtotext

import "errors"

var (
	// ErrNotUnderstood means audio was heard but no words could be recognized
	// in it. It is not a reason to back off.
	ErrNotUnderstood = errors.New("speech not understood")
	// ErrServiceUnavailable means the recognition backend could not be
	// reached or refused the request.
	ErrServiceUnavailable = errors.New("speech recognition service unavailable")
)
