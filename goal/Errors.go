package goal

import "errors"

// Error implements errors unique to goal-conditioning
type Error struct {
	Op  string
	Err error
}

// Error satisfies the error interface
func (e *Error) Error() string {
	return e.Op + ": " + e.Err.Error()
}

var errNotConditioned = errors.New("environment is not goal-conditioned")

// IsNotConditioned returns whether or not an error reports that an
// environment chain contains no goal-conditioned environment.
//
// Components that rely on goal structure, such as hindsight
// relabelling, return such errors when constructed with environments
// that were never wrapped to be goal-conditioned.
func IsNotConditioned(err error) bool {
	if goalErr, ok := err.(*Error); ok {
		err = goalErr.Err
	}
	return err == errNotConditioned
}
