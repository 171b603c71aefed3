package queue

import "errors"

// ErrDuplicateActiveRecord indicates a song already has a non-terminal
// processing record, so a new attempt must not start.
var ErrDuplicateActiveRecord = errors.New("active processing record already exists")

// ErrRecordNotFound indicates a transition referenced an unknown record id.
var ErrRecordNotFound = errors.New("processing record not found")

// ErrSongNotFound indicates a lookup referenced an unknown song id.
var ErrSongNotFound = errors.New("song not found")
