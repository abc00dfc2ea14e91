package db

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
)

// Operation is one insert attempt. It must generate a fresh id on every call.
type Operation func() error

// IsRetryable decides whether a failed attempt may be repeated.
type IsRetryable func(err error) bool

const DefaultMaxRetries = 3

const duplicateKeyCode = 11000

// Try runs op, retrying up to DefaultMaxRetries times on duplicate key errors.
// SixIDs are short enough that an _id collision is possible.
func Try(op Operation) error {
	return WithRetries(op, DefaultMaxRetries, IsMongoDuplicateKeyError)
}

// WithRetries runs op once plus up to maxRetries more times while retryable
// reports true. The last error is returned.
func WithRetries(op Operation, maxRetries int, retryable IsRetryable) error {
	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err = op(); err == nil {
			return nil
		}
		if attempt == maxRetries || !retryable(err) {
			break
		}
		time.Sleep(time.Duration(50*(attempt+1)) * time.Millisecond)
	}
	return err
}

// IsMongoDuplicateKeyError reports whether err carries a 11000 write error.
func IsMongoDuplicateKeyError(err error) bool {
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == duplicateKeyCode {
				return true
			}
		}
	}
	var bwe mongo.BulkWriteException
	if errors.As(err, &bwe) {
		for _, e := range bwe.WriteErrors {
			if e.Code == duplicateKeyCode {
				return true
			}
		}
	}
	return false
}
