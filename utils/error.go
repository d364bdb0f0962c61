package utils

import "errors"

var ErrorRecordNotFound = errors.New("record not found")

// ErrorBatchConflict is returned when a batch reversal is requested for a
// batch that is not in a reversible state (already reversed).
var ErrorBatchConflict = errors.New("import batch already reversed")

func ErrorPanic(err error) {
	if err != nil {
		panic(err)
	}
}
