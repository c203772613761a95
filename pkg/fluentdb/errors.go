package fluentdb

import (
	"errors"

	"github.com/sllt/fluentdb/pkg/fluentdb/driver"
	"github.com/sllt/fluentdb/pkg/fluentdb/statement"
	"github.com/sllt/fluentdb/pkg/fluentdb/stream"
	"github.com/sllt/fluentdb/pkg/fluentdb/tx"
)

// ErrExecutionFailed wraps every database-reported statement failure. It
// surfaces on the result sequence at the point of consumption and is never
// retried.
var ErrExecutionFailed = errors.New("execution failed")

// Aliases of the error kinds raised by the underlying packages, so callers
// can match the full taxonomy with errors.Is against this package alone.
var (
	ErrInvalidSpecification      = statement.ErrInvalidSpecification
	ErrMappingFailed             = driver.ErrMappingFailed
	ErrTransactionAlreadyActive  = tx.ErrAlreadyActive
	ErrTransactionInactive       = tx.ErrInactive
	ErrSynchronizationNotEnabled = tx.ErrSynchronizationNotEnabled
	ErrAlreadyConsumed           = stream.ErrAlreadyConsumed
)
