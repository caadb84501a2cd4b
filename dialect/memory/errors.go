package memory

import "errors"

var errTxDone = errors.New("dialect/memory: transaction already committed or rolled back")
