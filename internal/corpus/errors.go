package corpus

import "errors"

// ErrPersistence is returned when the corpus snapshot cannot be written or
// promoted. The in-memory corpus is rolled back to the last durable snapshot.
var ErrPersistence = errors.New("corpus persistence failed")
