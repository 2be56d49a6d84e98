package datastore

import "github.com/tphakala/codescan/internal/logger"

var getLogger = logger.Lazy("datastore")
