package simchain

import (
	"github.com/kaspanet/reorgkeeper/infrastructure/logger"
)

var log = logger.RegisterSubSystem("SIMC")
