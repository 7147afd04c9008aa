package reorgpool

import (
	"github.com/kaspanet/reorgkeeper/infrastructure/logger"
)

var log = logger.RegisterSubSystem("RPOL")
