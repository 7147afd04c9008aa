package events

import (
	"github.com/kaspanet/reorgkeeper/infrastructure/logger"
	"github.com/kaspanet/reorgkeeper/util/panics"
)

var log = logger.RegisterSubSystem("EVNT")
var spawn = panics.GoroutineWrapperFunc(log)
