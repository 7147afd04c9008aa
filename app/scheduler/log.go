package scheduler

import (
	"github.com/kaspanet/reorgkeeper/infrastructure/logger"
	"github.com/kaspanet/reorgkeeper/util/panics"
)

var log = logger.RegisterSubSystem("SCHD")
var spawn = panics.GoroutineWrapperFunc(log)
