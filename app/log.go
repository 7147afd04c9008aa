package app

import (
	"github.com/kaspanet/reorgkeeper/infrastructure/logger"
	"github.com/kaspanet/reorgkeeper/util/panics"
)

var log = logger.RegisterSubSystem("RCON")
var spawn = panics.GoroutineWrapperFunc(log)
