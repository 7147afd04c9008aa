package grpcoracle

import (
	"github.com/kaspanet/reorgkeeper/infrastructure/logger"
	"github.com/kaspanet/reorgkeeper/util/panics"
)

var log = logger.RegisterSubSystem("ORCL")
var spawn = panics.GoroutineWrapperFunc(log)
