package main

import (
	"github.com/kaspanet/reorgkeeper/infrastructure/logger"
	"github.com/kaspanet/reorgkeeper/util/panics"
)

var log = logger.RegisterSubSystem("MOCK")
var spawn = panics.GoroutineWrapperFunc(log)
