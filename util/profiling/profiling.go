package profiling

import (
	"net"
	"net/http"
	"strconv"

	// Required for profiling
	_ "net/http/pprof"

	"github.com/kaspanet/reorgkeeper/infrastructure/logger"
	"github.com/kaspanet/reorgkeeper/util/panics"
	"github.com/pkg/errors"
)

// Start validates port and starts the profiling server on it
func Start(port string, log *logger.Logger) error {
	profilePort, err := strconv.Atoi(port)
	if err != nil || profilePort < 1024 || profilePort > 65535 {
		return errors.Errorf("the profile port must be between 1024 and 65535, got %s", port)
	}

	spawn := panics.GoroutineWrapperFunc(log)
	spawn("profiling.Start", func() {
		listenAddr := net.JoinHostPort("", port)
		log.Infof("Profile server listening on %s", listenAddr)
		profileRedirect := http.RedirectHandler("/debug/pprof", http.StatusSeeOther)
		http.Handle("/", profileRedirect)
		log.Error(http.ListenAndServe(listenAddr, nil))
	})
	return nil
}
