package profiling

import (
	"testing"

	"github.com/kaspanet/reorgkeeper/infrastructure/logger"
)

func TestStartRejectsInvalidPorts(t *testing.T) {
	log := logger.RegisterSubSystem("PROF")
	for _, port := range []string{"", "http", "80", "70000"} {
		err := Start(port, log)
		if err == nil {
			t.Errorf("Start(%q): expected an error", port)
		}
	}
}
