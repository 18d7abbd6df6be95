package variant

import (
	"os"

	"github.com/ccs-cli/ccs/internal/ccserr"
	"github.com/ccs-cli/ccs/internal/osproc"
	"github.com/ccs-cli/ccs/internal/session"
)

// minPort, maxPort bound the range a variant's CLIProxy listener is
// allocated from; ports below minPort are reserved for the
// primary proxy (session.DefaultPort) and well-known services.
const (
	minPort = 8318
	maxPort = 65000
)

// AllocatePort returns the smallest free port in [minPort, maxPort]:
// not already claimed by another variant, not currently accepting
// connections on loopback, and without a leftover session lock file.
func AllocatePort(usedPorts map[int]bool) (int, error) {
	for port := minPort; port <= maxPort; port++ {
		if usedPorts[port] {
			continue
		}
		if osproc.Default.FindListener(port) {
			continue
		}
		if _, err := os.Stat(session.LockPath(port)); err == nil {
			continue
		}
		return port, nil
	}
	return 0, ccserr.Externalf(nil, "no free CLIProxy port in [%d, %d]", minPort, maxPort)
}
