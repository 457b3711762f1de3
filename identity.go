package mlbench

import (
	"os"
	"strconv"
)

// processIdentity caches the process id once, standing in for the "pid"
// half of the pid/tid pair the C++ original captures per thread.
func processIdentity() string {
	return strconv.Itoa(os.Getpid())
}

// identityFor builds the pid/tid-equivalent identity string cached on a
// threadLog at Handle creation time, since Go has no public goroutine id to
// capture the way the original captures std::this_thread::get_id().
func identityFor(pid string, producerID uint64) string {
	return pid + "/" + strconv.FormatUint(producerID, 10)
}
