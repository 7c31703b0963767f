// Package ports tracks the network ports reserved by managed instances and
// probes the host for availability before a spawn. The coordinator only knows
// about ports it handed out; an external process can still occupy a port,
// which is why Check probes the OS as well.
package ports

import (
	"fmt"
	"net"
	"sync"
)

// Coordinator is the process-wide port bookkeeping. A reservation is held for
// the whole lifetime of an instance: stopping does not release it, only
// deleting the instance does, so a stopped instance can restart without
// racing other instances for its port.
type Coordinator struct {
	mu        sync.Mutex
	allocated map[int]string // port -> instance id
}

// NewCoordinator returns an empty coordinator.
func NewCoordinator() *Coordinator {
	return &Coordinator{allocated: make(map[int]string)}
}

// Allocate reserves a port for an instance. It fails if another instance
// already holds the reservation.
func (c *Coordinator) Allocate(port int, instanceID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if owner, ok := c.allocated[port]; ok && owner != instanceID {
		return fmt.Errorf("port %d is already allocated to instance %s", port, owner)
	}
	c.allocated[port] = instanceID
	return nil
}

// Deallocate releases a port reservation. Called only on instance deletion.
func (c *Coordinator) Deallocate(port int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.allocated, port)
}

// Owner returns the instance holding a port, if any.
func (c *Coordinator) Owner(port int) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	owner, ok := c.allocated[port]
	return owner, ok
}

// Check verifies that the port is usable by the given instance right now:
// the reservation must not belong to someone else, and the port must be
// bindable on the host, since external processes are invisible to the
// coordinator's bookkeeping.
func (c *Coordinator) Check(port int, instanceID string) error {
	c.mu.Lock()
	owner, reserved := c.allocated[port]
	c.mu.Unlock()

	if reserved && owner != instanceID {
		return fmt.Errorf("port %d is reserved by instance %s", port, owner)
	}

	if !available(port) {
		return fmt.Errorf("port %d is already bound on this host", port)
	}
	return nil
}

// available reports whether the TCP port can currently be bound.
func available(port int) bool {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return false
	}
	_ = ln.Close()
	return true
}
