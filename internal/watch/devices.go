package watch

import (
	"context"
	"log/slog"
	"sync"

	"github.com/pilebones/go-udev/netlink"

	"plotarchiver/internal/logging"
)

// Devices listens for udev block device events so that a freshly attached
// drive is considered without waiting for the idle backoff.
type Devices struct {
	notify Notifier
	logger *slog.Logger

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	running bool
}

// NewDevices builds a device watcher.
func NewDevices(notify Notifier, logger *slog.Logger) *Devices {
	return &Devices{
		notify: notify,
		logger: logging.NewComponentLogger(logger, "device-watch"),
	}
}

// Start connects to the udev netlink socket. Connection failures are logged
// and not returned.
func (d *Devices) Start(ctx context.Context) error {
	if d == nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return nil
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		logging.WarnWithContext(d.logger, "failed to connect to netlink socket", "netlink_connect_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "ensure the daemon may open netlink sockets or set watch.devices = false"),
			logging.String(logging.FieldImpact, "new drives are picked up on the next poll"),
		)
		return nil
	}

	d.conn = conn
	d.quit = make(chan struct{})
	d.running = true
	go d.loop(ctx, conn, d.quit)

	d.logger.Info("device watcher started", logging.String(logging.FieldEventType, "device_watch_started"))
	return nil
}

// Stop closes the netlink connection.
func (d *Devices) Stop() {
	if d == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running {
		return
	}
	close(d.quit)
	d.quit = nil
	if d.conn != nil {
		_ = d.conn.Close()
		d.conn = nil
	}
	d.running = false
}

// Running reports whether the watcher is active.
func (d *Devices) Running() bool {
	if d == nil {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

func (d *Devices) loop(ctx context.Context, conn *netlink.UEventConn, quit <-chan struct{}) {
	queue := make(chan netlink.UEvent)
	errs := make(chan error)
	monitorQuit := conn.Monitor(queue, errs, blockDeviceMatcher())

	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case uevent := <-queue:
			d.handleEvent(uevent)
		case err := <-errs:
			logging.WarnWithContext(d.logger, "netlink monitor error", "netlink_monitor_error",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check kernel netlink subsystem"),
				logging.String(logging.FieldImpact, "drive hotplug wakeups may be missed"),
			)
		}
	}
}

// blockDeviceMatcher matches added or changed disks and partitions.
func blockDeviceMatcher() netlink.Matcher {
	action := "add|change"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "block",
			"DEVTYPE":   "partition|disk",
		},
	})
	return rules
}

func (d *Devices) handleEvent(uevent netlink.UEvent) {
	d.logger.Info("block device event",
		logging.String(logging.FieldEventType, "device_event"),
		logging.String("action", string(uevent.Action)),
		logging.String("device", uevent.Env["DEVNAME"]),
	)
	if d.notify != nil {
		d.notify()
	}
}
