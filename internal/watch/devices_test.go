package watch

import (
	"context"
	"testing"

	"github.com/pilebones/go-udev/netlink"
)

func TestBlockDeviceMatcher(t *testing.T) {
	matcher := blockDeviceMatcher()
	if matcher == nil {
		t.Fatal("expected non-nil matcher")
	}

	tests := []struct {
		name  string
		event netlink.UEvent
		want  bool
	}{
		{
			name: "partition added",
			event: netlink.UEvent{
				Action: netlink.ADD,
				Env:    map[string]string{"SUBSYSTEM": "block", "DEVTYPE": "partition"},
			},
			want: true,
		},
		{
			name: "disk changed",
			event: netlink.UEvent{
				Action: netlink.CHANGE,
				Env:    map[string]string{"SUBSYSTEM": "block", "DEVTYPE": "disk"},
			},
			want: true,
		},
		{
			name: "partition removed",
			event: netlink.UEvent{
				Action: netlink.REMOVE,
				Env:    map[string]string{"SUBSYSTEM": "block", "DEVTYPE": "partition"},
			},
			want: false,
		},
		{
			name: "usb hub added",
			event: netlink.UEvent{
				Action: netlink.ADD,
				Env:    map[string]string{"SUBSYSTEM": "usb", "DEVTYPE": "usb_device"},
			},
			want: false,
		},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if got := matcher.Evaluate(tc.event); got != tc.want {
				t.Fatalf("Evaluate = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestDevicesHandleEventNotifies(t *testing.T) {
	calls := 0
	d := NewDevices(func() { calls++ }, nil)
	d.handleEvent(netlink.UEvent{
		Action: netlink.ADD,
		Env:    map[string]string{"DEVNAME": "/dev/sdb1"},
	})
	if calls != 1 {
		t.Fatalf("notify called %d times, want 1", calls)
	}
}

func TestDevicesNilAndStopSafety(t *testing.T) {
	var d *Devices
	d.Stop()
	if d.Running() {
		t.Fatal("nil watcher should not run")
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start on nil watcher: %v", err)
	}

	live := NewDevices(nil, nil)
	live.Stop()
	live.Stop()
	// Without netlink privileges Start only logs.
	_ = live.Start(context.Background())
	live.Stop()
	if live.Running() {
		t.Fatal("watcher should be stopped")
	}
}
