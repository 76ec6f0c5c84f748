package apkfleet

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/apkfleet/apkfleet/pkg/adb"
)

// rootedResponder emulates a fleet where exactly one device has working
// su and answers clock operations; everything else behaves like a
// healthy unrooted device.
func rootedResponder(rooted string) func(serial string, args []string) (string, int) {
	return func(serial string, args []string) (string, int) {
		if serial == rooted && len(args) > 1 && args[0] == "shell" {
			switch {
			case strings.HasPrefix(args[1], "su 0 echo"):
				return "ROOT_OK\n", 0
			case strings.HasPrefix(args[1], "su 0 date"):
				return "", 0
			case args[1] == "date":
				return "Sun Jan 15 00:00:00 GMT 2023\n", 0
			}
		}
		return healthyBridge(serial, args)
	}
}

func TestTestConnectionsDeduplicatesAndCounts(t *testing.T) {
	stub := &stubRunner{}
	results, connected := TestConnections(context.Background(), stub, []string{"d1", "d2", " d1 "})
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2 after dedup", len(results))
	}
	if connected != 2 {
		t.Fatalf("connected = %d, want 2", connected)
	}
	if results[0].Device != "d1" || results[1].Device != "d2" {
		t.Fatalf("device order = %q, %q", results[0].Device, results[1].Device)
	}
	for _, res := range results {
		if !res.OK || !strings.HasPrefix(res.Detail, "connected (") {
			t.Fatalf("result for %s: %+v", res.Device, res)
		}
	}
}

func TestTestConnectionsReportsRefusedDevices(t *testing.T) {
	stub := &stubRunner{respond: func(serial string, args []string) (string, int) {
		if args[0] == "connect" && args[1] == "d2" {
			return "failed to connect to d2\n", 1
		}
		return healthyBridge(serial, args)
	}}
	results, connected := TestConnections(context.Background(), stub, []string{"d1", "d2"})
	if connected != 1 {
		t.Fatalf("connected = %d, want 1", connected)
	}
	if results[1].OK || !strings.HasPrefix(results[1].Detail, "connect failed:") {
		t.Fatalf("refused device result: %+v", results[1])
	}
}

func TestCheckRootStatusCountsRootedDevices(t *testing.T) {
	stub := &stubRunner{respond: rootedResponder("d1")}
	conn := adb.NewManager(stub)
	conn.SettleDelay = 0

	results, rooted := CheckRootStatus(context.Background(), stub, conn, []string{"d1", "d2"})
	if rooted != 1 {
		t.Fatalf("rooted = %d, want 1", rooted)
	}
	if !results[0].OK || results[0].Detail != "rooted (su 0 confirmed)" {
		t.Fatalf("rooted device result: %+v", results[0])
	}
	if results[1].OK || results[1].Detail != "not rooted" {
		t.Fatalf("unrooted device result: %+v", results[1])
	}
}

func TestCheckRootStatusReportsConnectionFailure(t *testing.T) {
	stub := &stubRunner{respond: func(serial string, args []string) (string, int) {
		if args[0] == "connect" {
			return "cannot connect\n", 1
		}
		return healthyBridge(serial, args)
	}}
	conn := adb.NewManager(stub)
	conn.SettleDelay = 0

	results, rooted := CheckRootStatus(context.Background(), stub, conn, []string{"d1"})
	if rooted != 0 {
		t.Fatalf("rooted = %d, want 0", rooted)
	}
	if results[0].OK || results[0].Detail != "connection failed" {
		t.Fatalf("unreachable device result: %+v", results[0])
	}
	if stub.countShell("su") != 0 {
		t.Fatal("root probes must not run against an unconnected device")
	}
}

func TestCollectDeviceInfoFormatsProperties(t *testing.T) {
	stub := &stubRunner{respond: func(serial string, args []string) (string, int) {
		if serial == "d1" && args[0] == "shell" {
			switch args[1] {
			case "getprop ro.product.model":
				return "Pixel 5\n", 0
			case "getprop ro.build.version.release":
				return "12\n", 0
			}
		}
		return healthyBridge(serial, args)
	}}
	conn := adb.NewManager(stub)
	conn.SettleDelay = 0

	results := CollectDeviceInfo(context.Background(), stub, conn, []string{"d1", "d2"})
	if results[0].Detail != "Pixel 5 (Android 12)" {
		t.Fatalf("detail = %q", results[0].Detail)
	}
	// Missing properties degrade to Unknown, not failure.
	if !results[1].OK || results[1].Detail != "Unknown (Android Unknown)" {
		t.Fatalf("degraded device result: %+v", results[1])
	}
}

func TestSetFleetClockSetsRootedDevicesOnly(t *testing.T) {
	stub := &stubRunner{respond: rootedResponder("d1")}
	conn := adb.NewManager(stub)
	conn.SettleDelay = 0
	target := time.Date(2023, time.January, 15, 0, 0, 0, 0, time.UTC)

	results, set := SetFleetClock(context.Background(), stub, conn, []string{"d1", "d2"}, target)
	if set != 1 {
		t.Fatalf("set = %d, want 1", set)
	}
	if !results[0].OK || !strings.HasPrefix(results[0].Detail, "date set: ") || !strings.Contains(results[0].Detail, "2023") {
		t.Fatalf("rooted device result: %+v", results[0])
	}
	if results[1].OK || results[1].Detail != "not rooted or root access denied" {
		t.Fatalf("unrooted device result: %+v", results[1])
	}
	// Clock set tears its sessions down afterwards.
	if stub.countCalls("disconnect") < 2 {
		t.Fatalf("disconnect calls = %d, want one per device", stub.countCalls("disconnect"))
	}
}

func TestDiagWorkers(t *testing.T) {
	cases := []struct {
		limit, devices, want int
	}{
		{8, 20, 8},
		{8, 3, 3},
		{6, 6, 6},
		{0, 5, 1},
		{5, 1, 1},
	}
	for _, tc := range cases {
		if got := diagWorkers(tc.limit, tc.devices); got != tc.want {
			t.Fatalf("diagWorkers(%d, %d) = %d, want %d", tc.limit, tc.devices, got, tc.want)
		}
	}
}
