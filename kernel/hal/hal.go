// Package hal probes the registered device drivers and keeps track of the
// ones that were successfully initialized.
package hal

import (
	"acpitopo/device"
	"acpitopo/device/acpi"
	"acpitopo/kernel"
	"acpitopo/kernel/kfmt"
	"sort"
)

// topologySource is implemented by drivers that discover the interrupt
// topology of the system.
type topologySource interface {
	Topology() *acpi.Topology
}

// managedDevices contains the devices discovered by the HAL.
type managedDevices struct {
	topology *acpi.Topology

	// activeDrivers tracks all initialized device drivers.
	activeDrivers []device.Driver
}

var (
	devices managedDevices

	// Driver init errors that leave the system unable to deliver
	// interrupts. They are escalated to a kernel panic.
	fatalErrors = []*kernel.Error{acpi.ErrNoMADT}

	panicFn = kfmt.Panic
)

// Topology returns the interrupt topology discovered by the ACPI driver or
// nil if no driver provided one.
func Topology() *acpi.Topology {
	return devices.topology
}

// ActiveDrivers returns the drivers that were successfully initialized.
func ActiveDrivers() []device.Driver {
	return devices.activeDrivers
}

// DetectHardware probes for hardware devices and initializes the appropriate
// drivers.
func DetectHardware() {
	// Get driver list and sort by detection priority
	drivers := device.DriverList()
	sort.Sort(drivers)

	probe(drivers)
}

// probe executes the probe function for each driver and invokes
// onDriverInit for each successfully initialized driver.
func probe(driverInfoList device.DriverInfoList) {
	var w = kfmt.PrefixWriter{Sink: kfmt.GetOutputSink()}

	for _, info := range driverInfoList {
		drv := info.Probe()
		if drv == nil {
			continue
		}

		major, minor, patch := drv.DriverVersion()
		w.SetPrefix("[hal] %s(%d.%d.%d): ", drv.DriverName(), major, minor, patch)

		if err := drv.DriverInit(&w); err != nil {
			kfmt.Fprintf(&w, "init failed: %s\n", err.Message)
			if isFatal(err) {
				panicFn(err)
				return
			}
			continue
		}

		kfmt.Fprintf(&w, "initialized\n")
		onDriverInit(drv)
		devices.activeDrivers = append(devices.activeDrivers, drv)
	}
}

func isFatal(err *kernel.Error) bool {
	for _, fatal := range fatalErrors {
		if err == fatal {
			return true
		}
	}
	return false
}

// onDriverInit is invoked by probe() whenever a piece of hardware is detected
// and successfully initialized.
func onDriverInit(drv device.Driver) {
	if src, ok := drv.(topologySource); ok && devices.topology == nil {
		devices.topology = src.Topology()
	}
}
