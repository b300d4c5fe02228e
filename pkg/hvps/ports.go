package hvps

import (
	"fmt"
	"sort"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// Port represents a serial port.
type Port struct {
	Name        string
	Description string
}

// Ports returns a list of available serial ports. USB ports are described by
// their product string (the board shows up as "CP210x ..." over USB) and
// Bluetooth SPP ports by their name.
func Ports() ([]Port, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		names, err := serial.GetPortsList()
		if err != nil {
			return nil, fmt.Errorf("failed to list serial ports: %w", err)
		}
		result := make([]Port, 0, len(names))
		for _, name := range names {
			result = append(result, Port{Name: name, Description: name})
		}
		return result, nil
	}

	result := make([]Port, 0, len(details))
	for _, d := range details {
		desc := d.Name
		switch {
		case d.Product != "":
			desc = d.Product
		case d.IsUSB:
			desc = fmt.Sprintf("USB %s:%s", d.VID, d.PID)
		}
		result = append(result, Port{Name: d.Name, Description: desc})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })

	return result, nil
}

// String formats the port for a picker.
func (p Port) String() string {
	if p.Description == "" || p.Description == p.Name {
		return p.Name
	}
	return p.Name + " " + p.Description
}
