// caffe2_operators lists the operators available through the default
// registry: one table per registered device type, with the specialized
// engines each operator offers.
//
// Usage:
//
//	caffe2_operators [-device CPU|STREAM]
package main

import (
	"flag"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/Zehaos/caffe2/core"
	_ "github.com/Zehaos/caffe2/operators"
	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"k8s.io/klog/v2"
)

var flagDevice = flag.String("device", "", "Only list operators registered for this device type, e.g. \"CPU\".")

var (
	headerRowStyle = lipgloss.NewStyle().Reverse(true).
			Padding(0, 2, 0, 2).Align(lipgloss.Center)

	oddRowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFF")).
			PaddingLeft(1).PaddingRight(1)
	evenRowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#999")).
			PaddingLeft(1).PaddingRight(1)

	titleStyle = lipgloss.NewStyle().Bold(true).Padding(1, 4, 1, 4)
)

func newPlainTable() *lgtable.Table {
	return lgtable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		StyleFunc(func(row, col int) (s lipgloss.Style) {
			if row == 1 {
				s = headerRowStyle
				return
			}
			if row%2 == 0 {
				s = oddRowStyle
			} else {
				s = evenRowStyle
			}
			if col == 0 {
				s = s.Align(lipgloss.Left)
			}
			return
		})
}

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	if flag.NArg() > 0 {
		klog.Errorf("Unexpected arguments %q. See 'caffe2_operators -help'.", flag.Args())
		os.Exit(1)
	}

	devices := core.DefaultRegistry.Devices()
	if *flagDevice != "" {
		devices = slices.DeleteFunc(devices, func(d core.DeviceType) bool {
			return !strings.EqualFold(d.String(), *flagDevice)
		})
		if len(devices) == 0 {
			klog.Errorf("No registry for device type %q. See 'caffe2_operators -help'.", *flagDevice)
			os.Exit(1)
		}
	}

	for _, device := range devices {
		report(device, core.DefaultRegistry.Registry(device))
	}
}

// report prints one device's operators: plain names with the engines
// registered next to them.
func report(device core.DeviceType, registry *core.OperatorRegistry) {
	engines := make(map[string][]string)
	var names []string
	for _, key := range registry.Keys() {
		if name, engine, qualified := strings.Cut(key, "_ENGINE_"); qualified {
			engines[name] = append(engines[name], engine)
		} else {
			names = append(names, key)
		}
	}
	// Engine-only registrations still deserve a row.
	for name := range engines {
		if !slices.Contains(names, name) {
			names = append(names, name)
		}
	}
	slices.Sort(names)

	fmt.Println(titleStyle.Render(fmt.Sprintf("%s: %s operators", device, humanize.Comma(int64(len(names))))))
	table := newPlainTable()
	table.Row("Operator", "Engines")
	for _, name := range names {
		table.Row(name, strings.Join(engines[name], ", "))
	}
	fmt.Println(table.Render())
}
