package layout

import (
	"fmt"
	"slices"

	"github.com/dd0wney/cluso-relaysim/pkg/circuit"
)

var (
	kindNames = map[string]circuit.Kind{
		"power_source": circuit.KindPowerSource,
		"sink":         circuit.KindSink,
		"deviator":     circuit.KindDeviator,
		"switch":       circuit.KindSwitch,
		"junction":     circuit.KindJunction,
		"diode":        circuit.KindDiode,
	}
	poleNames = map[string]circuit.Pole{
		"first":  circuit.PoleFirst,
		"second": circuit.PoleSecond,
	}
	modeNames = map[string]circuit.CableMode{
		"":         circuit.Unifilar,
		"unifilar": circuit.Unifilar,
		"bifilar":  circuit.Bifilar,
	}
	sinkFlavorNames = map[string]circuit.SinkFlavor{
		"":       circuit.SinkCoil,
		"coil":   circuit.SinkCoil,
		"lamp":   circuit.SinkLamp,
		"return": circuit.SinkReturn,
	}
	deviatorFlavorNames = map[string]circuit.DeviatorFlavor{
		"":             circuit.RelayContact,
		"relay":        circuit.RelayContact,
		"button":       circuit.ButtonContact,
		"screen_relay": circuit.ScreenRelayContact,
		"magnet":       circuit.MagnetContact,
	}
	polarityNames = map[string]circuit.Polarity{
		"":       circuit.AnyPole,
		"any":    circuit.AnyPole,
		"first":  circuit.FirstOnly,
		"second": circuit.SecondOnly,
	}
)

func lookup[T any](table map[string]T, what, name string) (T, error) {
	v, ok := table[name]
	if !ok {
		var zero T
		return zero, fmt.Errorf("unknown %s %q", what, name)
	}
	return v, nil
}

func keys[T any](table map[string]T) []string {
	out := make([]string, 0, len(table))
	for k := range table {
		if k != "" {
			out = append(out, k)
		}
	}
	slices.Sort(out)
	return out
}
