package main

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Scenario describes a two-node self-test run: the two MAC addresses, the
// beacon cadence, the debug slot-selection policy, and a simulated
// link-loss rate for the shared medium. It is the ambient config-file
// surface around the MAC core, not part of the three CORE subsystems.
type Scenario struct {
	NodeA          uint16        `yaml:"nodeA"`
	NodeB          uint16        `yaml:"nodeB"`
	BeaconInterval time.Duration `yaml:"beaconInterval"`
	SlotSelection  int32         `yaml:"slotSelection"`
	LinkLossRate   float64       `yaml:"linkLossRate"`
	BytesPerSec    int           `yaml:"bytesPerSec"`
}

// DefaultScenario mirrors the original self-test harness's two well-known
// addresses (0x0001, 0x0002) with beacons disabled and a clean link.
func DefaultScenario() Scenario {
	return Scenario{
		NodeA:          0x0001,
		NodeB:          0x0002,
		BeaconInterval: -1,
		SlotSelection:  0,
		LinkLossRate:   0,
		BytesPerSec:    2_000_000,
	}
}

// LoadScenario reads and validates a YAML scenario file at path. Config-file
// failures are wrapped with pkg/errors so the CLI boundary carries a stack
// trace; the MAC core itself never imports pkg/errors.
func LoadScenario(path string) (Scenario, error) {
	scn := DefaultScenario()

	raw, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, errors.Wrapf(err, "reading scenario file %q", path)
	}
	if err := yaml.Unmarshal(raw, &scn); err != nil {
		return Scenario{}, errors.Wrapf(err, "parsing scenario file %q", path)
	}
	if scn.NodeA == scn.NodeB {
		return Scenario{}, errors.Errorf("scenario %q: nodeA and nodeB must differ", path)
	}
	if scn.NodeA == 0xFFFF || scn.NodeB == 0xFFFF {
		return Scenario{}, errors.Errorf("scenario %q: 0xFFFF is reserved for beacons/broadcast", path)
	}
	if scn.LinkLossRate < 0 || scn.LinkLossRate > 1 {
		return Scenario{}, errors.Errorf("scenario %q: linkLossRate must be in [0,1]", path)
	}
	return scn, nil
}
