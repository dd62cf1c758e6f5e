package fs

import (
	"github.com/cellarium-oci/crucible/libcontainer/configs"
)

// applyDevices writes the default-deny bootstrap ("a" to devices.deny,
// denying every device) and then every configured allow/deny rule, matching
// the youki reference's set_v1_resources default-deny-first policy
// (original_source/crates/libcgroups/src/v1/devices.rs).
func applyDevices(dir string, res *configs.Resources) error {
	if err := writeFile(dir, "devices.deny", "a"); err != nil {
		return err
	}
	for _, r := range res.Devices {
		file := "devices.deny"
		if r.Allow {
			file = "devices.allow"
		}
		if err := writeFile(dir, file, deviceRuleLine(r)); err != nil {
			return err
		}
	}
	return nil
}
