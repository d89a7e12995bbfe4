package version

import (
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/rxtech-lab/argo-chain/pkg/errors"
)

// CheckCompatibility checks whether the engine can run a configuration that declares
// the engine version it was written for.
//
// Rules:
//   - An empty requirement or a "main" engine (development build) is always compatible
//   - A plain version requires the same major and minor version; patches can differ
//   - Anything else is parsed as a semver constraint (e.g. ">= 0.1, < 0.3") the engine must satisfy
//
// Examples:
//   - Engine 1.2.1, required 1.2.0 -> OK (patch differs)
//   - Engine 1.3.0, required 1.2.0 -> ERROR (minor differs)
//   - Engine 1.3.0, required ~1.2 -> ERROR (constraint not met)
//   - Engine 1.3.0, required ^1.2 -> OK
func CheckCompatibility(engineVersion, required string) error {
	engineVersion = strings.TrimPrefix(strings.TrimSpace(engineVersion), "v")
	required = strings.TrimSpace(required)

	if required == "" || engineVersion == "main" {
		return nil
	}

	engineSemver, err := semver.NewVersion(engineVersion)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "invalid engine version '%s'", engineVersion)
	}

	if requiredSemver, err := semver.NewVersion(strings.TrimPrefix(required, "v")); err == nil {
		if engineSemver.Major() != requiredSemver.Major() {
			return errors.Newf(errors.ErrCodeIncompatibleVersion,
				"major version mismatch: engine is %d.x.x but config requires %d.x.x",
				engineSemver.Major(), requiredSemver.Major())
		}

		if engineSemver.Minor() != requiredSemver.Minor() {
			return errors.Newf(errors.ErrCodeIncompatibleVersion,
				"minor version mismatch: engine is %d.%d.x but config requires %d.%d.x",
				engineSemver.Major(), engineSemver.Minor(),
				requiredSemver.Major(), requiredSemver.Minor())
		}

		return nil
	}

	constraint, err := semver.NewConstraint(required)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "invalid engine version requirement '%s'", required)
	}

	if ok, reasons := constraint.Validate(engineSemver); !ok {
		message := "engine version does not satisfy the requirement"
		if len(reasons) > 0 {
			message = reasons[0].Error()
		}

		return errors.Newf(errors.ErrCodeIncompatibleVersion,
			"engine %s is incompatible with '%s': %s", engineSemver, required, message)
	}

	return nil
}
