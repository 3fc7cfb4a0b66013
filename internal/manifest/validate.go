// Copyright Contributors to the KubeTask project

package manifest

import (
	"errors"
	"fmt"
	"strings"
)

// topLevelPaths must be present before any deeper path is checked: a
// Job missing these can't be meaningfully inspected further.
var topLevelPaths = []string{
	"/apiVersion",
	"/kind",
	"/metadata",
	"/spec",
}

// deeperPaths are only checked once every top-level path resolves.
var deeperPaths = []string{
	"/metadata/labels",
	"/spec/template/spec/completions",
	"/spec/template/spec/containers",
	"/spec/template/spec/parallelism",
	"/spec/template/spec/restartPolicy",
}

// requiredValues are attribute paths whose value must equal a specific
// literal.
var requiredValues = []struct {
	path  string
	value string
}{
	{"/apiVersion", "batch/v1"},
	{"/kind", "Job"},
}

// MissingPathsError reports every required path absent from a
// user-supplied base Job template.
type MissingPathsError struct {
	Paths []string
}

func (e *MissingPathsError) Error() string {
	return fmt.Sprintf(
		"Job is missing required attributes at the following paths: %s",
		strings.Join(e.Paths, ", "),
	)
}

// IncompatibleValuesError reports every required path whose value
// conflicts with what the builder must control.
type IncompatibleValuesError struct {
	Attrs []string
}

func (e *IncompatibleValuesError) Error() string {
	return fmt.Sprintf(
		"Job has incompatble values for the following attributes: %s",
		strings.Join(e.Attrs, ", "),
	)
}

// Validate checks a user-supplied base Job template against the
// structural and value constraints the builder relies on. Missing
// paths and incompatible values are distinct error kinds: when both
// occur, Validate returns both joined with errors.Join rather than
// merging them into one message. Top-level paths are checked before
// deeper paths; a Job missing top-level structure is reported on those
// paths alone, without also walking into paths that can't exist yet.
func Validate(job Manifest) error {
	var missing []string
	for _, path := range topLevelPaths {
		segments := strings.Split(strings.TrimPrefix(path, "/"), "/")
		if _, ok := getPath(job, segments); !ok {
			missing = append(missing, path)
		}
	}
	if len(missing) == 0 {
		for _, path := range deeperPaths {
			segments := strings.Split(strings.TrimPrefix(path, "/"), "/")
			if _, ok := getPath(job, segments); !ok {
				missing = append(missing, path)
			}
		}
	}

	var incompatible []string
	for _, rv := range requiredValues {
		segments := strings.Split(strings.TrimPrefix(rv.path, "/"), "/")
		value, ok := getPath(job, segments)
		if !ok {
			// Already reported as missing above.
			continue
		}
		if s, ok := value.(string); !ok || s != rv.value {
			incompatible = append(incompatible, fmt.Sprintf(
				"%s must have value '%s'", rv.path, rv.value,
			))
		}
	}

	var missingErr, incompatibleErr error
	if len(missing) > 0 {
		missingErr = &MissingPathsError{Paths: missing}
	}
	if len(incompatible) > 0 {
		incompatibleErr = &IncompatibleValuesError{Attrs: incompatible}
	}

	return errors.Join(missingErr, incompatibleErr)
}
