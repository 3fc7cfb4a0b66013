// Copyright Contributors to the KubeTask project

// Package sanitize enforces DNS-subdomain rules on the names and
// label keys/values the manifest builder generates, the same kind of
// string-cleanup job internal/controller/job_builder.go's
// sanitizeConfigMapKey and internal/controller/pod_builder.go's
// sanitizeVolumeName do for ConfigMap keys and volume names.
package sanitize

import (
	"regexp"
	"strings"
)

var (
	invalidNameChar  = regexp.MustCompile(`[^a-z0-9-]+`)
	invalidLabelChar = regexp.MustCompile(`[^A-Za-z0-9._-]+`)
	repeatedDash     = regexp.MustCompile(`-{2,}`)
)

// Name cleans an input for use as a Kubernetes metadata.generateName
// value: lowercased, invalid runs collapsed to a single '-', runs of
// '-' themselves collapsed, leading and trailing '-' trimmed,
// truncated to 63 characters.
func Name(input string) string {
	lowered := strings.ToLower(input)
	replaced := invalidNameChar.ReplaceAllString(lowered, "-")
	collapsed := repeatedDash.ReplaceAllString(replaced, "-")
	trimmed := strings.Trim(collapsed, "-")
	if len(trimmed) > 63 {
		trimmed = trimmed[:63]
	}
	return trimmed
}

// LabelValue cleans an input for use as a Kubernetes label value:
// invalid characters replaced with '-', runs of '-' collapsed,
// truncated to 63 characters. An input made entirely of invalid
// characters passes through unchanged, since replacing every
// character would otherwise produce a string of bare dashes that
// carries no information about the original value.
func LabelValue(input string) string {
	return sanitizeLabelPart(input, 63)
}

// LabelKey cleans an input for use as a Kubernetes label key. The
// optional "prefix/name" DNS-subdomain form is split on the first '/';
// each part is sanitized independently, with the prefix truncated to
// 253 characters and the name to 63. A leading '/' yields an empty
// prefix, which is dropped. Extra '/'s beyond the first are treated as
// invalid characters within the name portion.
func LabelKey(input string) string {
	idx := strings.Index(input, "/")
	if idx < 0 {
		return sanitizeLabelPart(input, 63)
	}

	prefix, name := input[:idx], input[idx+1:]
	if prefix == "" {
		return sanitizeLabelPart(name, 63)
	}

	cleanPrefix := sanitizeLabelPart(prefix, 253)
	cleanName := sanitizeLabelPart(name, 63)
	return cleanPrefix + "/" + cleanName
}

// sanitizeLabelPart replaces runs of invalid label characters with a
// single '-' (collapsing any resulting or adjacent run of dashes) and
// truncates to maxLen, unless the input is entirely invalid
// characters, in which case it is returned unchanged.
func sanitizeLabelPart(input string, maxLen int) string {
	if input == "" {
		return input
	}
	if invalidLabelChar.ReplaceAllString(input, "") == "" {
		return input
	}

	replaced := invalidLabelChar.ReplaceAllString(input, "-")
	cleaned := repeatedDash.ReplaceAllString(replaced, "-")
	if len(cleaned) > maxLen {
		cleaned = cleaned[:maxLen]
	}
	return cleaned
}
