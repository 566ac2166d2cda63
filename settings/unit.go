// SPDX-License-Identifier: Apache-2.0
//
// The OpenSearch Contributors require contributions made to
// this file be licensed under the Apache-2.0 license or a
// compatible open source license.

package settings

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// parseBool accepts the boolean spellings the original connector accepts.
func parseBool(value string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "yes", "on", "1":
		return true
	case "false", "no", "off", "0":
		return false
	default:
		return def
	}
}

// parseByteSize parses values such as "1mb", "512kb", "10g" or a bare
// byte count.
func parseByteSize(value string) (int, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	mult := 1
	switch {
	case strings.HasSuffix(v, "kb") || strings.HasSuffix(v, "k"):
		mult = 1024
	case strings.HasSuffix(v, "mb") || strings.HasSuffix(v, "m"):
		mult = 1024 * 1024
	case strings.HasSuffix(v, "gb") || strings.HasSuffix(v, "g"):
		mult = 1024 * 1024 * 1024
	}
	v = strings.TrimRight(v, "kmgb")
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("invalid byte size value %q", value)
	}
	return n * mult, nil
}

// parseTimeValue parses Go duration syntax plus the connector's bare
// millisecond form ("5000" means 5s).
func parseTimeValue(value string) (time.Duration, error) {
	v := strings.TrimSpace(value)
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid time value %q", value)
	}
	return d, nil
}
