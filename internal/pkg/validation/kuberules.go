/*
MIT License

Copyright (c) 2019-2024 Norihiro Seto

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.
*/
package validation

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"time"
)

// validNodeName is a regex pattern for Kubernetes node name validation
// Based on Kubernetes DNS-1123 subdomain naming rules
var validNodeName = regexp.MustCompile(`^[a-z0-9]([-a-z0-9]*[a-z0-9])?(\.[a-z0-9]([-a-z0-9]*[a-z0-9])?)*$`)

// ValidateNodeName validates a node name
// Returns an error if the name is empty, too long, or doesn't match Kubernetes naming rules
func ValidateNodeName(name string) error {
	if name == "" {
		return fmt.Errorf("node name cannot be empty")
	}

	if len(name) > 253 {
		return fmt.Errorf("node name too long: %d characters", len(name))
	}

	if !validNodeName.MatchString(name) {
		return fmt.Errorf("invalid node name format: %s", name)
	}

	return nil
}

// ValidateURL validates an absolute http(s) URL
func ValidateURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("url cannot be empty")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid url scheme: %q (must be http or https)", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("url has no host: %s", raw)
	}

	return nil
}

// ValidateBindAddress validates a host:port listen address
func ValidateBindAddress(addr string) error {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return fmt.Errorf("invalid bind address: %w", err)
	}
	return nil
}

// ValidatePositiveDuration returns an error if d is not greater than zero
func ValidatePositiveDuration(name string, d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("invalid %s: %s (must be positive)", name, d)
	}
	return nil
}

// ValidateDelays validates a retry delay sequence. An empty sequence is valid.
func ValidateDelays(name string, delays []time.Duration) error {
	for i, d := range delays {
		if d < 0 {
			return fmt.Errorf("invalid %s: delay #%d is negative: %s", name, i, d)
		}
	}
	return nil
}
