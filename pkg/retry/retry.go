/*
MIT License

Copyright (c) 2024 Norihiro Seto

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

// Package retry runs operations again after a fixed, escalating sequence of delays.
package retry

import (
	"context"
	"fmt"
	"strings"
	"time"

	retrygo "github.com/avast/retry-go"
	"github.com/norseto/kube-spot-operator/pkg/logger"
)

// Delays is the sequence of waits between attempts. An operation wrapped
// with Delays d runs at most len(d)+1 times.
type Delays []time.Duration

func (d Delays) String() string {
	parts := make([]string, len(d))
	for i, v := range d {
		parts[i] = v.String()
	}
	return strings.Join(parts, ",")
}

// Set implements pflag.Value.
func (d *Delays) Set(s string) error {
	parsed, err := ParseDelays(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Type implements pflag.Value.
func (d *Delays) Type() string {
	return "durations"
}

// ParseDelays parses a comma separated list of durations such as "3s,5s,10s".
func ParseDelays(s string) (Delays, error) {
	var delays Delays
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, err := time.ParseDuration(part)
		if err != nil {
			return nil, fmt.Errorf("invalid delay %q: %w", part, err)
		}
		if d < 0 {
			return nil, fmt.Errorf("invalid delay %q: must not be negative", part)
		}
		delays = append(delays, d)
	}
	return delays, nil
}

// Do calls fn until it succeeds or delays is exhausted, waiting delays[k]
// before retry k+1. The last error of fn is returned. Waiting stops early
// when ctx is done.
func Do(ctx context.Context, name string, delays Delays, fn func(ctx context.Context) error) error {
	log := logger.FromContext(ctx, "operation", name)

	var lastErr error
	err := retrygo.Do(
		func() error {
			lastErr = fn(ctx)
			return lastErr
		},
		retrygo.Context(ctx),
		retrygo.Attempts(uint(len(delays)+1)),
		retrygo.DelayType(func(n uint, _ error, _ *retrygo.Config) time.Duration {
			if int(n) < len(delays) {
				return delays[n]
			}
			return 0
		}),
		retrygo.LastErrorOnly(true),
		retrygo.OnRetry(func(n uint, err error) {
			if int(n) < len(delays) {
				log.V(1).Info("operation failed, retrying", "attempt", n+1, "delay", delays[n], "error", err.Error())
			}
		}),
	)
	if err != nil && lastErr != nil && err == ctx.Err() {
		return fmt.Errorf("%s aborted: %w, last error: %v", name, err, lastErr)
	}
	return err
}
