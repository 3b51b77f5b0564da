package scm

import (
	"context"
	"errors"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/railwayapp/funcpush/internal/deployerr"
	"github.com/railwayapp/funcpush/internal/target"
)

// LocalPackage is the run-from-package value that points the app at the
// package uploaded through the control plane.
const LocalPackage = "1"

// RunFromPackageSettings returns a copy of settings pointing the app at
// pointer. The legacy pointer key is dropped and reported in removed.
func RunFromPackageSettings(settings map[string]string, pointer string, mount bool) (out map[string]string, removed []string) {
	out = maps.Clone(settings)
	if out == nil {
		out = map[string]string{}
	}
	set(out, target.SettingRunFromPackage, pointer)
	if mount {
		set(out, target.SettingMountEnabled, "1")
	}
	for k := range out {
		if strings.EqualFold(k, target.SettingRunFromZip) {
			delete(out, k)
			removed = append(removed, k)
		}
	}
	return out, removed
}

// set writes key into m, reusing the casing of an existing key.
func set(m map[string]string, key, value string) {
	for k := range m {
		if strings.EqualFold(k, key) {
			m[k] = value
			return
		}
	}
	m[key] = value
}

// WaitForSettings polls the control plane until every key in expected is
// observed with exactly its value. An empty expected value means the key
// must be absent.
func (c *Client) WaitForSettings(ctx context.Context, expected map[string]string) error {
	ctx, cancel := context.WithTimeout(ctx, c.settingsPoll.Timeout)
	defer cancel()

	ticker := time.NewTicker(c.settingsPoll.Interval)
	defer ticker.Stop()

	pending := slices.Sorted(maps.Keys(expected))
	for {
		current, err := c.Settings(ctx)
		switch {
		case err == nil:
			pending = unapplied(expected, current)
			if len(pending) == 0 {
				return nil
			}
			c.log.WithField("pending", pending).Debug("waiting for settings to propagate")
		case !deployerr.Retryable(err):
			return err
		default:
			c.log.WithError(err).Debug("reading control plane settings failed")
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return ctx.Err()
			}
			return &deployerr.PropagationTimeoutError{Keys: pending, Timeout: c.settingsPoll.Timeout}
		case <-ticker.C:
		}
	}
}

func unapplied(expected, current map[string]string) []string {
	var pending []string
	for _, key := range slices.Sorted(maps.Keys(expected)) {
		want := expected[key]
		got, ok := lookup(current, key)
		if want == "" && !ok {
			continue
		}
		if ok && got == want && want != "" {
			continue
		}
		pending = append(pending, key)
	}
	return pending
}

func lookup(m map[string]string, key string) (string, bool) {
	for k, v := range m {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return "", false
}
