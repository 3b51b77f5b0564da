// Package settings reconciles local app settings with the ones stored on a
// function app.
package settings

import (
	"fmt"
	"maps"
	"sort"
	"strings"
)

// Resolution is the outcome of one step of a conflict prompt.
type Resolution int

const (
	KeepRemote Resolution = iota
	UseLocal
	Shown
)

func (r Resolution) String() string {
	switch r {
	case UseLocal:
		return "use-local"
	case Shown:
		return "shown"
	default:
		return "keep-remote"
	}
}

// Conflict is a key whose local and remote values differ.
type Conflict struct {
	Key         string
	LocalValue  string
	RemoteValue string

	// Trail records every answer given, ending with KeepRemote or UseLocal.
	Trail []Resolution
}

// Resolution returns the final decision for the key.
func (c Conflict) Resolution() Resolution {
	if len(c.Trail) == 0 {
		return KeepRemote
	}
	return c.Trail[len(c.Trail)-1]
}

// Console receives operator-facing messages.
type Console interface {
	Info(format string, args ...any)
	Warn(format string, args ...any)
}

// Result is the merged settings map and what happened on the way.
type Result struct {
	Settings  map[string]string
	Conflicts []Conflict
	Removed   []string
}

// Reconciler merges local settings into remote ones.
type Reconciler struct {
	Console Console
	Prompt  Prompt

	// Overwrite resolves every conflict in favour of the local value
	// without asking.
	Overwrite bool

	// Source names the local settings file in messages.
	Source string
}

const overwriteQuestion = "Would you like to overwrite value in azure? [yes/no/show]"

// Merge returns a new map built from remote, then local, then forced. Keys
// compare case-insensitively and keep the casing they already have remotely.
// A forced empty value removes the key. None of the inputs is modified.
func (r *Reconciler) Merge(remote, local, forced map[string]string) (Result, error) {
	res := Result{Settings: maps.Clone(remote)}
	if res.Settings == nil {
		res.Settings = map[string]string{}
	}
	source := r.Source
	if source == "" {
		source = "local settings"
	}

	for _, key := range sortedKeys(local) {
		value := local[key]
		existingKey, existing, ok := lookup(res.Settings, key)
		if !ok || strings.EqualFold(existing, value) {
			if !ok {
				existingKey = key
			}
			res.Settings[existingKey] = value
			continue
		}

		r.info("App setting %s is different between azure and %s", key, source)
		conflict := Conflict{Key: existingKey, LocalValue: value, RemoteValue: existing}
		if r.Overwrite {
			r.warn("Overwriting setting in azure with local value because '--overwrite-settings [-y]' was specified.")
			conflict.Trail = []Resolution{UseLocal}
		} else {
			trail, err := r.ask(conflict)
			if err != nil {
				return Result{}, fmt.Errorf("failed to resolve setting %s: %w", key, err)
			}
			conflict.Trail = trail
		}
		if conflict.Resolution() == UseLocal {
			res.Settings[existingKey] = value
		}
		res.Conflicts = append(res.Conflicts, conflict)
	}

	for _, key := range sortedKeys(forced) {
		value := forced[key]
		existingKey, _, ok := lookup(res.Settings, key)
		switch {
		case value != "" && ok:
			res.Settings[existingKey] = value
		case value != "":
			res.Settings[key] = value
		case ok:
			delete(res.Settings, existingKey)
			res.Removed = append(res.Removed, existingKey)
		}
	}
	return res, nil
}

func (r *Reconciler) ask(c Conflict) ([]Resolution, error) {
	if r.Prompt == nil {
		return nil, fmt.Errorf("no prompt available; pass --overwrite-settings to overwrite remote values")
	}
	var trail []Resolution
	for {
		answer, err := r.Prompt.Ask(overwriteQuestion)
		if err != nil {
			return nil, err
		}
		switch strings.ToLower(strings.TrimSpace(answer)) {
		case "yes", "y":
			return append(trail, UseLocal), nil
		case "no", "n":
			return append(trail, KeepRemote), nil
		case "show", "s":
			r.info("Azure: %s", c.RemoteValue)
			r.info("Locally: %s", c.LocalValue)
			trail = append(trail, Shown)
		}
	}
}

func (r *Reconciler) info(format string, args ...any) {
	if r.Console != nil {
		r.Console.Info(format, args...)
	}
}

func (r *Reconciler) warn(format string, args ...any) {
	if r.Console != nil {
		r.Console.Warn(format, args...)
	}
}

// lookup finds key case-insensitively, preferring an exact match.
func lookup(m map[string]string, key string) (string, string, bool) {
	if v, ok := m[key]; ok {
		return key, v, true
	}
	for k, v := range m {
		if strings.EqualFold(k, key) {
			return k, v, true
		}
	}
	return "", "", false
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
