// Package strategy picks how an artifact reaches a function app.
package strategy

import (
	"maps"
	"sort"

	"github.com/railwayapp/funcpush/internal/archive"
)

// Kind is the transfer mechanism of a plan.
type Kind int

const (
	// RunFromPackage points the app at a package instead of extracting it.
	RunFromPackage Kind = iota
	// ZipDeploy uploads the artifact to the control plane, which extracts it.
	ZipDeploy
	// ServerSideBuild uploads sources and lets the control plane build them.
	ServerSideBuild
)

func (k Kind) String() string {
	switch k {
	case RunFromPackage:
		return "RunFromPackage"
	case ZipDeploy:
		return "ZipDeploy"
	case ServerSideBuild:
		return "ServerSideBuild"
	default:
		return "Unknown"
	}
}

// MarshalText renders the kind by name in plan output.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Plan is the outcome of Select. It is never mutated after selection.
type Plan struct {
	Kind Kind `json:"kind" yaml:"kind"`

	// ViaBlob is meaningful for RunFromPackage: true stages the package in
	// blob storage, false uploads it through the control plane.
	ViaBlob bool           `json:"viaBlob" yaml:"viaBlob"`
	Format  archive.Format `json:"format" yaml:"format"`

	// ForcedSettings are pushed before the transfer. An empty value removes
	// the key.
	ForcedSettings map[string]string `json:"forcedSettings,omitempty" yaml:"forcedSettings,omitempty"`

	// AwaitSettings requires ForcedSettings to be observed on the control
	// plane before the transfer starts.
	AwaitSettings bool `json:"awaitSettings,omitempty" yaml:"awaitSettings,omitempty"`

	// ImageVersion, when set, replaces the app's container image version.
	ImageVersion string `json:"imageVersion,omitempty" yaml:"imageVersion,omitempty"`

	// MountEnabled sets the mount flag alongside the package pointer.
	MountEnabled bool `json:"mountEnabled,omitempty" yaml:"mountEnabled,omitempty"`

	// CheckRemoteBuild requires the control plane to support remote builds.
	CheckRemoteBuild bool `json:"checkRemoteBuild,omitempty" yaml:"checkRemoteBuild,omitempty"`

	// ExcludeBuildOutput drops compiler output directories from the archive.
	ExcludeBuildOutput bool `json:"excludeBuildOutput,omitempty" yaml:"excludeBuildOutput,omitempty"`

	Warnings []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Notices  []string `json:"notices,omitempty" yaml:"notices,omitempty"`
}

// SyncTriggers reports whether triggers must be synchronized after the plan
// completes. Zip deploy synchronizes on its own.
func (p Plan) SyncTriggers() bool {
	return p.Kind != ZipDeploy
}

// Forced returns a copy of the forced settings.
func (p Plan) Forced() map[string]string {
	return maps.Clone(p.ForcedSettings)
}

// ForcedKeys returns the forced setting names in sorted order.
func (p Plan) ForcedKeys() []string {
	keys := make([]string, 0, len(p.ForcedSettings))
	for k := range p.ForcedSettings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
