// Package target holds the snapshot of a function app's hosting facts that
// drives strategy selection.
package target

import (
	"fmt"
	"maps"
	"sort"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/railwayapp/funcpush/internal/deployerr"
)

// OS is the operating system of the hosting plan.
type OS string

const (
	Linux   OS = "linux"
	Windows OS = "windows"
)

// Tier is the hosting plan family.
type Tier string

const (
	Dynamic        Tier = "dynamic"
	ElasticPremium Tier = "elastic-premium"
	Dedicated      Tier = "dedicated"
)

// Well-known application setting keys.
const (
	SettingRunFromPackage    = "WEBSITE_RUN_FROM_PACKAGE"
	SettingRunFromZip        = "WEBSITE_RUN_FROM_ZIP"
	SettingMountEnabled      = "WEBSITE_MOUNT_ENABLED"
	SettingWorkerRuntime     = "FUNCTIONS_WORKER_RUNTIME"
	SettingExtensionVersion  = "FUNCTIONS_EXTENSION_VERSION"
	SettingStorage           = "AzureWebJobsStorage"
	SettingContentConnection = "WEBSITE_CONTENTAZUREFILECONNECTIONSTRING"
	SettingContentShare      = "WEBSITE_CONTENTSHARE"
	SettingScmRunFromPackage = "SCM_RUN_FROM_PACKAGE"
	SettingEnableOryxBuild   = "ENABLE_ORYX_BUILD"
	SettingBuildDuringDeploy = "SCM_DO_BUILD_DURING_DEPLOYMENT"
	SettingBuildFlags        = "BUILD_FLAGS"
	SettingXdgCacheHome      = "XDG_CACHE_HOME"
	ImageVersionKey          = "linuxFxVersion"
)

// Target is an immutable view of a function app. Settings are only reachable
// through copying accessors so a selected plan can never alias them.
type Target struct {
	ID           string
	Name         string
	OS           OS
	Tier         Tier
	ImageVersion string
	SCMHost      string

	settings map[string]string
}

// WithSettings returns a copy of t carrying a private copy of settings.
func (t Target) WithSettings(settings map[string]string) Target {
	t.settings = maps.Clone(settings)
	if t.settings == nil {
		t.settings = map[string]string{}
	}
	return t
}

// Setting looks up a remote setting by case-insensitive key.
func (t Target) Setting(key string) (string, bool) {
	if v, ok := t.settings[key]; ok {
		return v, true
	}
	for k, v := range t.settings {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return "", false
}

// Settings returns a copy of the remote settings.
func (t Target) Settings() map[string]string {
	return maps.Clone(t.settings)
}

// SettingKeys returns the remote setting names in sorted order.
func (t Target) SettingKeys() []string {
	keys := make([]string, 0, len(t.settings))
	for k := range t.settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// WorkerRuntime is the remote FUNCTIONS_WORKER_RUNTIME value, if any.
func (t Target) WorkerRuntime() string {
	v, _ := t.Setting(SettingWorkerRuntime)
	return v
}

func (t Target) IsLinux() bool { return t.OS == Linux }

func (t Target) String() string {
	return fmt.Sprintf("%s (%s, %s)", t.Name, t.OS, t.Tier)
}

// Parse builds a Target from the management API site document and the
// appsettings list response.
func Parse(site, appSettings []byte) (Target, error) {
	if !gjson.ValidBytes(site) {
		return Target{}, fmt.Errorf("invalid site document")
	}
	doc := gjson.ParseBytes(site)

	t := Target{
		ID:   doc.Get("id").String(),
		Name: doc.Get("name").String(),
		OS:   Windows,
	}
	if strings.Contains(strings.ToLower(doc.Get("kind").String()), "linux") {
		t.OS = Linux
	}

	switch sku := doc.Get("properties.sku").String(); strings.ToLower(sku) {
	case "dynamic":
		t.Tier = Dynamic
	case "elasticpremium":
		t.Tier = ElasticPremium
	case "flexconsumption":
		return Target{}, deployerr.Validation("function app %s runs on the Flex Consumption plan, which is not supported", t.Name)
	default:
		t.Tier = Dedicated
	}

	t.ImageVersion = doc.Get(`properties.siteProperties.properties.#(name=="LinuxFxVersion").value`).String()
	if t.ImageVersion == "" {
		t.ImageVersion = doc.Get("properties.siteConfig.linuxFxVersion").String()
	}
	t.SCMHost = doc.Get(`properties.hostNameSslStates.#(hostType=="Repository").name`).String()

	settings := map[string]string{}
	if len(appSettings) > 0 {
		if !gjson.ValidBytes(appSettings) {
			return Target{}, fmt.Errorf("invalid appsettings document")
		}
		gjson.GetBytes(appSettings, "properties").ForEach(func(k, v gjson.Result) bool {
			settings[k.String()] = v.String()
			return true
		})
	}
	return t.WithSettings(settings), nil
}
