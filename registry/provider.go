package registry

import "strings"

// Provider is a CDN whose URL templates serve npm package manifests and
// files. {package}, {version} and {path} are substituted verbatim.
type Provider struct {
	Name                string
	PackageJSONTemplate string
	ModuleTemplate      string
}

func (p Provider) manifestURL(pkg, version string) string {
	r := strings.NewReplacer("{package}", pkg, "{version}", version)
	return r.Replace(p.PackageJSONTemplate)
}

func (p Provider) fileURL(pkg, version, path string) string {
	r := strings.NewReplacer("{package}", pkg, "{version}", version, "{path}", path)
	return r.Replace(p.ModuleTemplate)
}

// Built-in providers, tried in this order unless the caller overrides it.
var (
	EsmSh = Provider{
		Name:                "esm.sh",
		PackageJSONTemplate: "https://esm.sh/{package}@{version}/package.json",
		ModuleTemplate:      "https://esm.sh/{package}@{version}/{path}",
	}
	Jsdelivr = Provider{
		Name:                "jsdelivr",
		PackageJSONTemplate: "https://cdn.jsdelivr.net/npm/{package}@{version}/package.json",
		ModuleTemplate:      "https://cdn.jsdelivr.net/npm/{package}@{version}/{path}",
	}
	Unpkg = Provider{
		Name:                "unpkg",
		PackageJSONTemplate: "https://unpkg.com/{package}@{version}/package.json",
		ModuleTemplate:      "https://unpkg.com/{package}@{version}/{path}",
	}
)

// DefaultChain is the provider fallback order used when a Registry is built
// without an explicit chain.
var DefaultChain = []Provider{EsmSh, Jsdelivr, Unpkg}

// ProviderByName resolves a provider by its name or common alias.
func ProviderByName(name string) (Provider, bool) {
	switch name {
	case "esm.sh", "esmsh", "esm":
		return EsmSh, true
	case "jsdelivr", "jsdelivr.net", "cdn.jsdelivr.net":
		return Jsdelivr, true
	case "unpkg":
		return Unpkg, true
	default:
		return Provider{}, false
	}
}
