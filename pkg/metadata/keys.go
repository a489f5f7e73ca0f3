// SPDX-License-Identifier: MPL-2.0

package metadata

// Recognized descriptor keys, shared by the strict and legacy readers.
// KeyDependency is the singular spelling of KeyDependencies; both readers
// accept it and Write emits KeyDependencies.
const (
	KeyName                   Key = "name"
	KeyAuthor                 Key = "author"
	KeyVersion                Key = "version"
	KeyLicense                Key = "license"
	KeySummary                Key = "summary"
	KeyDescription            Key = "description"
	KeySource                 Key = "source"
	KeyProjectPage            Key = "project_page"
	KeyIssuesURL              Key = "issues_url"
	KeyTags                   Key = "tags"
	KeyDependency             Key = "dependency"
	KeyDependencies           Key = "dependencies"
	KeyRequirements           Key = "requirements"
	KeyOperatingSystemSupport Key = "operatingsystem_support"
	KeyTypes                  Key = "types"
	KeyChecksums              Key = "checksums"
)

// Keys inside dependency, requirement and platform objects.
const (
	fieldName               = "name"
	fieldVersionRequirement = "version_requirement"
	fieldVersionRange       = "version_range"
	fieldOperatingSystem    = "operatingsystem"
	fieldOSRelease          = "operatingsystemrelease"
	fieldDoc                = "doc"
	fieldParameters         = "parameters"
	fieldProperties         = "properties"
	fieldProviders          = "providers"
)

// Key is a recognized top-level descriptor attribute.
type Key string

// keyOrder is the canonical order of keys in a written descriptor.
var keyOrder = []Key{
	KeyName, KeyVersion, KeyAuthor, KeySummary, KeyLicense, KeySource,
	KeyProjectPage, KeyIssuesURL, KeyDescription, KeyTags,
	KeyOperatingSystemSupport, KeyRequirements, KeyDependencies, KeyTypes, KeyChecksums,
}

// LookupKey returns the Key for text and whether it is recognized.
func LookupKey(text string) (Key, bool) {
	k := Key(text)
	switch k {
	case KeyName, KeyAuthor, KeyVersion, KeyLicense, KeySummary, KeyDescription,
		KeySource, KeyProjectPage, KeyIssuesURL, KeyTags, KeyDependency, KeyDependencies,
		KeyRequirements, KeyOperatingSystemSupport, KeyTypes, KeyChecksums:
		return k, true
	}
	return "", false
}

// isSingleValue reports whether k carries one string.
func (k Key) isSingleValue() bool {
	switch k {
	case KeyName, KeyAuthor, KeyVersion, KeyLicense, KeySummary, KeyDescription,
		KeySource, KeyProjectPage, KeyIssuesURL:
		return true
	}
	return false
}
