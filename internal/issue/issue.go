// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"maps"
	"slices"

	"github.com/charmbracelet/glamour"
)

const (
	DescriptorNotFoundId Id = iota + 1
	DescriptorParseErrorId
	ConfigLoadFailedId
	ModuleNotFoundId
	RegistryUnavailableId
	DependencyCycleId
	VersionMismatchId
	StrictResolutionFailedId
	ArchiveCorruptId
	PermissionDeniedId
)

type (
	Id int

	MarkdownMsg string

	HttpLink string

	Issue struct {
		id       Id          // ID used to lookup the issue
		mdMsg    MarkdownMsg // Markdown text that will be rendered
		docLinks []HttpLink  // must never be empty, because we need to have docs about all issue types
		extLinks []HttpLink  // external links that might be useful for the user
	}
)

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

func (i *Issue) Render(stylePath string) (string, error) {
	extraMd := ""
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		extraMd += "\n\n## See also\n"
		for _, link := range i.docLinks {
			extraMd += "- <" + string(link) + ">\n"
		}
		for _, link := range i.extLinks {
			extraMd += "- <" + string(link) + ">\n"
		}
	}
	return render(string(i.mdMsg)+extraMd, stylePath)
}

var (
	render = glamour.Render

	descriptorNotFoundIssue = &Issue{
		id: DescriptorNotFoundId,
		mdMsg: `
# No module descriptor found!

The directory does not contain a ` + "`metadata.json`" + ` or a ` + "`Modulefile`" + `.

## Things you can try:
- Run the command from the module root directory.
- Create a minimal descriptor:
~~~json
{
  "name": "acme-widget",
  "version": "0.1.0",
  "dependencies": []
}
~~~`,
	}

	descriptorParseErrorIssue = &Issue{
		id: DescriptorParseErrorId,
		mdMsg: `
# Failed to parse the module descriptor!

The descriptor could not be read as a document at all, so no metadata was produced.

## Things you can try:
- Check the reported line for a missing comma, quote or brace.
- Validate the descriptor on its own:
~~~
$ modforge validate
~~~`,
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

The configuration file is not valid CUE or does not match the configuration schema.

## Things you can try:
- Print the effective configuration:
~~~
$ modforge config show
~~~
- Remove the file to fall back to the defaults.`,
	}

	moduleNotFoundIssue = &Issue{
		id: ModuleNotFoundId,
		mdMsg: `
# Module not found in the registry!

A declared dependency has no releases in the configured registry.

## Things you can try:
- Check the spelling of the dependency name (` + "`owner-name` or `owner/name`" + `).
- Check which registry is configured with ` + "`modforge config show`" + `.`,
	}

	registryUnavailableIssue = &Issue{
		id: RegistryUnavailableId,
		mdMsg: `
# The registry is unavailable!

Requests kept failing with server errors or rate limits and were given up on.

## Things you can try:
- Wait a few minutes and try again.
- Point ` + "`registry.dir`" + ` at a local mirror of release files.`,
	}

	dependencyCycleIssue = &Issue{
		id: DependencyCycleId,
		mdMsg: `
# Circular dependency detected!

A module depends, directly or through other modules, on itself.
Resolution continues, but the cycle should be broken.

## Things you can try:
- Remove one of the dependencies listed in the cycle.`,
	}

	versionMismatchIssue = &Issue{
		id: VersionMismatchId,
		mdMsg: `
# Installed version does not satisfy a declared range!

No available release matched the requested range, or another module already
selected a release outside of it. The closest release was used instead.

## Things you can try:
- Relax the version requirement of the dependency.
- Align the ranges declared by modules that share the dependency.`,
	}

	strictResolutionFailedIssue = &Issue{
		id: StrictResolutionFailedId,
		mdMsg: `
# Resolution failed in strict mode!

Strict mode stops before installing anything when resolution reported errors.

## Things you can try:
- Fix the errors listed above.
- Disable strict mode with ` + "`resolve: strict: false`" + ` in your configuration.`,
	}

	archiveCorruptIssue = &Issue{
		id: ArchiveCorruptId,
		mdMsg: `
# Release archive is corrupt!

The archive is truncated, escapes its target directory or contains unsupported links.

## Things you can try:
- Clear the cache and fetch again:
~~~
$ modforge cache clean
~~~`,
	}

	permissionDeniedIssue = &Issue{
		id: PermissionDeniedId,
		mdMsg: `
# Permission denied!

The install root or cache directory cannot be written.

## Things you can try:
- Check the ownership of the directory.
- Point ` + "`install_root` or `cache_dir`" + ` at a writable location.`,
	}

	issues = map[Id]*Issue{
		descriptorNotFoundIssue.Id():     descriptorNotFoundIssue,
		descriptorParseErrorIssue.Id():   descriptorParseErrorIssue,
		configLoadFailedIssue.Id():       configLoadFailedIssue,
		moduleNotFoundIssue.Id():         moduleNotFoundIssue,
		registryUnavailableIssue.Id():    registryUnavailableIssue,
		dependencyCycleIssue.Id():        dependencyCycleIssue,
		versionMismatchIssue.Id():        versionMismatchIssue,
		strictResolutionFailedIssue.Id(): strictResolutionFailedIssue,
		archiveCorruptIssue.Id():         archiveCorruptIssue,
		permissionDeniedIssue.Id():       permissionDeniedIssue,
	}
)

func Values() []*Issue {
	return slices.SortedFunc(maps.Values(issues), func(a, b *Issue) int { return int(a.id - b.id) })
}

func Get(id Id) *Issue {
	return issues[id]
}
