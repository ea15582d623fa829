package core

// PackageSpec is a package name as requested on the command line, in a
// requirements file or in a dependency blob. It carries no version: the
// index's latest release is always installed.
type PackageSpec = string

// MemberType classifies an archive member
type MemberType int

const (
	MemberRegular MemberType = iota
	MemberDirectory
	MemberOther
)

// String returns the member type name used in logs
func (t MemberType) String() string {
	switch t {
	case MemberRegular:
		return "file"
	case MemberDirectory:
		return "dir"
	default:
		return "other"
	}
}

// InstallMeta is side-channel data gathered while unpacking one package
type InstallMeta struct {
	Deps    []byte   // raw requires.txt contents, nil when the archive has none
	Files   []string // destination paths written
	Skipped []string // archive-relative paths not written (metadata, links)
}

// HasDeps reports whether a dependency blob was captured
func (m *InstallMeta) HasDeps() bool {
	return m != nil && m.Deps != nil
}

// Release describes the artifact selected for a package
type Release struct {
	Name     string `json:"name"`
	Version  string `json:"version"`
	URL      string `json:"url"`
	Filename string `json:"filename,omitempty"`
}

// InstalledPackage is one entry of an install report
type InstalledPackage struct {
	Name    string   `json:"name"`
	Version string   `json:"version"`
	URL     string   `json:"url"`
	Files   []string `json:"files,omitempty"`
	Deps    []string `json:"deps,omitempty"`
}

// Exit codes
const (
	ExitSuccess       = 0
	ExitGeneral       = 1
	ExitInvalidArgs   = 2
	ExitInstallFailed = 3
	ExitNetwork       = 7
	ExitInterrupted   = 130
)
