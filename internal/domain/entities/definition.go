package entities

// Definition describes how one web application is built, packaged and verified
type Definition struct {
	Name        string
	Version     string
	SourceDir   string
	Lockfile    string
	NpmDepsHash string // Declared aggregate hash of the dependency closure
	StoreDir    string
	CacheDir    string
	Toolchain   Toolchain
	Build       BuildConfig
	Artifact    ArtifactConfig
	Runtime     RuntimeConfig
	Image       ImageConfig
	Security    SecurityConfig
}

// Toolchain pins the versions the build runs with
type Toolchain struct {
	NodeVersion string
	NpmVersion  string
}

// BuildConfig holds the build command and its environment
type BuildConfig struct {
	Command        string
	Env            map[string]string
	TimeoutMinutes int
}

// ArtifactConfig lists what the assembler copies out of the build output
type ArtifactConfig struct {
	Required []string
	Optional []string
	Launcher string
}

// RuntimeConfig describes the runtime environment the artifact runs in
type RuntimeConfig struct {
	Port     int
	NodePath string // Directory containing the node installation (bin/node)
	CABundle string
}

// ImageConfig holds container image metadata
type ImageConfig struct {
	Name string
	Tag  string
	Env  map[string]string
}

// SecurityConfig holds verification settings
type SecurityConfig struct {
	TrustAnchorURL      string
	KeyringFile         string
	MaxFindings         int
	SmokeTimeoutSeconds int
	OSVEndpoint         string
}
