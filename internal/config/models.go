package config

// TokenReferences is the document format of the token references file.
type TokenReferences struct {
	References []TokenReference `yaml:"references"`
}

// TokenReference pairs an identity URL with the token endpoint that issues
// tokens for it.
type TokenReference struct {
	Me       string `yaml:"me"`
	Endpoint string `yaml:"endpoint"`
}
