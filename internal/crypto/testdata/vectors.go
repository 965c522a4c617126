package testdata

// TestVector contains known input/output pairs for key derivation.
type TestVector struct {
	Name       string
	Passphrase string
	Salt       string // Base64
	KDF        string
	Iterations int
	Key        string // Hex
}

// Salt used by every vector: "lssh-test-salt-0123456789abcdef!" (32 bytes).
const Salt = "bHNzaC10ZXN0LXNhbHQtMDEyMzQ1Njc4OWFiY2RlZiE="

// Vectors contains reference keys computed with an independent
// PBKDF2-HMAC-SHA256 / scrypt implementation.
var Vectors = []TestVector{
	{
		Name:       "short passphrase pbkdf2 10k",
		Passphrase: "pw",
		Salt:       Salt,
		KDF:        "pbkdf2",
		Iterations: 10000,
		Key:        "ba6f9455013b902a35c691e3beeec606e510f692b9bddc7923974276369ff500",
	},
	{
		Name:       "short passphrase pbkdf2 100k",
		Passphrase: "pw",
		Salt:       Salt,
		KDF:        "pbkdf2",
		Iterations: 100000,
		Key:        "3849d97137ec803583e7cce8a13d513a43149b38f7489f6d19dd2e08ea498d64",
	},
	{
		Name:       "passphrase with spaces",
		Passphrase: "correct horse battery staple",
		Salt:       Salt,
		KDF:        "pbkdf2",
		Iterations: 10000,
		Key:        "1af1c94d1ebb2f9e59b4a29b852680b591c0678010cab64d33c90ed3b3c92f0d",
	},
	{
		Name:       "unicode passphrase",
		Passphrase: "пароль123",
		Salt:       Salt,
		KDF:        "pbkdf2",
		Iterations: 10000,
		Key:        "006afd49068a829029f007f23b1bc536afbdb20b595746ff9b12c8c7124ab6bc",
	},
	{
		Name:       "scrypt",
		Passphrase: "pw",
		Salt:       Salt,
		KDF:        "scrypt",
		Iterations: 16384,
		Key:        "40b057e96fe9c8e045252f94b7dcdcf89c39e45cbd61ab47993fb9bb3b0f4e9e",
	},
}
