package constants

// Credential encryption at rest
const (
	EnvEnableEncryption = "WHATSFLOW_ENABLE_ENCRYPTION"
	EnvEncryptionSecret = "WHATSFLOW_ENCRYPTION_SECRET"
	EncryptionSalt      = "whatsflow-credential-salt-v1"
	MinEncryptionSecret = 32
)
