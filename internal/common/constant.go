package common

// AuthTokenHeaderName is the HTTP header used to carry the installation's
// auth token on outbound cloud requests.
const AuthTokenHeaderName = "Authorization"

// Names of the fixed files inside a tenant directory.
const (
	EncryptedDBFileName = "db.enc"
	WorkingDBFileName   = "vault.db"
	SaltFileName        = "salt"
	AttachmentsDirName  = "attachments"
	LockFileName        = ".lock"
	PasskeyMarkerName   = "secretstore-marker"
)
