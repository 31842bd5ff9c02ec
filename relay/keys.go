package relay

var (
	ownerKey         = []byte("relay/owner")
	settingsKey      = []byte("relay/settings")
	schemaVersionKey = []byte("relay/schema-version")
	nativeTokenPfx   = []byte("relay/native-token/")
)

func nativeTokenKey(appchainID string) []byte {
	buf := make([]byte, 0, len(nativeTokenPfx)+len(appchainID))
	buf = append(buf, nativeTokenPfx...)
	return append(buf, appchainID...)
}
