package bridge

var (
	tokenIDsKey     = []byte("bridge/tokens")
	tokenPrefix     = []byte("bridge/token/")
	permittedPrefix = []byte("bridge/permitted/")
)

func tokenKey(tokenID string) []byte {
	buf := make([]byte, 0, len(tokenPrefix)+len(tokenID))
	buf = append(buf, tokenPrefix...)
	return append(buf, tokenID...)
}

func permittedKey(tokenID, appchainID string) []byte {
	buf := make([]byte, 0, len(permittedPrefix)+len(tokenID)+1+len(appchainID))
	buf = append(buf, permittedPrefix...)
	buf = append(buf, tokenID...)
	buf = append(buf, '/')
	return append(buf, appchainID...)
}
