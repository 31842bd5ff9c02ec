package appchain

import "strconv"

// Key families of the appchain module. Every key derives exclusively from
// stable identifiers so addressing survives schema migration; no key ever
// embeds mutable state.

var (
	idsKey             = []byte("appchain/ids")
	metadataPrefix     = []byte("appchain/meta/")
	statePrefix        = []byte("appchain/state/")
	validatorIDsPrefix = []byte("appchain/validators/")
	validatorPrefix    = []byte("appchain/validator/")
	accountIndexPrefix = []byte("appchain/account/")
	removedIDsPrefix   = []byte("appchain/removed-validators/")
	removedPrefix      = []byte("appchain/removed-validator/")
	delegatorIDsPrefix = []byte("appchain/delegators/")
	delegatorPrefix    = []byte("appchain/delegator/")
	factPrefix         = []byte("appchain/fact/")
	factsLenPrefix     = []byte("appchain/facts-len/")
	historyPrefix      = []byte("appchain/history/")
	historiesLenPrefix = []byte("appchain/histories-len/")
	lockedPrefix       = []byte("appchain/locked/")
	lockedTokensPrefix = []byte("appchain/locked-tokens/")
	usedMessagePrefix  = []byte("appchain/used-message/")
)

func join(prefix []byte, parts ...string) []byte {
	size := len(prefix)
	for _, p := range parts {
		size += len(p) + 1
	}
	buf := make([]byte, 0, size)
	buf = append(buf, prefix...)
	for i, p := range parts {
		if i > 0 {
			buf = append(buf, '/')
		}
		buf = append(buf, p...)
	}
	return buf
}

func metadataKey(appchainID string) []byte { return join(metadataPrefix, appchainID) }
func stateKey(appchainID string) []byte    { return join(statePrefix, appchainID) }

func validatorIDsKey(appchainID string) []byte { return join(validatorIDsPrefix, appchainID) }
func validatorKey(appchainID, validatorID string) []byte {
	return join(validatorPrefix, appchainID, validatorID)
}
func accountIndexKey(appchainID, accountID string) []byte {
	return join(accountIndexPrefix, appchainID, accountID)
}

func removedIDsKey(appchainID string) []byte { return join(removedIDsPrefix, appchainID) }
func removedValidatorKey(appchainID, validatorID string) []byte {
	return join(removedPrefix, appchainID, validatorID)
}

func delegatorIDsKey(appchainID, validatorID string) []byte {
	return join(delegatorIDsPrefix, appchainID, validatorID)
}
func delegatorKey(appchainID, validatorID, delegatorID string) []byte {
	return join(delegatorPrefix, appchainID, validatorID, delegatorID)
}

func factKey(appchainID string, index uint32) []byte {
	return join(factPrefix, appchainID, strconv.FormatUint(uint64(index), 10))
}
func factsLenKey(appchainID string) []byte { return join(factsLenPrefix, appchainID) }

func historyKey(appchainID string, index uint32) []byte {
	return join(historyPrefix, appchainID, strconv.FormatUint(uint64(index), 10))
}
func historiesLenKey(appchainID string) []byte { return join(historiesLenPrefix, appchainID) }

func lockedKey(appchainID, tokenID string) []byte {
	return join(lockedPrefix, appchainID, tokenID)
}
func lockedTokensKey(appchainID string) []byte { return join(lockedTokensPrefix, appchainID) }

func usedMessageKey(appchainID string, nonce uint64) []byte {
	return join(usedMessagePrefix, appchainID, strconv.FormatUint(nonce, 10))
}

// ValidatorStorageKey exposes the stable key of a validator record for the
// schema-migration routine, which rewrites records in place.
func ValidatorStorageKey(appchainID, validatorID string) []byte {
	return validatorKey(appchainID, validatorID)
}

// ValidatorIDsStorageKey exposes the validator id index of an appchain.
func ValidatorIDsStorageKey(appchainID string) []byte {
	return validatorIDsKey(appchainID)
}

// RemovedValidatorIDsStorageKey exposes the removed-validator id index.
func RemovedValidatorIDsStorageKey(appchainID string) []byte {
	return removedIDsKey(appchainID)
}

// RemovedValidatorStorageKey is the removed-validator counterpart of
// ValidatorStorageKey.
func RemovedValidatorStorageKey(appchainID, validatorID string) []byte {
	return removedValidatorKey(appchainID, validatorID)
}
