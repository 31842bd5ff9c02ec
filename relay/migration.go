package relay

import (
	"relayhub/core/errors"
	"relayhub/native/appchain"
)

// currentSchemaVersion is the record layout this build reads and writes.
// Version 2 added the note field to validator records.
const currentSchemaVersion uint32 = 2

// SchemaVersion returns the persisted schema version. Stores written before
// versioning count as version 1.
func (r *Registry) SchemaVersion() (uint32, error) {
	data, ok, err := r.state.Get(schemaVersionKey)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 1, nil
	}
	return appchain.DecodeU32(data)
}

// Migrate upgrades the store to the current schema in place. The routine is
// idempotent and re-entrant: it decodes every affected record before writing
// anything, so a record that fails to decode aborts with storage unchanged,
// and a second run over an upgraded store is a no-op.
func (r *Registry) Migrate() error {
	if err := r.requireOwner(); err != nil {
		return err
	}
	version, err := r.SchemaVersion()
	if err != nil {
		return err
	}
	if version >= currentSchemaVersion {
		return nil
	}
	if version == 1 {
		if err := r.migrateValidatorNotes(); err != nil {
			return err
		}
	}
	if err := r.state.Put(schemaVersionKey, appchain.EncodeU32(currentSchemaVersion)); err != nil {
		return err
	}
	r.log.Info("schema migrated", "from", version, "to", currentSchemaVersion)
	return nil
}

type migratedRecord struct {
	key       []byte
	validator *appchain.Validator
}

// migrateValidatorNotes rewrites every active and removed validator record of
// every appchain from the v1 layout to the v2 layout, defaulting the new note
// field to the empty string. Decode of all records happens before the first
// write.
func (r *Registry) migrateValidatorNotes() error {
	ids, err := r.appchains.IDs()
	if err != nil {
		return err
	}
	var records []migratedRecord
	for _, appchainID := range ids {
		active, err := r.collectLegacyValidators(appchainID, false)
		if err != nil {
			return err
		}
		removed, err := r.collectLegacyValidators(appchainID, true)
		if err != nil {
			return err
		}
		records = append(records, active...)
		records = append(records, removed...)
	}
	for _, rec := range records {
		if err := r.state.Put(rec.key, appchain.EncodeValidator(rec.validator)); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) collectLegacyValidators(appchainID string, removed bool) ([]migratedRecord, error) {
	listKey := appchain.ValidatorIDsStorageKey(appchainID)
	keyOf := appchain.ValidatorStorageKey
	if removed {
		listKey = appchain.RemovedValidatorIDsStorageKey(appchainID)
		keyOf = appchain.RemovedValidatorStorageKey
	}
	ids, err := r.state.IDs(listKey)
	if err != nil {
		return nil, err
	}
	out := make([]migratedRecord, 0, len(ids))
	for _, id := range ids {
		key := keyOf(appchainID, id)
		data, ok, err := r.state.Get(key)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errors.Newf(errors.CodeMigration, "validator record %q/%q is missing", appchainID, id)
		}
		v, err := appchain.DecodeValidatorLegacy(data)
		if err != nil {
			// Already-upgraded records decode under the current layout; a
			// record readable under neither layout aborts the migration.
			if _, cur := appchain.DecodeValidator(data); cur == nil {
				continue
			}
			return nil, errors.Newf(errors.CodeMigration, "validator record %q/%q: %s", appchainID, id, err)
		}
		out = append(out, migratedRecord{key: key, validator: v})
	}
	return out, nil
}
