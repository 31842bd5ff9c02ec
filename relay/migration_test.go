package relay

import (
	"testing"

	"github.com/stretchr/testify/require"

	"relayhub/core/errors"
	"relayhub/core/host"
	"relayhub/core/state"
	"relayhub/native/appchain"
	"relayhub/storage"
)

// downgradeValidators rewrites every validator record of the appchain in the
// v1 layout and rolls the schema version back, simulating a store written by
// the previous release.
func (f *fixture) downgradeValidators(t *testing.T, appchainID string) {
	t.Helper()
	for _, removed := range []bool{false, true} {
		listKey := appchain.ValidatorIDsStorageKey(appchainID)
		keyOf := appchain.ValidatorStorageKey
		if removed {
			listKey = appchain.RemovedValidatorIDsStorageKey(appchainID)
			keyOf = appchain.RemovedValidatorStorageKey
		}
		ids, err := f.reg.state.IDs(listKey)
		require.NoError(t, err)
		for _, id := range ids {
			key := keyOf(appchainID, id)
			data, ok, err := f.reg.state.Get(key)
			require.NoError(t, err)
			require.True(t, ok)
			v, err := appchain.DecodeValidator(data)
			require.NoError(t, err)
			require.NoError(t, f.reg.state.Put(key, appchain.EncodeValidatorLegacy(v)))
		}
	}
	require.NoError(t, f.reg.state.Put(schemaVersionKey, appchain.EncodeU32(1)))
}

func TestSchemaVersionDefaultsToOne(t *testing.T) {
	sim := host.NewSim(relayAccount)
	reg := NewRegistry(sim, state.NewManager(storage.NewMemDB()), testCycle)
	version, err := reg.SchemaVersion()
	require.NoError(t, err)
	require.Equal(t, uint32(1), version)
}

func TestInitWritesCurrentSchemaVersion(t *testing.T) {
	f := newFixture(t)
	version, err := f.reg.SchemaVersion()
	require.NoError(t, err)
	require.Equal(t, currentSchemaVersion, version)
}

func TestMigrateUpgradesLegacyRecords(t *testing.T) {
	f := newFixture(t)
	f.stagedAppchain(t, "alpha")
	_, _, err := f.reg.Appchains().RemoveValidator("alpha", "val-2", "")
	require.NoError(t, err)

	f.downgradeValidators(t, "alpha")

	// Legacy records do not decode under the current layout.
	_, err = f.reg.Validator("alpha", "val-1")
	require.Error(t, err)

	f.asOwner()
	require.NoError(t, f.reg.Migrate())

	version, err := f.reg.SchemaVersion()
	require.NoError(t, err)
	require.Equal(t, currentSchemaVersion, version)

	v, err := f.reg.Validator("alpha", "val-1")
	require.NoError(t, err)
	require.Equal(t, "alice.testnet", v.AccountID)
	require.Empty(t, v.Note)

	removed, err := f.reg.Appchains().RemovedValidator("alpha", "val-2")
	require.NoError(t, err)
	require.Equal(t, "bob.testnet", removed.AccountID)
	require.Empty(t, removed.Note)
}

func TestMigrateRequiresOwner(t *testing.T) {
	f := newFixture(t)
	f.sim.SetCaller("stranger.testnet", "stranger.testnet")
	err := f.reg.Migrate()
	require.True(t, errors.HasCode(err, errors.CodeNotOwner))
}

func TestMigrateIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.stagedAppchain(t, "alpha")
	f.downgradeValidators(t, "alpha")

	f.asOwner()
	require.NoError(t, f.reg.Migrate())
	snapshot := f.db.Snapshot()

	require.NoError(t, f.reg.Migrate())
	require.Equal(t, snapshot, f.db.Snapshot())
}

func TestMigrateSkipsAlreadyUpgradedRecords(t *testing.T) {
	f := newFixture(t)
	f.stagedAppchain(t, "alpha")
	f.downgradeValidators(t, "alpha")

	// One record was already rewritten by a previous partial run.
	key := appchain.ValidatorStorageKey("alpha", "val-2")
	data, ok, err := f.reg.state.Get(key)
	require.NoError(t, err)
	require.True(t, ok)
	v, err := appchain.DecodeValidatorLegacy(data)
	require.NoError(t, err)
	require.NoError(t, f.reg.state.Put(key, appchain.EncodeValidator(v)))

	f.asOwner()
	require.NoError(t, f.reg.Migrate())

	for _, id := range []string{"val-1", "val-2"} {
		got, err := f.reg.Validator("alpha", id)
		require.NoError(t, err)
		require.Empty(t, got.Note)
	}
}

func TestMigrateAbortsOnCorruptRecord(t *testing.T) {
	f := newFixture(t)
	f.stagedAppchain(t, "alpha")
	f.downgradeValidators(t, "alpha")
	require.NoError(t, f.reg.state.Put(appchain.ValidatorStorageKey("alpha", "val-1"), []byte{0xff}))

	snapshot := f.db.Snapshot()
	f.asOwner()
	err := f.reg.Migrate()
	require.True(t, errors.HasCode(err, errors.CodeMigration))

	// Nothing was written: the version stays at 1 and every record is
	// byte-identical.
	require.Equal(t, snapshot, f.db.Snapshot())
	version, err := f.reg.SchemaVersion()
	require.NoError(t, err)
	require.Equal(t, uint32(1), version)
}
