package vault

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/credbroker/internal/common"
	"github.com/dmitrijs2005/credbroker/internal/cryptox"
	"github.com/dmitrijs2005/credbroker/internal/logging"
)

func newTestVault(t *testing.T) *Vault {
	t.Helper()
	log := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	atRest := cryptox.NewAtRest("0123456789abcdef0123456789abcdef", []byte("test-salt"))
	v, err := New(t.TempDir(), atRest, log)
	require.NoError(t, err)
	return v
}

func int64p(v int64) *int64 { return &v }

func TestMultiSession_RoundTrip(t *testing.T) {
	v := newTestVault(t)

	// Empty store loads as empty collection without error.
	multi, err := v.LoadMultiSession()
	require.NoError(t, err)
	require.Empty(t, multi.Sessions)

	s1 := CodeSession{Code: "AAA", SessionToken: "tok-a", DeviceID: "dev"}
	s2 := CodeSession{Code: "BBB", SessionToken: "tok-b", DeviceID: "dev", ExpiresAt: int64p(9999999999)}
	require.NoError(t, v.UpsertCodeSession(s1))
	require.NoError(t, v.UpsertCodeSession(s2))

	multi, err = v.LoadMultiSession()
	require.NoError(t, err)
	require.Equal(t, []CodeSession{s1, s2}, multi.Sessions)
}

func TestUpsertCodeSession_ReplacesSameCode(t *testing.T) {
	v := newTestVault(t)

	require.NoError(t, v.UpsertCodeSession(CodeSession{Code: "AAA", SessionToken: "old", DeviceID: "dev"}))
	require.NoError(t, v.UpsertCodeSession(CodeSession{Code: "BBB", SessionToken: "tok-b", DeviceID: "dev"}))
	require.NoError(t, v.UpsertCodeSession(CodeSession{Code: "AAA", SessionToken: "new", DeviceID: "dev"}))

	multi, err := v.LoadMultiSession()
	require.NoError(t, err)
	require.Len(t, multi.Sessions, 2)
	// Re-activation replaces, never duplicates; replaced session moves last.
	require.Equal(t, "BBB", multi.Sessions[0].Code)
	require.Equal(t, "AAA", multi.Sessions[1].Code)
	require.Equal(t, "new", multi.Sessions[1].SessionToken)
}

func TestListValidSessions_FiltersByExpiry(t *testing.T) {
	v := newTestVault(t)
	now := time.Now()

	expired := CodeSession{Code: "EXP", SessionToken: "t1", DeviceID: "d", ExpiresAt: int64p(now.Unix() - 1)}
	future := CodeSession{Code: "FUT", SessionToken: "t2", DeviceID: "d", ExpiresAt: int64p(now.Unix() + 1)}
	forever := CodeSession{Code: "INF", SessionToken: "t3", DeviceID: "d"}
	require.NoError(t, v.UpsertCodeSession(expired))
	require.NoError(t, v.UpsertCodeSession(future))
	require.NoError(t, v.UpsertCodeSession(forever))

	valid := v.ListValidSessions(now)
	require.Equal(t, []CodeSession{future, forever}, valid)
}

func TestUpdateAllExpiries(t *testing.T) {
	v := newTestVault(t)

	require.NoError(t, v.UpsertCodeSession(CodeSession{Code: "A", SessionToken: "t", DeviceID: "d"}))
	require.NoError(t, v.UpsertCodeSession(CodeSession{Code: "B", SessionToken: "t", DeviceID: "d", ExpiresAt: int64p(1)}))

	require.NoError(t, v.UpdateAllExpiries(12345))

	multi, err := v.LoadMultiSession()
	require.NoError(t, err)
	for _, s := range multi.Sessions {
		require.NotNil(t, s.ExpiresAt)
		require.Equal(t, int64(12345), *s.ExpiresAt)
	}
}

func TestSavedCodes_AppendAndRemoveCascades(t *testing.T) {
	v := newTestVault(t)

	require.NoError(t, v.SaveActivationCode("AAA"))
	require.NoError(t, v.SaveActivationCode("BBB"))
	require.NoError(t, v.SaveActivationCode("AAA")) // no duplicate

	saved, err := v.LoadSavedCodes()
	require.NoError(t, err)
	require.Equal(t, []string{"AAA", "BBB"}, saved.Codes)
	require.Equal(t, "AAA", saved.LastUsed)

	require.NoError(t, v.UpsertCodeSession(CodeSession{Code: "AAA", SessionToken: "t", DeviceID: "d"}))

	require.NoError(t, v.RemoveActivationCode("AAA"))

	saved, err = v.LoadSavedCodes()
	require.NoError(t, err)
	require.Equal(t, []string{"BBB"}, saved.Codes)
	require.Equal(t, "BBB", saved.LastUsed)

	multi, err := v.LoadMultiSession()
	require.NoError(t, err)
	require.Empty(t, multi.Sessions)
}

func TestLicenseSlots_Independent(t *testing.T) {
	v := newTestVault(t)

	normal := LicenseInfo{Code: "NORM", SessionToken: "t1"}
	auto := LicenseInfo{Code: "AUTO", SessionToken: "t2", IsAutoSwitch: true}
	require.NoError(t, v.SaveLicense(normal))
	require.False(t, v.HasBothLicenses())
	require.NoError(t, v.SaveLicense(auto))
	require.True(t, v.HasBothLicenses())

	got, err := v.LoadLicense(ModeNormal)
	require.NoError(t, err)
	require.Equal(t, &normal, got)

	got, err = v.LoadLicense(ModeAutoSwitch)
	require.NoError(t, err)
	require.Equal(t, &auto, got)

	v.ClearLicense(ModeNormal)
	got, err = v.LoadLicense(ModeNormal)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestMode_ValidationAndDefault(t *testing.T) {
	v := newTestVault(t)

	require.Equal(t, ModeNormal, v.CurrentMode())

	require.NoError(t, v.SetMode(ModeAutoSwitch))
	require.Equal(t, ModeAutoSwitch, v.CurrentMode())

	require.ErrorIs(t, v.SetMode(Mode("turbo")), common.ErrInvalidMode)

	// Anything but the two accepted values falls back to normal.
	require.NoError(t, os.WriteFile(v.path(modeFile), []byte("garbage"), 0o600))
	require.Equal(t, ModeNormal, v.CurrentMode())
}

func TestLoad_CorruptionYieldsLoadError(t *testing.T) {
	v := newTestVault(t)

	require.NoError(t, v.UpsertCodeSession(CodeSession{Code: "A", SessionToken: "t", DeviceID: "d"}))
	require.NoError(t, os.WriteFile(v.path(sessionsFile), []byte("not base64 at all"), 0o600))

	_, err := v.LoadMultiSession()
	var le *LoadError
	require.ErrorAs(t, err, &le)
	require.Equal(t, sessionsFile, le.Record)

	// Mutators coerce corruption to empty and keep working.
	require.NoError(t, v.UpsertCodeSession(CodeSession{Code: "B", SessionToken: "t", DeviceID: "d"}))
	multi, err := v.LoadMultiSession()
	require.NoError(t, err)
	require.Len(t, multi.Sessions, 1)
	require.Equal(t, "B", multi.Sessions[0].Code)
}

func TestMigrateLegacy_OnceAndIdempotent(t *testing.T) {
	v := newTestVault(t)

	legacy := MultiSession{Sessions: []CodeSession{
		{Code: "OLD", SessionToken: "tok", DeviceID: "dev"},
	}}
	data, err := json.Marshal(legacy)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(v.path(legacySessionsFile), data, 0o600))

	multi, err := v.LoadMultiSession()
	require.NoError(t, err)
	require.Equal(t, legacy.Sessions, multi.Sessions)

	// Legacy plaintext is deleted after migration.
	_, err = os.Stat(v.path(legacySessionsFile))
	require.ErrorIs(t, err, os.ErrNotExist)

	// Encrypted file exists and is not plaintext JSON.
	raw, err := os.ReadFile(v.path(sessionsFile))
	require.NoError(t, err)
	require.NotContains(t, string(raw), "OLD")

	// Second load is a no-op: no duplication, no corruption.
	multi, err = v.LoadMultiSession()
	require.NoError(t, err)
	require.Equal(t, legacy.Sessions, multi.Sessions)

	// A fresh Vault over the same dir (fresh latch) must not re-migrate or
	// clobber the encrypted record.
	v2, err := New(v.dir, v.atRest, v.log)
	require.NoError(t, err)
	multi, err = v2.LoadMultiSession()
	require.NoError(t, err)
	require.Equal(t, legacy.Sessions, multi.Sessions)
}

func TestMigrateLegacy_SavedCodes(t *testing.T) {
	v := newTestVault(t)

	data, err := json.Marshal(SavedCodes{Codes: []string{"AAA"}, LastUsed: "AAA"})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(v.path(legacyCodesFile), data, 0o600))

	saved, err := v.LoadSavedCodes()
	require.NoError(t, err)
	require.Equal(t, []string{"AAA"}, saved.Codes)

	_, err = os.Stat(v.path(legacyCodesFile))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestClearAll_RemovesEverything(t *testing.T) {
	v := newTestVault(t)

	require.NoError(t, v.SaveActivationCode("AAA"))
	require.NoError(t, v.UpsertCodeSession(CodeSession{Code: "AAA", SessionToken: "t", DeviceID: "d"}))
	require.NoError(t, v.SaveLicense(LicenseInfo{Code: "AAA"}))
	require.NoError(t, v.SetMode(ModeAutoSwitch))

	v.ClearAll()

	entries, err := os.ReadDir(v.dir)
	require.NoError(t, err)
	require.Empty(t, entries)

	require.Equal(t, ModeNormal, v.CurrentMode())
}

func TestSaveRecord_FreshFileEachWrite(t *testing.T) {
	v := newTestVault(t)

	require.NoError(t, v.UpsertCodeSession(CodeSession{Code: "A", SessionToken: "t", DeviceID: "d"}))
	first, err := os.ReadFile(filepath.Join(v.dir, sessionsFile))
	require.NoError(t, err)

	require.NoError(t, v.UpsertCodeSession(CodeSession{Code: "A", SessionToken: "t", DeviceID: "d"}))
	second, err := os.ReadFile(filepath.Join(v.dir, sessionsFile))
	require.NoError(t, err)

	// Same logical record, fresh nonce: ciphertext differs on every write.
	require.NotEqual(t, first, second)
}
