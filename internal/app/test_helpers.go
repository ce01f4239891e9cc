package app

import (
	"os"
	"testing"

	"github.com/specialistvlad/chidori/internal/testutil"
	"github.com/stretchr/testify/require"
)

// SetupAppTest creates an App connected to a fresh fake runtime. It returns
// the fake plus the buffers receiving the app's output and logs.
func SetupAppTest(t *testing.T, cfg Config) (*App, *testutil.FakeRuntime, *testutil.SafeBuffer, *testutil.SafeBuffer) {
	t.Helper()

	cfg.LogLevel = "debug"
	validated, err := NewConfig(cfg)
	require.NoError(t, err)

	fake := testutil.NewFakeRuntime()
	outBuffer := &testutil.SafeBuffer{}
	logBuffer := &testutil.SafeBuffer{}

	testApp, err := NewApp(outBuffer, logBuffer, validated, fake.Listen(t))
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = testApp.Close()
		if os.Getenv("CHIDORI_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logBuffer.String())
		}
	})

	return testApp, fake, outBuffer, logBuffer
}
