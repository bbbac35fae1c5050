package testfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

/*
CreateTempFileWithContent creates file "name" with the provided content in
the test's temporary directory and returns the full path of the file.
The file is deleted automatically when test finishes.
*/
func CreateTempFileWithContent(t testing.TB, name string, content []byte) string {
	t.Helper()
	filePath := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(filePath, content, 0600), "failed to create test file '%s'", filePath)
	return filePath
}
