package credentials

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "credentials.txt")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestFileProvider_Credentials(t *testing.T) {
	path := writeFile(t, "aws_s3_path=netatmo-archives\naws_access_key=AKIA123\naws_secret_key=topsecret\n")

	creds, err := FileProvider{Path: path}.Credentials(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "AKIA123", creds.AccessKey)
	assert.Equal(t, "topsecret", creds.SecretKey)
}

func TestFileProvider_MissingAccessKey(t *testing.T) {
	path := writeFile(t, "aws_s3_path=netatmo-archives\naws_secret_key=topsecret\n")

	_, err := FileProvider{Path: path}.Credentials(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "aws_access_key")
}

func TestFileProvider_MissingFile(t *testing.T) {
	_, err := FileProvider{Path: "/nonexistent/path"}.Credentials(context.Background())
	require.Error(t, err)
}
