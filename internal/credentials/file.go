// Package credentials loads AWS-style access keys from the three-line
// key=value file format used by the upstream harvester. It lives outside
// the core: the core depends only on objectstore.CredentialsProvider.
package credentials

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/netatmo-archive/ingest-service/internal/objectstore"
)

// FileProvider implements objectstore.CredentialsProvider by re-reading a
// credentials file on every call, matching the "loaded once per fetch, no
// caching assumed" contract.
type FileProvider struct {
	Path string
}

// Credentials reads and parses the file at p.Path. Expected format, one
// key=value pair per line: aws_s3_path, aws_access_key, aws_secret_key.
func (p FileProvider) Credentials(ctx context.Context) (objectstore.Credentials, error) {
	f, err := os.Open(p.Path)
	if err != nil {
		return objectstore.Credentials{}, fmt.Errorf("open credentials file: %w", err)
	}
	defer f.Close()

	values := map[string]string{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		values[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	if err := scanner.Err(); err != nil {
		return objectstore.Credentials{}, fmt.Errorf("read credentials file: %w", err)
	}

	accessKey, ok := values["aws_access_key"]
	if !ok {
		return objectstore.Credentials{}, fmt.Errorf("credentials file %q missing aws_access_key", p.Path)
	}
	secretKey, ok := values["aws_secret_key"]
	if !ok {
		return objectstore.Credentials{}, fmt.Errorf("credentials file %q missing aws_secret_key", p.Path)
	}

	return objectstore.Credentials{AccessKey: accessKey, SecretKey: secretKey}, nil
}
