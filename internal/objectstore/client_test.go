package objectstore

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netatmo-archive/ingest-service/internal/domain"
)

type staticCreds struct{}

func (staticCreds) Credentials(context.Context) (Credentials, error) {
	return Credentials{AccessKey: "ak", SecretKey: "sk"}, nil
}

type fakeS3 struct {
	calls   int
	respond func(call int) (*s3.GetObjectOutput, error)
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.calls++
	return f.respond(f.calls)
}

func newTestClient(t *testing.T, fake *fakeS3) *Client {
	t.Helper()
	c := New(Config{Bucket: "netatmo-archives"}, staticCreds{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	c.newS3 = func(ctx context.Context, creds Credentials) (getObjectAPI, error) {
		return fake, nil
	}
	c.retryInterval = time.Millisecond
	return c
}

// TestFetch_Success covers scenario S2's happy path at the object-store layer.
func TestFetch_Success(t *testing.T) {
	fake := &fakeS3{respond: func(call int) (*s3.GetObjectOutput, error) {
		return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader("hello"))}, nil
	}}
	c := newTestClient(t, fake)

	body, err := c.Fetch(context.Background(), "netatmo_20160401_0000.json.gz")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(body))
	assert.Equal(t, 1, fake.calls)
}

func TestFetch_NotFound(t *testing.T) {
	fake := &fakeS3{respond: func(call int) (*s3.GetObjectOutput, error) {
		return nil, &types.NoSuchKey{}
	}}
	c := newTestClient(t, fake)

	_, err := c.Fetch(context.Background(), "missing.json.gz")
	require.Error(t, err)
	assert.True(t, domain.Is(err, domain.NotFound))
}

// TestFetch_TransientThenSuccess covers scenario S6: two transient failures
// then success, with no error-sink entry expected of the caller.
func TestFetch_TransientThenSuccess(t *testing.T) {
	fake := &fakeS3{respond: func(call int) (*s3.GetObjectOutput, error) {
		if call <= 2 {
			return nil, &net.DNSError{IsTimeout: true}
		}
		return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader("ok"))}, nil
	}}
	c := newTestClient(t, fake)

	body, err := c.Fetch(context.Background(), "netatmo_20160401_0000.json.gz")
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, 3, fake.calls)
}

func TestFetch_FatalOnUnrecognizedError(t *testing.T) {
	fake := &fakeS3{respond: func(call int) (*s3.GetObjectOutput, error) {
		return nil, errors.New("access denied")
	}}
	c := newTestClient(t, fake)

	_, err := c.Fetch(context.Background(), "key.json.gz")
	require.Error(t, err)
	assert.True(t, domain.Is(err, domain.Fatal))
}

func TestFetch_ContextCancelledDuringBackoff(t *testing.T) {
	fake := &fakeS3{respond: func(call int) (*s3.GetObjectOutput, error) {
		return nil, &net.DNSError{IsTimeout: true}
	}}
	c := newTestClient(t, fake)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Fetch(ctx, "key.json.gz")
	require.Error(t, err)
}
