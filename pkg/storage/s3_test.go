package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockS3 struct {
	objects map[string]string
	getErr  error
	headErr error
	putErr  error

	puts  []*s3.PutObjectInput
	pages [][]string
}

func (m *mockS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	body, ok := m.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(body))}, nil
}

func (m *mockS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if m.headErr != nil {
		return nil, m.headErr
	}
	if _, ok := m.objects[aws.ToString(in.Key)]; !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

func (m *mockS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.putErr != nil {
		return nil, m.putErr
	}
	m.puts = append(m.puts, in)
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	page := 0
	if in.ContinuationToken != nil {
		page = len(aws.ToString(in.ContinuationToken))
	}

	out := &s3.ListObjectsV2Output{}
	for _, k := range m.pages[page] {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	if page+1 < len(m.pages) {
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(strings.Repeat("t", page+1))
	}
	return out, nil
}

func newTestStorage(m *mockS3) *S3Storage {
	return NewS3Storage(m, "owner-originals", zap.NewNop())
}

func TestS3StorageGet(t *testing.T) {
	tests := []struct {
		name        string
		mock        *mockS3
		key         string
		want        []byte
		wantErr     bool
		wantMissing bool
	}{
		{
			name: "success",
			mock: &mockS3{objects: map[string]string{"Rizzo.png": "png-bytes"}},
			key:  "Rizzo.png",
			want: []byte("png-bytes"),
		},
		{
			name:        "no such key",
			mock:        &mockS3{objects: map[string]string{}},
			key:         "Rizzo.png",
			wantErr:     true,
			wantMissing: true,
		},
		{
			name:        "generic not found api error",
			mock:        &mockS3{getErr: &smithy.GenericAPIError{Code: "NotFound"}},
			key:         "Rizzo.png",
			wantErr:     true,
			wantMissing: true,
		},
		{
			name:    "transport error",
			mock:    &mockS3{getErr: errors.New("connection reset")},
			key:     "Rizzo.png",
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := newTestStorage(tc.mock).Get(context.Background(), tc.key)
			if tc.wantErr {
				require.Error(t, err)
				assert.Equal(t, tc.wantMissing, errors.Is(err, ErrObjectNotFound))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestS3StorageExists(t *testing.T) {
	m := &mockS3{objects: map[string]string{"Rizzo.png": "x"}}
	st := newTestStorage(m)

	ok, err := st.Exists(context.Background(), "Rizzo.png")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = st.Exists(context.Background(), "Mypet.jpg")
	require.NoError(t, err)
	assert.False(t, ok)

	m.headErr = errors.New("access denied")
	_, err = st.Exists(context.Background(), "Rizzo.png")
	assert.Error(t, err)
}

func TestS3StoragePut(t *testing.T) {
	m := &mockS3{}
	st := newTestStorage(m)

	err := st.Put(context.Background(), "50x50_Rizzo.png", []byte("resized"), PutOptions{
		ContentType:  "image/png",
		CacheControl: "public, max-age=86400",
		Public:       true,
	})
	require.NoError(t, err)
	require.Len(t, m.puts, 1)

	in := m.puts[0]
	assert.Equal(t, "owner-originals", aws.ToString(in.Bucket))
	assert.Equal(t, "50x50_Rizzo.png", aws.ToString(in.Key))
	assert.Equal(t, types.ObjectCannedACLPublicRead, in.ACL)
	assert.Equal(t, "image/png", aws.ToString(in.ContentType))
	assert.Equal(t, "public, max-age=86400", aws.ToString(in.CacheControl))
	assert.Equal(t, int64(len("resized")), aws.ToInt64(in.ContentLength))

	body, err := io.ReadAll(in.Body)
	require.NoError(t, err)
	assert.Equal(t, "resized", string(body))
}

func TestS3StoragePutPrivate(t *testing.T) {
	m := &mockS3{}
	require.NoError(t, newTestStorage(m).Put(context.Background(), "k", []byte("v"), PutOptions{}))
	require.Len(t, m.puts, 1)
	assert.Empty(t, m.puts[0].ACL)
	assert.Nil(t, m.puts[0].ContentType)
}

func TestS3StoragePutError(t *testing.T) {
	m := &mockS3{putErr: errors.New("access denied")}
	err := newTestStorage(m).Put(context.Background(), "k", []byte("v"), PutOptions{Public: true})
	assert.ErrorContains(t, err, "access denied")
}

func TestS3StorageList(t *testing.T) {
	m := &mockS3{pages: [][]string{
		{"a.png", "b.jpg"},
		{"c.gif"},
	}}

	keys, err := newTestStorage(m).List(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.png", "b.jpg", "c.gif"}, keys)
}
