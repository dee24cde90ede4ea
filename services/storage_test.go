package services

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/campusride/api-go/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStorage struct {
	objects map[string]int64
	deleted []string
}

func (m *memoryStorage) PresignPut(_ context.Context, key, _ string, expires time.Duration) (string, error) {
	return "https://upload.test/" + key + "?expires=" + expires.String(), nil
}

func (m *memoryStorage) Head(_ context.Context, key string) (int64, bool, error) {
	size, ok := m.objects[key]
	return size, ok, nil
}

func (m *memoryStorage) Delete(_ context.Context, key string) error {
	m.deleted = append(m.deleted, key)
	delete(m.objects, key)
	return nil
}

func (m *memoryStorage) PublicURL(key string) string {
	return "https://cdn.test/" + key
}

func TestPresignUpload(t *testing.T) {
	storage := &memoryStorage{objects: map[string]int64{}}
	svc := NewUploadService(storage)
	ctx := context.Background()

	up, err := svc.Presign(ctx, "u-1", PresignInput{
		FileName: "Bike.JPG", ContentType: "image/jpeg", FileSize: 2 << 20, Purpose: UploadPurposeItem,
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(up.Key, "items/u-1/"))
	assert.True(t, strings.HasSuffix(up.Key, ".jpg"))
	assert.Equal(t, "https://cdn.test/"+up.Key, up.FileURL)
	assert.Equal(t, 3600, up.ExpiresIn)

	cases := []PresignInput{
		{FileName: "a.pdf", ContentType: "application/pdf", FileSize: 100, Purpose: UploadPurposeItem},
		{FileName: "a.png", ContentType: "image/png", FileSize: 11 << 20, Purpose: UploadPurposeActivity},
		{FileName: "a.png", ContentType: "image/png", FileSize: 6 << 20, Purpose: UploadPurposeAvatar},
		{FileName: "a.png", ContentType: "image/png", FileSize: 100, Purpose: "banner"},
	}
	for _, in := range cases {
		_, err := svc.Presign(ctx, "u-1", in)
		assert.Equal(t, utils.CodeValidation, appErr(t, err).Code, in)
	}
}

func TestUploadOwnership(t *testing.T) {
	storage := &memoryStorage{objects: map[string]int64{"avatars/u-1/x.png": 42}}
	svc := NewUploadService(storage)
	ctx := context.Background()

	info, err := svc.Confirm(ctx, "u-1", "avatars/u-1/x.png")
	require.NoError(t, err)
	assert.Equal(t, int64(42), info.FileSize)

	_, err = svc.Confirm(ctx, "u-1", "avatars/u-1/missing.png")
	assert.Equal(t, http.StatusNotFound, appErr(t, err).Status)

	err = svc.Delete(ctx, "u-2", "avatars/u-1/x.png")
	assert.Equal(t, http.StatusForbidden, appErr(t, err).Status)
	err = svc.Delete(ctx, "u-1", "avatars/u-1/../u-2/x.png")
	assert.Equal(t, http.StatusForbidden, appErr(t, err).Status)

	require.NoError(t, svc.Delete(ctx, "u-1", "avatars/u-1/x.png"))
	assert.Equal(t, []string{"avatars/u-1/x.png"}, storage.deleted)
}

func TestUploadsDisabledWithoutStorage(t *testing.T) {
	svc := NewUploadService(nil)
	_, err := svc.Presign(context.Background(), "u-1", PresignInput{})
	assert.Equal(t, http.StatusServiceUnavailable, appErr(t, err).Status)
	assert.Equal(t, http.StatusServiceUnavailable, appErr(t, svc.Delete(context.Background(), "u-1", "k")).Status)
}
