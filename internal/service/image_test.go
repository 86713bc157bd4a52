package service

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/templui/cutout/internal/model"
	"github.com/templui/cutout/internal/repository"
)

func TestSaveMetadataExpiration(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	now := time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)
	h.imageService.now = func() time.Time { return now }

	u := h.user(t, "s1")
	url := h.store.URL(u.ID + "/1-a.png")

	unclaimed, err := h.imageService.SaveMetadata(ctx, u.ID, url, "a.png", 100, false)
	require.NoError(t, err)
	require.NotNil(t, unclaimed.ExpiresAt)
	assert.Equal(t, unclaimed.CreatedAt.Add(3*24*time.Hour), *unclaimed.ExpiresAt)
	assert.False(t, unclaimed.IsPublic)

	claimed, err := h.imageService.SaveMetadata(ctx, u.ID, url, "a.png", 100, true)
	require.NoError(t, err)
	assert.Nil(t, claimed.ExpiresAt)

	stored, err := h.images.ByID(ctx, unclaimed.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.ExpiresAt)
	assert.True(t, now.Add(model.RetentionWindow).Equal(*stored.ExpiresAt))
}

func TestSaveMetadataChecks(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u := h.user(t, "s1")

	_, err := h.imageService.SaveMetadata(ctx, u.ID, "https://elsewhere.example.com/x.png", "x.png", 1, false)
	assert.ErrorIs(t, err, ErrInvalidStorageURL)

	_, err = h.imageService.SaveMetadata(ctx, "missing-user", h.store.URL("x.png"), "x.png", 1, false)
	assert.ErrorIs(t, err, repository.ErrUserNotFound)

	_, err = h.imageService.SaveMetadata(asAccount("acct-1"), u.ID, h.store.URL("x.png"), "x.png", 1, false)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestUploadStoresObjectAndRecord(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	now := time.UnixMilli(1760779800000).UTC()
	h.imageService.now = func() time.Time { return now }

	u := h.user(t, "s1")

	img, err := h.imageService.Upload(ctx, u.ID, "my cat.jpg", strings.NewReader("png-bytes"), 9)
	require.NoError(t, err)

	assert.Equal(t, testStorageBase+"/"+u.ID+"/1760779800000-my_cat.jpg.png", img.StorageURL)
	assert.Equal(t, "my cat.jpg", img.OriginalFilename)
	assert.EqualValues(t, 9, img.FileSize)
	require.NotNil(t, img.ExpiresAt)
	assert.True(t, h.store.Exists(u.ID+"/1760779800000-my_cat.jpg.png"))
}

func TestUploadForVerifiedOwnerNeverExpires(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	u := h.user(t, "s1")
	_, err := h.identityService.LinkEmail(ctx, "s1", "me@example.com")
	require.NoError(t, err)

	img, err := h.imageService.Upload(ctx, u.ID, "a.png", strings.NewReader("png"), 3)
	require.NoError(t, err)
	assert.Nil(t, img.ExpiresAt)
}

func TestUploadStorageFailure(t *testing.T) {
	h := newHarness(t)
	store := &failingStorage{MemoryStorage: h.store, failSave: true}
	h.imageService.storage = store

	u := h.user(t, "s1")

	_, err := h.imageService.Upload(context.Background(), u.ID, "a.png", strings.NewReader("png"), 3)
	assert.Error(t, err)

	images, err := h.imageService.UserImages(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Empty(t, images)
}

func TestDeleteImage(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	owner := h.user(t, "s1")
	other := h.user(t, "s2")
	img := h.image(t, owner.ID, nil)
	path, _ := h.store.PathFromURL(img.StorageURL)

	assert.ErrorIs(t, h.imageService.Delete(ctx, "missing", owner.ID), ErrImageNotFound)
	assert.ErrorIs(t, h.imageService.Delete(ctx, img.ID, other.ID), ErrUnauthorized)
	assert.True(t, h.store.Exists(path))

	require.NoError(t, h.imageService.Delete(ctx, img.ID, owner.ID))
	assert.False(t, h.store.Exists(path))

	_, err := h.images.ByID(ctx, img.ID)
	assert.ErrorIs(t, err, repository.ErrImageNotFound)
}

func TestDeleteImageSurvivesStorageFailure(t *testing.T) {
	h := newHarness(t)
	h.imageService.storage = &failingStorage{MemoryStorage: h.store, failDelete: true}
	ctx := context.Background()

	owner := h.user(t, "s1")
	img := h.image(t, owner.ID, nil)

	require.NoError(t, h.imageService.Delete(ctx, img.ID, owner.ID))

	_, err := h.images.ByID(ctx, img.ID)
	assert.ErrorIs(t, err, repository.ErrImageNotFound)
}

func TestSetVisibility(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	owner := h.user(t, "s1")
	other := h.user(t, "s2")
	img := h.image(t, owner.ID, nil)

	require.NoError(t, h.imageService.SetVisibility(ctx, img.ID, owner.ID, true))
	got, err := h.images.ByID(ctx, img.ID)
	require.NoError(t, err)
	assert.True(t, got.IsPublic)

	assert.ErrorIs(t, h.imageService.SetVisibility(ctx, img.ID, other.ID, false), ErrUnauthorized)
	assert.ErrorIs(t, h.imageService.SetVisibility(ctx, "missing", owner.ID, false), ErrImageNotFound)
}

func TestPublicImagesPaging(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	base := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)

	u := h.user(t, "s1")
	var newest string
	for i := range 13 {
		img := &model.Image{
			UserID:     u.ID,
			StorageURL: h.store.URL("x.png"),
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
			IsPublic:   true,
		}
		require.NoError(t, h.images.Create(ctx, img))
		newest = img.ID
	}
	h.image(t, u.ID, nil) // private, never listed

	page, err := h.imageService.PublicImages(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, page.Images, PublicPageSize)
	assert.True(t, page.HasMore)
	assert.Equal(t, newest, page.Images[0].ID)
	for i := 1; i < len(page.Images); i++ {
		assert.False(t, page.Images[i].CreatedAt.After(page.Images[i-1].CreatedAt))
	}

	page, err = h.imageService.PublicImages(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, page.Images, 1)
	assert.False(t, page.HasMore)

	negative, err := h.imageService.PublicImages(ctx, -3)
	require.NoError(t, err)
	assert.Equal(t, newest, negative.Images[0].ID)

	page, err = h.imageService.PublicImages(ctx, 5)
	require.NoError(t, err)
	assert.NotNil(t, page.Images)
	assert.Empty(t, page.Images)
	assert.False(t, page.HasMore)

	// Offsets of huge pages would overflow int and wrap back to page 0
	for _, p := range []int{math.MaxInt/PublicPageSize - 1, math.MaxInt / PublicPageSize, math.MaxInt/PublicPageSize + 1, math.MaxInt} {
		page, err = h.imageService.PublicImages(ctx, p)
		require.NoError(t, err)
		assert.NotNil(t, page.Images, "page=%d", p)
		assert.Empty(t, page.Images, "page=%d", p)
		assert.False(t, page.HasMore, "page=%d", p)
	}
}

func TestPublicImagesExactPageHasNoMore(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	u := h.user(t, "s1")
	for range PublicPageSize {
		require.NoError(t, h.images.Create(ctx, &model.Image{UserID: u.ID, StorageURL: h.store.URL("x.png"), IsPublic: true}))
	}

	page, err := h.imageService.PublicImages(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, page.Images, PublicPageSize)
	assert.False(t, page.HasMore)
}

func TestPublicImagesPropagatesErrors(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.db.Close())

	_, err := h.imageService.PublicImages(context.Background(), 0)
	assert.Error(t, err)
}

func TestRemoveExpiration(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	soon := time.Now().UTC().Add(time.Hour)

	u := h.user(t, "s1")
	a := h.image(t, u.ID, &soon)
	b := h.image(t, u.ID, &soon)

	n, err := h.imageService.RemoveExpiration(ctx, u.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	for _, id := range []string{a.ID, b.ID} {
		got, err := h.images.ByID(ctx, id)
		require.NoError(t, err)
		assert.Nil(t, got.ExpiresAt)
	}

	_, err = h.imageService.RemoveExpiration(asAccount("acct-x"), u.ID)
	assert.ErrorIs(t, err, ErrUnauthorized)
}
