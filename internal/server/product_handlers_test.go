package server

import (
	"fmt"
	"net/http"
	"testing"

	"reviewfeed/internal/feed"
	"reviewfeed/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func productIDs(views []feed.ProductView) []uint {
	out := make([]uint, len(views))
	for i, v := range views {
		out[i] = v.ID
	}
	return out
}

func TestGetProducts_Pagination(t *testing.T) {
	env := newTestEnv(t, nil)
	var want []uint
	for i, title := range []string{"alpha", "beta", "gamma"} {
		want = append(want, env.product(t, title, int64(100+i)).ID)
	}
	hidden := "hidden"
	require.NoError(t, env.db.Create(&models.Product{Title: &hidden}).Error)

	status, body := env.call(t, http.MethodGet, "/api/products?count=2", "", nil)
	require.Equal(t, http.StatusOK, status)
	first := decode[Envelope[feed.ProductView]](t, body)
	assert.Equal(t, 3, first.Total)
	assert.Equal(t, 1, first.Current)
	require.NotNil(t, first.Next)
	assert.Equal(t, 2, *first.Next)
	assert.Nil(t, first.Previous)
	require.Len(t, first.Results, 2)

	status, body = env.call(t, http.MethodGet, "/api/products?count=2&page=2", "", nil)
	require.Equal(t, http.StatusOK, status)
	second := decode[Envelope[feed.ProductView]](t, body)
	assert.Nil(t, second.Next)
	require.NotNil(t, second.Previous)
	assert.Equal(t, 1, *second.Previous)
	require.Len(t, second.Results, 1)

	assert.ElementsMatch(t, want, append(productIDs(first.Results), productIDs(second.Results)...),
		"pages of one cached ranking never overlap")

	status, body = env.call(t, http.MethodGet, "/api/products?count=2&page=99", "", nil)
	require.Equal(t, http.StatusOK, status)
	clamped := decode[Envelope[feed.ProductView]](t, body)
	assert.Equal(t, 2, clamped.Current)
	assert.Equal(t, productIDs(second.Results), productIDs(clamped.Results))
}

func TestGetProducts_Projection(t *testing.T) {
	env := newTestEnv(t, nil)
	p := env.product(t, "boots", 555)
	u := env.user(t, "viewer@example.com", false)
	auth := bearer(t, u.ID)

	status, body := env.call(t, http.MethodPost, fmt.Sprintf("/api/like/%d", p.ID), auth, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, decode[map[string]bool](t, body)["liked"])

	status, body = env.call(t, http.MethodGet, "/api/products", auth, nil)
	require.Equal(t, http.StatusOK, status)
	page := decode[Envelope[feed.ProductView]](t, body)
	require.Len(t, page.Results, 1)

	view := page.Results[0]
	assert.True(t, view.Liked)
	assert.False(t, view.Favorite)
	require.NotNil(t, view.Image)
	assert.Equal(t, "https://cdn.example.com/media/boots.jpg", view.Image.Link)
	require.NotNil(t, view.Link)
	assert.Equal(t, "https://wildberries.ru/catalog/555/detail.aspx", *view.Link)

	status, body = env.call(t, http.MethodGet, "/api/products", "", nil)
	require.Equal(t, http.StatusOK, status)
	anon := decode[Envelope[feed.ProductView]](t, body)
	assert.False(t, anon.Results[0].Liked, "anonymous viewers never see reactions")
}

func TestGetProducts_Filters(t *testing.T) {
	env := newTestEnv(t, nil)
	boots := env.product(t, "Winter Boots", 10)
	env.product(t, "Summer Dress", 20)

	status, body := env.call(t, http.MethodGet, "/api/products?search=boots", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []uint{boots.ID}, productIDs(decode[Envelope[feed.ProductView]](t, body).Results))

	status, body = env.call(t, http.MethodGet, "/api/products?source_id=10", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []uint{boots.ID}, productIDs(decode[Envelope[feed.ProductView]](t, body).Results))

	status, body = env.call(t, http.MethodGet, "/api/products?category_id=abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, models.MsgInvalidID, messageOf(t, body))
}

func TestGetProduct(t *testing.T) {
	env := newTestEnv(t, nil)
	shown := env.product(t, "shown", 1)
	title := "no reviews"
	hidden := &models.Product{Title: &title}
	require.NoError(t, env.db.Create(hidden).Error)

	status, body := env.call(t, http.MethodGet, fmt.Sprintf("/api/products/%d", shown.ID), "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, shown.ID, decode[feed.ProductView](t, body).ID)

	for _, id := range []uint{hidden.ID, 9999} {
		status, body = env.call(t, http.MethodGet, fmt.Sprintf("/api/products/%d", id), "", nil)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, models.MsgProductUnavailable, messageOf(t, body))
	}

	status, body = env.call(t, http.MethodGet, "/api/products/x", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, models.MsgInvalidID, messageOf(t, body))
}

func TestGetCategories(t *testing.T) {
	env := newTestEnv(t, nil)
	shoes := &models.Category{Title: "Shoes"}
	require.NoError(t, env.db.Create(shoes).Error)
	require.NoError(t, env.db.Create(&models.Category{Title: "Dresses", Position: 2}).Error)
	require.NoError(t, env.db.Create(&models.Category{Title: "Bags", Position: 5}).Error)
	require.NoError(t, env.db.Create(&models.Category{Title: "Boots", ParentID: &shoes.ID, Position: 9}).Error)

	status, body := env.call(t, http.MethodGet, "/api/categories", "", nil)
	require.Equal(t, http.StatusOK, status)
	page := decode[Envelope[models.Category]](t, body)
	require.Len(t, page.Results, 3)
	assert.Equal(t, []string{"Bags", "Dresses", "Shoes"},
		[]string{page.Results[0].Title, page.Results[1].Title, page.Results[2].Title})
}

func TestFavorites(t *testing.T) {
	env := newTestEnv(t, nil)
	p := env.product(t, "coat", 7)
	u := env.user(t, "fan@example.com", false)
	auth := bearer(t, u.ID)

	status, body := env.call(t, http.MethodPost, fmt.Sprintf("/api/favorite/%d", p.ID), auth, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, decode[map[string]bool](t, body)["favorite"])

	status, body = env.call(t, http.MethodGet, "/api/favorites", auth, nil)
	require.Equal(t, http.StatusOK, status)
	page := decode[Envelope[feed.ProductView]](t, body)
	require.Len(t, page.Results, 1)
	assert.True(t, page.Results[0].Favorite)

	status, body = env.call(t, http.MethodPost, fmt.Sprintf("/api/favorite/%d", p.ID), auth, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, decode[map[string]bool](t, body)["favorite"])

	status, body = env.call(t, http.MethodPost, "/api/like/9999", auth, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, models.MsgProductNotFound, messageOf(t, body))

	status, body = env.call(t, http.MethodGet, "/api/me", auth, nil)
	require.Equal(t, http.StatusOK, status)
	profile := decode[map[string]any](t, body)
	assert.Equal(t, "fan@example.com", profile["email"])
	assert.EqualValues(t, 0, profile["favorites_count"])
}
