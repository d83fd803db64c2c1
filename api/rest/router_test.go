package rest_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"item-simulator/server/api/rest"
	"item-simulator/server/audit"
	"item-simulator/server/cache"
	"item-simulator/server/game/economy"
	mw "item-simulator/server/middleware"
	"item-simulator/server/testutil"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newTestServer wires up the full route tree the way main does, against an
// in-memory DB and local cache.
func newTestServer(t *testing.T) (*gin.Engine, *gorm.DB, cache.Cache) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	c := testutil.SetupTestCache(t)
	sec := testutil.SecurityDefaults()
	game := testutil.GameDefaults()
	logger := zap.NewNop()

	auditSvc := audit.New(db, logger)
	t.Cleanup(func() { auditSvc.Stop(nil) })
	econ := economy.NewService(db, game, logger)

	authH := rest.NewAuthHandler(db, c, sec)
	charH := rest.NewCharacterHandler(db, game)
	itemH := rest.NewItemHandler(db, econ, auditSvc)
	moneyH := rest.NewMoneyHandler(econ, auditSvc)

	r := gin.New()
	api := r.Group("/api")

	authG := api.Group("/auth")
	authG.POST("/signup", authH.Signup)
	authG.POST("/login", authH.Login)
	authG.POST("/logout", mw.Auth(sec, c), authH.Logout)

	charsG := api.Group("/characters")
	charsG.POST("/create-character", mw.Auth(sec, c), charH.Create)
	charsG.DELETE("/:id", mw.Auth(sec, c), charH.Delete)
	charsG.GET("/:id", mw.OptionalAuth(sec, c), charH.Get)
	charsG.GET("/inventory/:characterId", mw.Auth(sec, c), charH.ListInventory)
	charsG.GET("/equipped/:characterId", charH.ListEquipped)

	itemsG := api.Group("/items")
	itemsG.GET("/items", itemH.List)
	itemsG.POST("/create-item", mw.Auth(sec, c), itemH.Create)
	itemsG.PATCH("/update-item/:item_code", mw.Auth(sec, c), itemH.Update)
	itemsG.POST("/buy-items/:characterId", mw.Auth(sec, c), itemH.Buy)
	itemsG.POST("/sell-items/:characterId", mw.Auth(sec, c), itemH.Sell)
	itemsG.POST("/equip-item/:characterId", mw.Auth(sec, c), itemH.Equip)
	itemsG.POST("/unequip-item/:characterId", mw.Auth(sec, c), itemH.Unequip)

	api.POST("/money/:characterId", mw.Auth(sec, c), moneyH.Earn)

	return r, db, c
}

func doJSON(r *gin.Engine, method, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func postJSON(r *gin.Engine, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	return doJSON(r, http.MethodPost, path, body, headers...)
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

// signupAndLogin registers a fresh account and returns a live token.
func signupAndLogin(t *testing.T, r *gin.Engine, username string) string {
	t.Helper()
	w := postJSON(r, "/api/auth/signup", map[string]string{
		"username":         username,
		"password":         "secret1",
		"confirm_password": "secret1",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = postJSON(r, "/api/auth/login", map[string]string{
		"username": username,
		"password": "secret1",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decode(t, w)["token"].(string)
}

// createCharacter makes a character owned by the token's account and
// returns its id.
func createCharacter(t *testing.T, r *gin.Engine, token, name string) int64 {
	t.Helper()
	w := postJSON(r, "/api/characters/create-character", map[string]string{"name": name},
		"Authorization", "Bearer "+token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return int64(decode(t, w)["character_id"].(float64))
}

// createItem registers a catalog entry through the API.
func createItem(t *testing.T, r *gin.Engine, token string, code int, name string, health, power int, price int64) {
	t.Helper()
	w := postJSON(r, "/api/items/create-item", map[string]interface{}{
		"item_code": code,
		"name":      name,
		"stat":      map[string]int{"health": health, "power": power},
		"price":     price,
	}, "Authorization", "Bearer "+token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}
