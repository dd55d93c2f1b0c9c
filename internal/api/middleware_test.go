package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"support-backend/internal/api"
	"support-backend/internal/chat"
	"support-backend/internal/llm"
	pkgapi "support-backend/pkg/api"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecovererWritesEnvelope(t *testing.T) {
	for _, development := range []bool{false, true} {
		responder := api.Responder{Development: development}

		router := chi.NewRouter()
		router.Use(responder.Recoverer)
		router.Get("/boom", func(w http.ResponseWriter, r *http.Request) {
			panic("handler exploded")
		})

		rec := do(t, router, http.MethodGet, "/boom", nil)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		var res struct {
			Success bool `json:"success"`
			Error   struct {
				Message string `json:"message"`
				Details any    `json:"details"`
			} `json:"error"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
		assert.False(t, res.Success)
		assert.Equal(t, "An internal error occurred", res.Error.Message)
		if development {
			assert.Contains(t, res.Error.Details, "handler exploded")
		} else {
			assert.Nil(t, res.Error.Details)
		}
	}
}

func TestRecovererRepanicsAbort(t *testing.T) {
	router := chi.NewRouter()
	router.Use(api.Responder{}.Recoverer)
	router.Get("/abort", func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	})

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/abort", nil))
	})
}

func TestTimeoutWritesEnvelope(t *testing.T) {
	db := createDB(t)
	service := chat.NewService(db, llm.NewGateway(&fakeCompleter{reply: "hi"}, nil), nil)
	responder := api.Responder{}

	router := chi.NewRouter()
	router.Use(responder.Recoverer)
	router.Use(api.Timeout(time.Nanosecond))
	router.Route("/api", func(r chi.Router) {
		api.AddRoutes(r, api.NewChatService(service, responder))
	})

	rec := do(t, router, http.MethodPost, "/api/chat/message", pkgapi.SendMessageRequest{Message: "hello"})
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	assert.Equal(t, "Request timed out", decodeError(t, rec).Message)

	var count int64
	require.NoError(t, db.Table("messages").Count(&count).Error)
	assert.Zero(t, count)

	rec = do(t, router, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
