package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"aggregatord.io/aggregator/internal/aggregate"
)

func TestGetTask_NotFound(t *testing.T) {
	server, _ := newTestServer(t)

	router := gin.New()
	router.GET("/tasks/:uuid", server.GetTask)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/tasks/missing", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestGetTask_Found(t *testing.T) {
	server, store := newTestServer(t)
	if _, err := store.Insert(t.Context(), aggregate.TaskRecord{"uuid": "a", "task_num": 1}); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	router := gin.New()
	router.GET("/tasks/:uuid", server.GetTask)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/tasks/a", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestGetRootComplete_FalseBeforeAnyEvent(t *testing.T) {
	server, _ := newTestServer(t)

	router := gin.New()
	router.GET("/status/root-complete", server.GetRootComplete)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/status/root-complete", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if want := `{"root_complete":false}`; w.Body.String() != want {
		t.Fatalf("body = %s, want %s", w.Body.String(), want)
	}
}
