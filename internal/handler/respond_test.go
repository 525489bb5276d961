package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dukerupert/nomnom/internal/grocery"
	"github.com/dukerupert/nomnom/internal/store"
)

func TestDecodeJSONMessages(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name string
		body string
		dst  any
		want string
	}{
		{"malformed", `{"name":`, &addItemRequest{}, "body is not valid JSON"},
		{"missing name", `{}`, &addItemRequest{}, "name is required"},
		{"long name", `{"name":"` + strings.Repeat("a", 201) + `"}`, &addItemRequest{}, "name must be 200 characters or less"},
		{"negative category", `{"name":"milk","category_id":-1}`, &addItemRequest{}, "category_id must be a positive id"},
		{"empty batch", `{"items":[]}`, &batchRequest{}, "items must have at least 1 entries"},
		{"zero batch id", `{"items":[{"item_id":0}]}`, &batchRequest{}, "item_id must be a positive id"},
		{"bad permission", `{"username":"bob","permission":"owner"}`, &shareRequest{}, "permission must be one of: view edit"},
		{"short username", `{"username":"ab","password":"longenough"}`, &credentialsRequest{}, "username must be at least 3 characters"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("POST", "/", strings.NewReader(tt.body))
			err := decodeJSON(r, v, tt.dst, false)
			if err == nil {
				t.Fatal("expected error")
			}
			if err.Error() != tt.want {
				t.Errorf("error = %q, want %q", err.Error(), tt.want)
			}
		})
	}
}

func TestDecodeJSONEmptyBody(t *testing.T) {
	v := NewValidator()

	r := httptest.NewRequest("POST", "/", strings.NewReader(""))
	var req applyMenuRequest
	if err := decodeJSON(r, v, &req, true); err != nil {
		t.Errorf("allowEmpty: err = %v, want nil", err)
	}

	r = httptest.NewRequest("POST", "/", strings.NewReader(""))
	var add addItemRequest
	if err := decodeJSON(r, v, &add, false); err == nil {
		t.Error("empty body accepted without allowEmpty")
	}
}

func TestWriteErrorStatus(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		err     error
		code    int
		message string
	}{
		{&grocery.ValidationError{Field: "name", Message: "is required"}, http.StatusBadRequest, "name is required"},
		{store.ErrListNotFound, http.StatusNotFound, "list not found"},
		{store.ErrEditRequired, http.StatusForbidden, "edit permission required"},
		{store.ErrAlreadyOnList, http.StatusConflict, "item already on this list"},
		{errors.New("disk on fire"), http.StatusInternalServerError, "internal server error"},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		writeError(rec, logger, "test", tt.err)

		if rec.Code != tt.code {
			t.Errorf("%v: status = %d, want %d", tt.err, rec.Code, tt.code)
		}
		var body map[string]string
		json.Unmarshal(rec.Body.Bytes(), &body)
		if body["error"] != tt.message {
			t.Errorf("%v: error = %q, want %q", tt.err, body["error"], tt.message)
		}
	}
}

func TestParsePathID(t *testing.T) {
	tests := []struct {
		value string
		want  int64
		ok    bool
	}{
		{"42", 42, true},
		{"0", 0, false},
		{"-3", 0, false},
		{"abc", 0, false},
	}
	for _, tt := range tests {
		r := httptest.NewRequest("GET", "/", nil)
		r.SetPathValue("id", tt.value)
		got, err := parsePathID(r, "id")
		if (err == nil) != tt.ok || got != tt.want {
			t.Errorf("parsePathID(%q) = %d, %v", tt.value, got, err)
		}
	}
}
