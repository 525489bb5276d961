package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/dukerupert/nomnom/internal/grocery"
	"github.com/dukerupert/nomnom/internal/store"
)

const maxBodyBytes = 1 << 20

// NewValidator returns a validator that reports fields by their JSON names.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeErrorMsg(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeError maps an error to its response. Store and validation errors
// carry client-safe messages; anything else is logged and reported as a
// generic 500.
func writeError(w http.ResponseWriter, logger *slog.Logger, op string, err error) {
	var verr *grocery.ValidationError
	if errors.As(err, &verr) {
		writeErrorMsg(w, http.StatusBadRequest, verr.Error())
		return
	}

	var serr *store.Error
	if errors.As(err, &serr) {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeErrorMsg(w, http.StatusNotFound, serr.Msg)
			return
		case errors.Is(err, store.ErrForbidden):
			writeErrorMsg(w, http.StatusForbidden, serr.Msg)
			return
		case errors.Is(err, store.ErrConflict):
			writeErrorMsg(w, http.StatusConflict, serr.Msg)
			return
		}
	}

	logger.Error(op, "error", err)
	writeErrorMsg(w, http.StatusInternalServerError, "internal server error")
}

// decodeJSON reads a JSON body into dst and validates it. An empty body is
// treated as {} when allowEmpty is set.
func decodeJSON(r *http.Request, v *validator.Validate, dst any, allowEmpty bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if !(allowEmpty && errors.Is(err, io.EOF)) {
			return &grocery.ValidationError{Field: "body", Message: "is not valid JSON"}
		}
	}
	if err := v.Struct(dst); err != nil {
		return validationError(err)
	}
	return nil
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &grocery.ValidationError{Field: "body", Message: "is invalid"}
	}

	fe := verrs[0]
	field := fe.Field()
	if field == "" {
		field = "body"
	}
	var msg string
	switch fe.Tag() {
	case "required":
		msg = "is required"
	case "max":
		if fe.Kind() == reflect.String {
			msg = fmt.Sprintf("must be %s characters or less", fe.Param())
		} else {
			msg = fmt.Sprintf("must have at most %s entries", fe.Param())
		}
	case "min":
		if fe.Kind() == reflect.String {
			msg = fmt.Sprintf("must be at least %s characters", fe.Param())
		} else {
			msg = fmt.Sprintf("must have at least %s entries", fe.Param())
		}
	case "gt":
		msg = "must be a positive id"
	case "oneof":
		msg = fmt.Sprintf("must be one of: %s", fe.Param())
	case "hexcolor":
		msg = "must be a hex color"
	default:
		msg = "is invalid"
	}
	return &grocery.ValidationError{Field: field, Message: msg}
}

func parsePathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, &grocery.ValidationError{Field: name, Message: "must be a positive integer"}
	}
	return id, nil
}
