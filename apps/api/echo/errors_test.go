package echoapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/talenttune/talenttune/core/user"
)

type spyLogger struct {
	errArgs [][]interface{}
}

func (l *spyLogger) Debug(msg string, args ...interface{}) {}
func (l *spyLogger) Info(msg string, args ...interface{})  {}
func (l *spyLogger) Warn(msg string, args ...interface{})  {}
func (l *spyLogger) Fatal(msg string, args ...interface{}) {}
func (l *spyLogger) Error(msg string, args ...interface{}) {
	l.errArgs = append(l.errArgs, args)
}

func TestHTTPErrorHandlerAttachesActingUser(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.Set(contextTokenKey, jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		StandardClaims: jwt.StandardClaims{Subject: "7"},
		Name:           "Jane Doe",
		Email:          "jane@acme.edu",
		Role:           user.RoleLecturer,
	}))

	logger := &spyLogger{}
	handler := newAppHTTPErrorHandler(logger, func() {})
	handler(errors.New("boom"), ctx)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d; want 500", rec.Code)
	}
	if len(logger.errArgs) != 1 {
		t.Fatalf("logged %d errors; want 1", len(logger.errArgs))
	}

	var usr user.User
	var found bool
	for _, arg := range logger.errArgs[0] {
		if u, ok := arg.(user.User); ok {
			usr, found = u, true
		}
	}
	if !found {
		t.Fatal("no user attached to the error log")
	}
	if usr.ID != 7 || usr.Email != "jane@acme.edu" || usr.Role != user.RoleLecturer {
		t.Errorf("attached user = %+v", usr)
	}
}

func TestHTTPErrorHandlerAnonymous(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	logger := &spyLogger{}
	handler := newAppHTTPErrorHandler(logger, func() {})
	handler(errors.New("boom"), ctx)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d; want 500", rec.Code)
	}
	if len(logger.errArgs) != 1 {
		t.Fatalf("logged %d errors; want 1", len(logger.errArgs))
	}
	for _, arg := range logger.errArgs[0] {
		if usr, ok := arg.(user.User); ok && usr.ID != 0 {
			t.Errorf("unexpected user attached: %+v", usr)
		}
	}
}
