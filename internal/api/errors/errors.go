// Пакет errors — конструкторы ответов об ошибках Open VTB.
// Единый формат: {"code", "title", "status", "detail", "invalid_params"?}.
// Все HTTP-ответы с ошибками должны использовать WriteError.
package errors

import (
	"encoding/json"
	"net/http"

	"github.com/maykinmedia/open-vtb-sub000/internal/validation"
)

// Коды ошибок ответа.
const (
	CodeInvalid              = "invalid"
	CodeNotFound             = "not_found"
	CodeNotAuthenticated     = "not_authenticated"
	CodeAuthenticationFailed = "authentication_failed"
	CodeMethodNotAllowed     = "method_not_allowed"
	CodeParseError           = "parse_error"
	CodeInternalError        = "error"
)

// Заголовки ответов.
const (
	titleInvalid          = "Invalid input."
	titleNotFound         = "Niet gevonden."
	titleNotAuthenticated = "Authenticatiegegevens zijn niet opgegeven."
	titleAuthFailed       = "Ongeldige authenticatiegegevens."
	titleMethodNotAllowed = "Methode niet toegestaan."
	titleParseError       = "Malformed request."
	titleInternalError    = "Er is een serverfout opgetreden."
)

// Body — тело ответа ошибки.
type Body struct {
	Code          string                  `json:"code"`
	Title         string                  `json:"title"`
	Status        int                     `json:"status"`
	Detail        string                  `json:"detail"`
	InvalidParams []validation.FieldError `json:"invalid_params,omitempty"`
}

// WriteError записывает ответ ошибки в стандартном формате.
func WriteError(w http.ResponseWriter, body Body) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(body.Status)
	_ = json.NewEncoder(w).Encode(body)
}

// --- Конструкторы для типичных ошибок ---

// Invalid — 400 с перечнем ошибок полей.
func Invalid(w http.ResponseWriter, errs *validation.Errors) {
	params := errs.Items()
	if params == nil {
		params = []validation.FieldError{}
	}
	WriteError(w, Body{
		Code:          CodeInvalid,
		Title:         titleInvalid,
		Status:        http.StatusBadRequest,
		InvalidParams: params,
	})
}

// ParseError — 400 тело запроса не является JSON-объектом.
func ParseError(w http.ResponseWriter, detail string) {
	WriteError(w, Body{
		Code:   CodeParseError,
		Title:  titleParseError,
		Status: http.StatusBadRequest,
		Detail: detail,
	})
}

// NotFound — 404 ресурс не найден.
func NotFound(w http.ResponseWriter) {
	WriteError(w, Body{
		Code:   CodeNotFound,
		Title:  titleNotFound,
		Status: http.StatusNotFound,
		Detail: titleNotFound,
	})
}

// NotAuthenticated — 401 учётные данные не переданы.
func NotAuthenticated(w http.ResponseWriter) {
	WriteError(w, Body{
		Code:   CodeNotAuthenticated,
		Title:  titleNotAuthenticated,
		Status: http.StatusUnauthorized,
		Detail: titleNotAuthenticated,
	})
}

// AuthenticationFailed — 401 учётные данные неверны или не проверены.
func AuthenticationFailed(w http.ResponseWriter, detail string) {
	if detail == "" {
		detail = titleAuthFailed
	}
	WriteError(w, Body{
		Code:   CodeAuthenticationFailed,
		Title:  titleAuthFailed,
		Status: http.StatusUnauthorized,
		Detail: detail,
	})
}

// MethodNotAllowed — 405 метод не поддерживается ресурсом.
func MethodNotAllowed(w http.ResponseWriter, method string) {
	WriteError(w, Body{
		Code:   CodeMethodNotAllowed,
		Title:  titleMethodNotAllowed,
		Status: http.StatusMethodNotAllowed,
		Detail: `Methode "` + method + `" niet toegestaan.`,
	})
}

// InternalError — 500 внутренняя ошибка.
func InternalError(w http.ResponseWriter) {
	WriteError(w, Body{
		Code:   CodeInternalError,
		Title:  titleInternalError,
		Status: http.StatusInternalServerError,
		Detail: titleInternalError,
	})
}
