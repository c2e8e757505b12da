// pagination.go — постраничная выдача списков {count, next, previous, results}.
package handlers

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/oapi-codegen/runtime"

	apierrors "github.com/maykinmedia/open-vtb-sub000/internal/api/errors"
)

// page — параметры запрошенной страницы.
type page struct {
	number int
	size   int
}

// limit и offset для запроса к хранилищу.
func (p page) limit() int  { return p.size }
func (p page) offset() int { return (p.number - 1) * p.size }

// pageResponse — ответ списка.
type pageResponse struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  any     `json:"results"`
}

// parsePage читает page и pageSize. Некорректная страница — 404.
func (h *APIHandler) parsePage(w http.ResponseWriter, r *http.Request) (page, bool) {
	q := r.URL.Query()
	p := page{number: 1, size: h.cfg.PageSize}
	if p.size <= 0 {
		p.size = 100
	}

	var number *int
	if err := runtime.BindQueryParameter("form", true, false, "page", q, &number); err != nil {
		apierrors.NotFound(w)
		return page{}, false
	}
	if number != nil {
		if *number < 1 {
			apierrors.NotFound(w)
			return page{}, false
		}
		p.number = *number
	}

	var size *int
	if err := runtime.BindQueryParameter("form", true, false, "pageSize", q, &size); err == nil && size != nil && *size > 0 {
		p.size = *size
	}
	if h.cfg.MaxPageSize > 0 && p.size > h.cfg.MaxPageSize {
		p.size = h.cfg.MaxPageSize
	}
	return p, true
}

// writePage записывает страницу. Страница за пределами списка — 404,
// кроме первой страницы пустого списка.
func (h *APIHandler) writePage(w http.ResponseWriter, r *http.Request, p page, total int, results any) {
	if p.number > 1 && p.offset() >= total {
		apierrors.NotFound(w)
		return
	}
	resp := pageResponse{Count: total, Results: results}
	if p.offset()+p.size < total {
		next := h.pageURL(r, p.number+1)
		resp.Next = &next
	}
	if p.number > 1 {
		prev := h.pageURL(r, p.number-1)
		resp.Previous = &prev
	}
	writeJSON(w, http.StatusOK, resp)
}

// pageURL — абсолютный URL текущего запроса с другим номером страницы.
// Для первой страницы параметр page опускается.
func (h *APIHandler) pageURL(r *http.Request, number int) string {
	q := url.Values{}
	for k, v := range r.URL.Query() {
		q[k] = v
	}
	if number <= 1 {
		q.Del("page")
	} else {
		q.Set("page", strconv.Itoa(number))
	}
	u := h.baseURL(r) + r.URL.Path
	if enc := q.Encode(); enc != "" {
		u += "?" + enc
	}
	return u
}
