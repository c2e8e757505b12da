// Пакет openapi — OpenAPI 3 документ компонента API.
// Операции выводятся из таблицы маршрутов chi, схемы ресурсов описаны
// через kin-openapi. Документ загружается и проверяется openapi3.Loader
// при старте, ошибка описания не доходит до клиента.
package openapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
)

// apiVersion — версия API в документе.
const apiVersion = "1.0.0"

// Component — описание компонента API.
type Component struct {
	// Name — тег операций и префикс operationId.
	Name string
	// Title — заголовок документа.
	Title string
	// Prefix — базовый путь компонента, например /berichten/api/v1.
	Prefix string
	// Resources — имя схемы ресурса по последнему статическому сегменту пути.
	Resources map[string]string
	// Schemas — схемы components.schemas.
	Schemas map[string]*openapi3.Schema
}

// route — одна операция таблицы маршрутов.
type route struct {
	method string
	path   string
}

// Build строит и проверяет документ компонента по маршрутам routes.
func Build(ctx context.Context, c Component, routes chi.Routes) (*openapi3.T, error) {
	var table []route
	err := chi.Walk(routes, func(method, path string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		table = append(table, route{method: method, path: strings.TrimSuffix(path, "/")})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("обход маршрутов %s: %w", c.Name, err)
	}
	sort.Slice(table, func(i, j int) bool {
		if table[i].path != table[j].path {
			return table[i].path < table[j].path
		}
		return table[i].method < table[j].method
	})

	paths := map[string]map[string]any{}
	for _, rt := range table {
		op, err := c.operation(rt)
		if err != nil {
			return nil, err
		}
		item, ok := paths[rt.path]
		if !ok {
			item = map[string]any{}
			paths[rt.path] = item
		}
		item[strings.ToLower(rt.method)] = op
	}

	schemas := map[string]*openapi3.Schema{
		"Fout":                 errorSchema(),
		"FieldValidationError": fieldErrorSchema(),
	}
	for name, s := range c.Schemas {
		schemas[name] = s
	}

	raw := map[string]any{
		"openapi": "3.0.3",
		"info": map[string]any{
			"title":   c.Title,
			"version": apiVersion,
		},
		"servers": []any{map[string]any{"url": c.Prefix}},
		"paths":   paths,
		"components": map[string]any{
			"schemas": schemas,
			"securitySchemes": map[string]any{
				"openId": map[string]any{
					"type":         "http",
					"scheme":       "bearer",
					"bearerFormat": "JWT",
				},
				"tokenAuth": map[string]any{
					"type":        "apiKey",
					"in":          "header",
					"name":        "Authorization",
					"description": "Token <sleutel>",
				},
			},
		},
		"security": []any{
			map[string]any{"openId": []string{}},
			map[string]any{"tokenAuth": []string{}},
		},
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("сериализация документа %s: %w", c.Name, err)
	}

	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("загрузка документа %s: %w", c.Name, err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("проверка документа %s: %w", c.Name, err)
	}
	return doc, nil
}

// operation описывает одну операцию по методу и шаблону пути.
func (c Component) operation(rt route) (map[string]any, error) {
	segments := strings.Split(strings.Trim(rt.path, "/"), "/")
	var static []string
	var params []any
	for _, s := range segments {
		if strings.HasPrefix(s, "{") {
			params = append(params, pathParameter(strings.Trim(s, "{}")))
			continue
		}
		static = append(static, s)
	}
	if len(static) == 0 {
		return nil, fmt.Errorf("маршрут без ресурса: %s", rt.path)
	}
	collection := static[len(static)-1]
	resource, ok := c.Resources[collection]
	if !ok {
		return nil, fmt.Errorf("нет схемы ресурса для %s", rt.path)
	}
	ref := map[string]any{"$ref": "#/components/schemas/" + resource}
	detail := strings.HasSuffix(rt.path, "}")
	nested := len(static) > 1

	action := ""
	responses := map[string]any{
		"401": errorResponse("Authenticatie vereist of mislukt."),
	}
	var body map[string]any
	switch {
	case rt.method == http.MethodGet && !detail:
		action = "list"
		if nested {
			responses["200"] = jsonResponse("OK", map[string]any{"type": "array", "items": ref})
		} else {
			responses["200"] = jsonResponse("OK", paginated(ref))
			params = append(params, queryParameter("page"), queryParameter("pageSize"))
		}
	case rt.method == http.MethodGet:
		action = "read"
		responses["200"] = jsonResponse("OK", ref)
		responses["404"] = errorResponse("Niet gevonden.")
	case rt.method == http.MethodPost:
		action = "create"
		body = requestBody(ref)
		responses["201"] = jsonResponse("Created", ref)
		responses["400"] = errorResponse("Ongeldige invoer.")
	case rt.method == http.MethodPut, rt.method == http.MethodPatch:
		action = "update"
		if rt.method == http.MethodPatch {
			action = "partial_update"
		}
		body = requestBody(ref)
		responses["200"] = jsonResponse("OK", ref)
		responses["400"] = errorResponse("Ongeldige invoer.")
		responses["404"] = errorResponse("Niet gevonden.")
	case rt.method == http.MethodDelete:
		action = "destroy"
		responses["204"] = map[string]any{"description": "No content"}
		responses["400"] = errorResponse("Verwijderen niet toegestaan.")
		responses["404"] = errorResponse("Niet gevonden.")
	default:
		return nil, fmt.Errorf("метод %s не описывается: %s", rt.method, rt.path)
	}

	op := map[string]any{
		"operationId": strings.Join(static, "_") + "_" + action,
		"tags":        []string{static[0]},
		"responses":   responses,
	}
	if len(params) > 0 {
		op["parameters"] = params
	}
	if body != nil {
		op["requestBody"] = body
	}
	return op, nil
}

func pathParameter(name string) map[string]any {
	schema := map[string]any{"type": "string", "format": "uuid"}
	if name == "version" {
		schema = map[string]any{"type": "integer", "minimum": 1}
	}
	return map[string]any{"name": name, "in": "path", "required": true, "schema": schema}
}

func queryParameter(name string) map[string]any {
	return map[string]any{
		"name":     name,
		"in":       "query",
		"required": false,
		"schema":   map[string]any{"type": "integer", "minimum": 1},
	}
}

func jsonResponse(description string, schema any) map[string]any {
	return map[string]any{
		"description": description,
		"content": map[string]any{
			"application/json": map[string]any{"schema": schema},
		},
	}
}

func errorResponse(description string) map[string]any {
	return map[string]any{
		"description": description,
		"content": map[string]any{
			"application/problem+json": map[string]any{
				"schema": map[string]any{"$ref": "#/components/schemas/Fout"},
			},
		},
	}
}

func requestBody(ref map[string]any) map[string]any {
	return map[string]any{
		"required": true,
		"content": map[string]any{
			"application/json": map[string]any{"schema": ref},
		},
	}
}

func paginated(ref map[string]any) map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []string{"count", "results"},
		"properties": map[string]any{
			"count":    map[string]any{"type": "integer"},
			"next":     map[string]any{"type": "string", "format": "uri", "nullable": true},
			"previous": map[string]any{"type": "string", "format": "uri", "nullable": true},
			"results":  map[string]any{"type": "array", "items": ref},
		},
	}
}

// Handler отдаёт документ в JSON.
func Handler(doc *openapi3.T) (http.HandlerFunc, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("сериализация OpenAPI документа: %w", err)
	}
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/vnd.oai.openapi+json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}, nil
}
