// Package httpapi exposes taskd's HTTP/SSE surface (§4.13/§6): starting and
// streaming tasks, listing/resuming/favoriting/deleting them, and managing
// MCP servers, over an echo.Echo router in the same style as
// internal/http.Server and pkg/server.Server.
package httpapi
